package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockLoginLimiter struct {
	mock.Mock
}

func (m *MockLoginLimiter) Allow(ctx context.Context, origin string) (bool, time.Duration, error) {
	args := m.Called(ctx, origin)
	return args.Bool(0), args.Get(1).(time.Duration), args.Error(2)
}
