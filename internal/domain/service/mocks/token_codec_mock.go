package mocks

import (
	"github.com/stretchr/testify/mock"
	"github.com/turtacn/sessionguard/internal/domain/models"
)

type MockTokenCodec struct {
	mock.Mock
}

func (m *MockTokenCodec) Generate(req models.TokenRequest) (string, error) {
	args := m.Called(req)
	return args.String(0), args.Error(1)
}

func (m *MockTokenCodec) Verify(token string) (*models.Claims, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Claims), args.Error(1)
}
