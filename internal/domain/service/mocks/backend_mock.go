package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/turtacn/sessionguard/internal/domain/models"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) GetStatus(ctx context.Context, tokenID uuid.UUID) (models.BackendStatus, error) {
	args := m.Called(ctx, tokenID)
	return args.Get(0).(models.BackendStatus), args.Error(1)
}

func (m *MockBackend) Login(ctx context.Context, req models.LoginRequest) (*models.PrincipalInfo, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PrincipalInfo), args.Error(1)
}

func (m *MockBackend) Logout(ctx context.Context, principalID, tokenID uuid.UUID, origin string, requestTime time.Time) (bool, error) {
	args := m.Called(ctx, principalID, tokenID, origin, requestTime)
	return args.Bool(0), args.Error(1)
}

func (m *MockBackend) InvalidateAllForPrincipal(ctx context.Context, principalID uuid.UUID, origin string, requestTime time.Time) (bool, error) {
	args := m.Called(ctx, principalID, origin, requestTime)
	return args.Bool(0), args.Error(1)
}

func (m *MockBackend) ActiveSessionCount(ctx context.Context, principalID uuid.UUID) (int, error) {
	args := m.Called(ctx, principalID)
	return args.Int(0), args.Error(1)
}

func (m *MockBackend) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
