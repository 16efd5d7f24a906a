package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/turtacn/sessionguard/internal/domain/models"
)

type MockStatusOracle struct {
	mock.Mock
}

func (m *MockStatusOracle) Status(ctx context.Context, tokenID, principalID uuid.UUID) (models.BackendStatus, error) {
	args := m.Called(ctx, tokenID, principalID)
	return args.Get(0).(models.BackendStatus), args.Error(1)
}

func (m *MockStatusOracle) Invalidate(tokenID, principalID uuid.UUID) {
	m.Called(tokenID, principalID)
}

func (m *MockStatusOracle) InvalidateAllForPrincipal(principalID uuid.UUID) {
	m.Called(principalID)
}

type MockRevocationPublisher struct {
	mock.Mock
}

func (m *MockRevocationPublisher) Publish(ctx context.Context, event models.RevocationEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
