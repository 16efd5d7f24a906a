package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/sessionguard/internal/config"
	"github.com/turtacn/sessionguard/internal/domain/models"
	"github.com/turtacn/sessionguard/internal/domain/service/mocks"
	"github.com/turtacn/sessionguard/pkg/logger"
)

func TestNewDirectStatusOracle_Validation(t *testing.T) {
	_, err := NewDirectStatusOracle(nil, time.Second, nil, nil)
	assert.Error(t, err)

	_, err = NewDirectStatusOracle(new(mocks.MockBackend), 0, nil, nil)
	assert.Error(t, err)
}

func TestDirectStatusOracle_PassesThrough(t *testing.T) {
	backend := new(mocks.MockBackend)
	tokenID, principalID := uuid.New(), uuid.New()
	backend.On("GetStatus", mock.Anything, tokenID).Return(models.BackendStatusBlacklisted, nil).Twice()

	o, err := NewDirectStatusOracle(backend, time.Second, nil, logger.NewNoopLogger())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		status, err := o.Status(context.Background(), tokenID, principalID)
		require.NoError(t, err)
		assert.Equal(t, models.BackendStatusBlacklisted, status)
	}
	backend.AssertNumberOfCalls(t, "GetStatus", 2)
}

func TestDirectStatusOracle_BackendError(t *testing.T) {
	backend := new(mocks.MockBackend)
	tokenID := uuid.New()
	boom := errors.New("connection reset")
	backend.On("GetStatus", mock.Anything, tokenID).Return(models.BackendStatus(""), boom)

	o, err := NewDirectStatusOracle(backend, time.Second, nil, nil)
	require.NoError(t, err)

	_, err = o.Status(context.Background(), tokenID, uuid.New())
	assert.ErrorIs(t, err, boom)
}

func TestDirectStatusOracle_EmptyAnswer(t *testing.T) {
	backend := new(mocks.MockBackend)
	tokenID := uuid.New()
	backend.On("GetStatus", mock.Anything, tokenID).Return(models.BackendStatus(""), nil)

	o, err := NewDirectStatusOracle(backend, time.Second, nil, nil)
	require.NoError(t, err)

	_, err = o.Status(context.Background(), tokenID, uuid.New())
	assert.ErrorIs(t, err, ErrNoAnswer)
}

func TestDirectStatusOracle_Timeout(t *testing.T) {
	backend := new(mocks.MockBackend)
	tokenID := uuid.New()
	release := make(chan struct{})
	defer close(release)
	// The backend ignores its context entirely.
	backend.On("GetStatus", mock.Anything, tokenID).
		Run(func(args mock.Arguments) { <-release }).
		Return(models.BackendStatusValid, nil)

	o, err := NewDirectStatusOracle(backend, 20*time.Millisecond, nil, nil)
	require.NoError(t, err)

	start := time.Now()
	_, err = o.Status(context.Background(), tokenID, uuid.New())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNewStatusOracle_SelectsImplementation(t *testing.T) {
	backend := new(mocks.MockBackend)
	log := logger.NewNoopLogger()

	o, err := NewStatusOracle(backend, config.StatusCacheConfig{MaxSize: 0, LookupTimeout: time.Second}, nil, log)
	require.NoError(t, err)
	assert.IsType(t, &DirectStatusOracle{}, o)

	o, err = NewStatusOracle(backend, config.StatusCacheConfig{MaxSize: 5, TTLMinutes: 1, LookupTimeout: time.Second}, nil, log)
	require.NoError(t, err)
	assert.IsType(t, &CachingStatusOracle{}, o)

	_, err = NewStatusOracle(nil, config.StatusCacheConfig{MaxSize: 5, TTLMinutes: 1, LookupTimeout: time.Second}, nil, log)
	assert.Error(t, err)
}
