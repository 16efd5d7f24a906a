package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/sessionguard/internal/config"
	apperrors "github.com/turtacn/sessionguard/pkg/errors"
	"github.com/turtacn/sessionguard/pkg/logger"
)

func TestNewRedisConnection(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	rc, err := NewRedisConnection(ctx, &config.RedisConfig{Address: mr.Addr(), PoolSize: 4}, logger.NewNoopLogger())
	require.NoError(t, err)

	require.NoError(t, rc.GetClient().Set(ctx, "k", "v", 0).Err())
	mr.CheckGet(t, "k", "v")

	info, err := rc.HealthCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", info["status"])

	mr.Close()
	err = rc.Ping(ctx)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavailable)
	assert.NoError(t, rc.Close())
}

func TestNewRedisConnection_Errors(t *testing.T) {
	_, err := NewRedisConnection(context.Background(), &config.RedisConfig{}, logger.NewNoopLogger())
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = NewRedisConnection(context.Background(), &config.RedisConfig{Address: addr}, logger.NewNoopLogger())
	assert.Error(t, err)
}
