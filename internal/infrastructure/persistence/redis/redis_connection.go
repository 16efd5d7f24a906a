// Package redis manages the Redis client shared by login throttling and health checks.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/sessionguard/internal/config"
	"github.com/turtacn/sessionguard/pkg/errors"
	"github.com/turtacn/sessionguard/pkg/logger"
)

// RedisConnection owns a Redis client and its health checks.
type RedisConnection struct {
	config *config.RedisConfig
	client redis.UniversalClient
	logger logger.Logger
}

// NewRedisConnection connects to cfg.Address and verifies it with a ping.
func NewRedisConnection(ctx context.Context, cfg *config.RedisConfig, log logger.Logger) (*RedisConnection, error) {
	if cfg == nil || cfg.Address == "" {
		return nil, errors.ErrInvalidConfig.WithDetail("redis.address", "must not be empty")
	}
	log = log.WithComponent("redis")

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        []string{cfg.Address},
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
	})

	rc := &RedisConnection{config: cfg, client: client, logger: log}
	if err := rc.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	log.Info(ctx, "redis connection established",
		logger.String("addr", cfg.Address),
		logger.Int("db", cfg.DB),
		logger.Int("pool_size", cfg.PoolSize),
	)
	return rc, nil
}

// GetClient returns the underlying client.
func (rc *RedisConnection) GetClient() redis.UniversalClient {
	return rc.client
}

// Ping checks connectivity with a five second ceiling.
func (rc *RedisConnection) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rc.client.Ping(pingCtx).Err(); err != nil {
		rc.logger.Error(ctx, "redis ping failed", err)
		return errors.ErrServiceUnavailable.WithDetail("redis", "ping failed").WithError(err)
	}
	return nil
}

// HealthCheck pings and reports pool statistics.
func (rc *RedisConnection) HealthCheck(ctx context.Context) (map[string]interface{}, error) {
	if err := rc.Ping(ctx); err != nil {
		return nil, err
	}
	stats := rc.client.PoolStats()
	return map[string]interface{}{
		"status":      "healthy",
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
	}, nil
}

// Close releases the client.
func (rc *RedisConnection) Close() error {
	if err := rc.client.Close(); err != nil {
		rc.logger.Error(context.Background(), "failed to close redis connection", err)
		return err
	}
	rc.logger.Info(context.Background(), "redis connection closed")
	return nil
}
