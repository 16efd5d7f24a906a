package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/sessionguard/internal/config"
	"github.com/turtacn/sessionguard/internal/domain/service"
	"github.com/turtacn/sessionguard/pkg/constants"
	"github.com/turtacn/sessionguard/pkg/errors"
	"github.com/turtacn/sessionguard/pkg/logger"
)

// fixedWindowScript counts an attempt and starts the window on the first one.
// It returns the count and the remaining window in milliseconds.
var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
    ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisLoginLimiter counts login attempts per origin in a fixed window shared
// by every instance. Redis failures never reject a login; the attempt is
// counted by the fallback limiter instead, or allowed when there is none.
type RedisLoginLimiter struct {
	client   redis.UniversalClient
	limit    int64
	window   time.Duration
	fallback service.LoginLimiter
	logger   logger.Logger
}

var _ service.LoginLimiter = (*RedisLoginLimiter)(nil)

// NewRedisLoginLimiter builds the limiter. fallback may be nil.
func NewRedisLoginLimiter(client redis.UniversalClient, cfg config.RateLimitConfig, fallback service.LoginLimiter, log logger.Logger) (*RedisLoginLimiter, error) {
	if client == nil {
		return nil, errors.ErrInvalidConfig.WithDetail("redis", "client is required")
	}
	if cfg.LoginAttempts <= 0 || cfg.LoginWindow <= 0 {
		return nil, errors.ErrInvalidConfig.WithDetail("rate_limit", "login_attempts and login_window must be positive")
	}
	return &RedisLoginLimiter{
		client:   client,
		limit:    int64(cfg.LoginAttempts),
		window:   cfg.LoginWindow,
		fallback: fallback,
		logger:   log.WithComponent("login_limiter"),
	}, nil
}

func (l *RedisLoginLimiter) Allow(ctx context.Context, origin string) (bool, time.Duration, error) {
	key := constants.LoginLimitKeyPrefix + origin
	res, err := fixedWindowScript.Run(ctx, l.client, []string{key}, l.window.Milliseconds()).Int64Slice()
	if err == nil && len(res) != 2 {
		err = errors.New("unexpected login limiter script result")
	}
	if err != nil {
		l.logger.Warn(ctx, "login limiter unavailable, using fallback",
			logger.String("origin", origin),
			logger.Error(err),
		)
		if l.fallback != nil {
			return l.fallback.Allow(ctx, origin)
		}
		return true, 0, nil
	}

	count, ttl := res[0], time.Duration(res[1])*time.Millisecond
	if count > l.limit {
		return false, ttl, nil
	}
	return true, 0, nil
}

// Reset clears the attempt counter for origin.
func (l *RedisLoginLimiter) Reset(ctx context.Context, origin string) error {
	return l.client.Del(ctx, constants.LoginLimitKeyPrefix+origin).Err()
}
