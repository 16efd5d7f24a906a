package oracle

import (
	"context"
	"time"

	"github.com/turtacn/sessionguard/internal/config"
	"github.com/turtacn/sessionguard/internal/domain/service"
	"github.com/turtacn/sessionguard/pkg/logger"
)

// NewStatusOracle builds the oracle chain for cfg: a direct oracle, wrapped in
// a cache unless cfg.MaxSize is zero or negative.
func NewStatusOracle(backend service.Backend, cfg config.StatusCacheConfig, metrics service.Metrics, log logger.Logger) (service.StatusOracle, error) {
	direct, err := NewDirectStatusOracle(backend, cfg.LookupTimeout, metrics, log)
	if err != nil {
		return nil, err
	}
	if cfg.MaxSize <= 0 {
		log.Info(context.Background(), "status cache disabled, using direct backend lookups")
		return direct, nil
	}

	ttl := time.Duration(cfg.TTLMinutes) * time.Minute
	caching, err := NewCachingStatusOracle(direct, cfg.MaxSize, ttl, metrics, log)
	if err != nil {
		return nil, err
	}
	log.Info(context.Background(), "status cache enabled",
		logger.Int("max_size", cfg.MaxSize),
		logger.Duration("ttl", ttl),
		logger.Duration("lookup_timeout", cfg.LookupTimeout),
	)
	return caching, nil
}
