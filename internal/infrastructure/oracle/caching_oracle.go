package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/sessionguard/internal/domain/models"
	"github.com/turtacn/sessionguard/internal/domain/service"
	"github.com/turtacn/sessionguard/pkg/logger"
)

var _ service.StatusOracle = (*CachingStatusOracle)(nil)

type cacheKey struct {
	TokenID     uuid.UUID
	PrincipalID uuid.UUID
}

func (k cacheKey) String() string {
	return k.TokenID.String() + ":" + k.PrincipalID.String()
}

// CachingStatusOracle wraps another oracle with a TTL and size bounded LRU.
// Concurrent misses for one key share a single delegate call. Failed lookups
// are never stored.
type CachingStatusOracle struct {
	delegate service.StatusOracle
	cache    *expirable.LRU[cacheKey, models.BackendStatus]
	group    singleflight.Group
	metrics  service.Metrics
	logger   logger.Logger

	// mu orders cache fills against invalidations; generation advances on
	// every invalidation so a lookup that started earlier cannot store a
	// stale answer.
	mu         sync.Mutex
	generation uint64
}

// NewCachingStatusOracle creates a cache of at most maxSize entries, each
// living for ttl.
func NewCachingStatusOracle(delegate service.StatusOracle, maxSize int, ttl time.Duration, metrics service.Metrics, log logger.Logger) (*CachingStatusOracle, error) {
	if delegate == nil {
		return nil, fmt.Errorf("caching status oracle: delegate is required")
	}
	if maxSize <= 0 {
		return nil, fmt.Errorf("caching status oracle: max size must be positive")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("caching status oracle: ttl must be positive")
	}
	if metrics == nil {
		metrics = service.NewNoopMetrics()
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &CachingStatusOracle{
		delegate: delegate,
		cache:    expirable.NewLRU[cacheKey, models.BackendStatus](maxSize, nil, ttl),
		metrics:  metrics,
		logger:   log.WithComponent("CachingStatusOracle"),
	}, nil
}

// Status returns the cached answer or loads it through the delegate. The
// shared load is detached from any single caller's cancellation; each caller
// still stops waiting when its own context ends.
func (o *CachingStatusOracle) Status(ctx context.Context, tokenID, principalID uuid.UUID) (models.BackendStatus, error) {
	key := cacheKey{TokenID: tokenID, PrincipalID: principalID}
	if status, ok := o.cache.Get(key); ok {
		o.metrics.RecordStatusCache(service.CacheResultHit)
		return status, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := o.group.DoChan(key.String(), func() (interface{}, error) {
		return o.load(loadCtx, key)
	})

	select {
	case res := <-ch:
		if res.Shared {
			o.metrics.RecordStatusCache(service.CacheResultCoalesced)
		} else {
			o.metrics.RecordStatusCache(service.CacheResultMiss)
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(models.BackendStatus), nil
	case <-ctx.Done():
		return "", fmt.Errorf("status cache wait: %w", ctx.Err())
	}
}

func (o *CachingStatusOracle) load(ctx context.Context, key cacheKey) (models.BackendStatus, error) {
	o.mu.Lock()
	generation := o.generation
	o.mu.Unlock()

	status, err := o.delegate.Status(ctx, key.TokenID, key.PrincipalID)
	if err != nil {
		return "", err
	}
	if !status.Cacheable() {
		o.metrics.RecordStatusCache(service.CacheResultUncached)
		return status, nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.generation == generation {
		o.cache.Add(key, status)
	} else {
		o.logger.Debug(ctx, "discarding status loaded across an invalidation",
			logger.String("token_id", key.TokenID.String()))
	}
	return status, nil
}

// Invalidate removes the entry for the pair. The next Status call for it
// reaches the delegate.
func (o *CachingStatusOracle) Invalidate(tokenID, principalID uuid.UUID) {
	key := cacheKey{TokenID: tokenID, PrincipalID: principalID}

	o.mu.Lock()
	o.generation++
	o.cache.Remove(key)
	o.group.Forget(key.String())
	o.mu.Unlock()

	o.logger.Debug(context.Background(), "status cache entry invalidated",
		logger.String("token_id", tokenID.String()),
		logger.String("principal_id", principalID.String()),
	)
}

// InvalidateAllForPrincipal scans the live keys and removes every entry owned
// by principalID. The scan is bounded by the cache size.
func (o *CachingStatusOracle) InvalidateAllForPrincipal(principalID uuid.UUID) {
	removed := 0

	o.mu.Lock()
	o.generation++
	for _, key := range o.cache.Keys() {
		if key.PrincipalID == principalID {
			o.cache.Remove(key)
			o.group.Forget(key.String())
			removed++
		}
	}
	o.mu.Unlock()

	o.logger.Info(context.Background(), "status cache entries invalidated for principal",
		logger.String("principal_id", principalID.String()),
		logger.Int("removed", removed),
	)
}

// Len returns the number of cached entries, including expired ones not yet swept.
func (o *CachingStatusOracle) Len() int {
	return o.cache.Len()
}

// Contains reports whether an unexpired entry exists for the pair.
func (o *CachingStatusOracle) Contains(tokenID, principalID uuid.UUID) bool {
	_, ok := o.cache.Peek(cacheKey{TokenID: tokenID, PrincipalID: principalID})
	return ok
}

// Purge drops every entry. Called at shutdown.
func (o *CachingStatusOracle) Purge() {
	o.mu.Lock()
	o.generation++
	o.cache.Purge()
	o.mu.Unlock()
}
