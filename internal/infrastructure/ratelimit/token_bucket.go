// Package ratelimit throttles login attempts per client origin.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/sessionguard/internal/domain/service"
)

// tokenBucket refills continuously at rate tokens per second up to capacity.
type tokenBucket struct {
	capacity   float64
	tokens     float64
	rate       float64
	lastRefill time.Time
	lastUsed   time.Time
}

// take consumes one token. When none is available it returns the wait until
// one will be.
func (tb *tokenBucket) take(now time.Time) (bool, time.Duration) {
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed > 0 {
		tb.tokens += elapsed * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastRefill = now
	}
	tb.lastUsed = now

	if tb.tokens >= 1 {
		tb.tokens--
		return true, 0
	}
	wait := (1 - tb.tokens) / tb.rate
	return false, time.Duration(wait * float64(time.Second))
}

// LocalLoginLimiter keeps one token bucket per origin in process memory. It
// serves single-instance deployments and stands in while Redis is unreachable.
type LocalLoginLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*tokenBucket
	capacity float64
	rate     float64
	maxIdle  time.Duration
	now      func() time.Time
	lastScan time.Time
}

var _ service.LoginLimiter = (*LocalLoginLimiter)(nil)

// NewLocalLoginLimiter allows attempts per window, refilling evenly across it.
func NewLocalLoginLimiter(attempts int, window time.Duration) *LocalLoginLimiter {
	return newLocalLoginLimiter(attempts, window, time.Now)
}

func newLocalLoginLimiter(attempts int, window time.Duration, now func() time.Time) *LocalLoginLimiter {
	return &LocalLoginLimiter{
		buckets:  make(map[string]*tokenBucket),
		capacity: float64(attempts),
		rate:     float64(attempts) / window.Seconds(),
		maxIdle:  window,
		now:      now,
		lastScan: now(),
	}
}

func (l *LocalLoginLimiter) Allow(ctx context.Context, origin string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.cleanup(now)

	b, ok := l.buckets[origin]
	if !ok {
		b = &tokenBucket{capacity: l.capacity, tokens: l.capacity, rate: l.rate, lastRefill: now}
		l.buckets[origin] = b
	}
	allowed, wait := b.take(now)
	return allowed, wait, nil
}

// Size returns the number of tracked origins.
func (l *LocalLoginLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// cleanup drops buckets idle for longer than a full window, at most once per
// window. Must be called with the lock held.
func (l *LocalLoginLimiter) cleanup(now time.Time) {
	if now.Sub(l.lastScan) < l.maxIdle {
		return
	}
	for origin, b := range l.buckets {
		if now.Sub(b.lastUsed) > l.maxIdle {
			delete(l.buckets, origin)
		}
	}
	l.lastScan = now
}
