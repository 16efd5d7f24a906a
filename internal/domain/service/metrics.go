package service

import (
	"time"

	"github.com/turtacn/sessionguard/internal/domain/models"
)

// Cache lookup results reported through Metrics.RecordStatusCache.
const (
	CacheResultHit       = "hit"
	CacheResultMiss      = "miss"
	CacheResultCoalesced = "coalesced"
	CacheResultUncached  = "uncached"
)

// Backend lookup results reported through Metrics.RecordBackendLookup.
const (
	LookupResultOK      = "ok"
	LookupResultError   = "error"
	LookupResultTimeout = "timeout"
)

// Metrics defines the interface for collecting authentication metrics,
// keeping the domain independent of the monitoring implementation.
type Metrics interface {
	// RecordAuthStatus counts a terminal request outcome.
	RecordAuthStatus(status models.AuthStatus)

	// RecordStatusCache counts a status cache lookup by result.
	RecordStatusCache(result string)

	// RecordBackendLookup records the latency of an uncached status lookup.
	RecordBackendLookup(result string, duration time.Duration)

	// RecordCSRFOutcome counts a CSRF guard decision.
	RecordCSRFOutcome(outcome string)

	// RecordLoginThrottled counts a rejected login attempt.
	RecordLoginThrottled()
}

type noopMetrics struct{}

// NewNoopMetrics returns a Metrics that discards everything.
func NewNoopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordAuthStatus(models.AuthStatus) {}
func (noopMetrics) RecordStatusCache(string) {}
func (noopMetrics) RecordBackendLookup(string, time.Duration) {}
func (noopMetrics) RecordCSRFOutcome(string) {}
func (noopMetrics) RecordLoginThrottled() {}
