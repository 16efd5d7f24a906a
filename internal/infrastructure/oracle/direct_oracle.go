// Package oracle answers token status questions on behalf of the backend
// authority, either directly or through a bounded cache.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/sessionguard/internal/domain/models"
	"github.com/turtacn/sessionguard/internal/domain/service"
	"github.com/turtacn/sessionguard/pkg/logger"
)

// ErrNoAnswer is returned when the backend replies without a status.
var ErrNoAnswer = errors.New("backend returned no status")

var _ service.StatusOracle = (*DirectStatusOracle)(nil)

// DirectStatusOracle performs one backend lookup per call, bounded by a timeout.
type DirectStatusOracle struct {
	backend service.Backend
	timeout time.Duration
	metrics service.Metrics
	logger  logger.Logger
}

// NewDirectStatusOracle creates an oracle over backend. A non-positive timeout
// is a configuration error.
func NewDirectStatusOracle(backend service.Backend, timeout time.Duration, metrics service.Metrics, log logger.Logger) (*DirectStatusOracle, error) {
	if backend == nil {
		return nil, fmt.Errorf("direct status oracle: backend is required")
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("direct status oracle: lookup timeout must be positive")
	}
	if metrics == nil {
		metrics = service.NewNoopMetrics()
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &DirectStatusOracle{
		backend: backend,
		timeout: timeout,
		metrics: metrics,
		logger:  log.WithComponent("DirectStatusOracle"),
	}, nil
}

type lookupResult struct {
	status models.BackendStatus
	err    error
}

// Status asks the backend. The call runs on its own goroutine so a backend
// that ignores cancellation still cannot hold the caller past the timeout.
func (o *DirectStatusOracle) Status(ctx context.Context, tokenID, principalID uuid.UUID) (models.BackendStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan lookupResult, 1)
	go func() {
		status, err := o.backend.GetStatus(ctx, tokenID)
		done <- lookupResult{status: status, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			o.metrics.RecordBackendLookup(service.LookupResultError, time.Since(start))
			return "", fmt.Errorf("backend status lookup: %w", res.err)
		}
		if res.status == "" {
			o.metrics.RecordBackendLookup(service.LookupResultError, time.Since(start))
			return "", ErrNoAnswer
		}
		o.metrics.RecordBackendLookup(service.LookupResultOK, time.Since(start))
		return res.status, nil
	case <-ctx.Done():
		o.metrics.RecordBackendLookup(service.LookupResultTimeout, time.Since(start))
		o.logger.Warn(ctx, "backend status lookup timed out",
			logger.String("token_id", tokenID.String()),
			logger.Duration("timeout", o.timeout),
		)
		return "", fmt.Errorf("backend status lookup: %w", ctx.Err())
	}
}

// Invalidate is a no-op: nothing is remembered.
func (o *DirectStatusOracle) Invalidate(tokenID, principalID uuid.UUID) {}

// InvalidateAllForPrincipal is a no-op: nothing is remembered.
func (o *DirectStatusOracle) InvalidateAllForPrincipal(principalID uuid.UUID) {}
