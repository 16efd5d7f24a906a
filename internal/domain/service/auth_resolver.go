package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/turtacn/sessionguard/internal/domain/models"
	"github.com/turtacn/sessionguard/pkg/logger"
)

// AuthResolver runs a request's token through the codec, the claims validator
// and the status oracle, producing exactly one terminal RequestAuthStatus.
type AuthResolver struct {
	codec     TokenCodec
	validator *ClaimsValidator
	oracle    StatusOracle
	metrics   Metrics
	logger    logger.Logger
}

// NewAuthResolver wires a resolver. A missing codec, validator or oracle is a
// configuration error; there is no mode that skips the backend check.
func NewAuthResolver(codec TokenCodec, validator *ClaimsValidator, oracle StatusOracle, metrics Metrics, log logger.Logger) (*AuthResolver, error) {
	switch {
	case codec == nil:
		return nil, fmt.Errorf("auth resolver: token codec is required")
	case validator == nil:
		return nil, fmt.Errorf("auth resolver: claims validator is required")
	case oracle == nil:
		return nil, fmt.Errorf("auth resolver: status oracle is required")
	}
	if metrics == nil {
		metrics = NewNoopMetrics()
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &AuthResolver{
		codec:     codec,
		validator: validator,
		oracle:    oracle,
		metrics:   metrics,
		logger:    log.WithComponent("AuthResolver"),
	}, nil
}

// Resolve never returns an error: every outcome, including infrastructure
// failure, is a terminal status.
func (r *AuthResolver) Resolve(ctx context.Context, token string, origin OriginVerifier) models.RequestAuthStatus {
	result := r.resolve(ctx, token, origin)
	r.metrics.RecordAuthStatus(result.Status)
	return result
}

func (r *AuthResolver) resolve(ctx context.Context, token string, origin OriginVerifier) models.RequestAuthStatus {
	if token == "" {
		return models.NewRequestAuthStatus(models.AuthStatusNotPresentInRequest)
	}

	claims, err := r.codec.Verify(token)
	if err != nil {
		var verr *models.VerificationError
		if !errors.As(err, &verr) {
			r.logger.Error(ctx, "token verification failed unexpectedly", err)
			return models.NewRequestAuthStatus(models.AuthStatusBadToken)
		}
		r.logger.Warn(ctx, "rejected token", logger.String("status", string(verr.Status)), logger.String("reason", verr.Reason))
		return models.NewRequestAuthStatus(verr.Status)
	}

	if status, ok := r.validator.Validate(claims, origin); !ok {
		if status == models.AuthStatusExpired {
			r.logger.Info(ctx, "token expired",
				logger.String("token_id", claims.TokenID.String()),
				logger.Time("expires_at", claims.ExpiresAt),
			)
			return models.NewRequestAuthStatusFromClaims(models.AuthStatusExpired, claims)
		}
		r.logger.Warn(ctx, "rejected token claims", logger.String("status", string(status)))
		return models.NewRequestAuthStatus(status)
	}

	backendStatus, err := r.oracle.Status(ctx, claims.TokenID, claims.PrincipalID)
	if err != nil {
		r.logger.Error(ctx, "backend status lookup failed", err,
			logger.String("token_id", claims.TokenID.String()),
			logger.String("principal_id", claims.PrincipalID.String()),
		)
		return models.NewRequestAuthStatus(models.AuthStatusError)
	}

	status := models.AuthStatusFromBackend(backendStatus)
	switch status {
	case models.AuthStatusValid:
		r.logger.Debug(ctx, "token valid", logger.String("token_id", claims.TokenID.String()))
		return models.NewRequestAuthStatusFromClaims(status, claims)
	case models.AuthStatusError:
		r.logger.Error(ctx, "backend reported an unusable session state", nil,
			logger.String("backend_status", string(backendStatus)),
			logger.String("token_id", claims.TokenID.String()),
		)
		return models.NewRequestAuthStatus(status)
	default:
		r.logger.Info(ctx, "backend rejected token",
			logger.String("backend_status", string(backendStatus)),
			logger.String("token_id", claims.TokenID.String()),
		)
		return models.NewRequestAuthStatusFromClaims(status, claims)
	}
}
