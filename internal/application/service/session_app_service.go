// Package service orchestrates the domain contracts into the login, logout and
// administrative session operations exposed over HTTP.
package service

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/sessionguard/internal/application/dto"
	"github.com/turtacn/sessionguard/internal/config"
	"github.com/turtacn/sessionguard/internal/domain/models"
	domainService "github.com/turtacn/sessionguard/internal/domain/service"
	"github.com/turtacn/sessionguard/pkg/constants"
	"github.com/turtacn/sessionguard/pkg/errors"
	"github.com/turtacn/sessionguard/pkg/logger"
)

// SessionAppService defines the session lifecycle operations.
type SessionAppService interface {
	// Login authenticates the credentials and issues a token bound to origin.
	Login(ctx context.Context, req *dto.LoginRequest, origin string) (*LoginResult, error)

	// Logout ends the session behind a valid request.
	Logout(ctx context.Context, auth models.RequestAuthStatus, origin string) (bool, error)

	// InvalidatePrincipal blacklists every session of the principal.
	InvalidatePrincipal(ctx context.Context, principalID uuid.UUID, origin string) error

	// ActiveSessions counts the principal's open sessions.
	ActiveSessions(ctx context.Context, principalID uuid.UUID) (int, error)
}

// LoginResult carries the issued token for the cookie alongside the response body.
type LoginResult struct {
	Token    string
	MaxAge   int
	Response dto.LoginResponse
}

type sessionAppServiceImpl struct {
	backend   domainService.Backend
	codec     domainService.TokenCodec
	oracle    domainService.StatusOracle
	publisher domainService.RevocationPublisher
	limiter   domainService.LoginLimiter
	metrics   domainService.Metrics
	issuer    string
	ttl       time.Duration
	now       func() time.Time
	logger    logger.Logger
}

// NewSessionAppService wires the service. limiter may be nil to disable
// throttling; publisher and metrics default to no-ops.
func NewSessionAppService(
	backend domainService.Backend,
	codec domainService.TokenCodec,
	oracle domainService.StatusOracle,
	publisher domainService.RevocationPublisher,
	limiter domainService.LoginLimiter,
	metrics domainService.Metrics,
	cfg config.JWTConfig,
	log logger.Logger,
) SessionAppService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if metrics == nil {
		metrics = domainService.NewNoopMetrics()
	}
	return &sessionAppServiceImpl{
		backend:   backend,
		codec:     codec,
		oracle:    oracle,
		publisher: publisher,
		limiter:   limiter,
		metrics:   metrics,
		issuer:    cfg.Issuer,
		ttl:       cfg.TTL(),
		now:       time.Now,
		logger:    log.WithComponent("session_app_service"),
	}
}

func (s *sessionAppServiceImpl) Login(ctx context.Context, req *dto.LoginRequest, origin string) (*LoginResult, error) {
	if req == nil || req.Username == "" || req.Password == "" {
		return nil, errors.ErrInvalidRequest.WithDetail("credentials", "username and password are required")
	}
	if origin == "" {
		return nil, errors.ErrUnauthorized
	}

	if s.limiter != nil {
		allowed, retryAfter, err := s.limiter.Allow(ctx, origin)
		if err != nil {
			s.logger.Warn(ctx, "login limiter failed", logger.Error(err))
		} else if !allowed {
			s.metrics.RecordLoginThrottled()
			s.logger.Warn(ctx, "login throttled", logger.String("origin", origin))
			seconds := int(retryAfter.Round(time.Second) / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			return nil, errors.ErrTooManyRequests.WithDetail("retry_after", strconv.Itoa(seconds))
		}
	}

	tokenID := uuid.New()
	issuedAt := s.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(s.ttl)

	principal, err := s.backend.Login(ctx, models.LoginRequest{
		Username:    req.Username,
		Password:    req.Password,
		TokenID:     tokenID,
		Origin:      origin,
		RequestTime: issuedAt,
		Expiry:      expiresAt,
	})
	if err != nil {
		if errors.Is(err, errors.ErrBadCredentials) {
			s.logger.Info(ctx, "login rejected", logger.String("origin", origin))
			return nil, errors.ErrBadCredentials
		}
		s.logger.Error(ctx, "backend login failed", err, logger.String("origin", origin))
		var appErr *errors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, errors.ErrServiceUnavailable.WithError(err)
	}

	token, err := s.codec.Generate(models.TokenRequest{
		TokenID:     tokenID,
		PrincipalID: principal.ID,
		Roles:       principal.Roles,
		IssuedAt:    issuedAt,
		Audience:    origin,
		Issuer:      s.issuer,
		TTL:         s.ttl,
	})
	if err != nil {
		s.logger.Error(ctx, "token generation failed", err, logger.String("token_id", tokenID.String()))
		if _, logoutErr := s.backend.Logout(ctx, principal.ID, tokenID, origin, issuedAt); logoutErr != nil {
			s.logger.Error(ctx, "failed to close orphaned session", logoutErr, logger.String("token_id", tokenID.String()))
		}
		return nil, errors.ErrInternal.WithError(err)
	}

	s.logger.Info(ctx, "login succeeded",
		logger.String("principal_id", principal.ID.String()),
		logger.String("token_id", tokenID.String()),
		logger.String("origin", origin),
	)
	return &LoginResult{
		Token:  token,
		MaxAge: int(s.ttl / time.Second),
		Response: dto.LoginResponse{
			PrincipalID: principal.ID,
			Username:    principal.Username,
			Roles:       models.SplitRoles(principal.Roles),
			TokenID:     tokenID,
			IssuedAt:    issuedAt,
			ExpiresAt:   expiresAt,
			ExpiresIn:   int(s.ttl / time.Second),
		},
	}, nil
}

func (s *sessionAppServiceImpl) Logout(ctx context.Context, auth models.RequestAuthStatus, origin string) (bool, error) {
	if !auth.IsValid() {
		return false, errors.ErrUnauthorized
	}
	now := s.now().UTC()
	ok, err := s.backend.Logout(ctx, auth.PrincipalID, auth.TokenID, origin, now)
	if err != nil {
		s.logger.Error(ctx, "backend logout failed", err, logger.String("token_id", auth.TokenID.String()))
		return false, errors.ErrServiceUnavailable.WithError(err)
	}
	if !ok {
		return false, nil
	}

	s.oracle.Invalidate(auth.TokenID, auth.PrincipalID)
	s.publish(ctx, models.RevocationEvent{
		Type:        constants.RevocationTypeToken,
		TokenID:     auth.TokenID.String(),
		PrincipalID: auth.PrincipalID.String(),
		OccurredAt:  now,
	})
	s.logger.Info(ctx, "logout succeeded",
		logger.String("principal_id", auth.PrincipalID.String()),
		logger.String("token_id", auth.TokenID.String()),
	)
	return true, nil
}

func (s *sessionAppServiceImpl) InvalidatePrincipal(ctx context.Context, principalID uuid.UUID, origin string) error {
	now := s.now().UTC()
	ok, err := s.backend.InvalidateAllForPrincipal(ctx, principalID, origin, now)
	if err != nil {
		s.logger.Error(ctx, "backend bulk invalidation failed", err, logger.String("principal_id", principalID.String()))
		return errors.ErrServiceUnavailable.WithError(err)
	}
	if !ok {
		return errors.ErrNotFound.WithDetail("principal_id", principalID.String())
	}

	s.oracle.InvalidateAllForPrincipal(principalID)
	s.publish(ctx, models.RevocationEvent{
		Type:        constants.RevocationTypePrincipal,
		PrincipalID: principalID.String(),
		OccurredAt:  now,
	})
	s.logger.Info(ctx, "principal sessions invalidated", logger.String("principal_id", principalID.String()))
	return nil
}

func (s *sessionAppServiceImpl) ActiveSessions(ctx context.Context, principalID uuid.UUID) (int, error) {
	count, err := s.backend.ActiveSessionCount(ctx, principalID)
	if err != nil {
		s.logger.Error(ctx, "backend session count failed", err, logger.String("principal_id", principalID.String()))
		return 0, errors.ErrServiceUnavailable.WithError(err)
	}
	return count, nil
}

// publish announces a revocation to other instances. The local cache is
// already invalidated, so a failure only delays remote instances until
// their entries expire.
func (s *sessionAppServiceImpl) publish(ctx context.Context, event models.RevocationEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error(ctx, "failed to publish revocation event", err,
			logger.String("type", string(event.Type)),
			logger.String("principal_id", event.PrincipalID),
		)
	}
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, models.RevocationEvent) error { return nil }
