// Package memory implements the session authority in process memory. It is
// meant for single-instance deployments and tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"

	"github.com/turtacn/sessionguard/internal/config"
	"github.com/turtacn/sessionguard/internal/domain/models"
	"github.com/turtacn/sessionguard/internal/domain/service"
	"github.com/turtacn/sessionguard/pkg/errors"
	"github.com/turtacn/sessionguard/pkg/logger"
)

// expiredRetention keeps a session record around after its expiry so lookups
// can answer EXPIRED instead of NOT_PRESENT.
const expiredRetention = time.Hour

// dummyHash is compared against when the username is unknown so both
// rejection paths cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("sessionguard-unknown-principal"), bcrypt.MinCost)

type principal struct {
	info         models.PrincipalInfo
	passwordHash []byte
	active       bool
}

type session struct {
	PrincipalID uuid.UUID
	Origin      string
	CreatedAt   time.Time
	Expiry      time.Time
	Blacklisted bool
}

// Backend keeps principals seeded from configuration and sessions in a go-cache.
type Backend struct {
	byName   map[string]*principal
	byID     map[uuid.UUID]*principal
	sessions *gocache.Cache
	mu       sync.Mutex
	now      func() time.Time
	logger   logger.Logger
}

var _ service.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// NewBackend seeds the principals. Usernames are matched case-insensitively.
func NewBackend(principals []config.PrincipalConfig, log logger.Logger, opts ...Option) (*Backend, error) {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	b := &Backend{
		byName:   make(map[string]*principal, len(principals)),
		byID:     make(map[uuid.UUID]*principal, len(principals)),
		sessions: gocache.New(gocache.NoExpiration, 10*time.Minute),
		now:      time.Now,
		logger:   log.WithComponent("memory_backend"),
	}
	for _, opt := range opts {
		opt(b)
	}

	for i, pc := range principals {
		id, err := uuid.Parse(pc.ID)
		if err != nil {
			return nil, errors.ErrInvalidConfig.WithDetail(fmt.Sprintf("backend.principals[%d].id", i), "must be a uuid").WithError(err)
		}
		if pc.Username == "" || pc.PasswordHash == "" {
			return nil, errors.ErrInvalidConfig.WithDetail(fmt.Sprintf("backend.principals[%d]", i), "username and password_hash are required")
		}
		if _, err := bcrypt.Cost([]byte(pc.PasswordHash)); err != nil {
			return nil, errors.ErrInvalidConfig.WithDetail(fmt.Sprintf("backend.principals[%d].password_hash", i), "must be a bcrypt hash").WithError(err)
		}
		key := strings.ToLower(pc.Username)
		if _, dup := b.byName[key]; dup {
			return nil, errors.ErrInvalidConfig.WithDetail(fmt.Sprintf("backend.principals[%d].username", i), "duplicate username")
		}
		p := &principal{
			info:         models.PrincipalInfo{ID: id, Username: pc.Username, Roles: pc.Roles},
			passwordHash: []byte(pc.PasswordHash),
			active:       pc.Active,
		}
		b.byName[key] = p
		b.byID[id] = p
	}
	return b, nil
}

func (b *Backend) GetStatus(ctx context.Context, tokenID uuid.UUID) (models.BackendStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, ok := b.sessions.Get(tokenID.String())
	if !ok {
		return models.BackendStatusNotPresent, nil
	}
	s := v.(session)
	p, ok := b.byID[s.PrincipalID]
	return models.SessionStatus(s.Blacklisted, s.Expiry, ok && p.active, b.now()), nil
}

func (b *Backend) Login(ctx context.Context, req models.LoginRequest) (*models.PrincipalInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, ok := b.byName[strings.ToLower(req.Username)]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
		return nil, errors.ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(p.passwordHash, []byte(req.Password)); err != nil {
		return nil, errors.ErrBadCredentials
	}
	if !p.active {
		return nil, errors.ErrBadCredentials
	}
	if !req.RequestTime.Before(req.Expiry) {
		return nil, errors.ErrInvalidRequest.WithDetail("expiry", "must be after the request time")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.sessions.Get(req.TokenID.String()); exists {
		return nil, errors.ErrInvalidRequest.WithDetail("token_id", "already in use")
	}
	b.sessions.Set(req.TokenID.String(), session{
		PrincipalID: p.info.ID,
		Origin:      req.Origin,
		CreatedAt:   req.RequestTime,
		Expiry:      req.Expiry,
	}, b.retentionFor(req.Expiry))

	b.logger.Info(ctx, "session opened",
		logger.String("principal_id", p.info.ID.String()),
		logger.String("token_id", req.TokenID.String()),
		logger.String("origin", req.Origin),
	)
	info := p.info
	return &info, nil
}

func (b *Backend) Logout(ctx context.Context, principalID, tokenID uuid.UUID, origin string, requestTime time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.sessions.Get(tokenID.String())
	if !ok || v.(session).PrincipalID != principalID {
		return false, nil
	}
	b.sessions.Delete(tokenID.String())
	b.logger.Info(ctx, "session closed",
		logger.String("principal_id", principalID.String()),
		logger.String("token_id", tokenID.String()),
		logger.String("origin", origin),
		logger.Time("request_time", requestTime),
	)
	return true, nil
}

func (b *Backend) InvalidateAllForPrincipal(ctx context.Context, principalID uuid.UUID, origin string, requestTime time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, ok := b.byID[principalID]; !ok {
		return false, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	blacklisted := 0
	for key, item := range b.sessions.Items() {
		s := item.Object.(session)
		if s.PrincipalID != principalID || s.Blacklisted {
			continue
		}
		s.Blacklisted = true
		b.sessions.Set(key, s, b.retentionFor(s.Expiry))
		blacklisted++
	}
	b.logger.Info(ctx, "principal sessions invalidated",
		logger.String("principal_id", principalID.String()),
		logger.Int("sessions", blacklisted),
		logger.String("origin", origin),
		logger.Time("request_time", requestTime),
	)
	return true, nil
}

func (b *Backend) ActiveSessionCount(ctx context.Context, principalID uuid.UUID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	now := b.now()
	count := 0
	for _, item := range b.sessions.Items() {
		s := item.Object.(session)
		if s.PrincipalID == principalID && !s.Blacklisted && now.Before(s.Expiry) {
			count++
		}
	}
	return count, nil
}

func (b *Backend) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (b *Backend) retentionFor(expiry time.Time) time.Duration {
	d := expiry.Sub(b.now()) + expiredRetention
	if d <= 0 {
		return time.Second
	}
	return d
}
