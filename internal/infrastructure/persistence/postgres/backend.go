package postgres

import (
	"context"
	_ "embed"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/turtacn/sessionguard/internal/config"
	"github.com/turtacn/sessionguard/internal/domain/models"
	"github.com/turtacn/sessionguard/internal/domain/service"
	"github.com/turtacn/sessionguard/pkg/errors"
	"github.com/turtacn/sessionguard/pkg/logger"
)

//go:embed schema.sql
var schemaSQL string

// dbtx is the subset of pgxpool.Pool used by Backend.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	selectSessionStatus = `
		SELECT s.blacklisted, s.expires_at, COALESCE(p.active, FALSE)
		FROM principal_session s
		LEFT JOIN principal p ON p.id = s.principal_id
		WHERE s.token_id = $1 AND s.logged_out_at IS NULL`

	selectPrincipalByUsername = `
		SELECT id, username, password_hash, roles, active
		FROM principal
		WHERE lower(username) = lower($1)`

	insertSession = `
		INSERT INTO principal_session (token_id, principal_id, origin, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token_id) DO NOTHING`

	logoutSession = `
		UPDATE principal_session
		SET logged_out_at = $3, logout_origin = $4
		WHERE token_id = $1 AND principal_id = $2 AND logged_out_at IS NULL`

	selectPrincipalExists = `SELECT EXISTS (SELECT 1 FROM principal WHERE id = $1)`

	blacklistPrincipalSessions = `
		UPDATE principal_session
		SET blacklisted = TRUE, invalidated_at = $2
		WHERE principal_id = $1 AND NOT blacklisted AND logged_out_at IS NULL`

	countActiveSessions = `
		SELECT COUNT(*)
		FROM principal_session
		WHERE principal_id = $1 AND NOT blacklisted AND logged_out_at IS NULL AND expires_at > $2`

	upsertPrincipal = `
		INSERT INTO principal (id, username, password_hash, roles, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			password_hash = EXCLUDED.password_hash,
			roles = EXCLUDED.roles,
			active = EXCLUDED.active`
)

// Backend stores principals and sessions in PostgreSQL.
type Backend struct {
	db     dbtx
	pinger interface{ Ping(context.Context) error }
	now    func() time.Time
	logger logger.Logger
}

var _ service.Backend = (*Backend)(nil)

// NewBackend returns a Backend on the connection's pool.
func NewBackend(conn *DBConnection, log logger.Logger) *Backend {
	return &Backend{
		db:     conn.Pool(),
		pinger: conn,
		now:    time.Now,
		logger: log.WithComponent("postgres_backend"),
	}
}

// Migrate creates the tables when they do not exist.
func (b *Backend) Migrate(ctx context.Context) error {
	if _, err := b.db.Exec(ctx, schemaSQL); err != nil {
		return errors.ErrDatabaseConnection.WithError(err)
	}
	b.logger.Info(ctx, "schema migrated")
	return nil
}

// SeedPrincipals upserts configured principals.
func (b *Backend) SeedPrincipals(ctx context.Context, principals []config.PrincipalConfig) error {
	for _, pc := range principals {
		id, err := uuid.Parse(pc.ID)
		if err != nil {
			return errors.ErrInvalidConfig.WithDetail("backend.principals.id", "must be a uuid").WithError(err)
		}
		if _, err := b.db.Exec(ctx, upsertPrincipal, id, pc.Username, pc.PasswordHash, pc.Roles, pc.Active); err != nil {
			return errors.ErrDatabaseConnection.WithError(err)
		}
	}
	if len(principals) > 0 {
		b.logger.Info(ctx, "principals seeded", logger.Int("count", len(principals)))
	}
	return nil
}

func (b *Backend) GetStatus(ctx context.Context, tokenID uuid.UUID) (models.BackendStatus, error) {
	var (
		blacklisted bool
		expiresAt   time.Time
		active      bool
	)
	err := b.db.QueryRow(ctx, selectSessionStatus, tokenID).Scan(&blacklisted, &expiresAt, &active)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.BackendStatusNotPresent, nil
	}
	if err != nil {
		return "", errors.ErrDatabaseConnection.WithError(err)
	}
	return models.SessionStatus(blacklisted, expiresAt, active, b.now()), nil
}

func (b *Backend) Login(ctx context.Context, req models.LoginRequest) (*models.PrincipalInfo, error) {
	var (
		info   models.PrincipalInfo
		hash   string
		active bool
	)
	err := b.db.QueryRow(ctx, selectPrincipalByUsername, strings.TrimSpace(req.Username)).
		Scan(&info.ID, &info.Username, &hash, &info.Roles, &active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.ErrBadCredentials
	}
	if err != nil {
		return nil, errors.ErrDatabaseConnection.WithError(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil || !active {
		return nil, errors.ErrBadCredentials
	}
	if !req.RequestTime.Before(req.Expiry) {
		return nil, errors.ErrInvalidRequest.WithDetail("expiry", "must be after the request time")
	}

	tag, err := b.db.Exec(ctx, insertSession, req.TokenID, info.ID, req.Origin, req.RequestTime, req.Expiry)
	if err != nil {
		return nil, errors.ErrDatabaseConnection.WithError(err)
	}
	if tag.RowsAffected() == 0 {
		return nil, errors.ErrInvalidRequest.WithDetail("token_id", "already in use")
	}

	b.logger.Info(ctx, "session opened",
		logger.String("principal_id", info.ID.String()),
		logger.String("token_id", req.TokenID.String()),
		logger.String("origin", req.Origin),
	)
	return &info, nil
}

func (b *Backend) Logout(ctx context.Context, principalID, tokenID uuid.UUID, origin string, requestTime time.Time) (bool, error) {
	tag, err := b.db.Exec(ctx, logoutSession, tokenID, principalID, requestTime, origin)
	if err != nil {
		return false, errors.ErrDatabaseConnection.WithError(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (b *Backend) InvalidateAllForPrincipal(ctx context.Context, principalID uuid.UUID, origin string, requestTime time.Time) (bool, error) {
	var exists bool
	if err := b.db.QueryRow(ctx, selectPrincipalExists, principalID).Scan(&exists); err != nil {
		return false, errors.ErrDatabaseConnection.WithError(err)
	}
	if !exists {
		return false, nil
	}
	tag, err := b.db.Exec(ctx, blacklistPrincipalSessions, principalID, requestTime)
	if err != nil {
		return false, errors.ErrDatabaseConnection.WithError(err)
	}
	b.logger.Info(ctx, "principal sessions invalidated",
		logger.String("principal_id", principalID.String()),
		logger.Int64("sessions", tag.RowsAffected()),
		logger.String("origin", origin),
	)
	return true, nil
}

func (b *Backend) ActiveSessionCount(ctx context.Context, principalID uuid.UUID) (int, error) {
	var count int
	if err := b.db.QueryRow(ctx, countActiveSessions, principalID, b.now()).Scan(&count); err != nil {
		return 0, errors.ErrDatabaseConnection.WithError(err)
	}
	return count, nil
}

func (b *Backend) Ping(ctx context.Context) error {
	return b.pinger.Ping(ctx)
}
