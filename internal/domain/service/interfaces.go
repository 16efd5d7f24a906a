// Package service holds the domain contracts and the authentication state machine.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/turtacn/sessionguard/internal/domain/models"
)

//go:generate mockery --name TokenCodec --output mocks --outpkg mocks
// TokenCodec turns claims into a signed-and-encrypted token string and back.
// Implementations are pure and perform no I/O.
type TokenCodec interface {
	// Generate signs and encrypts the request. Errors are *errors.CodecError.
	Generate(req models.TokenRequest) (string, error)

	// Verify decrypts and checks the signature of token. Errors are
	// *models.VerificationError tagged BAD_TOKEN, BAD_SIGNATURE or BAD_CLAIMS.
	Verify(token string) (*models.Claims, error)
}

//go:generate mockery --name Backend --output mocks --outpkg mocks
// Backend is the authority of record for principals and their sessions.
type Backend interface {
	// GetStatus answers whether the token id is still good.
	GetStatus(ctx context.Context, tokenID uuid.UUID) (models.BackendStatus, error)

	// Login checks credentials and records a session under req.TokenID.
	// Rejected credentials return errors.ErrBadCredentials.
	Login(ctx context.Context, req models.LoginRequest) (*models.PrincipalInfo, error)

	// Logout ends the session. It returns false when no such session was open.
	Logout(ctx context.Context, principalID, tokenID uuid.UUID, origin string, requestTime time.Time) (bool, error)

	// InvalidateAllForPrincipal blacklists every open session of the principal.
	InvalidateAllForPrincipal(ctx context.Context, principalID uuid.UUID, origin string, requestTime time.Time) (bool, error)

	// ActiveSessionCount counts unexpired, non-blacklisted sessions.
	ActiveSessionCount(ctx context.Context, principalID uuid.UUID) (int, error)

	// Ping reports backend reachability.
	Ping(ctx context.Context) error
}

//go:generate mockery --name StatusOracle --output mocks --outpkg mocks
// StatusOracle answers for a (token id, principal id) pair on behalf of the Backend.
type StatusOracle interface {
	// Status returns the backend status. A non-nil error always means the
	// answer is unknown and must be treated as a failure.
	Status(ctx context.Context, tokenID, principalID uuid.UUID) (models.BackendStatus, error)

	// Invalidate drops any remembered answer for the pair.
	Invalidate(tokenID, principalID uuid.UUID)

	// InvalidateAllForPrincipal drops every remembered answer for the principal.
	InvalidateAllForPrincipal(principalID uuid.UUID)
}

// OriginVerifier decides whether a token audience matches the current request's client origin.
type OriginVerifier interface {
	Verify(candidateAudience string) bool
}

// OriginVerifierFunc adapts a function to OriginVerifier.
type OriginVerifierFunc func(candidateAudience string) bool

func (f OriginVerifierFunc) Verify(candidateAudience string) bool {
	return f(candidateAudience)
}

// ExactOrigin verifies that the audience equals origin.
func ExactOrigin(origin string) OriginVerifier {
	return OriginVerifierFunc(func(candidate string) bool {
		return origin != "" && candidate == origin
	})
}

//go:generate mockery --name RevocationPublisher --output mocks --outpkg mocks
// RevocationPublisher fans revocations out to other instances.
type RevocationPublisher interface {
	Publish(ctx context.Context, event models.RevocationEvent) error
}

// LoginLimiter throttles login attempts per client origin.
type LoginLimiter interface {
	// Allow records an attempt. When denied, retryAfter is the remaining window.
	Allow(ctx context.Context, origin string) (allowed bool, retryAfter time.Duration, err error)
}
