package models

import (
	"time"

	"github.com/google/uuid"
)

// BackendStatus is the authority's answer for a token id.
type BackendStatus string

const (
	BackendStatusNotPresent      BackendStatus = "NOT_PRESENT"
	BackendStatusPresentBadState BackendStatus = "PRESENT_BAD_STATE"
	BackendStatusBlacklisted     BackendStatus = "BLACKLISTED"
	BackendStatusExpired         BackendStatus = "EXPIRED"
	BackendStatusBadPrincipal    BackendStatus = "BAD_PRINCIPAL"
	BackendStatusValid           BackendStatus = "VALID"
	BackendStatusError           BackendStatus = "ERROR"
)

// Cacheable reports whether the status may be kept in the status cache.
// Failures are never cached.
func (s BackendStatus) Cacheable() bool {
	switch s {
	case BackendStatusNotPresent, BackendStatusPresentBadState, BackendStatusBlacklisted,
		BackendStatusExpired, BackendStatusBadPrincipal, BackendStatusValid:
		return true
	default:
		return false
	}
}

// AuthStatus is the terminal outcome of resolving a request's token.
type AuthStatus string

const (
	AuthStatusNotPresentInRequest AuthStatus = "NOT_PRESENT_IN_REQUEST"
	AuthStatusBadToken            AuthStatus = "BAD_TOKEN"
	AuthStatusBadSignature        AuthStatus = "BAD_SIGNATURE"
	AuthStatusBadClaims           AuthStatus = "BAD_CLAIMS"
	AuthStatusExpired             AuthStatus = "EXPIRED"
	AuthStatusNotPresentBackend   AuthStatus = "NOT_PRESENT_BACKEND"
	AuthStatusBlocked             AuthStatus = "BLOCKED"
	AuthStatusError               AuthStatus = "ERROR"
	AuthStatusValid               AuthStatus = "VALID"
)

// AllAuthStatuses lists every terminal outcome.
var AllAuthStatuses = []AuthStatus{
	AuthStatusNotPresentInRequest,
	AuthStatusBadToken,
	AuthStatusBadSignature,
	AuthStatusBadClaims,
	AuthStatusExpired,
	AuthStatusNotPresentBackend,
	AuthStatusBlocked,
	AuthStatusError,
	AuthStatusValid,
}

// AuthStatusFromBackend maps the authority's answer onto a request outcome.
// Anything unrecognised is an error.
func AuthStatusFromBackend(s BackendStatus) AuthStatus {
	switch s {
	case BackendStatusNotPresent:
		return AuthStatusNotPresentBackend
	case BackendStatusBlacklisted, BackendStatusBadPrincipal:
		return AuthStatusBlocked
	case BackendStatusExpired:
		return AuthStatusExpired
	case BackendStatusValid:
		return AuthStatusValid
	default:
		return AuthStatusError
	}
}

// RequestAuthStatus is the per-request authentication decision. It is a value
// type; it is never shared between requests.
type RequestAuthStatus struct {
	Status      AuthStatus
	TokenID     uuid.UUID
	PrincipalID uuid.UUID
	Roles       string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// NewRequestAuthStatus returns an outcome that carries no token details.
func NewRequestAuthStatus(status AuthStatus) RequestAuthStatus {
	return RequestAuthStatus{Status: status}
}

// NewRequestAuthStatusFromClaims returns an outcome carrying the trusted claims.
func NewRequestAuthStatusFromClaims(status AuthStatus, c *Claims) RequestAuthStatus {
	return RequestAuthStatus{
		Status:      status,
		TokenID:     c.TokenID,
		PrincipalID: c.PrincipalID,
		Roles:       c.Roles,
		IssuedAt:    c.IssuedAt,
		ExpiresAt:   c.ExpiresAt,
	}
}

// IsValid reports whether the request is authenticated.
func (r RequestAuthStatus) IsValid() bool {
	return r.Status == AuthStatusValid
}

// HasRole reports whether a valid request carries role.
func (r RequestAuthStatus) HasRole(role string) bool {
	if !r.IsValid() {
		return false
	}
	for _, have := range SplitRoles(r.Roles) {
		if have == role {
			return true
		}
	}
	return false
}

// VerificationError is returned by token verification. Status is one of
// BAD_TOKEN, BAD_SIGNATURE or BAD_CLAIMS.
type VerificationError struct {
	Status AuthStatus
	Reason string
	Err    error
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return string(e.Status) + ": " + e.Reason + ": " + e.Err.Error()
	}
	return string(e.Status) + ": " + e.Reason
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// SessionStatus derives the backend status of a stored, open session.
// Blacklisting wins over expiry, and expiry over the principal's state.
func SessionStatus(blacklisted bool, expiresAt time.Time, principalActive bool, now time.Time) BackendStatus {
	switch {
	case blacklisted:
		return BackendStatusBlacklisted
	case !now.Before(expiresAt):
		return BackendStatusExpired
	case !principalActive:
		return BackendStatusBadPrincipal
	default:
		return BackendStatusValid
	}
}
