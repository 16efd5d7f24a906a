package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Claims is the content of a session token after decryption and signature
// verification. Only the token codec constructs Claims from wire input.
type Claims struct {
	TokenID     uuid.UUID
	PrincipalID uuid.UUID
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Issuer      string
	// Audience is the client origin fingerprint bound at issuance.
	Audience string
	// Roles is comma-joined and may be empty.
	Roles string
}

// IsExpiredAt reports whether the token is expired at now. A token whose
// expiry equals now is expired.
func (c *Claims) IsExpiredAt(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// TokenRequest carries the inputs to token generation.
type TokenRequest struct {
	TokenID     uuid.UUID
	PrincipalID uuid.UUID
	Roles       string
	IssuedAt    time.Time
	Audience    string
	Issuer      string
	TTL         time.Duration
}

// SplitRoles splits a comma-joined role string, dropping blanks.
func SplitRoles(roles string) []string {
	if roles == "" {
		return nil
	}
	parts := strings.Split(roles, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinRoles is the inverse of SplitRoles.
func JoinRoles(roles []string) string {
	return strings.Join(roles, ",")
}
