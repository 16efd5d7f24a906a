package service

import (
	"time"

	"github.com/turtacn/sessionguard/internal/domain/models"
)

// ClaimsValidator checks decoded claims against this server's issuer, the
// request's client origin and the clock.
type ClaimsValidator struct {
	issuer string
	now    func() time.Time
}

// NewClaimsValidator creates a validator for issuer. A nil clock uses time.Now.
func NewClaimsValidator(issuer string, now func() time.Time) *ClaimsValidator {
	if now == nil {
		now = time.Now
	}
	return &ClaimsValidator{issuer: issuer, now: now}
}

// Validate returns ok=true when the claims may be checked against the backend.
// Otherwise status is BAD_CLAIMS or EXPIRED. Issuer and audience mismatches
// share BAD_CLAIMS so callers cannot tell which check failed.
func (v *ClaimsValidator) Validate(c *models.Claims, origin OriginVerifier) (status models.AuthStatus, ok bool) {
	if c == nil || c.Issuer != v.issuer {
		return models.AuthStatusBadClaims, false
	}
	if origin == nil || !origin.Verify(c.Audience) {
		return models.AuthStatusBadClaims, false
	}
	if c.IsExpiredAt(v.now()) {
		return models.AuthStatusExpired, false
	}
	return "", true
}
