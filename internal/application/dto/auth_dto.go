package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/sessionguard/internal/domain/models"
)

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse describes the opened session. The token itself travels only
// in the cookie.
type LoginResponse struct {
	PrincipalID uuid.UUID `json:"principal_id"`
	Username    string    `json:"username"`
	Roles       []string  `json:"roles"`
	TokenID     uuid.UUID `json:"token_id"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	ExpiresIn   int       `json:"expires_in"`
}

// AuthStatusResponse summarises the request's authentication outcome.
type AuthStatusResponse struct {
	Status      models.AuthStatus `json:"status"`
	Valid       bool              `json:"valid"`
	PrincipalID *uuid.UUID        `json:"principal_id,omitempty"`
	TokenID     *uuid.UUID        `json:"token_id,omitempty"`
	Roles       []string          `json:"roles,omitempty"`
	IssuedAt    *time.Time        `json:"issued_at,omitempty"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
}

// NewAuthStatusResponse exposes token details only for a valid request.
func NewAuthStatusResponse(s models.RequestAuthStatus) AuthStatusResponse {
	resp := AuthStatusResponse{Status: s.Status, Valid: s.IsValid()}
	if s.IsValid() {
		principalID, tokenID := s.PrincipalID, s.TokenID
		issuedAt, expiresAt := s.IssuedAt, s.ExpiresAt
		resp.PrincipalID = &principalID
		resp.TokenID = &tokenID
		resp.Roles = models.SplitRoles(s.Roles)
		resp.IssuedAt = &issuedAt
		resp.ExpiresAt = &expiresAt
	}
	return resp
}

// LogoutResponse is the body of POST /auth/logout.
type LogoutResponse struct {
	LoggedOut bool `json:"logged_out"`
}

// InvalidateResponse is the body of POST /admin/principals/:id/invalidate.
type InvalidateResponse struct {
	PrincipalID uuid.UUID `json:"principal_id"`
	Invalidated bool      `json:"invalidated"`
}

// SessionCountResponse is the body of GET /admin/principals/:id/sessions.
type SessionCountResponse struct {
	PrincipalID    uuid.UUID `json:"principal_id"`
	ActiveSessions int       `json:"active_sessions"`
}
