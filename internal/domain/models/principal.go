package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/turtacn/sessionguard/pkg/constants"
)

// PrincipalInfo describes the authenticated entity returned by a login.
type PrincipalInfo struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Roles    string    `json:"roles,omitempty"`
}

// LoginRequest carries a login attempt to the backend authority.
type LoginRequest struct {
	Username    string
	Password    string
	TokenID     uuid.UUID
	Origin      string
	RequestTime time.Time
	Expiry      time.Time
}

// RevocationEvent announces a revocation so other instances can drop cached
// status entries.
type RevocationEvent struct {
	Type           constants.RevocationType `json:"type"`
	TokenID        string                   `json:"token_id,omitempty"`
	PrincipalID    string                   `json:"principal_id"`
	OccurredAt     time.Time                `json:"occurred_at"`
	OriginInstance string                   `json:"origin_instance"`
}
