// Package constants defines system-wide constants for the sessionguard service.
package constants

import "time"

// ================================================================================
// Log Level Constants
// ================================================================================

// LogLevel represents the severity of a log entry
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelFatal
)

// ParseLogLevel maps a config string to a LogLevel, defaulting to info.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	case "fatal":
		return LogLevelFatal
	default:
		return LogLevelInfo
	}
}

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey is used for values stored in request contexts
type ContextKey string

const (
	// ContextKeyRequestID carries the per-request correlation id
	ContextKeyRequestID ContextKey = "request_id"

	// ContextKeyClientOrigin carries the resolved client origin fingerprint
	ContextKeyClientOrigin ContextKey = "client_origin"
)

// Gin context keys. gin stores values by string key.
const (
	GinKeyAuthStatus    = "sessionguard.auth_status"
	GinKeyClientOrigin  = "sessionguard.client_origin"
	GinKeyNextSyncToken = "sessionguard.next_sync_token"
	GinKeyRequestID     = "sessionguard.request_id"
)

// ================================================================================
// Token Defaults
// ================================================================================

const (
	// DefaultTokenTTL is the lifetime of an issued session token (48 hours)
	DefaultTokenTTL = 172800 * time.Second

	// SharedSecretSize is the key length required by dir + A256GCM
	SharedSecretSize = 32

	// InnerSigningAlgorithm is the MAC algorithm of the nested JWS
	InnerSigningAlgorithm = "HS256"

	// NestedContentType marks the JWE payload as a signed JWT
	NestedContentType = "JWT"

	// ClaimRoles is the private claim carrying comma-joined roles
	ClaimRoles = "roles"

	// RoleAdmin grants access to administrative endpoints
	RoleAdmin = "admin"
)

// ================================================================================
// Status Cache Defaults
// ================================================================================

const (
	DefaultStatusCacheTTL     = 10 * time.Minute
	DefaultStatusCacheMaxSize = 50
	DefaultLookupTimeout      = 2 * time.Second
)

// ================================================================================
// HTTP Cookies and Headers
// ================================================================================

const (
	DefaultJWTCookieName  = "jwt"
	DefaultSyncTokenName  = "rst"
	DefaultCSRFTokenTTL   = 172800 * time.Second
	DefaultCSRFResetTTL   = 120 * time.Second
	DefaultCSRFPathRegexp = `^/(auth|admin|api)(/.*)?$`

	HeaderOrigin        = "Origin"
	HeaderReferer       = "Referer"
	HeaderForwardedFor  = "X-Forwarded-For"
	HeaderRequestID     = "X-Request-ID"
	HeaderRetryAfter    = "Retry-After"
	HeaderAuthorization = "Authorization"
)

// ================================================================================
// Redis / Kafka
// ================================================================================

const (
	// LoginLimitKeyPrefix prefixes the per-origin login attempt counters
	LoginLimitKeyPrefix = "sessionguard:login:"

	// DefaultRevocationTopic carries cross-instance cache invalidation events
	DefaultRevocationTopic = "sessionguard.revocations"

	// RevocationConsumerGroupPrefix is combined with the instance id so every
	// instance receives every event
	RevocationConsumerGroupPrefix = "sessionguard-revocations-"
)

// RevocationType distinguishes single-token and principal-wide revocations
type RevocationType string

const (
	RevocationTypeToken     RevocationType = "token"
	RevocationTypePrincipal RevocationType = "principal"
)

// ================================================================================
// Backend drivers
// ================================================================================

const (
	BackendDriverMemory   = "memory"
	BackendDriverPostgres = "postgres"
)
