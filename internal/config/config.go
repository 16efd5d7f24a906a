package config

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"time"

	"github.com/turtacn/sessionguard/pkg/constants"
	"github.com/turtacn/sessionguard/pkg/errors"
)

// Config holds the application's configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	StatusCache StatusCacheConfig `mapstructure:"status_cache"`
	CSRF        CSRFConfig        `mapstructure:"csrf"`
	Cookie      CookieConfig      `mapstructure:"cookie"`
	Backend     BackendConfig     `mapstructure:"backend"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Log         LogConfig         `mapstructure:"log"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	InstanceID      string        `mapstructure:"instance_id"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// JWTConfig configures the token codec.
type JWTConfig struct {
	TTLSeconds   int    `mapstructure:"ttl_seconds"`
	SharedSecret string `mapstructure:"shared_secret"` // hex encoded
	Issuer       string `mapstructure:"issuer"`
}

// TTL returns the token lifetime.
func (c *JWTConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// SecretBytes decodes the hex shared secret.
func (c *JWTConfig) SecretBytes() ([]byte, error) {
	return hex.DecodeString(c.SharedSecret)
}

// StatusCacheConfig bounds the backend status cache. MaxSize <= 0 disables it.
type StatusCacheConfig struct {
	TTLMinutes    int           `mapstructure:"ttl_minutes"`
	MaxSize       int           `mapstructure:"max_size"`
	LookupTimeout time.Duration `mapstructure:"lookup_timeout"`
}

func (c *StatusCacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

type CSRFConfig struct {
	TokenName       string `mapstructure:"token_name"`
	TTLSeconds      int    `mapstructure:"ttl_seconds"`
	ResetTTLSeconds int    `mapstructure:"reset_ttl_seconds"`
	PathPattern     string `mapstructure:"path_pattern"`
	RequireOrigin   bool   `mapstructure:"require_origin"`
}

type CookieConfig struct {
	Secure   bool   `mapstructure:"secure"`
	JWTName  string `mapstructure:"jwt_name"`
	SameSite string `mapstructure:"same_site"`
}

// BackendConfig selects the session authority driver.
type BackendConfig struct {
	Driver     string            `mapstructure:"driver"`
	Principals []PrincipalConfig `mapstructure:"principals"`
}

// PrincipalConfig seeds a principal into the memory driver.
type PrincipalConfig struct {
	ID           string `mapstructure:"id"`
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"` // bcrypt
	Roles        string `mapstructure:"roles"`
	Active       bool   `mapstructure:"active"`
}

type DatabaseConfig struct {
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	Database          string `mapstructure:"database"`
	SSLMode           string `mapstructure:"ssl_mode"`
	MaxConns          int    `mapstructure:"max_conns"`
	MinConns          int    `mapstructure:"min_conns"`
	MaxConnLifetime   int    `mapstructure:"max_conn_lifetime"`   // in seconds
	MaxConnIdleTime   int    `mapstructure:"max_conn_idle_time"`  // in seconds
	HealthCheckPeriod int    `mapstructure:"health_check_period"` // in seconds
	ConnTimeout       int    `mapstructure:"conn_timeout"`        // in seconds
	AutoMigrate       bool   `mapstructure:"auto_migrate"`
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
}

// RateLimitConfig configures login throttling per client origin.
type RateLimitConfig struct {
	LoginAttempts int           `mapstructure:"login_attempts"`
	LoginWindow   time.Duration `mapstructure:"login_window"`
}

type KafkaConfig struct {
	Brokers         []string      `mapstructure:"brokers"`
	RevocationTopic string        `mapstructure:"revocation_topic"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequiredAcks    int           `mapstructure:"required_acks"`
}

// Enabled reports whether cross-instance revocation is configured.
func (c *KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MonitoringConfig struct {
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}

// Validate checks for essential configuration values.
func (c *Config) Validate() error {
	secret, err := c.JWT.SecretBytes()
	if err != nil {
		return errors.ErrInvalidConfig.WithDetail("jwt.shared_secret", "must be hex encoded").WithError(err)
	}
	if len(secret) != constants.SharedSecretSize {
		return errors.ErrInvalidConfig.WithDetail("jwt.shared_secret",
			fmt.Sprintf("must decode to %d bytes, got %d", constants.SharedSecretSize, len(secret)))
	}
	if c.JWT.Issuer == "" {
		return errors.ErrInvalidConfig.WithDetail("jwt.issuer", "must not be empty")
	}
	if c.JWT.TTLSeconds <= 0 {
		return errors.ErrInvalidConfig.WithDetail("jwt.ttl_seconds", "must be positive")
	}
	switch c.Backend.Driver {
	case constants.BackendDriverMemory, constants.BackendDriverPostgres:
	default:
		return errors.ErrInvalidConfig.WithDetail("backend.driver",
			fmt.Sprintf("unknown driver %q", c.Backend.Driver))
	}
	if c.StatusCache.MaxSize > 0 && c.StatusCache.TTLMinutes <= 0 {
		return errors.ErrInvalidConfig.WithDetail("status_cache.ttl_minutes", "must be positive when caching is enabled")
	}
	if c.StatusCache.LookupTimeout <= 0 {
		return errors.ErrInvalidConfig.WithDetail("status_cache.lookup_timeout", "must be positive")
	}
	if c.CSRF.TokenName == "" {
		return errors.ErrInvalidConfig.WithDetail("csrf.token_name", "must not be empty")
	}
	if _, err := regexp.Compile(c.CSRF.PathPattern); err != nil {
		return errors.ErrInvalidConfig.WithDetail("csrf.path_pattern", "must be a valid regular expression").WithError(err)
	}
	return nil
}
