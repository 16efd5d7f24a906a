package config

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/turtacn/sessionguard/pkg/constants"
	"github.com/turtacn/sessionguard/pkg/errors"
	"github.com/turtacn/sessionguard/pkg/logger"
)

// LoadConfig loads the configuration from file and environment variables.
func LoadConfig(log logger.Logger) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/sessionguard/")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.New("failed to read config file").WithError(err)
		}
	}

	cfg, err := load(v)
	if err != nil {
		return nil, err
	}
	log.Info(context.Background(), "configuration loaded",
		logger.String("config_file", v.ConfigFileUsed()),
		logger.String("backend_driver", cfg.Backend.Driver),
		logger.Int("status_cache_max_size", cfg.StatusCache.MaxSize),
		logger.Bool("kafka_enabled", cfg.Kafka.Enabled()),
		logger.Bool("redis_enabled", cfg.Redis.Enabled),
	)
	return cfg, nil
}

// LoadConfigFromFile loads configuration from an explicit path, with env overrides.
func LoadConfigFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.New("failed to read config file").WithError(err)
	}
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("SESSIONGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config").WithError(err)
	}

	if cfg.Server.InstanceID == "" {
		cfg.Server.InstanceID = uuid.NewString()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "production")
	v.SetDefault("server.instance_id", "")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("jwt.ttl_seconds", int(constants.DefaultTokenTTL.Seconds()))
	v.SetDefault("jwt.shared_secret", "")
	v.SetDefault("jwt.issuer", "")

	v.SetDefault("status_cache.ttl_minutes", int(constants.DefaultStatusCacheTTL.Minutes()))
	v.SetDefault("status_cache.max_size", constants.DefaultStatusCacheMaxSize)
	v.SetDefault("status_cache.lookup_timeout", constants.DefaultLookupTimeout)

	v.SetDefault("csrf.token_name", constants.DefaultSyncTokenName)
	v.SetDefault("csrf.ttl_seconds", int(constants.DefaultCSRFTokenTTL.Seconds()))
	v.SetDefault("csrf.reset_ttl_seconds", int(constants.DefaultCSRFResetTTL.Seconds()))
	v.SetDefault("csrf.path_pattern", constants.DefaultCSRFPathRegexp)
	v.SetDefault("csrf.require_origin", true)

	v.SetDefault("cookie.secure", true)
	v.SetDefault("cookie.jwt_name", constants.DefaultJWTCookieName)
	v.SetDefault("cookie.same_site", "lax")

	v.SetDefault("backend.driver", constants.BackendDriverMemory)

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", 3600)
	v.SetDefault("database.max_conn_idle_time", 300)
	v.SetDefault("database.health_check_period", 60)
	v.SetDefault("database.conn_timeout", 5)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", "5s")

	v.SetDefault("rate_limit.login_attempts", 10)
	v.SetDefault("rate_limit.login_window", "1m")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.revocation_topic", constants.DefaultRevocationTopic)
	v.SetDefault("kafka.write_timeout", "5s")
	v.SetDefault("kafka.required_acks", 1)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("monitoring.pprof_enabled", false)
}
