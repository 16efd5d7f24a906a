package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	appservice "github.com/turtacn/sessionguard/internal/application/service"
	"github.com/turtacn/sessionguard/internal/config"
	domainservice "github.com/turtacn/sessionguard/internal/domain/service"
	"github.com/turtacn/sessionguard/internal/infrastructure/consumers"
	"github.com/turtacn/sessionguard/internal/infrastructure/crypto"
	"github.com/turtacn/sessionguard/internal/infrastructure/events"
	"github.com/turtacn/sessionguard/internal/infrastructure/monitoring"
	"github.com/turtacn/sessionguard/internal/infrastructure/oracle"
	"github.com/turtacn/sessionguard/internal/infrastructure/persistence/memory"
	"github.com/turtacn/sessionguard/internal/infrastructure/persistence/postgres"
	"github.com/turtacn/sessionguard/internal/infrastructure/persistence/redis"
	"github.com/turtacn/sessionguard/internal/infrastructure/ratelimit"
	"github.com/turtacn/sessionguard/internal/interfaces/http/handlers"
	"github.com/turtacn/sessionguard/internal/interfaces/http/router"
	"github.com/turtacn/sessionguard/pkg/constants"
	"github.com/turtacn/sessionguard/pkg/logger"
)

func main() {
	// Logger for startup
	startupLogger, err := monitoring.NewZapLogger(&config.LogConfig{Level: "info"})
	if err != nil {
		log.Fatalf("Failed to create startup logger: %v", err)
	}

	// Load config
	cfg, err := config.LoadConfig(startupLogger)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	appLogger = appLogger.WithFields(logger.String("instance_id", cfg.Server.InstanceID))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.Fatal(context.Background(), "Server terminated", err)
	}
}

func run(ctx context.Context, cfg *config.Config, appLogger logger.Logger) error {
	metrics := monitoring.NewMetrics(nil)
	healthChecks := map[string]handlers.Pinger{}

	// Initialize session backend
	backend, closeBackend, err := newBackend(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer closeBackend()
	healthChecks["backend"] = backend

	secret, err := cfg.JWT.SecretBytes()
	if err != nil {
		return err
	}
	codec, err := crypto.NewJWETokenCodec(secret)
	if err != nil {
		return err
	}

	statusOracle, err := oracle.NewStatusOracle(backend, cfg.StatusCache, metrics, appLogger)
	if err != nil {
		return err
	}
	resolver, err := domainservice.NewAuthResolver(codec, domainservice.NewClaimsValidator(cfg.JWT.Issuer, nil), statusOracle, metrics, appLogger)
	if err != nil {
		return err
	}

	// Initialize login throttling
	var limiter domainservice.LoginLimiter
	if cfg.RateLimit.LoginAttempts > 0 {
		local := ratelimit.NewLocalLoginLimiter(cfg.RateLimit.LoginAttempts, cfg.RateLimit.LoginWindow)
		limiter = local
		if cfg.Redis.Enabled {
			redisConn, err := redis.NewRedisConnection(ctx, &cfg.Redis, appLogger)
			if err != nil {
				return err
			}
			defer redisConn.Close()
			healthChecks["redis"] = redisConn

			redisLimiter, err := ratelimit.NewRedisLoginLimiter(redisConn.GetClient(), cfg.RateLimit, local, appLogger)
			if err != nil {
				return err
			}
			limiter = redisLimiter
		}
	} else {
		appLogger.Info(ctx, "login throttling disabled")
	}

	// Initialize cross-instance revocation
	publisher := events.NewNoopPublisher()
	if cfg.Kafka.Enabled() {
		kafkaPublisher, err := events.NewKafkaPublisher(cfg.Kafka, cfg.Server.InstanceID, appLogger)
		if err != nil {
			return err
		}
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher

		consumer := consumers.NewRevocationConsumer(cfg.Kafka, cfg.Server.InstanceID, statusOracle, appLogger)
		defer consumer.Close()
		go consumer.Start(ctx)
	}

	sessions := appservice.NewSessionAppService(backend, codec, statusOracle, publisher, limiter, metrics, cfg.JWT, appLogger)

	r, err := router.NewRouter(cfg, router.Dependencies{
		Resolver: resolver,
		Sessions: sessions,
		Health:   handlers.NewHealthHandler(healthChecks, appLogger),
		Metrics:  metrics,
		Tracer:   monitoring.NewTracer(),
	}, appLogger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := r.Stop(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "Server forced to shutdown", err)
		return err
	}
	appLogger.Info(shutdownCtx, "HTTP server stopped")
	return nil
}

// newBackend builds the session authority selected by backend.driver.
func newBackend(ctx context.Context, cfg *config.Config, appLogger logger.Logger) (domainservice.Backend, func(), error) {
	switch cfg.Backend.Driver {
	case constants.BackendDriverPostgres:
		db, err := postgres.NewDBConnection(ctx, &cfg.Database, appLogger)
		if err != nil {
			return nil, nil, err
		}
		backend := postgres.NewBackend(db, appLogger)
		if cfg.Database.AutoMigrate {
			if err := backend.Migrate(ctx); err != nil {
				db.Close()
				return nil, nil, err
			}
		}
		if len(cfg.Backend.Principals) > 0 {
			if err := backend.SeedPrincipals(ctx, cfg.Backend.Principals); err != nil {
				db.Close()
				return nil, nil, err
			}
		}
		return backend, db.Close, nil
	default:
		backend, err := memory.NewBackend(cfg.Backend.Principals, appLogger)
		if err != nil {
			return nil, nil, err
		}
		return backend, func() {}, nil
	}
}
