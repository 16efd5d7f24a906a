// Package postgres implements the session authority on PostgreSQL using pgx.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/sessionguard/internal/config"
	"github.com/turtacn/sessionguard/pkg/errors"
	"github.com/turtacn/sessionguard/pkg/logger"
)

// slowPingThreshold is the ping latency above which a warning is logged.
const slowPingThreshold = 100 * time.Millisecond

// DBConnection manages the PostgreSQL connection pool lifecycle.
type DBConnection struct {
	pool   *pgxpool.Pool
	config *config.DatabaseConfig
	logger logger.Logger
}

// NewDBConnection builds the pool from cfg and performs an initial ping.
func NewDBConnection(ctx context.Context, cfg *config.DatabaseConfig, log logger.Logger) (*DBConnection, error) {
	if cfg == nil {
		return nil, errors.ErrInvalidConfig.WithDetail("database", "missing")
	}
	log = log.WithComponent("postgres")

	log.Info(ctx, "initializing postgres connection pool",
		logger.String("host", cfg.Host),
		logger.Int("port", cfg.Port),
		logger.String("database", cfg.Database),
		logger.Int("max_conns", cfg.MaxConns),
		logger.Int("min_conns", cfg.MinConns),
	)

	poolConfig, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		log.Error(ctx, "failed to parse database connection string", err)
		return nil, errors.ErrDatabaseConnection.WithError(err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = time.Duration(cfg.MaxConnLifetime) * time.Second
	poolConfig.MaxConnIdleTime = time.Duration(cfg.MaxConnIdleTime) * time.Second
	if cfg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = time.Duration(cfg.HealthCheckPeriod) * time.Second
	}

	connectCtx := ctx
	if cfg.ConnTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, time.Duration(cfg.ConnTimeout)*time.Second)
		defer cancel()
	}

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		log.Error(ctx, "failed to create database connection pool", err)
		return nil, errors.ErrDatabaseConnection.WithError(err)
	}

	db := &DBConnection{pool: pool, config: cfg, logger: log}
	if err := db.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, err
	}

	stats := pool.Stat()
	log.Info(ctx, "postgres connection pool initialized",
		logger.Int("total_conns", int(stats.TotalConns())),
		logger.Int("idle_conns", int(stats.IdleConns())),
	)
	return db, nil
}

// Pool returns the underlying pool.
func (db *DBConnection) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping verifies the database answers within five seconds.
func (db *DBConnection) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := db.pool.Ping(pingCtx); err != nil {
		db.logger.Error(ctx, "database ping failed", err)
		return errors.ErrDatabaseConnection.WithError(err)
	}

	latency := time.Since(start)
	if latency > slowPingThreshold {
		db.logger.Warn(ctx, "high database latency detected",
			logger.Int64("latency_ms", latency.Milliseconds()),
			logger.Int64("threshold_ms", slowPingThreshold.Milliseconds()),
		)
	}
	return nil
}

// HealthCheck pings and reports pool statistics.
func (db *DBConnection) HealthCheck(ctx context.Context) (map[string]interface{}, error) {
	if err := db.Ping(ctx); err != nil {
		return nil, err
	}

	stats := db.pool.Stat()
	info := map[string]interface{}{
		"status":               "healthy",
		"total_connections":    stats.TotalConns(),
		"idle_connections":     stats.IdleConns(),
		"acquired_connections": stats.AcquiredConns(),
		"max_connections":      stats.MaxConns(),
		"empty_acquire_count":  stats.EmptyAcquireCount(),
	}
	if stats.IdleConns() == 0 && stats.TotalConns() >= stats.MaxConns() {
		db.logger.Warn(ctx, "connection pool exhausted",
			logger.Int("total_conns", int(stats.TotalConns())),
			logger.Int("max_conns", int(stats.MaxConns())),
		)
		info["warning"] = "connection_pool_near_limit"
	}
	return info, nil
}

// Close shuts the pool down, waiting for acquired connections to be released.
func (db *DBConnection) Close() {
	db.logger.Info(context.Background(), "closing postgres connection pool",
		logger.Int("acquired_conns", int(db.pool.Stat().AcquiredConns())),
	)
	db.pool.Close()
}
