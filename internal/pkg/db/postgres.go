// Package db provides PostgreSQL database connection management.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"telegram-coin-bot/internal/config"
)

// Pool wraps pgxpool.Pool with lifecycle logging and health checks.
type Pool struct {
	*pgxpool.Pool
}

// NewPool opens a connection pool against the configured database and
// verifies connectivity before returning.
func NewPool(ctx context.Context, cfg *config.DatabaseConfig) (*Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.PoolSize)
	if poolConfig.MinConns = poolConfig.MaxConns / 4; poolConfig.MinConns < 1 {
		poolConfig.MinConns = 1
	}
	poolConfig.ConnConfig.ConnectTimeout = durationOr(cfg.ConnectTimeout, 10*time.Second)
	poolConfig.MaxConnLifetime = durationOr(cfg.MaxConnLifetime, time.Hour)
	poolConfig.MaxConnIdleTime = durationOr(cfg.MaxConnIdleTime, 30*time.Minute)
	poolConfig.HealthCheckPeriod = 30 * time.Second

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Int32("max_conns", poolConfig.MaxConns).
		Msg("Opening PostgreSQL pool")

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("PostgreSQL pool ready")
	return &Pool{Pool: pool}, nil
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

// Close closes the connection pool.
func (p *Pool) Close() {
	if p.Pool != nil {
		p.Pool.Close()
		log.Info().Msg("PostgreSQL pool closed")
	}
}

// HealthCheck pings the database; the /healthz endpoint reports its result.
func (p *Pool) HealthCheck(ctx context.Context) error {
	return p.Pool.Ping(ctx)
}
