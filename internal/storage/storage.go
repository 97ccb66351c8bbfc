package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolSettings carries the operator-tunable pool knobs. Zero values keep the
// pgxpool defaults.
type PoolSettings struct {
	MaxConns int32
	MinConns int32
	// Schema, when set, becomes the search_path of every pooled connection,
	// so all tables can live under a dedicated schema without qualifying
	// each statement.
	Schema string
}

// NewPostgres creates a new connection pool to PostgreSQL and verifies it
// with a ping. Connections are recycled after five minutes and health
// checked once a minute, so stale connections are replaced before a request
// trips over them.
func NewPostgres(ctx context.Context, dsn string, settings PoolSettings) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if settings.MaxConns > 0 {
		config.MaxConns = settings.MaxConns
	}
	if settings.MinConns > 0 {
		config.MinConns = settings.MinConns
	}
	config.MaxConnLifetime = 5 * time.Minute
	config.HealthCheckPeriod = time.Minute
	config.ConnConfig.ConnectTimeout = 30 * time.Second
	if config.ConnConfig.RuntimeParams == nil {
		config.ConnConfig.RuntimeParams = map[string]string{}
	}
	config.ConnConfig.RuntimeParams["application_name"] = "auth_server"

	if settings.Schema != "" {
		schema := pgx.Identifier{settings.Schema}.Sanitize()
		config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+schema)
			return err
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return pool, nil
}
