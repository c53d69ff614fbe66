// Package postgres mirrors the CSV checkpoint ledgers into PostgreSQL for
// ad-hoc querying. The CSV files remain the source of truth.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// The mirror is written to from a single batch process, so a handful of
// connections covers concurrent batches.
const (
	mirrorMaxConns    = 4
	mirrorConnMaxLife = 5 * time.Minute
)

// OpenPool opens a small connection pool for the ledger mirror and verifies
// connectivity with a ping. The caller is responsible for closing it.
func OpenPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	poolConfig.MaxConns = mirrorMaxConns
	poolConfig.MaxConnLifetime = mirrorConnMaxLife

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}
