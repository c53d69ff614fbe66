package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/domain/entity"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/ports/outbound"
)

// Compile-time check that LedgerMirror implements outbound.LedgerMirror.
var _ outbound.LedgerMirror = (*LedgerMirror)(nil)

// LedgerMirror copies checkpoint rows into PostgreSQL tables keyed by
// (network, category, block). Rows are upserted so a full-ledger mirror
// after each run is idempotent.
type LedgerMirror struct {
	pool      *pgxpool.Pool
	logger    *slog.Logger
	batchSize int
}

// NewLedgerMirror creates a PostgreSQL ledger mirror.
// If batchSize is <= 0, a default batch size of 1000 is used.
func NewLedgerMirror(pool *pgxpool.Pool, logger *slog.Logger, batchSize int) (*LedgerMirror, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &LedgerMirror{
		pool:      pool,
		logger:    logger.With("component", "ledger_mirror"),
		batchSize: batchSize,
	}, nil
}

// EnsureSchema creates the mirror tables if they do not exist.
func (m *LedgerMirror) EnsureSchema(ctx context.Context) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS raw_checkpoint (
		network        TEXT             NOT NULL,
		category       TEXT             NOT NULL,
		block          BIGINT           NOT NULL,
		block_time     TIMESTAMPTZ      NOT NULL,
		cumulative_raw DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (network, category, block)
	);
	CREATE TABLE IF NOT EXISTS usd_checkpoint (
		network        TEXT             NOT NULL,
		category       TEXT             NOT NULL,
		block          BIGINT           NOT NULL,
		block_time     TIMESTAMPTZ      NOT NULL,
		amount_raw     DOUBLE PRECISION NOT NULL,
		cumulative_usd DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (network, category, block)
	);`
	if _, err := m.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("creating mirror schema: %w", err)
	}
	return nil
}

// MirrorRaw upserts raw checkpoint rows for one network/category.
func (m *LedgerMirror) MirrorRaw(ctx context.Context, network, category string, rows []*entity.RawCheckpoint) error {
	for start := 0; start < len(rows); start += m.batchSize {
		end := min(start+m.batchSize, len(rows))

		batch := &pgx.Batch{}
		for _, cp := range rows[start:end] {
			batch.Queue(`
				INSERT INTO raw_checkpoint (network, category, block, block_time, cumulative_raw)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (network, category, block)
				DO UPDATE SET block_time = EXCLUDED.block_time, cumulative_raw = EXCLUDED.cumulative_raw
			`, network, category, cp.Block, cp.Timestamp, cp.CumulativeRaw)
		}
		if err := m.sendBatch(ctx, batch); err != nil {
			return fmt.Errorf("mirroring raw rows %d..%d for %s/%s: %w", start, end-1, network, category, err)
		}
	}
	m.logger.Debug("mirrored raw ledger", "network", network, "category", category, "rows", len(rows))
	return nil
}

// MirrorUSD upserts USD checkpoint rows for one network/category.
func (m *LedgerMirror) MirrorUSD(ctx context.Context, network, category string, rows []*entity.USDCheckpoint) error {
	for start := 0; start < len(rows); start += m.batchSize {
		end := min(start+m.batchSize, len(rows))

		batch := &pgx.Batch{}
		for _, cp := range rows[start:end] {
			batch.Queue(`
				INSERT INTO usd_checkpoint (network, category, block, block_time, amount_raw, cumulative_usd)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (network, category, block)
				DO UPDATE SET block_time = EXCLUDED.block_time,
				              amount_raw = EXCLUDED.amount_raw,
				              cumulative_usd = EXCLUDED.cumulative_usd
			`, network, category, cp.Block, cp.Timestamp, cp.AmountRaw, cp.CumulativeUSD)
		}
		if err := m.sendBatch(ctx, batch); err != nil {
			return fmt.Errorf("mirroring usd rows %d..%d for %s/%s: %w", start, end-1, network, category, err)
		}
	}
	m.logger.Debug("mirrored usd ledger", "network", network, "category", category, "rows", len(rows))
	return nil
}

func (m *LedgerMirror) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	results := m.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	return nil
}
