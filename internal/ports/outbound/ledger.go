package outbound

import (
	"context"

	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/domain/entity"
)

// RawLedger is the append-only checkpoint ledger for one network/category:
// one row per processed chunk, cumulative raw units, sorted by block.
type RawLedger interface {
	// Load returns all rows in block order. A ledger that does not exist yet
	// yields an empty slice, not an error.
	Load(ctx context.Context) ([]*entity.RawCheckpoint, error)

	// Append durably adds one checkpoint row. Callers append in strictly
	// increasing block order.
	Append(ctx context.Context, cp *entity.RawCheckpoint) error
}

// USDLedger is the derived cumulative-USD ledger for one network/category.
// Unlike the raw ledger it carries a header row and is rewritten in full on
// each conversion pass; previously written rows are never recomputed.
type USDLedger interface {
	// Load returns all rows in block order, or an empty slice if the ledger
	// does not exist yet.
	Load(ctx context.Context) ([]*entity.USDCheckpoint, error)

	// Write replaces the ledger contents with rows, which must already be
	// sorted by block.
	Write(ctx context.Context, rows []*entity.USDCheckpoint) error
}

// PriceCache is the local daily price store for one coin identifier:
// deduplicated by date, sorted ascending.
type PriceCache interface {
	Load(ctx context.Context) ([]*entity.PricePoint, error)

	// Write replaces the cache with points, already deduplicated and sorted.
	Write(ctx context.Context, points []*entity.PricePoint) error
}

// LedgerFactory opens the ledgers belonging to one network/category pair.
// Each pair owns exactly one raw and one USD ledger.
type LedgerFactory interface {
	Raw(network string, category *entity.Category) (RawLedger, error)
	USD(network string, category *entity.Category) (USDLedger, error)
}

// PriceCacheFactory opens the daily price cache owned by one coin identifier.
// The cache is shared read-only by every converter pricing with that coin.
type PriceCacheFactory interface {
	Prices(coinID string) (PriceCache, error)
}

// LedgerMirror is an optional secondary sink for checkpoint rows, used to
// mirror the CSV ledgers into a queryable store. The CSV files remain the
// source of truth; mirror failures must not fail the pipeline.
type LedgerMirror interface {
	MirrorRaw(ctx context.Context, network, category string, rows []*entity.RawCheckpoint) error
	MirrorUSD(ctx context.Context, network, category string, rows []*entity.USDCheckpoint) error
}
