// Package memory provides in-memory ledger implementations.
// Useful for testing and development; data is lost on process restart.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/domain/entity"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/ports/outbound"
)

// Compile-time checks that the in-memory stores implement the outbound ports
var (
	_ outbound.RawLedger         = (*RawLedger)(nil)
	_ outbound.USDLedger         = (*USDLedger)(nil)
	_ outbound.PriceCache        = (*PriceCache)(nil)
	_ outbound.LedgerFactory     = (*Factory)(nil)
	_ outbound.PriceCacheFactory = (*Factory)(nil)
)

// RawLedger is an in-memory append-only checkpoint ledger.
type RawLedger struct {
	mu   sync.RWMutex
	rows []*entity.RawCheckpoint
}

// NewRawLedger creates an empty in-memory raw ledger.
func NewRawLedger() *RawLedger {
	return &RawLedger{}
}

// Seed replaces the ledger contents, bypassing the append-only discipline.
// Intended for arranging test fixtures.
func (l *RawLedger) Seed(rows []*entity.RawCheckpoint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = append([]*entity.RawCheckpoint(nil), rows...)
}

// Load returns a copy of all rows in append order.
func (l *RawLedger) Load(ctx context.Context) ([]*entity.RawCheckpoint, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*entity.RawCheckpoint, len(l.rows))
	copy(out, l.rows)
	return out, nil
}

// Append adds one checkpoint row. Rejects out-of-order blocks so tests catch
// ordering bugs that a file append would silently accept.
func (l *RawLedger) Append(ctx context.Context, cp *entity.RawCheckpoint) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := len(l.rows); n > 0 && cp.Block <= l.rows[n-1].Block {
		return fmt.Errorf("append out of order: block %d after block %d", cp.Block, l.rows[n-1].Block)
	}
	l.rows = append(l.rows, cp)
	return nil
}

// USDLedger is an in-memory rewrite-on-write USD ledger.
type USDLedger struct {
	mu   sync.RWMutex
	rows []*entity.USDCheckpoint

	// WriteCount counts Write calls, for asserting rewrite behavior in tests.
	WriteCount int
}

// NewUSDLedger creates an empty in-memory USD ledger.
func NewUSDLedger() *USDLedger {
	return &USDLedger{}
}

func (l *USDLedger) Load(ctx context.Context) ([]*entity.USDCheckpoint, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*entity.USDCheckpoint, len(l.rows))
	copy(out, l.rows)
	return out, nil
}

func (l *USDLedger) Write(ctx context.Context, rows []*entity.USDCheckpoint) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = append([]*entity.USDCheckpoint(nil), rows...)
	l.WriteCount++
	return nil
}

// PriceCache is an in-memory daily price store.
type PriceCache struct {
	mu     sync.RWMutex
	points []*entity.PricePoint
}

// NewPriceCache creates an empty in-memory price cache.
func NewPriceCache() *PriceCache {
	return &PriceCache{}
}

// Seed replaces the cache contents for test fixtures.
func (c *PriceCache) Seed(points []*entity.PricePoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.points = append([]*entity.PricePoint(nil), points...)
}

func (c *PriceCache) Load(ctx context.Context) ([]*entity.PricePoint, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*entity.PricePoint, len(c.points))
	copy(out, c.points)
	return out, nil
}

func (c *PriceCache) Write(ctx context.Context, points []*entity.PricePoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.points = append([]*entity.PricePoint(nil), points...)
	return nil
}

// Factory hands out in-memory ledgers keyed the same way the file-backed
// factory keys its paths, so repeated opens observe the same data.
type Factory struct {
	mu     sync.Mutex
	raw    map[string]*RawLedger
	usd    map[string]*USDLedger
	prices map[string]*PriceCache
}

// NewFactory creates an empty in-memory ledger factory.
func NewFactory() *Factory {
	return &Factory{
		raw:    make(map[string]*RawLedger),
		usd:    make(map[string]*USDLedger),
		prices: make(map[string]*PriceCache),
	}
}

func (f *Factory) Raw(network string, category *entity.Category) (outbound.RawLedger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := network + "/" + category.Name
	if _, ok := f.raw[key]; !ok {
		f.raw[key] = NewRawLedger()
	}
	return f.raw[key], nil
}

func (f *Factory) USD(network string, category *entity.Category) (outbound.USDLedger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := network + "/" + category.Name
	if _, ok := f.usd[key]; !ok {
		f.usd[key] = NewUSDLedger()
	}
	return f.usd[key], nil
}

func (f *Factory) Prices(coinID string) (outbound.PriceCache, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.prices[coinID]; !ok {
		f.prices[coinID] = NewPriceCache()
	}
	return f.prices[coinID], nil
}
