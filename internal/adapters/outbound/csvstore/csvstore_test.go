package csvstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/domain/entity"
)

func mustRaw(t *testing.T, block int64, ts string, cumulative float64) *entity.RawCheckpoint {
	t.Helper()
	parsed, err := time.ParseInLocation(timeLayout, ts, time.UTC)
	if err != nil {
		t.Fatalf("parsing timestamp: %v", err)
	}
	cp, err := entity.NewRawCheckpoint(block, parsed, cumulative)
	if err != nil {
		t.Fatalf("building checkpoint: %v", err)
	}
	return cp
}

func TestRawLedgerLoadMissingFile(t *testing.T) {
	ledger, err := NewRawLedger(filepath.Join(t.TempDir(), "absent.csv"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows, err := ledger.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected empty ledger, got %d rows", len(rows))
	}
}

func TestRawLedgerAppendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telos_staking_fees_raw.csv")
	ledger, err := NewRawLedger(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	cps := []*entity.RawCheckpoint{
		mustRaw(t, 100, "2024-01-01 12:00:00", 10.5),
		mustRaw(t, 200, "2024-01-02 12:00:00", 25),
	}
	for _, cp := range cps {
		if err := ledger.Append(ctx, cp); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	rows, err := ledger.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	for i, cp := range cps {
		if rows[i].Block != cp.Block || rows[i].CumulativeRaw != cp.CumulativeRaw || !rows[i].Timestamp.Equal(cp.Timestamp) {
			t.Errorf("row %d = %+v, want %+v", i, rows[i], cp)
		}
	}

	// No header in the raw file.
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if !strings.HasPrefix(string(content), "100,2024-01-01 12:00:00,10.5\n") {
		t.Errorf("unexpected file content: %q", content)
	}
}

func TestRawLedgerRejectsMalformedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.csv")
	content := "100,2024-01-01 12:00:00,10.5\n200,2024-01-02 12:00:00,not-a-number\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	ledger, _ := NewRawLedger(path)
	_, err := ledger.Load(context.Background())

	var rowErr *RowError
	if !errors.As(err, &rowErr) {
		t.Fatalf("expected RowError, got %v", err)
	}
	if rowErr.Line != 2 {
		t.Errorf("line = %d, want 2", rowErr.Line)
	}
}

func TestUSDLedgerWriteLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telos_mint_incentives_with_usd.csv")
	ledger, err := NewUSDLedger(path, "lqty_amount", "usd_issued")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rows := []*entity.USDCheckpoint{
		{Block: 100, Timestamp: ts, AmountRaw: 10, CumulativeUSD: 20},
		{Block: 200, Timestamp: ts.AddDate(0, 0, 1), AmountRaw: 25, CumulativeUSD: 65},
	}
	if err := ledger.Write(ctx, rows); err != nil {
		t.Fatalf("write: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if !strings.HasPrefix(string(content), "block,date_time,lqty_amount,usd_issued\n") {
		t.Errorf("missing category header, got %q", content)
	}

	loaded, err := ledger.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(loaded))
	}
	if loaded[1].Block != 200 || loaded[1].CumulativeUSD != 65 {
		t.Errorf("row 1 = %+v", loaded[1])
	}
}

func TestUSDLedgerRejectsForeignHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usd.csv")
	content := "height,when,amount,usd\n100,2024-01-01 12:00:00,10,20\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	ledger, _ := NewUSDLedger(path, "lqty_amount", "usd_issued")
	_, err := ledger.Load(context.Background())

	var rowErr *RowError
	if !errors.As(err, &rowErr) {
		t.Fatalf("expected RowError, got %v", err)
	}
}

func TestPriceCacheRoundTripAndCaseInsensitiveHeader(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cache, err := NewPriceCache(filepath.Join(dir, "telos_historical_prices.csv"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	points := []*entity.PricePoint{
		{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Price: 0.1},
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Price: 0.12},
	}
	if err := cache.Write(ctx, points); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := cache.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 2 || loaded[1].Price != 0.12 {
		t.Fatalf("unexpected points: %+v", loaded)
	}

	// Legacy header casing from the first generation of cache files.
	legacy := filepath.Join(dir, "legacy.csv")
	if err := os.WriteFile(legacy, []byte("Date,Price\n2024-01-01,0.5\n"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	legacyCache, _ := NewPriceCache(legacy)
	loaded, err = legacyCache.Load(ctx)
	if err != nil {
		t.Fatalf("load legacy: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Price != 0.5 {
		t.Fatalf("unexpected legacy points: %+v", loaded)
	}
}

func TestFactoryPaths(t *testing.T) {
	base := t.TempDir()
	factory, err := NewFactory(base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cat, err := entity.NewCategory("staking_fees", "telos", "token_amount", "usd_rewards", entity.AccumulateSum, true)
	if err != nil {
		t.Fatalf("building category: %v", err)
	}

	raw, err := factory.Raw("telos", cat)
	if err != nil {
		t.Fatalf("raw: %v", err)
	}
	ctx := context.Background()
	if err := raw.Append(ctx, mustRaw(t, 1, "2024-01-01 00:00:00", 0)); err != nil {
		t.Fatalf("append: %v", err)
	}

	wantPath := filepath.Join(base, "staking_fees", "telos_staking_fees_raw.csv")
	if _, err := os.Stat(wantPath); err != nil {
		t.Errorf("expected ledger at %s: %v", wantPath, err)
	}
}
