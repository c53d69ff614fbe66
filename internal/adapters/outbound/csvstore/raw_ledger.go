package csvstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/domain/entity"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/ports/outbound"
)

// timeLayout is the checkpoint timestamp format used across all ledgers.
const timeLayout = "2006-01-02 15:04:05"

// Compile-time check that RawLedger implements outbound.RawLedger.
var _ outbound.RawLedger = (*RawLedger)(nil)

// RawLedger is the append-only raw checkpoint CSV: no header, one row per
// processed chunk, sorted by block by construction.
type RawLedger struct {
	path string
}

// NewRawLedger creates a raw ledger bound to the given file path. The file
// need not exist yet.
func NewRawLedger(path string) (*RawLedger, error) {
	if path == "" {
		return nil, fmt.Errorf("path must not be empty")
	}
	return &RawLedger{path: path}, nil
}

// Load returns all checkpoint rows in file order. A missing file yields an
// empty slice.
func (l *RawLedger) Load(ctx context.Context) ([]*entity.RawCheckpoint, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening raw ledger: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 3

	var rows []*entity.RawCheckpoint
	line := 0
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &RowError{Path: l.path, Line: line + 1, Err: err}
		}
		line++

		cp, err := parseRawRecord(record)
		if err != nil {
			return nil, &RowError{Path: l.path, Line: line, Err: err}
		}
		rows = append(rows, cp)
	}
	return rows, nil
}

// Append durably adds one checkpoint row.
func (l *RawLedger) Append(ctx context.Context, cp *entity.RawCheckpoint) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating ledger directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening raw ledger for append: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	record := []string{
		strconv.FormatInt(cp.Block, 10),
		cp.Timestamp.UTC().Format(timeLayout),
		formatAmount(cp.CumulativeRaw),
	}
	if err := writer.Write(record); err != nil {
		return fmt.Errorf("writing raw ledger row: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flushing raw ledger row: %w", err)
	}

	// The checkpoint must hit disk before the accumulator advances past it.
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing raw ledger: %w", err)
	}
	return nil
}

func parseRawRecord(record []string) (*entity.RawCheckpoint, error) {
	block, err := strconv.ParseInt(record[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid block %q: %w", record[0], err)
	}
	ts, err := time.ParseInLocation(timeLayout, record[1], time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q: %w", record[1], err)
	}
	cumulative, err := strconv.ParseFloat(record[2], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid cumulative amount %q: %w", record[2], err)
	}
	return entity.NewRawCheckpoint(block, ts, cumulative)
}

// formatAmount renders amounts without exponent notation and without
// trailing-zero noise.
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
