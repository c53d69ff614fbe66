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

// Compile-time check that USDLedger implements outbound.USDLedger.
var _ outbound.USDLedger = (*USDLedger)(nil)

// USDLedger is the derived cumulative-USD CSV. It carries a header row whose
// amount column names vary per category ("lqty_amount,usd_issued",
// "eth_amount,usd_redemptions", ...) and is rewritten in full on each pass.
type USDLedger struct {
	path      string
	rawColumn string
	usdColumn string
}

// NewUSDLedger creates a USD ledger bound to the given file path with the
// category's column names.
func NewUSDLedger(path, rawColumn, usdColumn string) (*USDLedger, error) {
	if path == "" {
		return nil, fmt.Errorf("path must not be empty")
	}
	if rawColumn == "" || usdColumn == "" {
		return nil, fmt.Errorf("column names must not be empty")
	}
	return &USDLedger{path: path, rawColumn: rawColumn, usdColumn: usdColumn}, nil
}

// Load returns all rows in file order. A missing file yields an empty slice.
func (l *USDLedger) Load(ctx context.Context) ([]*entity.USDCheckpoint, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening USD ledger: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 4

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, &RowError{Path: l.path, Line: 1, Err: err}
	}
	if header[0] != "block" || header[1] != "date_time" {
		return nil, &RowError{Path: l.path, Line: 1, Err: fmt.Errorf("unexpected header %v", header)}
	}

	var rows []*entity.USDCheckpoint
	line := 1
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &RowError{Path: l.path, Line: line + 1, Err: err}
		}
		line++

		cp, err := parseUSDRecord(record)
		if err != nil {
			return nil, &RowError{Path: l.path, Line: line, Err: err}
		}
		rows = append(rows, cp)
	}
	return rows, nil
}

// Write replaces the ledger contents with rows. The write goes through a
// temporary file and rename so an interrupted pass leaves the previous ledger
// intact.
func (l *USDLedger) Write(ctx context.Context, rows []*entity.USDCheckpoint) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), filepath.Base(l.path)+".tmp")
	if err != nil {
		return fmt.Errorf("creating temp ledger: %w", err)
	}
	defer os.Remove(tmp.Name())

	writer := csv.NewWriter(tmp)
	if err := writer.Write([]string{"block", "date_time", l.rawColumn, l.usdColumn}); err != nil {
		tmp.Close()
		return fmt.Errorf("writing USD ledger header: %w", err)
	}
	for _, cp := range rows {
		record := []string{
			strconv.FormatInt(cp.Block, 10),
			cp.Timestamp.UTC().Format(timeLayout),
			formatAmount(cp.AmountRaw),
			formatAmount(cp.CumulativeUSD),
		}
		if err := writer.Write(record); err != nil {
			tmp.Close()
			return fmt.Errorf("writing USD ledger row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing USD ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing USD ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp ledger: %w", err)
	}

	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return fmt.Errorf("replacing USD ledger: %w", err)
	}
	return nil
}

func parseUSDRecord(record []string) (*entity.USDCheckpoint, error) {
	block, err := strconv.ParseInt(record[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid block %q: %w", record[0], err)
	}
	ts, err := time.ParseInLocation(timeLayout, record[1], time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q: %w", record[1], err)
	}
	amountRaw, err := strconv.ParseFloat(record[2], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid raw amount %q: %w", record[2], err)
	}
	cumulativeUSD, err := strconv.ParseFloat(record[3], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid USD amount %q: %w", record[3], err)
	}
	return entity.NewUSDCheckpoint(block, ts, amountRaw, cumulativeUSD)
}
