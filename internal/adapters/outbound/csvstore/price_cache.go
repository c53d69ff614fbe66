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
	"strings"
	"time"

	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/domain/entity"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/ports/outbound"
)

// Compile-time check that PriceCache implements outbound.PriceCache.
var _ outbound.PriceCache = (*PriceCache)(nil)

// PriceCache is the per-coin daily price CSV: header "date,price", one row
// per calendar day, deduplicated and sorted by date.
type PriceCache struct {
	path string
}

// NewPriceCache creates a price cache bound to the given file path.
func NewPriceCache(path string) (*PriceCache, error) {
	if path == "" {
		return nil, fmt.Errorf("path must not be empty")
	}
	return &PriceCache{path: path}, nil
}

// Load returns all price points in file order. A missing file yields an
// empty slice.
func (c *PriceCache) Load(ctx context.Context) ([]*entity.PricePoint, error) {
	f, err := os.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening price cache: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 2

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, &RowError{Path: c.path, Line: 1, Err: err}
	}
	// Legacy caches wrote "Date,Price"; accept any casing.
	if !strings.EqualFold(header[0], "date") || !strings.EqualFold(header[1], "price") {
		return nil, &RowError{Path: c.path, Line: 1, Err: fmt.Errorf("unexpected header %v", header)}
	}

	var points []*entity.PricePoint
	line := 1
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &RowError{Path: c.path, Line: line + 1, Err: err}
		}
		line++

		date, err := time.ParseInLocation(time.DateOnly, record[0], time.UTC)
		if err != nil {
			return nil, &RowError{Path: c.path, Line: line, Err: fmt.Errorf("invalid date %q: %w", record[0], err)}
		}
		price, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, &RowError{Path: c.path, Line: line, Err: fmt.Errorf("invalid price %q: %w", record[1], err)}
		}
		points = append(points, &entity.PricePoint{Date: date, Price: price})
	}
	return points, nil
}

// Write replaces the cache with points, which must already be deduplicated
// and sorted by date.
func (c *PriceCache) Write(ctx context.Context, points []*entity.PricePoint) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("creating price cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".tmp")
	if err != nil {
		return fmt.Errorf("creating temp price cache: %w", err)
	}
	defer os.Remove(tmp.Name())

	writer := csv.NewWriter(tmp)
	if err := writer.Write([]string{"date", "price"}); err != nil {
		tmp.Close()
		return fmt.Errorf("writing price cache header: %w", err)
	}
	for _, p := range points {
		record := []string{p.Date.Format(time.DateOnly), formatAmount(p.Price)}
		if err := writer.Write(record); err != nil {
			tmp.Close()
			return fmt.Errorf("writing price cache row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing price cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp price cache: %w", err)
	}

	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("replacing price cache: %w", err)
	}
	return nil
}
