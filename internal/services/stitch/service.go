// Package stitch merges checkpoint ledgers across network migrations and
// builds combined cross-network cumulative series.
package stitch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/domain/entity"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/ports/outbound"
)

// ServiceConfig holds configuration for the stitch service.
type ServiceConfig struct {
	// Logger is the structured logger for the service.
	Logger *slog.Logger
}

// Service stitches USD ledgers and combines raw ledgers.
type Service struct {
	logger *slog.Logger
}

// NewService creates a new stitch service.
func NewService(config ServiceConfig) *Service {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger.With("component", "stitch")}
}

// StitchUSD merges a predecessor ledger and its successor across a network
// migration. Successor rows at or before the predecessor's last timestamp are
// dropped, the remaining rows have their cumulative column shifted by the
// predecessor's final value, and the result is written to out sorted by
// timestamp.
func (s *Service) StitchUSD(ctx context.Context, first, second, out outbound.USDLedger) error {
	firstRows, err := first.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading first ledger: %w", err)
	}
	if len(firstRows) == 0 {
		return fmt.Errorf("first ledger has no rows")
	}
	secondRows, err := second.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading second ledger: %w", err)
	}

	sortByTimestamp(firstRows)
	sortByTimestamp(secondRows)

	cutoff := firstRows[len(firstRows)-1].Timestamp
	shift := firstRows[len(firstRows)-1].CumulativeUSD

	merged := append([]*entity.USDCheckpoint(nil), firstRows...)
	dropped := 0
	for _, row := range secondRows {
		if !row.Timestamp.After(cutoff) {
			dropped++
			continue
		}
		merged = append(merged, &entity.USDCheckpoint{
			Block:         row.Block,
			Timestamp:     row.Timestamp,
			AmountRaw:     row.AmountRaw,
			CumulativeUSD: row.CumulativeUSD + shift,
		})
	}
	sortByTimestamp(merged)

	if err := out.Write(ctx, merged); err != nil {
		return fmt.Errorf("writing stitched ledger: %w", err)
	}

	s.logger.Info("stitched ledgers",
		"first_rows", len(firstRows),
		"second_rows", len(secondRows),
		"overlap_dropped", dropped,
		"shift", shift)
	return nil
}

// CombinedPoint is one row of a combined cross-network cumulative series.
type CombinedPoint struct {
	Timestamp  time.Time
	Cumulative float64
}

// Combine reduces several raw ledgers to one cumulative series: each ledger
// is differenced into per-checkpoint increments, increments sharing an exact
// timestamp are summed, and the merged sequence is re-cumulated in timestamp
// order.
func (s *Service) Combine(ctx context.Context, ledgers []outbound.RawLedger) ([]CombinedPoint, error) {
	if len(ledgers) == 0 {
		return nil, fmt.Errorf("no ledgers to combine")
	}

	increments := make(map[time.Time]float64)
	for i, ledger := range ledgers {
		rows, err := ledger.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading ledger %d: %w", i, err)
		}
		sort.Slice(rows, func(a, b int) bool {
			return rows[a].Timestamp.Before(rows[b].Timestamp)
		})

		prev := 0.0
		for _, row := range rows {
			increments[row.Timestamp] += row.CumulativeRaw - prev
			prev = row.CumulativeRaw
		}
	}

	points := make([]CombinedPoint, 0, len(increments))
	for ts, inc := range increments {
		points = append(points, CombinedPoint{Timestamp: ts, Cumulative: inc})
	}
	sort.Slice(points, func(a, b int) bool {
		return points[a].Timestamp.Before(points[b].Timestamp)
	})

	running := 0.0
	for i := range points {
		running += points[i].Cumulative
		points[i].Cumulative = running
	}

	s.logger.Info("combined ledgers", "ledgers", len(ledgers), "points", len(points))
	return points, nil
}

func sortByTimestamp(rows []*entity.USDCheckpoint) {
	sort.Slice(rows, func(a, b int) bool {
		return rows[a].Timestamp.Before(rows[b].Timestamp)
	})
}
