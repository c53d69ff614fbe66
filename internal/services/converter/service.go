// Package converter derives the cumulative-USD ledger from a raw ledger and
// the daily price cache.
package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/domain/entity"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/ports/outbound"
)

// ErrMissingRawLedger is returned when a conversion is requested for a
// category whose raw ledger has no rows at all.
var ErrMissingRawLedger = errors.New("raw ledger has no rows")

// PriceSource answers daily price lookups for one coin identifier.
type PriceSource interface {
	PriceOn(ctx context.Context, coinID string, ts time.Time) (float64, error)
}

// ServiceConfig holds configuration for one conversion run.
type ServiceConfig struct {
	// Network names the chain, for logging.
	Network string

	// Category is the revenue stream being converted.
	Category *entity.Category

	// Logger is the structured logger for the service.
	Logger *slog.Logger
}

// Service converts new raw checkpoint rows into USD rows. Rows already
// present in the USD ledger are carried over untouched, so historical values
// never shift when prices are refreshed.
type Service struct {
	config ServiceConfig
	raw    outbound.RawLedger
	usd    outbound.USDLedger
	prices PriceSource
	logger *slog.Logger
}

// NewService creates a new converter service.
func NewService(config ServiceConfig, raw outbound.RawLedger, usd outbound.USDLedger, prices PriceSource) (*Service, error) {
	if raw == nil {
		return nil, fmt.Errorf("raw ledger cannot be nil")
	}
	if usd == nil {
		return nil, fmt.Errorf("usd ledger cannot be nil")
	}
	if prices == nil {
		return nil, fmt.Errorf("price source cannot be nil")
	}
	if config.Category == nil {
		return nil, fmt.Errorf("category cannot be nil")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		config: config,
		raw:    raw,
		usd:    usd,
		prices: prices,
		logger: logger.With(
			"component", "converter",
			"network", config.Network,
			"category", config.Category.Name,
		),
	}, nil
}

// Run converts every raw row newer than the last converted block and rewrites
// the USD ledger with old and new rows in block order. Returns the number of
// rows added. A run with nothing new to convert leaves the ledger as is.
func (s *Service) Run(ctx context.Context) (int, error) {
	rawRows, err := s.raw.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading raw ledger: %w", err)
	}
	if len(rawRows) == 0 {
		return 0, fmt.Errorf("converting %s/%s: %w", s.config.Network, s.config.Category.Name, ErrMissingRawLedger)
	}

	usdRows, err := s.usd.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading usd ledger: %w", err)
	}

	prevRaw := 0.0
	prevUSD := 0.0
	lastBlock := int64(-1)
	if len(usdRows) > 0 {
		last := usdRows[len(usdRows)-1]
		prevRaw = last.AmountRaw
		prevUSD = last.CumulativeUSD
		lastBlock = last.Block
	}

	var added []*entity.USDCheckpoint
	for _, row := range rawRows {
		if row.Block <= lastBlock {
			continue
		}

		price, err := s.prices.PriceOn(ctx, s.config.Category.CoinID, row.Timestamp)
		if err != nil {
			return 0, fmt.Errorf("pricing block %d: %w", row.Block, err)
		}

		delta := row.CumulativeRaw - prevRaw
		if delta < 0 {
			if s.config.Category.ClampNegativeDeltas {
				s.logger.Warn("negative raw delta clamped to zero",
					"block", row.Block,
					"delta", delta,
					"cumulative_raw", row.CumulativeRaw,
					"previous_raw", prevRaw)
				delta = 0
			} else {
				s.logger.Warn("negative raw delta converted as is",
					"block", row.Block,
					"delta", delta,
					"cumulative_raw", row.CumulativeRaw,
					"previous_raw", prevRaw)
			}
		}

		prevUSD += delta * price
		prevRaw = row.CumulativeRaw

		cp, err := entity.NewUSDCheckpoint(row.Block, row.Timestamp, row.CumulativeRaw, prevUSD)
		if err != nil {
			return 0, fmt.Errorf("building usd row at block %d: %w", row.Block, err)
		}
		added = append(added, cp)
	}

	if len(added) == 0 {
		s.logger.Info("no new raw rows to convert")
		return 0, nil
	}

	if err := s.usd.Write(ctx, append(usdRows, added...)); err != nil {
		return 0, fmt.Errorf("writing usd ledger: %w", err)
	}

	s.logger.Info("conversion complete",
		"rows_added", len(added),
		"cumulative_usd", prevUSD)
	return len(added), nil
}
