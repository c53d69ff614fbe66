// Package accumulator walks a block range in chunks and appends one cumulative
// checkpoint row per chunk to the raw ledger.
package accumulator

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/domain/entity"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/ports/outbound"
)

// ServiceConfig holds configuration for one accumulation run.
type ServiceConfig struct {
	// Network names the chain, for logging and ledger keying.
	Network string

	// Category is the revenue stream being accumulated.
	Category *entity.Category

	// StartBlock seeds the scan on a ledger with no rows. Resumed runs
	// ignore it and continue from the last checkpoint.
	StartBlock int64

	// ChunkSize is the maximum block span per log query.
	ChunkSize int64

	// Logger is the structured logger for the service.
	Logger *slog.Logger
}

// Service drives the chunked scan for one network/category pair.
type Service struct {
	config    ServiceConfig
	reader    outbound.ChainReader
	extractor Extractor
	ledger    outbound.RawLedger
	logger    *slog.Logger
}

// NewService creates a new accumulator service.
func NewService(config ServiceConfig, reader outbound.ChainReader, extractor Extractor, ledger outbound.RawLedger) (*Service, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader cannot be nil")
	}
	if extractor == nil {
		return nil, fmt.Errorf("extractor cannot be nil")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
	}
	if config.Category == nil {
		return nil, fmt.Errorf("category cannot be nil")
	}
	if config.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	if config.StartBlock < 0 {
		return nil, fmt.Errorf("start block must be non-negative, got %d", config.StartBlock)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		config:    config,
		reader:    reader,
		extractor: extractor,
		ledger:    ledger,
		logger: logger.With(
			"component", "accumulator",
			"network", config.Network,
			"category", config.Category.Name,
		),
	}, nil
}

// Run scans from the resume point to the chain tip and returns the number of
// checkpoint rows appended. The tip is re-read after every chunk, so blocks
// mined during a long scan are picked up in the same run. Each chunk appends
// exactly one row, whether or not it contained activity; an empty chunk still
// advances the checkpoint with an unchanged cumulative.
func (s *Service) Run(ctx context.Context) (int, error) {
	rows, err := s.ledger.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading raw ledger: %w", err)
	}

	nextStart := s.config.StartBlock
	cumulative := 0.0
	if len(rows) > 0 {
		last := rows[len(rows)-1]
		nextStart = last.Block + 1
		cumulative = last.CumulativeRaw
		s.logger.Info("resuming scan", "from_block", nextStart, "cumulative", cumulative)
	} else {
		s.logger.Info("starting scan", "from_block", nextStart)
	}

	appended := 0
	for {
		if err := ctx.Err(); err != nil {
			return appended, err
		}

		tip, err := s.reader.BlockNumber(ctx)
		if err != nil {
			return appended, fmt.Errorf("reading chain tip: %w", err)
		}
		if nextStart > int64(tip) {
			break
		}

		end := nextStart + s.config.ChunkSize - 1
		if end > int64(tip) {
			end = int64(tip)
		}

		chunk, err := s.extractor.ChunkValue(ctx, nextStart, end)
		if err != nil {
			return appended, fmt.Errorf("extracting chunk [%d, %d]: %w", nextStart, end, err)
		}
		cumulative = s.config.Category.Accumulation.Apply(cumulative, chunk)

		header, err := s.reader.HeaderByNumber(ctx, big.NewInt(end))
		if err != nil {
			return appended, fmt.Errorf("reading header of block %d: %w", end, err)
		}

		cp, err := entity.NewRawCheckpoint(end, time.Unix(int64(header.Time), 0).UTC(), cumulative)
		if err != nil {
			return appended, fmt.Errorf("building checkpoint at block %d: %w", end, err)
		}
		if err := s.ledger.Append(ctx, cp); err != nil {
			return appended, fmt.Errorf("appending checkpoint at block %d: %w", end, err)
		}
		appended++

		s.logger.Debug("chunk processed",
			"from_block", nextStart,
			"to_block", end,
			"chunk_value", chunk,
			"cumulative", cumulative)

		nextStart = end + 1
	}

	s.logger.Info("scan complete", "chunks", appended, "cumulative", cumulative)
	return appended, nil
}
