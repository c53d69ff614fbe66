// Package pipeline drives the full accumulate, price and convert pass over
// every configured network and revenue category.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/adapters/outbound/fixedprice"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/config"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/ports/outbound"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/services/accumulator"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/services/converter"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/services/priceoracle"
)

// DialFunc opens a chain reader for one network. The returned close function
// releases the connection and may be nil.
type DialFunc func(ctx context.Context, network string, cfg config.NetworkConfig) (outbound.ChainReader, func(), error)

// Dependencies are the outbound collaborators the driver wires per stream.
type Dependencies struct {
	// Dial opens chain readers, one per network per run.
	Dial DialFunc

	// Ledgers opens the raw and USD ledgers per network/category.
	Ledgers outbound.LedgerFactory

	// Caches opens the daily price caches per coin.
	Caches outbound.PriceCacheFactory

	// Prices is the remote daily price source shared by every non-pegged
	// category.
	Prices outbound.PriceProvider

	// Mirror, when non-nil, receives a copy of every ledger after each
	// stream. Mirror failures are logged, never fatal.
	Mirror outbound.LedgerMirror
}

// ServiceConfig holds configuration for the pipeline driver.
type ServiceConfig struct {
	// Config is the full validated pipeline configuration.
	Config *config.Config

	// Now supplies the run's notion of today, for price coverage. Defaults
	// to time.Now.
	Now func() time.Time

	// Logger is the structured logger for the service.
	Logger *slog.Logger
}

// Service runs the pipeline. Streams are processed sequentially; a failing
// stream is recorded in the report and the run moves on to the next one.
type Service struct {
	config ServiceConfig
	deps   Dependencies
	logger *slog.Logger
}

// NewService creates a new pipeline driver.
func NewService(config ServiceConfig, deps Dependencies) (*Service, error) {
	if config.Config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if deps.Dial == nil {
		return nil, fmt.Errorf("dial function cannot be nil")
	}
	if deps.Ledgers == nil {
		return nil, fmt.Errorf("ledger factory cannot be nil")
	}
	if deps.Caches == nil {
		return nil, fmt.Errorf("cache factory cannot be nil")
	}
	if deps.Prices == nil {
		return nil, fmt.Errorf("price provider cannot be nil")
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		config: config,
		deps:   deps,
		logger: logger.With("component", "pipeline"),
	}, nil
}

// Run processes every configured network/category pair and returns the
// per-stream report. The returned error is reserved for context cancellation;
// stream failures live in the report.
func (s *Service) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{}

	networks := make([]string, 0, len(s.config.Config.Networks))
	for name := range s.config.Config.Networks {
		networks = append(networks, name)
	}
	sort.Strings(networks)

	for _, network := range networks {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		netCfg := s.config.Config.Networks[network]

		reader, closeReader, err := s.deps.Dial(ctx, network, netCfg)
		if err != nil {
			for _, cat := range netCfg.Categories {
				report.Outcomes = append(report.Outcomes, Outcome{
					Network:  network,
					Category: cat.Name,
					Err:      fmt.Errorf("dialing network: %w", err),
				})
			}
			continue
		}

		for _, catCfg := range netCfg.Categories {
			if err := ctx.Err(); err != nil {
				if closeReader != nil {
					closeReader()
				}
				return report, err
			}
			report.Outcomes = append(report.Outcomes, s.runStream(ctx, network, netCfg, catCfg, reader))
		}

		if closeReader != nil {
			closeReader()
		}
	}

	if failed := report.Failed(); len(failed) > 0 {
		s.logger.Warn("pipeline run finished with failures",
			"streams", len(report.Outcomes),
			"failed", len(failed))
	} else {
		s.logger.Info("pipeline run finished", "streams", len(report.Outcomes))
	}
	return report, nil
}

func (s *Service) runStream(ctx context.Context, network string, netCfg config.NetworkConfig, catCfg config.CategoryConfig, reader outbound.ChainReader) Outcome {
	outcome := Outcome{Network: network, Category: catCfg.Name}

	fail := func(err error) Outcome {
		outcome.Err = err
		s.logger.Error("stream failed", "network", network, "category", catCfg.Name, "error", err)
		return outcome
	}

	category, err := catCfg.Category()
	if err != nil {
		return fail(fmt.Errorf("building category: %w", err))
	}

	rawLedger, err := s.deps.Ledgers.Raw(network, category)
	if err != nil {
		return fail(fmt.Errorf("opening raw ledger: %w", err))
	}
	usdLedger, err := s.deps.Ledgers.USD(network, category)
	if err != nil {
		return fail(fmt.Errorf("opening usd ledger: %w", err))
	}

	extractor, err := accumulator.BuildExtractor(reader, catCfg.Extractor)
	if err != nil {
		return fail(fmt.Errorf("building extractor: %w", err))
	}

	acc, err := accumulator.NewService(accumulator.ServiceConfig{
		Network:    network,
		Category:   category,
		StartBlock: catCfg.StartBlock,
		ChunkSize:  netCfg.ChunkSize,
		Logger:     s.logger,
	}, reader, extractor, rawLedger)
	if err != nil {
		return fail(fmt.Errorf("building accumulator: %w", err))
	}
	outcome.ChunksAppended, err = acc.Run(ctx)
	if err != nil {
		return fail(fmt.Errorf("accumulating: %w", err))
	}

	oracle, err := s.oracleFor(catCfg)
	if err != nil {
		return fail(err)
	}

	today := s.config.Now().UTC()
	from := today.AddDate(0, 0, -s.config.Config.PriceLookbackDays)
	if err := oracle.EnsureCoverage(ctx, category.CoinID, from, today); err != nil {
		return fail(fmt.Errorf("ensuring price coverage: %w", err))
	}

	conv, err := converter.NewService(converter.ServiceConfig{
		Network:  network,
		Category: category,
		Logger:   s.logger,
	}, rawLedger, usdLedger, oracle)
	if err != nil {
		return fail(fmt.Errorf("building converter: %w", err))
	}
	outcome.RowsConverted, err = conv.Run(ctx)
	if err != nil {
		return fail(fmt.Errorf("converting: %w", err))
	}

	s.mirrorStream(ctx, network, category.Name, rawLedger, usdLedger)
	return outcome
}

// oracleFor picks the price source: pegged categories get a constant-price
// provider, everything else shares the remote one.
func (s *Service) oracleFor(catCfg config.CategoryConfig) (*priceoracle.Service, error) {
	provider := s.deps.Prices
	if catCfg.FixedPriceUSD > 0 {
		fixed, err := fixedprice.NewProvider(catCfg.FixedPriceUSD)
		if err != nil {
			return nil, fmt.Errorf("building fixed price provider: %w", err)
		}
		provider = fixed
	}
	oracle, err := priceoracle.NewService(priceoracle.ServiceConfig{Logger: s.logger}, provider, s.deps.Caches)
	if err != nil {
		return nil, fmt.Errorf("building price oracle: %w", err)
	}
	return oracle, nil
}

func (s *Service) mirrorStream(ctx context.Context, network, category string, raw outbound.RawLedger, usd outbound.USDLedger) {
	if s.deps.Mirror == nil {
		return
	}

	rawRows, err := raw.Load(ctx)
	if err == nil {
		err = s.deps.Mirror.MirrorRaw(ctx, network, category, rawRows)
	}
	if err != nil {
		s.logger.Warn("raw ledger mirror failed", "network", network, "category", category, "error", err)
	}

	usdRows, err := usd.Load(ctx)
	if err == nil {
		err = s.deps.Mirror.MirrorUSD(ctx, network, category, usdRows)
	}
	if err != nil {
		s.logger.Warn("usd ledger mirror failed", "network", network, "category", category, "error", err)
	}
}
