// Package priceoracle maintains local daily price caches and answers
// nearest-date price lookups for the USD conversion pass.
package priceoracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/domain/entity"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/ports/outbound"
)

// ErrMissingPriceData is returned when a lookup hits an empty price cache.
var ErrMissingPriceData = errors.New("no price data available")

// ServiceConfig holds configuration for the price oracle service.
type ServiceConfig struct {
	// Logger is the structured logger for the service.
	Logger *slog.Logger
}

// Service fills price-cache gaps from a provider and serves nearest-date
// lookups from the cached points.
type Service struct {
	provider outbound.PriceProvider
	caches   outbound.PriceCacheFactory
	logger   *slog.Logger

	mu     sync.RWMutex
	loaded map[string][]*entity.PricePoint
}

// NewService creates a new price oracle service.
func NewService(config ServiceConfig, provider outbound.PriceProvider, caches outbound.PriceCacheFactory) (*Service, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	if caches == nil {
		return nil, fmt.Errorf("cache factory cannot be nil")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		provider: provider,
		caches:   caches,
		logger:   logger.With("component", "price-oracle", "provider", provider.Name()),
		loaded:   make(map[string][]*entity.PricePoint),
	}, nil
}

// EnsureCoverage extends the cached daily series for coinID so it spans
// [from, to]. Only the gap before the earliest cached date and the gap after
// the latest cached date are fetched; dates already covered are never
// re-requested. Freshly fetched points win over cached ones on the same date.
func (s *Service) EnsureCoverage(ctx context.Context, coinID string, from, to time.Time) error {
	from = entity.DayOf(from)
	to = entity.DayOf(to)
	if from.After(to) {
		return fmt.Errorf("coverage range inverted: %s after %s", from.Format(time.DateOnly), to.Format(time.DateOnly))
	}

	cache, err := s.caches.Prices(coinID)
	if err != nil {
		return fmt.Errorf("opening price cache for %s: %w", coinID, err)
	}
	cached, err := cache.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading price cache for %s: %w", coinID, err)
	}

	var fetched []*entity.PricePoint
	if len(cached) == 0 {
		fetched, err = s.provider.GetDailyPrices(ctx, coinID, from, to)
		if err != nil {
			return fmt.Errorf("fetching prices for %s: %w", coinID, err)
		}
	} else {
		earliest := cached[0].Date
		latest := cached[len(cached)-1].Date

		if from.Before(earliest) {
			before, err := s.provider.GetDailyPrices(ctx, coinID, from, earliest.AddDate(0, 0, -1))
			if err != nil {
				return fmt.Errorf("fetching prices for %s before %s: %w", coinID, earliest.Format(time.DateOnly), err)
			}
			fetched = append(fetched, before...)
		}
		if to.After(latest) {
			after, err := s.provider.GetDailyPrices(ctx, coinID, latest.AddDate(0, 0, 1), to)
			if err != nil {
				return fmt.Errorf("fetching prices for %s after %s: %w", coinID, latest.Format(time.DateOnly), err)
			}
			fetched = append(fetched, after...)
		}
	}

	if len(fetched) == 0 {
		s.remember(coinID, cached)
		return nil
	}

	merged := mergePoints(cached, fetched)
	if err := cache.Write(ctx, merged); err != nil {
		return fmt.Errorf("writing price cache for %s: %w", coinID, err)
	}
	s.remember(coinID, merged)

	s.logger.Info("extended price cache",
		"coin", coinID,
		"fetched", len(fetched),
		"total", len(merged))
	return nil
}

// PriceOn returns the cached price whose date is nearest to the day of ts.
// Exact distance ties resolve to the earlier date. An empty cache yields
// ErrMissingPriceData.
func (s *Service) PriceOn(ctx context.Context, coinID string, ts time.Time) (float64, error) {
	points, err := s.points(ctx, coinID)
	if err != nil {
		return 0, err
	}
	if len(points) == 0 {
		return 0, fmt.Errorf("price lookup for %s on %s: %w", coinID, ts.Format(time.DateOnly), ErrMissingPriceData)
	}

	day := entity.DayOf(ts)
	best := points[0]
	bestDist := math.Abs(day.Sub(points[0].Date).Hours())
	for _, p := range points[1:] {
		dist := math.Abs(day.Sub(p.Date).Hours())
		if dist < bestDist {
			best = p
			bestDist = dist
		}
	}
	return best.Price, nil
}

func (s *Service) points(ctx context.Context, coinID string) ([]*entity.PricePoint, error) {
	s.mu.RLock()
	points, ok := s.loaded[coinID]
	s.mu.RUnlock()
	if ok {
		return points, nil
	}

	cache, err := s.caches.Prices(coinID)
	if err != nil {
		return nil, fmt.Errorf("opening price cache for %s: %w", coinID, err)
	}
	points, err = cache.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading price cache for %s: %w", coinID, err)
	}
	s.remember(coinID, points)
	return points, nil
}

func (s *Service) remember(coinID string, points []*entity.PricePoint) {
	s.mu.Lock()
	s.loaded[coinID] = points
	s.mu.Unlock()
}

// mergePoints combines cached and fetched points, deduplicates by date with
// later entries winning, and returns the result sorted ascending by date.
func mergePoints(cached, fetched []*entity.PricePoint) []*entity.PricePoint {
	byDate := make(map[time.Time]*entity.PricePoint, len(cached)+len(fetched))
	for _, p := range cached {
		byDate[p.Date] = p
	}
	for _, p := range fetched {
		byDate[p.Date] = p
	}

	merged := make([]*entity.PricePoint, 0, len(byDate))
	for _, p := range byDate {
		merged = append(merged, p)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Date.Before(merged[j].Date)
	})
	return merged
}
