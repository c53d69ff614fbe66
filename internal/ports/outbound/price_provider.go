package outbound

import (
	"context"
	"time"

	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/domain/entity"
)

// PriceProvider is the interface for any daily price source.
type PriceProvider interface {
	// Name returns the provider name (e.g., "coingecko").
	Name() string

	// GetDailyPrices fetches one USD price per UTC calendar day for the coin
	// over the inclusive date range. Days the source cannot supply are simply
	// absent from the result.
	GetDailyPrices(ctx context.Context, coinID string, from, to time.Time) ([]*entity.PricePoint, error)
}
