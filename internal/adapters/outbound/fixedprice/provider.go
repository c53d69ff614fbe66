// Package fixedprice implements the PriceProvider interface for pegged assets.
// It generates one constant-price point per calendar day without any upstream
// call, matching the fixed-price series the stablecoin pipelines rely on.
package fixedprice

import (
	"context"
	"fmt"
	"time"

	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/domain/entity"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/ports/outbound"
)

// Compile-time check that Provider implements outbound.PriceProvider.
var _ outbound.PriceProvider = (*Provider)(nil)

// Provider serves a constant USD price for every requested day.
type Provider struct {
	price float64
}

// NewProvider creates a fixed-price provider.
func NewProvider(price float64) (*Provider, error) {
	if price <= 0 {
		return nil, fmt.Errorf("price must be positive, got %f", price)
	}
	return &Provider{price: price}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "fixed"
}

// GetDailyPrices generates one point per calendar day in [from, to].
func (p *Provider) GetDailyPrices(ctx context.Context, coinID string, from, to time.Time) ([]*entity.PricePoint, error) {
	start := entity.DayOf(from)
	end := entity.DayOf(to)
	if end.Before(start) {
		return nil, fmt.Errorf("invalid range: %s after %s", start.Format(time.DateOnly), end.Format(time.DateOnly))
	}

	var points []*entity.PricePoint
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		points = append(points, &entity.PricePoint{Date: day, Price: p.price})
	}
	return points, nil
}
