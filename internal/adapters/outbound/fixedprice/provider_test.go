package fixedprice

import (
	"context"
	"testing"
	"time"
)

func TestGetDailyPricesGeneratesEveryDay(t *testing.T) {
	p, err := NewProvider(1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	from := time.Date(2024, 1, 1, 15, 30, 0, 0, time.UTC)
	to := time.Date(2024, 1, 5, 2, 0, 0, 0, time.UTC)
	points, err := p.GetDailyPrices(context.Background(), "meridian-usd", from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(points) != 5 {
		t.Fatalf("expected 5 daily points, got %d", len(points))
	}
	for i, point := range points {
		want := time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC)
		if !point.Date.Equal(want) {
			t.Errorf("point %d date = %v, want %v", i, point.Date, want)
		}
		if point.Price != 1.0 {
			t.Errorf("point %d price = %f, want 1.0", i, point.Price)
		}
	}
}

func TestNewProviderRejectsNonPositivePrice(t *testing.T) {
	if _, err := NewProvider(0); err == nil {
		t.Error("expected error for zero price")
	}
	if _, err := NewProvider(-1); err == nil {
		t.Error("expected error for negative price")
	}
}
