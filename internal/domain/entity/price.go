package entity

import (
	"fmt"
	"time"
)

// PricePoint is one daily USD price for a coin. Date is always midnight UTC;
// a cache holds at most one point per calendar day.
type PricePoint struct {
	Date  time.Time
	Price float64
}

// NewPricePoint creates a PricePoint with validation. The timestamp is
// truncated to its UTC calendar day.
func NewPricePoint(ts time.Time, price float64) (*PricePoint, error) {
	if ts.IsZero() {
		return nil, fmt.Errorf("timestamp must not be zero")
	}
	if price < 0 {
		return nil, fmt.Errorf("price must be non-negative, got %f", price)
	}
	return &PricePoint{Date: DayOf(ts), Price: price}, nil
}

// DayOf truncates a timestamp to midnight UTC of its calendar day.
func DayOf(ts time.Time) time.Time {
	u := ts.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
