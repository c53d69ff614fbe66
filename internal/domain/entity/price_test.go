package entity

import (
	"testing"
	"time"
)

func TestNewPricePointTruncatesToDay(t *testing.T) {
	ts := time.Date(2024, 3, 15, 17, 42, 9, 0, time.UTC)
	p, err := NewPricePoint(ts, 1.23)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if !p.Date.Equal(want) {
		t.Errorf("date = %v, want %v", p.Date, want)
	}
}

func TestNewPricePointRejectsBadInput(t *testing.T) {
	if _, err := NewPricePoint(time.Time{}, 1.0); err == nil {
		t.Error("expected error for zero timestamp")
	}
	if _, err := NewPricePoint(time.Now(), -0.5); err == nil {
		t.Error("expected error for negative price")
	}
}

func TestDayOfConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	ts := time.Date(2024, 3, 15, 2, 0, 0, 0, loc) // 2024-03-14 21:00 UTC
	got := DayOf(ts)
	want := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("DayOf = %v, want %v", got, want)
	}
}
