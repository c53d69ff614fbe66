package entity

import (
	"testing"
	"time"
)

func TestNewRawCheckpointValidation(t *testing.T) {
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		block   int64
		ts      time.Time
		wantErr bool
	}{
		{"valid", 100, ts, false},
		{"zero block is valid", 0, ts, false},
		{"negative block", -1, ts, true},
		{"zero timestamp", 100, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRawCheckpoint(tt.block, tt.ts, 1.0)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewRawCheckpoint() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewUSDCheckpointValidation(t *testing.T) {
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	if _, err := NewUSDCheckpoint(100, ts, 10.0, 20.0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewUSDCheckpoint(-5, ts, 10.0, 20.0); err == nil {
		t.Error("expected error for negative block")
	}
	if _, err := NewUSDCheckpoint(100, time.Time{}, 10.0, 20.0); err == nil {
		t.Error("expected error for zero timestamp")
	}
}
