// Package entity contains the core domain types for the revenue pipeline.
package entity

import (
	"fmt"
	"time"
)

// RawCheckpoint is one row of a raw ledger: the cumulative on-chain quantity
// observed up to and including Block. Rows are append-only and never mutated.
type RawCheckpoint struct {
	Block         int64
	Timestamp     time.Time
	CumulativeRaw float64
}

// NewRawCheckpoint creates a RawCheckpoint with validation.
func NewRawCheckpoint(block int64, timestamp time.Time, cumulativeRaw float64) (*RawCheckpoint, error) {
	cp := &RawCheckpoint{
		Block:         block,
		Timestamp:     timestamp,
		CumulativeRaw: cumulativeRaw,
	}
	if err := cp.validate(); err != nil {
		return nil, err
	}
	return cp, nil
}

func (cp *RawCheckpoint) validate() error {
	if cp.Block < 0 {
		return fmt.Errorf("block must be non-negative, got %d", cp.Block)
	}
	if cp.Timestamp.IsZero() {
		return fmt.Errorf("timestamp must not be zero")
	}
	return nil
}

// USDCheckpoint is one row of a USD ledger: the raw cumulative amount carried
// over from the raw ledger plus the cumulative USD value derived from it.
type USDCheckpoint struct {
	Block         int64
	Timestamp     time.Time
	AmountRaw     float64
	CumulativeUSD float64
}

// NewUSDCheckpoint creates a USDCheckpoint with validation.
func NewUSDCheckpoint(block int64, timestamp time.Time, amountRaw, cumulativeUSD float64) (*USDCheckpoint, error) {
	cp := &USDCheckpoint{
		Block:         block,
		Timestamp:     timestamp,
		AmountRaw:     amountRaw,
		CumulativeUSD: cumulativeUSD,
	}
	if err := cp.validate(); err != nil {
		return nil, err
	}
	return cp, nil
}

func (cp *USDCheckpoint) validate() error {
	if cp.Block < 0 {
		return fmt.Errorf("block must be non-negative, got %d", cp.Block)
	}
	if cp.Timestamp.IsZero() {
		return fmt.Errorf("timestamp must not be zero")
	}
	return nil
}
