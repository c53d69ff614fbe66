package entity

import "fmt"

// AccumulationPolicy describes how a chunk value folds into the running
// cumulative raw total.
type AccumulationPolicy string

const (
	// AccumulateSum adds each chunk value to the running total. Used for
	// transfer, fee and reward pipelines whose events carry per-event amounts.
	AccumulateSum AccumulationPolicy = "sum"

	// AccumulateMax keeps the highest observed chunk value. Used for
	// "total issued" pipelines whose events already carry a running total.
	AccumulateMax AccumulationPolicy = "max"

	// AccumulateReplace overwrites the running total with the chunk value.
	// Used for balance-snapshot pipelines that read an absolute balance at
	// the checkpoint block.
	AccumulateReplace AccumulationPolicy = "replace"
)

// Apply folds a chunk value into the cumulative total per the policy.
func (p AccumulationPolicy) Apply(cumulative, chunk float64) float64 {
	switch p {
	case AccumulateMax:
		if chunk > cumulative {
			return chunk
		}
		return cumulative
	case AccumulateReplace:
		return chunk
	default:
		return cumulative + chunk
	}
}

func (p AccumulationPolicy) valid() bool {
	switch p {
	case AccumulateSum, AccumulateMax, AccumulateReplace:
		return true
	}
	return false
}

// Category describes one revenue stream on one network: which coin prices its
// deltas, how chunk values accumulate, and how the USD ledger names its columns.
// The original scripts hard-coded one of these per file; here it is data.
type Category struct {
	// Name identifies the category, e.g. "staking_fees" or "mint_incentives".
	Name string

	// CoinID is the price-source coin identifier, e.g. "telos".
	CoinID string

	// RawAmountColumn is the USD ledger's raw amount column header,
	// e.g. "lqty_amount", "eth_amount" or "reward".
	RawAmountColumn string

	// USDColumn is the USD ledger's cumulative column header,
	// e.g. "usd_issued", "usd_redemptions" or "usd_rewards".
	USDColumn string

	// Accumulation is how chunk values fold into the cumulative raw total.
	Accumulation AccumulationPolicy

	// ClampNegativeDeltas controls whether a negative raw delta is treated as
	// data noise (clamped to zero, logged) or converted as-is. Defaults to
	// true in configuration; every clamp is logged either way.
	ClampNegativeDeltas bool
}

// NewCategory creates a Category with validation.
func NewCategory(name, coinID, rawColumn, usdColumn string, policy AccumulationPolicy, clampNegative bool) (*Category, error) {
	c := &Category{
		Name:                name,
		CoinID:              coinID,
		RawAmountColumn:     rawColumn,
		USDColumn:           usdColumn,
		Accumulation:        policy,
		ClampNegativeDeltas: clampNegative,
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Category) validate() error {
	if c.Name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if c.CoinID == "" {
		return fmt.Errorf("coinID must not be empty")
	}
	if c.RawAmountColumn == "" {
		return fmt.Errorf("rawAmountColumn must not be empty")
	}
	if c.USDColumn == "" {
		return fmt.Errorf("usdColumn must not be empty")
	}
	if !c.Accumulation.valid() {
		return fmt.Errorf("unknown accumulation policy %q", c.Accumulation)
	}
	return nil
}
