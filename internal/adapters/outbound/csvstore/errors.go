// Package csvstore persists ledgers and price caches as CSV files, the
// format the downstream dashboard reads directly.
//
// Three file shapes exist:
//   - raw ledger: no header, rows "block,date_time,cumulative_raw", append-only
//   - USD ledger: header row, rewritten in full on each conversion pass
//   - price cache: header "date,price", one row per calendar day
package csvstore

import "fmt"

// RowError reports a ledger or price-cache row that failed schema or type
// validation. Loading stops at the first malformed row rather than silently
// coercing it.
type RowError struct {
	Path string
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s line %d: %v", e.Path, e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}
