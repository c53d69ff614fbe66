package pipeline

import (
	"errors"
	"fmt"
)

// Outcome records the result of one network/category pass.
type Outcome struct {
	Network        string
	Category       string
	ChunksAppended int
	RowsConverted  int
	Err            error
}

func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s/%s: failed: %v", o.Network, o.Category, o.Err)
	}
	return fmt.Sprintf("%s/%s: %d chunks, %d usd rows", o.Network, o.Category, o.ChunksAppended, o.RowsConverted)
}

// RunReport collects per-stream outcomes of one pipeline run. A failure in
// one stream never hides the results of the others.
type RunReport struct {
	Outcomes []Outcome
}

// Failed returns the outcomes that ended in an error.
func (r *RunReport) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// Err returns the joined errors of all failed streams, or nil when every
// stream succeeded.
func (r *RunReport) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w", o.Network, o.Category, o.Err))
		}
	}
	return errors.Join(errs...)
}
