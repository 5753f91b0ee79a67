package reconcile

import (
	"time"

	"github.com/skuva/reconcile/batch"
)

// RowUpdate records a committed weighted-average update for the report.
type RowUpdate struct {
	Row int
	SKU string
	CMP float64
}

// Result is the structured outcome of one reconciliation run. It is
// accumulated monotonically while the run progresses and never mutated
// after Process returns.
//
// Counting rule: every item increments Processed exactly once and exactly
// one of Updated or Skipped. Match failures, validation failures, and
// non-finite CMP results all count as Skipped, with the reason recorded
// in NotFound, Ambiguous, or Errors. On a fatal abort, matched items that
// never reached a phase-2 decision are counted in neither.
type Result struct {
	RunID string

	Processed int
	Updated   int
	Skipped   int

	NotFound  []string
	Ambiguous []string
	Errors    []string

	Updates []RowUpdate

	Phase1 batch.Summary
	Phase2 batch.Summary

	Fatal    bool
	Duration time.Duration
	Report   string
}

// recordError appends an error's message to the run's error list.
func (r *Result) recordError(err error) {
	r.Errors = append(r.Errors, err.Error())
}

// recordFatal marks the run aborted and records the cause.
func (r *Result) recordFatal(op string, err error) {
	r.Fatal = true
	r.recordError(&FatalError{Op: op, Err: err})
}
