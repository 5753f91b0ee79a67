package reconcile

import (
	"errors"
	"fmt"

	"github.com/skuva/reconcile/grid"
)

// Sentinel errors for engine construction preconditions.
var (
	ErrNilGrid = errors.New("reconcile: nil grid")
)

// ValidationError describes an invoice item rejected before any write.
type ValidationError struct {
	SKU    string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("reconcile: validation %q: %s", e.SKU, e.Reason)
}

// ComputationError describes a non-finite weighted-average result. The
// row's phase-1 writes stand; only the CMP write is withheld.
type ComputationError struct {
	Row int
	SKU string
	CMP float64
}

func (e ComputationError) Error() string {
	return fmt.Sprintf("reconcile: row %d (%s): non-finite CMP %v", e.Row, e.SKU, e.CMP)
}

// FatalError marks the one condition that aborts a run: the ledger cannot
// be read or reached at all. It is recorded in the result rather than
// raised past the engine boundary, so callers always get a structured
// result back.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("reconcile: fatal: %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err is run-aborting.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// IsRateLimited reports whether err carries the ledger's rate-limit signal.
func IsRateLimited(err error) bool {
	return grid.IsRateLimited(err)
}

// IsRetryable reports whether err is worth retrying after a delay. Only
// the rate-limit class qualifies; transport loss and validation failures
// are not retryable.
func IsRetryable(err error) bool {
	return grid.IsRateLimited(err)
}
