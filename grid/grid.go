// Package grid models the external tabular ledger as a rectangular grid of
// scalar cells addressed in A1 notation. It defines the Reader and Writer
// collaborator interfaces the reconciliation engine is written against, and
// the error contract every backend implementation must honor.
package grid

import (
	"context"
	"errors"
	"fmt"
)

// Value is a single cell scalar: string, float64, int, int64, bool, or nil
// for an empty cell. Backends coerce their native cell representation into
// one of these on read and accept any of them on write.
type Value = any

// RangeSpec addresses a rectangular region of one sheet. Rows are 1-based.
// An EndRow of 0 means "through the last populated row of the sheet".
type RangeSpec struct {
	Sheet    string
	StartCol string
	StartRow int
	EndCol   string
	EndRow   int
}

// Cell returns a RangeSpec addressing a single cell.
func Cell(sheet, col string, row int) RangeSpec {
	return RangeSpec{Sheet: sheet, StartCol: col, StartRow: row, EndCol: col, EndRow: row}
}

// Span returns a RangeSpec covering cols startCol..endCol from firstRow to
// the last populated row.
func Span(sheet, startCol, endCol string, firstRow int) RangeSpec {
	return RangeSpec{Sheet: sheet, StartCol: startCol, StartRow: firstRow, EndCol: endCol}
}

// IsCell reports whether the spec addresses exactly one cell.
func (r RangeSpec) IsCell() bool {
	return r.StartCol == r.EndCol && r.StartRow == r.EndRow && r.EndRow != 0
}

// String renders the spec in A1 notation, e.g. "Stock!B2:H100".
// Open-ended ranges render without the end row: "Stock!B2:H".
func (r RangeSpec) String() string {
	if r.IsCell() {
		return fmt.Sprintf("%s!%s%d", r.Sheet, r.StartCol, r.StartRow)
	}
	if r.EndRow == 0 {
		return fmt.Sprintf("%s!%s%d:%s", r.Sheet, r.StartCol, r.StartRow, r.EndCol)
	}
	return fmt.Sprintf("%s!%s%d:%s%d", r.Sheet, r.StartCol, r.StartRow, r.EndCol, r.EndRow)
}

// WriteResult reports the outcome of a single Write call.
type WriteResult struct {
	UpdatedCells int
}

// Reader reads a rectangular region of the ledger. The returned matrix is
// row-major and always spans the full requested column width; cells the
// backend has no value for are nil.
type Reader interface {
	Read(ctx context.Context, rng RangeSpec) ([][]Value, error)
}

// Writer writes a rectangular region of the ledger. The values matrix must
// match the shape of the range.
type Writer interface {
	Write(ctx context.Context, rng RangeSpec, values [][]Value) (WriteResult, error)
}

// Grid combines Reader and Writer. The engine requires both halves on the
// same backend.
type Grid interface {
	Reader
	Writer
}

// Sentinel errors shared by all backends.
var (
	// ErrNotFound means the sheet or range identity is invalid.
	ErrNotFound = errors.New("grid: sheet or range not found")

	// ErrRateLimited means the backend refused the request under its
	// request-rate quota. Callers may retry after a delay.
	ErrRateLimited = errors.New("grid: rate limited")

	// ErrUnreachable means the backend cannot be reached at all. This is
	// the only error class the engine treats as fatal for a run.
	ErrUnreachable = errors.New("grid: backend unreachable")
)

// IsRateLimited reports whether err carries the backend rate-limit signal.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsUnreachable reports whether err is a hard transport failure.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}
