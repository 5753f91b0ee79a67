// Package id defines TypeID-based identifiers for reconciliation runs and
// write batches. IDs are K-sortable (UUIDv7-based), globally unique, and
// URL-safe in the format "prefix_suffix", so log lines and reports from
// interleaved runs sort chronologically.
package id

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

const (
	PrefixRun   Prefix = "run" // one reconciliation run
	PrefixBatch Prefix = "wb"  // one committed write batch
)

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) string {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return tid.String()
}

// NewRun returns a fresh run identifier, e.g. "run_01h2xcejqtf2nbrexx3vqjhp41".
func NewRun() string { return New(PrefixRun) }

// NewBatch returns a fresh write-batch identifier.
func NewBatch() string { return New(PrefixBatch) }

// Parse validates an identifier string and returns its prefix.
func Parse(s string) (Prefix, error) {
	if s == "" {
		return "", fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("id: parse %q: %w", s, err)
	}
	return Prefix(tid.Prefix()), nil
}
