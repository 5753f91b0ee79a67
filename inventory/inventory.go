// Package inventory defines the optional external stock lookup the engine
// consults for a row's authoritative on-hand quantity.
package inventory

import (
	"context"
	"errors"
)

// ErrUnknownKey is returned by lookups that have no record for a key.
// The engine treats any lookup error as "inventory unavailable" and falls
// back to the quantities already on the ledger row.
var ErrUnknownKey = errors.New("inventory: unknown key")

// Lookup supplies the current stock quantity for an inventory key.
// Implementations fail soft: an error never aborts a run, it only
// disables the authoritative branch of the quantity fallback chain.
type Lookup interface {
	CurrentQuantity(ctx context.Context, key string) (float64, error)
}

// Func adapts a plain function to the Lookup interface.
type Func func(ctx context.Context, key string) (float64, error)

// CurrentQuantity implements Lookup.
func (f Func) CurrentQuantity(ctx context.Context, key string) (float64, error) {
	return f(ctx, key)
}

// Static is a fixed in-memory Lookup, useful in tests and for callers
// whose stock snapshot is already loaded.
type Static map[string]float64

// CurrentQuantity implements Lookup. Unknown keys return ErrUnknownKey so
// the engine's fallback chain applies.
func (s Static) CurrentQuantity(_ context.Context, key string) (float64, error) {
	qty, ok := s[key]
	if !ok {
		return 0, ErrUnknownKey
	}
	return qty, nil
}
