// Package reconcile merges parsed invoice line items into an externally
// hosted tabular ledger that tracks, per product row, a running
// weighted-average unit cost (CMP) alongside the previous and incoming
// quantities and prices.
//
// Reconcile is designed as a library, not a service. Import it directly
// into your application and hand it a grid backend. It provides:
//
//   - Deterministic SKU matching against a many-to-one row index,
//     with explicit not-found and ambiguous outcomes
//   - Even allocation of an invoice-level shipping fee across units
//   - A numerically exact weighted-average cost recurrence (no rounding
//     outside the presentation layer)
//   - A two-phase write protocol that tolerates the ledger's
//     read-after-write latency: raw cells first, settle, verify, then
//     the derived aggregate
//   - A throttled, retrying batch write pipeline that respects the
//     backend's request-rate ceiling and isolates per-cell failures
//
// # Quick Start
//
// Create an engine over your preferred grid backend:
//
//	import (
//	    "github.com/skuva/reconcile"
//	    "github.com/skuva/reconcile/config"
//	    "github.com/skuva/reconcile/grid/xlsx"
//	    "github.com/skuva/reconcile/item"
//	)
//
//	g, err := xlsx.Open("stock.xlsx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	engine, err := reconcile.New(g, config.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result := engine.Process(ctx, []item.Item{
//	    {SKU: "WPC-VAN-900", Quantity: 230, UnitPrice: 4.5},
//	}, 13.0)
//	fmt.Println(result.Report)
//
// Process never returns an error: per-item failures, per-cell write
// failures, and even a total ledger outage are all encoded in the
// structured Result, so the caller always gets the counts, the skipped
// SKUs, and the operator-ready report.
//
// # Consistency
//
// The hosted ledger may apply writes asynchronously relative to the
// caller's view. The engine therefore never blends a weighted average
// from state it merely expects to be committed: phase 2 derives its
// inputs strictly from the values computed and queued during phase 1,
// and the post-settle re-read serves only to verify visibility, retried
// under the same backoff policy as rate-limited writes.
package reconcile
