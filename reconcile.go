package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/skuva/reconcile/avgcost"
	"github.com/skuva/reconcile/batch"
	"github.com/skuva/reconcile/config"
	"github.com/skuva/reconcile/grid"
	"github.com/skuva/reconcile/id"
	"github.com/skuva/reconcile/inventory"
	"github.com/skuva/reconcile/item"
	"github.com/skuva/reconcile/sku"
)

// Engine merges parsed invoice line items into the external ledger.
// It is constructed once per ledger and safe to hold long-term; Process
// serializes runs so two reconciliations from the same process cannot
// interleave writes on the same ledger.
type Engine struct {
	grid     grid.Grid
	cfg      config.LedgerConfig
	inv      inventory.Lookup
	logger   *slog.Logger
	clock    batch.Clock
	observer batch.Observer

	mu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithInventory attaches the optional external stock lookup. When set, it
// is the authoritative source for a row's previous quantity; on lookup
// failure the engine falls back to the quantities already on the row.
func WithInventory(inv inventory.Lookup) Option {
	return func(e *Engine) { e.inv = inv }
}

// WithClock replaces the real-time clock, making every pacing delay and
// backoff fake-able in tests.
func WithClock(c batch.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithObserver receives the outcome of every attempted cell write.
func WithObserver(o batch.Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// New creates an Engine over a ledger grid with a validated configuration.
func New(g grid.Grid, cfg config.LedgerConfig, opts ...Option) (*Engine, error) {
	if g == nil {
		return nil, ErrNilGrid
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		grid:   g,
		cfg:    cfg,
		logger: slog.Default(),
		clock:  batch.SystemClock(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// rowPlan carries the phase-1 values computed for one matched item. Phase 2
// derives the weighted average strictly from these values, never from the
// post-settle re-read, which only verifies that phase 1 became visible.
type rowPlan struct {
	row       int
	sku       string
	prevQty   float64
	prevPrice *float64
	inQty     float64
	inPrice   float64
}

// Process reconciles one invoice batch against the ledger: it matches each
// item to exactly one ledger row, commits the raw quantity and price cells
// (phase 1), waits for the backend to settle, verifies the writes became
// visible, then commits the recomputed weighted-average cost per row
// (phase 2).
//
// Process never returns an error: every failure, including a fatal ledger
// outage, is encoded in the returned Result.
func (e *Engine) Process(ctx context.Context, items []item.Item, shippingFee float64) (res Result) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.clock.Now()
	res = Result{RunID: id.NewRun()}
	log := e.logger.With("run", res.RunID)
	log.Info("reconciliation started",
		"items", len(items),
		"shipping_fee", shippingFee,
		"sheet", e.cfg.Sheet,
	)
	defer func() {
		res.Duration = e.clock.Now().Sub(start)
	}()

	splitter, err := sku.NewSplitter(e.cfg.Normalization.Rules())
	if err != nil {
		res.recordFatal("compile sku split pattern", err)
		res.Report = BuildReport(res)
		return res
	}

	// One read covers the SKU index and the initial row snapshot.
	firstCol, lastCol := e.cfg.ColumnSpan()
	span := grid.Span(e.cfg.Sheet, firstCol, lastCol, e.cfg.FirstDataRow)
	matrix, err := e.grid.Read(ctx, span)
	if err != nil {
		res.recordFatal("initial ledger read", err)
		res.Report = BuildReport(res)
		log.Error("initial ledger read failed", "error", err)
		return res
	}

	rows := snapshot(matrix, e.cfg, splitter)
	column := make([]string, len(rows))
	for i, r := range rows {
		column[i] = r.SKURaw
	}
	index, err := sku.BuildIndex(column, e.cfg.FirstDataRow, e.cfg.Normalization.Rules())
	if err != nil {
		res.recordFatal("index ledger rows", err)
		res.Report = BuildReport(res)
		return res
	}
	log.Debug("indexed ledger", "rows", len(rows), "skus", index.Len())

	items = item.AllocateShipping(items, shippingFee)

	plans, writes := e.planPhase1(ctx, items, rows, index, splitter, &res, log)

	pipeline := batch.New(e.grid,
		batch.WithClock(e.clock),
		batch.WithLogger(log),
		batch.WithBatchSize(e.cfg.BatchSize),
		batch.WithDelays(e.cfg.InterWriteDelay.Std(), e.cfg.InterBatchDelay.Std()),
		batch.WithRetryPolicy(e.retryPolicy()),
		batch.WithObserver(e.observer),
	)

	res.Phase1, err = pipeline.Commit(ctx, writes)
	e.recordFailures(&res, res.Phase1)
	if err != nil {
		res.recordFatal("commit phase 1", err)
		res.Report = BuildReport(res)
		log.Error("phase 1 commit aborted", "error", err)
		return res
	}
	log.Info("phase 1 committed",
		"writes", res.Phase1.Committed,
		"failed", len(res.Phase1.Failures),
	)

	if len(plans) > 0 {
		if err := e.clock.Sleep(ctx, e.cfg.SettleDelay.Std()); err != nil {
			res.recordFatal("settle delay", err)
			res.Report = BuildReport(res)
			return res
		}
		if err := e.verifyCommitted(ctx, span, plans, &res, log); err != nil {
			res.recordFatal("re-read committed state", err)
			res.Report = BuildReport(res)
			log.Error("re-read failed", "error", err)
			return res
		}
	}

	cmpWrites := e.planPhase2(plans, &res, log)
	res.Phase2, err = pipeline.Commit(ctx, cmpWrites)
	e.recordFailures(&res, res.Phase2)
	if err != nil {
		res.recordFatal("commit phase 2", err)
		res.Report = BuildReport(res)
		log.Error("phase 2 commit aborted", "error", err)
		return res
	}

	res.Report = BuildReport(res)
	log.Info("reconciliation finished",
		"processed", res.Processed,
		"updated", res.Updated,
		"skipped", res.Skipped,
		"errors", len(res.Errors),
	)
	return res
}

// planPhase1 matches and validates every item and computes its raw cell
// writes: shipping cost first, then the price shift, the new price, the
// previous quantity, and the incoming quantity.
func (e *Engine) planPhase1(
	ctx context.Context,
	items []item.Item,
	rows []ledgerRow,
	index *sku.Index,
	splitter *sku.Splitter,
	res *Result,
	log *slog.Logger,
) ([]rowPlan, []batch.Write) {
	cols := e.cfg.Columns
	byRow := make(map[int]ledgerRow, len(rows))
	for _, r := range rows {
		byRow[r.Row] = r
	}

	var plans []rowPlan
	var writes []batch.Write
	cell := func(col string, row int) grid.RangeSpec {
		return grid.Cell(e.cfg.Sheet, col, row)
	}

	for _, it := range items {
		res.Processed++
		norm := splitter.Normalize(it.SKU)

		matched := index.Rows(it.SKU)
		switch {
		case len(matched) == 0:
			res.NotFound = append(res.NotFound, norm)
			res.Skipped++
			log.Debug("sku not found", "sku", norm)
			continue
		case len(matched) > 1:
			res.Ambiguous = append(res.Ambiguous, norm)
			res.Skipped++
			log.Debug("sku ambiguous", "sku", norm, "rows", matched)
			continue
		}

		if it.Quantity <= 0 {
			res.recordError(ValidationError{SKU: norm, Reason: "quantity must be positive"})
			res.Skipped++
			continue
		}
		if it.UnitPrice < 0 {
			res.recordError(ValidationError{SKU: norm, Reason: "unit price must not be negative"})
			res.Skipped++
			continue
		}

		row := byRow[matched[0]]
		inPrice := it.UnitPrice + it.ShippingPerUnit

		// Shipping cost is written unconditionally and first.
		writes = append(writes, batch.Write{Cell: cell(cols.Shipping, row.Row), Value: it.ShippingPerUnit})

		// A populated "new price" shifts into the old-price cell and
		// becomes the blending baseline; otherwise the existing old
		// price stays put and serves as the baseline.
		prevPrice := row.PrevPrice
		if row.PriceNew != nil {
			writes = append(writes, batch.Write{Cell: cell(cols.PrevPrice, row.Row), Value: *row.PriceNew})
			prevPrice = row.PriceNew
		}
		writes = append(writes, batch.Write{Cell: cell(cols.NewPrice, row.Row), Value: inPrice})

		prevQty := e.resolvePrevQty(ctx, row, log)
		writes = append(writes,
			batch.Write{Cell: cell(cols.PrevQty, row.Row), Value: prevQty},
			batch.Write{Cell: cell(cols.InQty, row.Row), Value: it.Quantity},
		)

		plans = append(plans, rowPlan{
			row:       row.Row,
			sku:       norm,
			prevQty:   prevQty,
			prevPrice: prevPrice,
			inQty:     it.Quantity,
			inPrice:   inPrice,
		})
	}
	return plans, writes
}

// resolvePrevQty applies the three-level fallback chain for a row's
// previous quantity: the external inventory system when reachable, then
// the row's current incoming quantity, then its existing previous
// quantity.
func (e *Engine) resolvePrevQty(ctx context.Context, row ledgerRow, log *slog.Logger) float64 {
	if e.inv != nil && row.InventoryKey != "" {
		qty, err := e.inv.CurrentQuantity(ctx, row.InventoryKey)
		if err == nil {
			return qty
		}
		log.Debug("inventory lookup failed, falling back",
			"key", row.InventoryKey,
			"error", err,
		)
	}
	if row.InQty != nil {
		return *row.InQty
	}
	if row.PrevQty != nil {
		return *row.PrevQty
	}
	return 0
}

// verifyCommitted re-reads the ledger after the settle delay and checks
// that every planned incoming-quantity cell is visible. Stale state is
// re-read under the same backoff policy; persistent staleness is recorded
// as a run error but does not stop phase 2, whose inputs come from the
// computed phase-1 values rather than the re-read.
func (e *Engine) verifyCommitted(
	ctx context.Context,
	span grid.RangeSpec,
	plans []rowPlan,
	res *Result,
	log *slog.Logger,
) error {
	policy := e.retryPolicy()
	inQtyIdx := grid.MustColumnIndex(e.cfg.Columns.InQty)
	firstCol, _ := e.cfg.ColumnSpan()
	off := inQtyIdx - grid.MustColumnIndex(firstCol)

	stale := 0
	for attempt := 1; ; attempt++ {
		matrix, err := e.grid.Read(ctx, span)
		if err != nil {
			return err
		}

		stale = 0
		for _, p := range plans {
			i := p.row - e.cfg.FirstDataRow
			if i < 0 || i >= len(matrix) || off >= len(matrix[i]) {
				stale++
				continue
			}
			got := toFloat(matrix[i][off])
			if got == nil || *got != p.inQty {
				stale++
			}
		}
		if stale == 0 {
			return nil
		}
		if attempt >= e.cfg.RereadAttempts {
			break
		}
		delay := policy.Delay(attempt)
		log.Debug("phase 1 not yet visible, re-reading",
			"stale_rows", stale,
			"attempt", attempt,
			"delay", delay,
		)
		if err := e.clock.Sleep(ctx, delay); err != nil {
			return err
		}
	}

	res.recordError(fmt.Errorf(
		"reconcile: %d row(s) still stale after %d re-read(s); proceeding with computed values",
		stale, e.cfg.RereadAttempts,
	))
	log.Warn("phase 1 verification incomplete", "stale_rows", stale)
	return nil
}

// planPhase2 computes the weighted average per matched row from the
// phase-1 values and queues the CMP writes. Non-finite results are
// recorded and withheld from the ledger.
func (e *Engine) planPhase2(plans []rowPlan, res *Result, log *slog.Logger) []batch.Write {
	var writes []batch.Write
	for _, p := range plans {
		cmp := avgcost.Blend(p.prevQty, p.prevPrice, p.inQty, p.inPrice)
		if math.IsNaN(cmp) || math.IsInf(cmp, 0) {
			res.recordError(ComputationError{Row: p.row, SKU: p.sku, CMP: cmp})
			res.Skipped++
			log.Warn("non-finite CMP, write withheld", "row", p.row, "sku", p.sku)
			continue
		}
		writes = append(writes, batch.Write{
			Cell:  grid.Cell(e.cfg.Sheet, e.cfg.Columns.CMP, p.row),
			Value: cmp,
		})
		res.Updated++
		res.Updates = append(res.Updates, RowUpdate{Row: p.row, SKU: p.sku, CMP: cmp})
	}
	return writes
}

// recordFailures copies a commit summary's per-cell failures into the
// run's error list.
func (e *Engine) recordFailures(res *Result, sum batch.Summary) {
	for _, f := range sum.Failures {
		res.Errors = append(res.Errors, "reconcile: "+f.String())
	}
}

func (e *Engine) retryPolicy() batch.RetryPolicy {
	return batch.RetryPolicy{
		MaxAttempts: e.cfg.Retry.MaxAttempts,
		BaseDelay:   e.cfg.Retry.BaseDelay.Std(),
		Multiplier:  e.cfg.Retry.Multiplier,
	}
}
