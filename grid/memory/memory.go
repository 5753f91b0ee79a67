// Package memory provides an in-memory Grid backend. It is the reference
// implementation used by the engine's tests: besides plain cell storage it
// can simulate the failure modes of a real hosted ledger: rate limiting,
// per-cell write failures, transport loss, and read-after-write latency.
package memory

import (
	"context"
	"sync"

	"github.com/skuva/reconcile/grid"
)

type cellKey struct {
	row, col int
}

type pendingWrite struct {
	sheet     string
	key       cellKey
	value     grid.Value
	remaining int
}

// Grid is an in-memory implementation of grid.Grid.
type Grid struct {
	mu     sync.Mutex
	sheets map[string]map[cellKey]grid.Value

	// Fault injection.
	latency     int // reads a committed write stays invisible for
	rateLimited int // next N Write calls refuse with ErrRateLimited
	failCells   map[string]error
	unreachable bool

	pending    []pendingWrite
	readCalls  int
	writeCalls int
}

// New creates an empty in-memory grid.
func New() *Grid {
	return &Grid{
		sheets:    make(map[string]map[cellKey]grid.Value),
		failCells: make(map[string]error),
	}
}

// Seed sets a cell directly, bypassing latency and fault injection.
func (g *Grid) Seed(sheet, col string, row int, v grid.Value) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sheet(sheet)[cellKey{row: row, col: grid.MustColumnIndex(col)}] = v
}

// Cell returns the visible value of a cell, or nil if empty.
func (g *Grid) Cell(sheet, col string, row int) grid.Value {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sheet(sheet)[cellKey{row: row, col: grid.MustColumnIndex(col)}]
}

// SetLatency makes every subsequent write invisible for n Read calls,
// modeling the hosted ledger's asynchronous write application.
func (g *Grid) SetLatency(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.latency = n
}

// RateLimitNext makes the next n Write calls fail with grid.ErrRateLimited.
func (g *Grid) RateLimitNext(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rateLimited = n
}

// FailCell makes every write to the given cell fail with err.
func (g *Grid) FailCell(ref string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failCells[ref] = err
}

// SetUnreachable toggles hard transport failure for all calls.
func (g *Grid) SetUnreachable(down bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unreachable = down
}

// WriteCalls returns the number of Write attempts observed, including
// refused ones.
func (g *Grid) WriteCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.writeCalls
}

func (g *Grid) sheet(name string) map[cellKey]grid.Value {
	s, ok := g.sheets[name]
	if !ok {
		s = make(map[cellKey]grid.Value)
		g.sheets[name] = s
	}
	return s
}

// Read returns the requested region. Pending writes whose latency has
// elapsed are applied before the region is served, so a read issued
// immediately after a write may observe stale state.
func (g *Grid) Read(ctx context.Context, rng grid.RangeSpec) ([][]grid.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.unreachable {
		return nil, grid.ErrUnreachable
	}
	g.readCalls++
	g.applyElapsed()

	s, ok := g.sheets[rng.Sheet]
	if !ok {
		return nil, grid.ErrNotFound
	}

	startCol, err := grid.ColumnIndex(rng.StartCol)
	if err != nil {
		return nil, err
	}
	endCol, err := grid.ColumnIndex(rng.EndCol)
	if err != nil {
		return nil, err
	}

	endRow := rng.EndRow
	if endRow == 0 {
		for k := range s {
			if k.row > endRow {
				endRow = k.row
			}
		}
		if endRow < rng.StartRow {
			return [][]grid.Value{}, nil
		}
	}

	rows := make([][]grid.Value, 0, endRow-rng.StartRow+1)
	for r := rng.StartRow; r <= endRow; r++ {
		row := make([]grid.Value, endCol-startCol+1)
		for c := startCol; c <= endCol; c++ {
			row[c-startCol] = s[cellKey{row: r, col: c}]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Write stores the values matrix into the region, honoring the configured
// fault injection. With a nonzero latency the write is queued and becomes
// visible only after that many subsequent Read calls.
func (g *Grid) Write(ctx context.Context, rng grid.RangeSpec, values [][]grid.Value) (grid.WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return grid.WriteResult{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.writeCalls++
	if g.unreachable {
		return grid.WriteResult{}, grid.ErrUnreachable
	}
	if g.rateLimited > 0 {
		g.rateLimited--
		return grid.WriteResult{}, grid.ErrRateLimited
	}
	if err, ok := g.failCells[rng.String()]; ok {
		return grid.WriteResult{}, err
	}

	startCol, err := grid.ColumnIndex(rng.StartCol)
	if err != nil {
		return grid.WriteResult{}, err
	}

	updated := 0
	for i, row := range values {
		for j, v := range row {
			key := cellKey{row: rng.StartRow + i, col: startCol + j}
			if g.latency > 0 {
				g.pending = append(g.pending, pendingWrite{
					sheet:     rng.Sheet,
					key:       key,
					value:     v,
					remaining: g.latency,
				})
			} else {
				g.sheet(rng.Sheet)[key] = v
			}
			updated++
		}
	}
	return grid.WriteResult{UpdatedCells: updated}, nil
}

// applyElapsed flushes pending writes whose latency has run out and ticks
// the rest down. Called with the lock held, once per Read.
func (g *Grid) applyElapsed() {
	remaining := g.pending[:0]
	for _, p := range g.pending {
		if p.remaining <= 0 {
			g.sheet(p.sheet)[p.key] = p.value
			continue
		}
		p.remaining--
		remaining = append(remaining, p)
	}
	g.pending = remaining
}
