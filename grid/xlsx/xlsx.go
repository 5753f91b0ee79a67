// Package xlsx provides a Grid backend over a local Excel workbook via
// excelize. It is useful for offline reconciliation against an exported
// copy of the ledger and for integration tests with realistic files.
// A local workbook never rate-limits, so the backend never returns
// grid.ErrRateLimited.
package xlsx

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/skuva/reconcile/grid"
)

// Grid wraps an open workbook. Writes mutate the in-memory workbook;
// call Save to flush to disk.
type Grid struct {
	mu   sync.Mutex
	file *excelize.File
	path string
}

// Open opens an existing workbook.
func Open(path string) (*Grid, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("xlsx: %s: %w", path, grid.ErrNotFound)
		}
		return nil, fmt.Errorf("xlsx: open %s: %w", path, err)
	}
	return &Grid{file: f, path: path}, nil
}

// Create starts a new workbook containing the given sheet.
func Create(path, sheet string) (*Grid, error) {
	f := excelize.NewFile()
	if _, err := f.NewSheet(sheet); err != nil {
		return nil, fmt.Errorf("xlsx: create sheet %s: %w", sheet, err)
	}
	return &Grid{file: f, path: path}, nil
}

// Read returns the requested region. Empty cells come back nil; populated
// cells come back as their display string, which the engine coerces.
func (g *Grid) Read(ctx context.Context, rng grid.RangeSpec) ([][]grid.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if idx, err := g.file.GetSheetIndex(rng.Sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("xlsx: sheet %q: %w", rng.Sheet, grid.ErrNotFound)
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
		rows, err := g.file.GetRows(rng.Sheet)
		if err != nil {
			return nil, fmt.Errorf("xlsx: scan sheet %q: %w", rng.Sheet, err)
		}
		endRow = len(rows)
		if endRow < rng.StartRow {
			return [][]grid.Value{}, nil
		}
	}

	out := make([][]grid.Value, 0, endRow-rng.StartRow+1)
	for r := rng.StartRow; r <= endRow; r++ {
		row := make([]grid.Value, endCol-startCol+1)
		for c := startCol; c <= endCol; c++ {
			cell, err := excelize.CoordinatesToCellName(c, r)
			if err != nil {
				return nil, fmt.Errorf("xlsx: cell name (%d,%d): %w", c, r, err)
			}
			v, err := g.file.GetCellValue(rng.Sheet, cell)
			if err != nil {
				return nil, fmt.Errorf("xlsx: read %s!%s: %w", rng.Sheet, cell, err)
			}
			if v != "" {
				row[c-startCol] = v
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// Write stores the values matrix into the region.
func (g *Grid) Write(ctx context.Context, rng grid.RangeSpec, values [][]grid.Value) (grid.WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return grid.WriteResult{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if idx, err := g.file.GetSheetIndex(rng.Sheet); err != nil || idx < 0 {
		return grid.WriteResult{}, fmt.Errorf("xlsx: sheet %q: %w", rng.Sheet, grid.ErrNotFound)
	}

	startCol, err := grid.ColumnIndex(rng.StartCol)
	if err != nil {
		return grid.WriteResult{}, err
	}

	updated := 0
	for i, row := range values {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(startCol+j, rng.StartRow+i)
			if err != nil {
				return grid.WriteResult{}, fmt.Errorf("xlsx: cell name: %w", err)
			}
			if err := g.file.SetCellValue(rng.Sheet, cell, v); err != nil {
				return grid.WriteResult{}, fmt.Errorf("xlsx: write %s!%s: %w", rng.Sheet, cell, err)
			}
			updated++
		}
	}
	return grid.WriteResult{UpdatedCells: updated}, nil
}

// Save flushes the workbook to its path.
func (g *Grid) Save() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.file.SaveAs(g.path); err != nil {
		return fmt.Errorf("xlsx: save %s: %w", g.path, err)
	}
	return nil
}

// Close releases the workbook without saving.
func (g *Grid) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.file.Close()
}
