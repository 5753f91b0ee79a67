// Package postgres provides a Grid backend on PostgreSQL: one row per
// populated cell, keyed by (sheet, row, column index). It suits
// deployments that mirror the hosted ledger into a database the engine
// can reach without per-request quotas.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skuva/reconcile/grid"
)

const table = "ledger_cells"

// Grid implements grid.Grid over a pgx connection pool.
type Grid struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool. The caller owns the pool's lifecycle.
func New(pool *pgxpool.Pool) *Grid {
	return &Grid{pool: pool}
}

// Migrate creates the cell table and its primary key if missing.
func (g *Grid) Migrate(ctx context.Context) error {
	_, err := g.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+table+` (
			sheet   TEXT NOT NULL,
			row_idx INT  NOT NULL,
			col_idx INT  NOT NULL,
			value   TEXT NOT NULL,
			PRIMARY KEY (sheet, row_idx, col_idx)
		)`)
	if err != nil {
		return fmt.Errorf("postgres: migrate: %w", classify(err))
	}
	return nil
}

// Ping checks connectivity.
func (g *Grid) Ping(ctx context.Context) error {
	if err := g.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", classify(err))
	}
	return nil
}

// Read returns the requested region. Cells with no stored value are nil.
func (g *Grid) Read(ctx context.Context, rng grid.RangeSpec) ([][]grid.Value, error) {
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
		err := g.pool.QueryRow(ctx,
			`SELECT COALESCE(MAX(row_idx), 0) FROM `+table+` WHERE sheet = $1`,
			rng.Sheet,
		).Scan(&endRow)
		if err != nil {
			return nil, fmt.Errorf("postgres: last row of %q: %w", rng.Sheet, classify(err))
		}
		if endRow < rng.StartRow {
			return [][]grid.Value{}, nil
		}
	}

	rows, err := g.pool.Query(ctx,
		`SELECT row_idx, col_idx, value FROM `+table+`
		 WHERE sheet = $1 AND row_idx BETWEEN $2 AND $3 AND col_idx BETWEEN $4 AND $5`,
		rng.Sheet, rng.StartRow, endRow, startCol, endCol)
	if err != nil {
		return nil, fmt.Errorf("postgres: read %s: %w", rng.String(), classify(err))
	}
	defer rows.Close()

	out := make([][]grid.Value, endRow-rng.StartRow+1)
	for i := range out {
		out[i] = make([]grid.Value, endCol-startCol+1)
	}
	for rows.Next() {
		var r, c int
		var v string
		if err := rows.Scan(&r, &c, &v); err != nil {
			return nil, fmt.Errorf("postgres: scan cell: %w", err)
		}
		out[r-rng.StartRow][c-startCol] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: read %s: %w", rng.String(), classify(err))
	}
	return out, nil
}

// Write upserts the values matrix. Nil values delete the cell so it reads
// back as empty.
func (g *Grid) Write(ctx context.Context, rng grid.RangeSpec, values [][]grid.Value) (grid.WriteResult, error) {
	startCol, err := grid.ColumnIndex(rng.StartCol)
	if err != nil {
		return grid.WriteResult{}, err
	}

	b := &pgx.Batch{}
	count := 0
	for i, row := range values {
		for j, v := range row {
			r, c := rng.StartRow+i, startCol+j
			if v == nil {
				b.Queue(`DELETE FROM `+table+` WHERE sheet=$1 AND row_idx=$2 AND col_idx=$3`,
					rng.Sheet, r, c)
			} else {
				b.Queue(`INSERT INTO `+table+` (sheet, row_idx, col_idx, value)
					 VALUES ($1, $2, $3, $4)
					 ON CONFLICT (sheet, row_idx, col_idx) DO UPDATE SET value = EXCLUDED.value`,
					rng.Sheet, r, c, formatValue(v))
			}
			count++
		}
	}

	res := g.pool.SendBatch(ctx, b)
	defer res.Close()
	for i := 0; i < count; i++ {
		if _, err := res.Exec(); err != nil {
			return grid.WriteResult{}, fmt.Errorf("postgres: write %s: %w", rng.String(), classify(err))
		}
	}
	return grid.WriteResult{UpdatedCells: count}, nil
}

// formatValue renders a scalar the way the hosted ledger would display it.
func formatValue(v grid.Value) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// classify maps driver errors onto the grid error contract: quota-style
// server refusals become ErrRateLimited, anything the server never
// answered becomes ErrUnreachable.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 53: insufficient resources (connection/quota exhaustion).
		if len(pgErr.Code) >= 2 && pgErr.Code[:2] == "53" {
			return fmt.Errorf("%w: %v", grid.ErrRateLimited, err)
		}
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", grid.ErrUnreachable, err)
}
