// Package mongo provides a Grid backend on MongoDB: one document per
// populated cell, keyed by (sheet, row, column index). Throttled-tier
// clusters surface their quota refusals as code 16500, which this backend
// maps onto the grid rate-limit contract so the write pipeline retries.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/skuva/reconcile/grid"
)

const collection = "ledger_cells"

// codeTooManyRequests is the server error code throttled deployments
// return when the request unit budget is exhausted.
const codeTooManyRequests = 16500

type cellDoc struct {
	Sheet string     `bson:"sheet"`
	Row   int        `bson:"row"`
	Col   int        `bson:"col"`
	Value grid.Value `bson:"value"`
}

// Grid implements grid.Grid over a mongo database.
type Grid struct {
	col *mongo.Collection
}

// New wraps a database handle. The caller owns the client's lifecycle.
func New(db *mongo.Database) *Grid {
	return &Grid{col: db.Collection(collection)}
}

// Migrate creates the unique cell index.
func (g *Grid) Migrate(ctx context.Context) error {
	_, err := g.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "sheet", Value: 1},
			{Key: "row", Value: 1},
			{Key: "col", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo: migrate: %w", classify(err))
	}
	return nil
}

// Read returns the requested region. Cells with no stored document are nil.
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
		var last cellDoc
		err := g.col.FindOne(ctx,
			bson.M{"sheet": rng.Sheet},
			options.FindOne().SetSort(bson.D{{Key: "row", Value: -1}}),
		).Decode(&last)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return [][]grid.Value{}, nil
		case err != nil:
			return nil, fmt.Errorf("mongo: last row of %q: %w", rng.Sheet, classify(err))
		}
		endRow = last.Row
		if endRow < rng.StartRow {
			return [][]grid.Value{}, nil
		}
	}

	cur, err := g.col.Find(ctx, bson.M{
		"sheet": rng.Sheet,
		"row":   bson.M{"$gte": rng.StartRow, "$lte": endRow},
		"col":   bson.M{"$gte": startCol, "$lte": endCol},
	})
	if err != nil {
		return nil, fmt.Errorf("mongo: read %s: %w", rng.String(), classify(err))
	}
	defer cur.Close(ctx)

	out := make([][]grid.Value, endRow-rng.StartRow+1)
	for i := range out {
		out[i] = make([]grid.Value, endCol-startCol+1)
	}
	for cur.Next(ctx) {
		var doc cellDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo: decode cell: %w", err)
		}
		out[doc.Row-rng.StartRow][doc.Col-startCol] = doc.Value
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongo: read %s: %w", rng.String(), classify(err))
	}
	return out, nil
}

// Write upserts the values matrix. Nil values delete the cell document.
func (g *Grid) Write(ctx context.Context, rng grid.RangeSpec, values [][]grid.Value) (grid.WriteResult, error) {
	startCol, err := grid.ColumnIndex(rng.StartCol)
	if err != nil {
		return grid.WriteResult{}, err
	}

	updated := 0
	for i, row := range values {
		for j, v := range row {
			filter := bson.M{"sheet": rng.Sheet, "row": rng.StartRow + i, "col": startCol + j}
			if v == nil {
				if _, err := g.col.DeleteOne(ctx, filter); err != nil {
					return grid.WriteResult{}, fmt.Errorf("mongo: clear cell: %w", classify(err))
				}
			} else {
				_, err := g.col.UpdateOne(ctx, filter,
					bson.M{"$set": bson.M{"value": v}},
					options.UpdateOne().SetUpsert(true))
				if err != nil {
					return grid.WriteResult{}, fmt.Errorf("mongo: write %s: %w", rng.String(), classify(err))
				}
			}
			updated++
		}
	}
	return grid.WriteResult{UpdatedCells: updated}, nil
}

// classify maps driver errors onto the grid error contract.
func classify(err error) error {
	var se mongo.ServerError
	if errors.As(err, &se) {
		if se.HasErrorCode(codeTooManyRequests) {
			return fmt.Errorf("%w: %v", grid.ErrRateLimited, err)
		}
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", grid.ErrUnreachable, err)
}
