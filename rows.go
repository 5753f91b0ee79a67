package reconcile

import (
	"strconv"
	"strings"

	"github.com/skuva/reconcile/config"
	"github.com/skuva/reconcile/grid"
	"github.com/skuva/reconcile/sku"
)

// ledgerRow is a read-only projection of one ledger row at a point in
// time. Numeric fields are nil when the cell is empty or unparsable.
type ledgerRow struct {
	Row          int
	SKURaw       string
	InventoryKey string
	CMP          *float64
	PrevQty      *float64
	InQty        *float64
	PrevPrice    *float64
	PriceNew     *float64
}

// snapshot projects the raw range matrix into ledger rows. The matrix
// spans the configured column range starting at FirstDataRow; the
// inventory key is the first SKU token of the row's SKU cell.
func snapshot(matrix [][]grid.Value, cfg config.LedgerConfig, splitter *sku.Splitter) []ledgerRow {
	firstCol, _ := cfg.ColumnSpan()
	base := grid.MustColumnIndex(firstCol)
	at := func(row []grid.Value, col string) grid.Value {
		i := grid.MustColumnIndex(col) - base
		if i < 0 || i >= len(row) {
			return nil
		}
		return row[i]
	}

	rows := make([]ledgerRow, 0, len(matrix))
	for i, raw := range matrix {
		r := ledgerRow{
			Row:       cfg.FirstDataRow + i,
			SKURaw:    asString(at(raw, cfg.Columns.SKU)),
			CMP:       toFloat(at(raw, cfg.Columns.CMP)),
			PrevQty:   toFloat(at(raw, cfg.Columns.PrevQty)),
			InQty:     toFloat(at(raw, cfg.Columns.InQty)),
			PrevPrice: toFloat(at(raw, cfg.Columns.PrevPrice)),
			PriceNew:  toFloat(at(raw, cfg.Columns.NewPrice)),
		}
		if tokens := splitter.Tokens(r.SKURaw); len(tokens) > 0 {
			r.InventoryKey = tokens[0]
		}
		rows = append(rows, r)
	}
	return rows
}

// asString renders a cell value as its raw text.
func asString(v grid.Value) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

// toFloat coerces a cell value to a float, accepting the ledger's display
// strings including European decimal commas ("3,2") and thousands
// separators ("1,234.50"). Empty or unparsable cells are nil.
func toFloat(v grid.Value) *float64 {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		return &t
	case float32:
		f := float64(t)
		return &f
	case int:
		f := float64(t)
		return &f
	case int64:
		f := float64(t)
		return &f
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		if strings.Contains(s, ",") {
			if strings.Contains(s, ".") {
				s = strings.ReplaceAll(s, ",", "")
			} else {
				s = strings.ReplaceAll(s, ",", ".")
			}
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
