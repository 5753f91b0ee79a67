// Package item defines the parsed invoice line item consumed by the
// reconciliation engine and the shipping fee allocation applied to a batch
// of items before processing.
package item

// Item is one parsed invoice line. The extraction layer supplies SKU,
// Quantity and UnitPrice; ShippingPerUnit is derived by AllocateShipping
// and must not be set by the caller.
type Item struct {
	SKU             string
	Quantity        float64
	UnitPrice       float64
	ShippingPerUnit float64
}

// TotalQuantity sums the quantities of all items.
func TotalQuantity(items []Item) float64 {
	var total float64
	for _, it := range items {
		total += it.Quantity
	}
	return total
}

// AllocateShipping spreads an invoice-level shipping fee evenly over every
// invoiced unit and returns a copy of the items with ShippingPerUnit set.
// The allocation is uniform, not apportioned by price or weight, so
// sum(ShippingPerUnit*Quantity) recovers the fee up to float rounding.
// A zero total quantity allocates nothing.
func AllocateShipping(items []Item, fee float64) []Item {
	perUnit := 0.0
	if total := TotalQuantity(items); total > 0 {
		perUnit = fee / total
	}

	out := make([]Item, len(items))
	for i, it := range items {
		it.ShippingPerUnit = perUnit
		out[i] = it
	}
	return out
}
