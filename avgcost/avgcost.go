// Package avgcost computes the running weighted-average unit cost (CMP) of
// a product after blending existing stock with an incoming shipment.
package avgcost

// Blend returns the new weighted-average unit cost given the previous
// quantity and price on hand and the incoming quantity and price.
//
// When there is history to blend against (prevPrice known and prevQty > 0)
// the result is (prevQty*prevPrice + inQty*inPrice) / (prevQty + inQty).
// Otherwise the incoming price passes through unchanged (first import).
//
// No rounding is applied at any point; presentation rounding is the
// caller's concern. The caller must also reject non-finite results;
// Blend does not guard against a zero or negative denominator.
func Blend(prevQty float64, prevPrice *float64, inQty, inPrice float64) float64 {
	if prevPrice != nil && prevQty > 0 {
		return (prevQty**prevPrice + inQty*inPrice) / (prevQty + inQty)
	}
	return inPrice
}
