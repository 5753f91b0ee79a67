package reconcile

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// cmpDisplayPlaces is how many decimal places the report shows for
// weighted-average costs. Ledger cells always receive the full-precision
// value; rounding here is presentation only.
const cmpDisplayPlaces = 4

// BuildReport formats a run result as a multi-section text report suitable
// for direct display to an operator. Pure function of the result; no I/O.
func BuildReport(r Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Reconciliation run %s\n", r.RunID)
	if r.Fatal {
		b.WriteString("Status: ABORTED (ledger unreachable)\n")
	}
	fmt.Fprintf(&b, "Processed: %d  Updated: %d  Skipped: %d\n",
		r.Processed, r.Updated, r.Skipped)
	fmt.Fprintf(&b, "Writes: phase 1 %d/%d committed, phase 2 %d/%d committed\n",
		r.Phase1.Committed, r.Phase1.Attempted,
		r.Phase2.Committed, r.Phase2.Attempted)
	if r.Duration > 0 {
		fmt.Fprintf(&b, "Duration: %s\n", r.Duration)
	}

	if len(r.Updates) > 0 {
		b.WriteString("\nUpdated rows:\n")
		for _, u := range r.Updates {
			cmp := decimal.NewFromFloat(u.CMP).Round(cmpDisplayPlaces)
			fmt.Fprintf(&b, "  row %d  %s  CMP %s\n", u.Row, u.SKU, cmp)
		}
	}

	if len(r.NotFound) > 0 {
		b.WriteString("\nSKUs not found in ledger:\n")
		for _, s := range r.NotFound {
			fmt.Fprintf(&b, "  %s\n", s)
		}
	}

	if len(r.Ambiguous) > 0 {
		b.WriteString("\nAmbiguous SKUs (multiple ledger rows):\n")
		for _, s := range r.Ambiguous {
			fmt.Fprintf(&b, "  %s\n", s)
		}
	}

	if len(r.Errors) > 0 {
		b.WriteString("\nErrors:\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "  %s\n", e)
		}
	}

	return b.String()
}
