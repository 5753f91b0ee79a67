// Package sku canonicalizes raw SKU strings and indexes the ledger's SKU
// column so invoice line items can be matched to rows deterministically.
package sku

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultSplitPattern separates multiple SKUs inside one ledger cell.
// Co-packed and bundled products legitimately list several SKUs per row.
const DefaultSplitPattern = `[,;/|]`

// Rules controls normalization. The zero value trims only.
type Rules struct {
	Uppercase      bool
	CollapseSpaces bool
	SplitPattern   string
}

var spaceRuns = regexp.MustCompile(`\s+`)

// Normalize canonicalizes a raw SKU. It is pure, deterministic, and
// idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string, r Rules) string {
	s := strings.TrimSpace(raw)
	if r.CollapseSpaces {
		s = spaceRuns.ReplaceAllString(s, " ")
	}
	if r.Uppercase {
		s = strings.ToUpper(s)
	}
	return s
}

// Splitter tokenizes a multi-SKU ledger cell under a fixed rule set.
type Splitter struct {
	re    *regexp.Regexp
	rules Rules
}

// NewSplitter compiles the rule set's delimiter pattern, falling back to
// DefaultSplitPattern when none is configured.
func NewSplitter(rules Rules) (*Splitter, error) {
	pattern := rules.SplitPattern
	if pattern == "" {
		pattern = DefaultSplitPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("sku: invalid split pattern %q: %w", pattern, err)
	}
	return &Splitter{re: re, rules: rules}, nil
}

// Tokens splits a raw cell into its normalized non-empty SKU tokens.
func (s *Splitter) Tokens(cell string) []string {
	var out []string
	for _, token := range s.re.Split(cell, -1) {
		if norm := Normalize(token, s.rules); norm != "" {
			out = append(out, norm)
		}
	}
	return out
}

// Normalize applies the splitter's rule set to a single raw SKU.
func (s *Splitter) Normalize(raw string) string {
	return Normalize(raw, s.rules)
}

// Index maps normalized SKUs to the ledger rows that claim them.
type Index struct {
	rows     map[string][]int
	splitter *Splitter
}

// BuildIndex builds the SKU index from one read of the SKU column.
// column holds the raw cell text of consecutive rows starting at firstRow.
// Each cell is split on the configured delimiter pattern and every
// non-empty normalized token maps to that row. Tokens are not deduplicated
// across rows: a SKU claimed by two rows is ambiguous by design.
func BuildIndex(column []string, firstRow int, rules Rules) (*Index, error) {
	splitter, err := NewSplitter(rules)
	if err != nil {
		return nil, err
	}

	idx := &Index{rows: make(map[string][]int), splitter: splitter}
	for i, cell := range column {
		row := firstRow + i
		for _, token := range splitter.Tokens(cell) {
			idx.rows[token] = append(idx.rows[token], row)
		}
	}
	return idx, nil
}

// Rows returns the ledger rows claiming the given raw SKU, normalizing it
// first. Zero rows means not found; more than one means ambiguous.
func (x *Index) Rows(raw string) []int {
	return x.rows[x.splitter.Normalize(raw)]
}

// Splitter returns the splitter the index was built with.
func (x *Index) Splitter() *Splitter {
	return x.splitter
}

// Len returns the number of distinct normalized SKUs indexed.
func (x *Index) Len() int {
	return len(x.rows)
}
