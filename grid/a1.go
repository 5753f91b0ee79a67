package grid

import (
	"fmt"
	"strings"
)

// ColumnIndex converts a column letter ("A", "H", "AA") to its 1-based
// index. Returns an error for empty or non-alphabetic input.
func ColumnIndex(col string) (int, error) {
	if col == "" {
		return 0, fmt.Errorf("grid: empty column letter")
	}
	n := 0
	for _, r := range strings.ToUpper(col) {
		if r < 'A' || r > 'Z' {
			return 0, fmt.Errorf("grid: invalid column letter %q", col)
		}
		n = n*26 + int(r-'A'+1)
	}
	return n, nil
}

// ColumnName converts a 1-based column index to its letter form.
// ColumnName(1) == "A", ColumnName(28) == "AB".
func ColumnName(idx int) (string, error) {
	if idx < 1 {
		return "", fmt.Errorf("grid: invalid column index %d", idx)
	}
	var b []byte
	for idx > 0 {
		idx--
		b = append([]byte{byte('A' + idx%26)}, b...)
		idx /= 26
	}
	return string(b), nil
}

// MustColumnIndex is ColumnIndex for column letters known valid at the call
// site (validated configuration). Panics on invalid input.
func MustColumnIndex(col string) int {
	n, err := ColumnIndex(col)
	if err != nil {
		panic(err)
	}
	return n
}
