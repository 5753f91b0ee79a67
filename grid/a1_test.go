package grid

import "testing"

func TestColumnIndex(t *testing.T) {
	tests := []struct {
		col  string
		want int
	}{
		{"A", 1},
		{"B", 2},
		{"Z", 26},
		{"AA", 27},
		{"AB", 28},
		{"AZ", 52},
		{"BA", 53},
		{"ZZ", 702},
		{"a", 1}, // case-insensitive
	}

	for _, tt := range tests {
		t.Run(tt.col, func(t *testing.T) {
			got, err := ColumnIndex(tt.col)
			if err != nil {
				t.Fatalf("ColumnIndex(%q): %v", tt.col, err)
			}
			if got != tt.want {
				t.Errorf("ColumnIndex(%q) = %d, want %d", tt.col, got, tt.want)
			}
		})
	}
}

func TestColumnIndexInvalid(t *testing.T) {
	for _, col := range []string{"", "1", "A1", "A-B", " A"} {
		if _, err := ColumnIndex(col); err == nil {
			t.Errorf("ColumnIndex(%q): expected error", col)
		}
	}
}

func TestColumnName(t *testing.T) {
	tests := []struct {
		idx  int
		want string
	}{
		{1, "A"},
		{26, "Z"},
		{27, "AA"},
		{28, "AB"},
		{702, "ZZ"},
		{703, "AAA"},
	}

	for _, tt := range tests {
		got, err := ColumnName(tt.idx)
		if err != nil {
			t.Fatalf("ColumnName(%d): %v", tt.idx, err)
		}
		if got != tt.want {
			t.Errorf("ColumnName(%d) = %q, want %q", tt.idx, got, tt.want)
		}
	}
	if _, err := ColumnName(0); err == nil {
		t.Error("ColumnName(0): expected error")
	}
}

func TestColumnRoundTrip(t *testing.T) {
	for idx := 1; idx <= 800; idx++ {
		name, err := ColumnName(idx)
		if err != nil {
			t.Fatalf("ColumnName(%d): %v", idx, err)
		}
		back, err := ColumnIndex(name)
		if err != nil {
			t.Fatalf("ColumnIndex(%q): %v", name, err)
		}
		if back != idx {
			t.Fatalf("round trip %d -> %q -> %d", idx, name, back)
		}
	}
}

func TestRangeSpecString(t *testing.T) {
	tests := []struct {
		name string
		rng  RangeSpec
		want string
	}{
		{"cell", Cell("Stock", "A", 5), "Stock!A5"},
		{"open range", Span("Stock", "B", "H", 2), "Stock!B2:H"},
		{"closed range", RangeSpec{Sheet: "Stock", StartCol: "B", StartRow: 2, EndCol: "H", EndRow: 100}, "Stock!B2:H100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rng.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRangeSpecIsCell(t *testing.T) {
	if !Cell("S", "A", 1).IsCell() {
		t.Error("Cell should report IsCell")
	}
	if Span("S", "A", "B", 1).IsCell() {
		t.Error("open span should not report IsCell")
	}
	if (RangeSpec{Sheet: "S", StartCol: "A", StartRow: 1, EndCol: "A"}).IsCell() {
		t.Error("open-ended single column should not report IsCell")
	}
}
