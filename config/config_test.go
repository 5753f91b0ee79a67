package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate(): %v", err)
	}
	if cfg.Sheet != "Stock" {
		t.Errorf("Sheet = %q, want Stock", cfg.Sheet)
	}
	if cfg.BatchSize != 10 {
		t.Errorf("BatchSize = %d, want 10", cfg.BatchSize)
	}
	if cfg.InterWriteDelay.Std() != 1100*time.Millisecond {
		t.Errorf("InterWriteDelay = %v, want 1.1s", cfg.InterWriteDelay.Std())
	}
}

func TestFromYAMLOverlay(t *testing.T) {
	doc := `
sheet: Inventory
first_data_row: 3
batch_size: 25
inter_write_delay: 500ms
settle_delay: 1s
columns:
  sku: B
  cmp: C
  prev_qty: D
  in_qty: E
  prev_price: F
  new_price: G
  shipping: H
retry:
  max_attempts: 5
  base_delay: 1s
  multiplier: 1.5
`
	cfg, err := FromYAML(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("FromYAML: %v", err)
	}
	if cfg.Sheet != "Inventory" {
		t.Errorf("Sheet = %q, want Inventory", cfg.Sheet)
	}
	if cfg.FirstDataRow != 3 {
		t.Errorf("FirstDataRow = %d, want 3", cfg.FirstDataRow)
	}
	if cfg.InterWriteDelay.Std() != 500*time.Millisecond {
		t.Errorf("InterWriteDelay = %v, want 500ms", cfg.InterWriteDelay.Std())
	}
	// Fields absent from the document keep their defaults.
	if cfg.InterBatchDelay.Std() != 5*time.Second {
		t.Errorf("InterBatchDelay = %v, want default 5s", cfg.InterBatchDelay.Std())
	}
	if cfg.Retry.MaxAttempts != 5 || cfg.Retry.Multiplier != 1.5 {
		t.Errorf("Retry = %+v, want overlay applied", cfg.Retry)
	}
	if cfg.Columns.SKU != "B" || cfg.Columns.Shipping != "H" {
		t.Errorf("Columns = %+v, want shifted layout", cfg.Columns)
	}
}

func TestFromYAMLEmptyKeepsDefaults(t *testing.T) {
	cfg, err := FromYAML(strings.NewReader(""))
	if err != nil {
		t.Fatalf("FromYAML: %v", err)
	}
	if cfg.Sheet != Default().Sheet {
		t.Errorf("empty document should yield defaults, got sheet %q", cfg.Sheet)
	}
}

func TestFromYAMLRejectsUnknownField(t *testing.T) {
	if _, err := FromYAML(strings.NewReader("shet: Typo\n")); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestFromYAMLRejectsBadDuration(t *testing.T) {
	if _, err := FromYAML(strings.NewReader("settle_delay: soon\n")); err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestFromEnvOverlay(t *testing.T) {
	t.Setenv("RECONCILE_SHEET", "Warehouse")
	t.Setenv("RECONCILE_BATCH_SIZE", "7")
	t.Setenv("RECONCILE_SETTLE_DELAY", "750ms")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Sheet != "Warehouse" {
		t.Errorf("Sheet = %q, want Warehouse", cfg.Sheet)
	}
	if cfg.BatchSize != 7 {
		t.Errorf("BatchSize = %d, want 7", cfg.BatchSize)
	}
	if cfg.SettleDelay.Std() != 750*time.Millisecond {
		t.Errorf("SettleDelay = %v, want 750ms", cfg.SettleDelay.Std())
	}
	if cfg.FirstDataRow != 2 {
		t.Errorf("FirstDataRow = %d, want default 2", cfg.FirstDataRow)
	}
}

func TestFromEnvRejectsBadValue(t *testing.T) {
	t.Setenv("RECONCILE_BATCH_SIZE", "lots")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for non-numeric batch size")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*LedgerConfig)
	}{
		{"empty sheet", func(c *LedgerConfig) { c.Sheet = "" }},
		{"duplicate column", func(c *LedgerConfig) { c.Columns.CMP = c.Columns.SKU }},
		{"bad column letter", func(c *LedgerConfig) { c.Columns.InQty = "4" }},
		{"zero first row", func(c *LedgerConfig) { c.FirstDataRow = 0 }},
		{"zero batch size", func(c *LedgerConfig) { c.BatchSize = 0 }},
		{"zero reread attempts", func(c *LedgerConfig) { c.RereadAttempts = 0 }},
		{"zero retry attempts", func(c *LedgerConfig) { c.Retry.MaxAttempts = 0 }},
		{"sub-unit multiplier", func(c *LedgerConfig) { c.Retry.Multiplier = 0.5 }},
		{"negative delay", func(c *LedgerConfig) { c.SettleDelay = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestColumnSpan(t *testing.T) {
	cfg := Default()
	first, last := cfg.ColumnSpan()
	if first != "A" || last != "G" {
		t.Errorf("ColumnSpan = %q..%q, want A..G", first, last)
	}

	cfg.Columns.Shipping = "Z"
	cfg.Columns.SKU = "C"
	cfg.Columns.CMP = "B"
	first, last = cfg.ColumnSpan()
	if first != "B" || last != "Z" {
		t.Errorf("ColumnSpan = %q..%q, want B..Z", first, last)
	}
}
