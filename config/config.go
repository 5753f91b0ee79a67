// Package config defines the immutable description of the ledger's shape
// and the run-time pacing knobs of the reconciliation engine. A
// LedgerConfig is loaded once per run from defaults, a YAML document, or
// the environment, then validated and passed by value; nothing reads
// configuration ad hoc mid-run.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/skuva/reconcile/grid"
	"github.com/skuva/reconcile/sku"
)

// Duration wraps time.Duration with YAML support for "2s" style strings.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Columns holds the ledger column letters for each tracked field.
type Columns struct {
	SKU       string `yaml:"sku"`
	CMP       string `yaml:"cmp"`
	PrevQty   string `yaml:"prev_qty"`
	InQty     string `yaml:"in_qty"`
	PrevPrice string `yaml:"prev_price"`
	NewPrice  string `yaml:"new_price"`
	Shipping  string `yaml:"shipping"`
}

// all returns the column letters in a fixed order for validation and
// range spanning.
func (c Columns) all() []string {
	return []string{c.SKU, c.CMP, c.PrevQty, c.InQty, c.PrevPrice, c.NewPrice, c.Shipping}
}

// Normalization configures SKU canonicalization.
type Normalization struct {
	Uppercase      bool   `yaml:"uppercase"`
	CollapseSpaces bool   `yaml:"collapse_spaces"`
	SplitPattern   string `yaml:"split_pattern"`
}

// Rules converts to the sku package's rule set.
func (n Normalization) Rules() sku.Rules {
	return sku.Rules{
		Uppercase:      n.Uppercase,
		CollapseSpaces: n.CollapseSpaces,
		SplitPattern:   n.SplitPattern,
	}
}

// Retry configures the exponential backoff applied to rate-limited writes.
type Retry struct {
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
	Multiplier  float64  `yaml:"multiplier"`
}

// LedgerConfig is the static description of the ledger plus the pacing
// parameters of the write pipeline and the two-phase protocol.
type LedgerConfig struct {
	Sheet         string        `yaml:"sheet"`
	Columns       Columns       `yaml:"columns"`
	FirstDataRow  int           `yaml:"first_data_row"`
	BatchSize     int           `yaml:"batch_size"`
	Normalization Normalization `yaml:"normalization"`

	InterWriteDelay Duration `yaml:"inter_write_delay"`
	InterBatchDelay Duration `yaml:"inter_batch_delay"`
	SettleDelay     Duration `yaml:"settle_delay"`
	RereadAttempts  int      `yaml:"reread_attempts"`
	Retry           Retry    `yaml:"retry"`
}

// Default returns the configuration matching the hosted ledger this engine
// was built against: one product per row starting at row 2, throttled
// batches of ten writes, and a two second settle window between phases.
func Default() LedgerConfig {
	return LedgerConfig{
		Sheet: "Stock",
		Columns: Columns{
			SKU:       "A",
			CMP:       "B",
			PrevQty:   "C",
			InQty:     "D",
			PrevPrice: "E",
			NewPrice:  "F",
			Shipping:  "G",
		},
		FirstDataRow: 2,
		BatchSize:    10,
		Normalization: Normalization{
			Uppercase:      true,
			CollapseSpaces: true,
			SplitPattern:   sku.DefaultSplitPattern,
		},
		InterWriteDelay: Duration(1100 * time.Millisecond),
		InterBatchDelay: Duration(5 * time.Second),
		SettleDelay:     Duration(2 * time.Second),
		RereadAttempts:  3,
		Retry: Retry{
			MaxAttempts: 3,
			BaseDelay:   Duration(2 * time.Second),
			Multiplier:  2,
		},
	}
}

// FromYAML overlays a YAML document on the defaults.
func FromYAML(r io.Reader) (LedgerConfig, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return LedgerConfig{}, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return LedgerConfig{}, err
	}
	return cfg, nil
}

// FromYAMLFile loads a YAML configuration file over the defaults.
func FromYAMLFile(path string) (LedgerConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return LedgerConfig{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return FromYAML(f)
}

// FromEnv overlays RECONCILE_* environment variables on the defaults.
// A .env file in the working directory is loaded first if present; a
// missing file is not an error.
func FromEnv() (LedgerConfig, error) {
	_ = godotenv.Load()

	cfg := Default()
	setStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	var envErr error
	setInt := func(key string, dst *int) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil && envErr == nil {
			envErr = fmt.Errorf("config: %s=%q: %w", key, v, err)
			return
		}
		*dst = n
	}
	setDur := func(key string, dst *Duration) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil && envErr == nil {
			envErr = fmt.Errorf("config: %s=%q: %w", key, v, err)
			return
		}
		*dst = Duration(d)
	}

	setStr("RECONCILE_SHEET", &cfg.Sheet)
	setStr("RECONCILE_COL_SKU", &cfg.Columns.SKU)
	setStr("RECONCILE_COL_CMP", &cfg.Columns.CMP)
	setStr("RECONCILE_COL_PREV_QTY", &cfg.Columns.PrevQty)
	setStr("RECONCILE_COL_IN_QTY", &cfg.Columns.InQty)
	setStr("RECONCILE_COL_PREV_PRICE", &cfg.Columns.PrevPrice)
	setStr("RECONCILE_COL_NEW_PRICE", &cfg.Columns.NewPrice)
	setStr("RECONCILE_COL_SHIPPING", &cfg.Columns.Shipping)
	setStr("RECONCILE_SPLIT_PATTERN", &cfg.Normalization.SplitPattern)
	setInt("RECONCILE_FIRST_DATA_ROW", &cfg.FirstDataRow)
	setInt("RECONCILE_BATCH_SIZE", &cfg.BatchSize)
	setInt("RECONCILE_REREAD_ATTEMPTS", &cfg.RereadAttempts)
	setInt("RECONCILE_RETRY_MAX_ATTEMPTS", &cfg.Retry.MaxAttempts)
	setDur("RECONCILE_INTER_WRITE_DELAY", &cfg.InterWriteDelay)
	setDur("RECONCILE_INTER_BATCH_DELAY", &cfg.InterBatchDelay)
	setDur("RECONCILE_SETTLE_DELAY", &cfg.SettleDelay)
	setDur("RECONCILE_RETRY_BASE_DELAY", &cfg.Retry.BaseDelay)

	if envErr != nil {
		return LedgerConfig{}, envErr
	}
	if err := cfg.Validate(); err != nil {
		return LedgerConfig{}, err
	}
	return cfg, nil
}

// Validate checks internal consistency. A valid config has a sheet name,
// seven distinct well-formed column letters, a positive first data row,
// a positive batch size, and a sane retry policy.
func (c LedgerConfig) Validate() error {
	if c.Sheet == "" {
		return fmt.Errorf("config: sheet name is required")
	}
	seen := make(map[int]string, 7)
	for _, col := range c.Columns.all() {
		idx, err := grid.ColumnIndex(col)
		if err != nil {
			return err
		}
		if other, dup := seen[idx]; dup {
			return fmt.Errorf("config: column %q assigned twice (also %q)", col, other)
		}
		seen[idx] = col
	}
	if c.FirstDataRow < 1 {
		return fmt.Errorf("config: first_data_row must be >= 1, got %d", c.FirstDataRow)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("config: batch_size must be >= 1, got %d", c.BatchSize)
	}
	if c.RereadAttempts < 1 {
		return fmt.Errorf("config: reread_attempts must be >= 1, got %d", c.RereadAttempts)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("config: retry.max_attempts must be >= 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("config: retry.multiplier must be >= 1, got %g", c.Retry.Multiplier)
	}
	if c.InterWriteDelay < 0 || c.InterBatchDelay < 0 || c.SettleDelay < 0 || c.Retry.BaseDelay < 0 {
		return fmt.Errorf("config: delays must not be negative")
	}
	return nil
}

// ColumnSpan returns the leftmost and rightmost configured column letters,
// i.e. the horizontal extent of the range the engine reads.
func (c LedgerConfig) ColumnSpan() (string, string) {
	first, last := "", ""
	firstIdx, lastIdx := 0, 0
	for _, col := range c.Columns.all() {
		idx := grid.MustColumnIndex(col)
		if first == "" || idx < firstIdx {
			first, firstIdx = col, idx
		}
		if last == "" || idx > lastIdx {
			last, lastIdx = col, idx
		}
	}
	return first, last
}
