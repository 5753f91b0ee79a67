package id

import (
	"strings"
	"testing"
)

func TestNewRun(t *testing.T) {
	got := NewRun()
	if !strings.HasPrefix(got, "run_") {
		t.Errorf("NewRun() = %q, want run_ prefix", got)
	}
	if got == NewRun() {
		t.Error("two run ids must differ")
	}
}

func TestNewBatch(t *testing.T) {
	if got := NewBatch(); !strings.HasPrefix(got, "wb_") {
		t.Errorf("NewBatch() = %q, want wb_ prefix", got)
	}
}

func TestParse(t *testing.T) {
	got := NewRun()
	prefix, err := Parse(got)
	if err != nil {
		t.Fatalf("Parse(%q): %v", got, err)
	}
	if prefix != PrefixRun {
		t.Errorf("prefix = %q, want %q", prefix, PrefixRun)
	}
}

func TestNewInvalidPrefixPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for invalid prefix")
		}
	}()
	New("NOT VALID")
}

func TestParseInvalid(t *testing.T) {
	for _, s := range []string{"", "not a typeid", "run_"} {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q): expected error", s)
		}
	}
}
