package batch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/skuva/reconcile/grid"
	"github.com/skuva/reconcile/grid/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func cellWrites(sheet string, col string, startRow int, values ...grid.Value) []Write {
	writes := make([]Write, len(values))
	for i, v := range values {
		writes[i] = Write{Cell: grid.Cell(sheet, col, startRow+i), Value: v}
	}
	return writes
}

func TestCommitSequentialWithPacing(t *testing.T) {
	g := memory.New()
	clock := NewManualClock()
	p := New(g,
		WithClock(clock),
		WithLogger(testLogger()),
		WithBatchSize(2),
		WithDelays(time.Second, 5*time.Second),
	)

	sum, err := p.Commit(context.Background(), cellWrites("Stock", "C", 2, 1.0, 2.0, 3.0))
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if sum.Attempted != 3 || sum.Committed != 3 || sum.Skipped != 0 {
		t.Errorf("summary = %+v, want 3 attempted, 3 committed", sum)
	}
	if sum.Batches != 2 {
		t.Errorf("Batches = %d, want 2", sum.Batches)
	}
	for i, want := range []grid.Value{1.0, 2.0, 3.0} {
		if got := g.Cell("Stock", "C", 2+i); got != want {
			t.Errorf("cell C%d = %v, want %v", 2+i, got, want)
		}
	}

	// One pause after each write, plus the long pause between batches.
	want := []time.Duration{time.Second, time.Second, 5 * time.Second, time.Second}
	got := clock.Sleeps()
	if len(got) != len(want) {
		t.Fatalf("sleeps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCommitSkipsNilValues(t *testing.T) {
	g := memory.New()
	clock := NewManualClock()
	p := New(g, WithClock(clock), WithLogger(testLogger()))

	sum, err := p.Commit(context.Background(), cellWrites("S", "A", 1, 1.0, nil, 2.0))
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if sum.Attempted != 2 || sum.Committed != 2 || sum.Skipped != 1 {
		t.Errorf("summary = %+v, want 2 attempted, 1 skipped", sum)
	}
	if g.WriteCalls() != 2 {
		t.Errorf("WriteCalls = %d, want 2", g.WriteCalls())
	}
}

func TestCommitRetriesRateLimit(t *testing.T) {
	g := memory.New()
	clock := NewManualClock()
	p := New(g,
		WithClock(clock),
		WithLogger(testLogger()),
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second, Multiplier: 2}),
		WithDelays(time.Second, 5*time.Second),
	)
	g.RateLimitNext(2)

	var outcomes []Outcome
	p.observer = observerFunc(func(o Outcome) { outcomes = append(outcomes, o) })

	sum, err := p.Commit(context.Background(), cellWrites("S", "A", 1, 7.0))
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if sum.Committed != 1 || len(sum.Failures) != 0 {
		t.Fatalf("summary = %+v, want 1 committed", sum)
	}
	if len(outcomes) != 1 || outcomes[0].Attempts != 3 {
		t.Fatalf("outcomes = %+v, want one outcome with 3 attempts", outcomes)
	}

	// Two exponential backoffs, then the normal inter-write pause.
	want := []time.Duration{2 * time.Second, 4 * time.Second, time.Second}
	got := clock.Sleeps()
	if len(got) != len(want) {
		t.Fatalf("sleeps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCommitRateLimitExhaustsAttempts(t *testing.T) {
	g := memory.New()
	p := New(g,
		WithClock(NewManualClock()),
		WithLogger(testLogger()),
		WithRetryPolicy(RetryPolicy{MaxAttempts: 2, BaseDelay: time.Second, Multiplier: 2}),
	)
	g.RateLimitNext(5)

	sum, err := p.Commit(context.Background(), cellWrites("S", "A", 1, 1.0))
	if err != nil {
		t.Fatalf("Commit should not fail the whole run: %v", err)
	}
	if sum.Committed != 0 || len(sum.Failures) != 1 {
		t.Fatalf("summary = %+v, want 1 failure", sum)
	}
	if !grid.IsRateLimited(sum.Failures[0].Err) {
		t.Errorf("failure error = %v, want ErrRateLimited", sum.Failures[0].Err)
	}
	if g.WriteCalls() != 2 {
		t.Errorf("WriteCalls = %d, want 2", g.WriteCalls())
	}
}

func TestCommitIsolatesCellFailures(t *testing.T) {
	g := memory.New()
	p := New(g, WithClock(NewManualClock()), WithLogger(testLogger()))
	boom := errors.New("boom")
	g.FailCell("S!A2", boom)

	sum, err := p.Commit(context.Background(), cellWrites("S", "A", 1, 1.0, 2.0, 3.0))
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if sum.Committed != 2 || len(sum.Failures) != 1 {
		t.Fatalf("summary = %+v, want 2 committed, 1 failure", sum)
	}
	if sum.Failures[0].Cell != "S!A2" {
		t.Errorf("failed cell = %q, want S!A2", sum.Failures[0].Cell)
	}
	if g.Cell("S", "A", 3) != 3.0 {
		t.Error("write after the failing cell should still commit")
	}
}

func TestCommitAbortsOnUnreachable(t *testing.T) {
	g := memory.New()
	p := New(g, WithClock(NewManualClock()), WithLogger(testLogger()))

	committed := 0
	p.observer = observerFunc(func(o Outcome) {
		if o.Err == nil && !o.Skipped {
			committed++
		}
		if committed == 1 {
			g.SetUnreachable(true)
		}
	})

	sum, err := p.Commit(context.Background(), cellWrites("S", "A", 1, 1.0, 2.0, 3.0))
	if !grid.IsUnreachable(err) {
		t.Fatalf("Commit: got %v, want ErrUnreachable", err)
	}
	if sum.Committed != 1 {
		t.Errorf("Committed = %d, want 1 before the abort", sum.Committed)
	}
}

func TestCommitHonorsContextCancellation(t *testing.T) {
	g := memory.New()
	p := New(g, WithClock(NewManualClock()), WithLogger(testLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Commit(ctx, cellWrites("S", "A", 1, 1.0))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Commit: got %v, want context.Canceled", err)
	}
}

func TestCommitEmpty(t *testing.T) {
	p := New(memory.New(), WithClock(NewManualClock()), WithLogger(testLogger()))
	sum, err := p.Commit(context.Background(), nil)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if sum.Batches != 0 || sum.Attempted != 0 {
		t.Errorf("summary = %+v, want empty", sum)
	}
}

// observerFunc adapts a function to the Observer interface.
type observerFunc func(Outcome)

func (f observerFunc) WriteCompleted(o Outcome) { f(o) }
