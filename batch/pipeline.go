// Package batch turns an ordered list of pending single-cell writes into
// committed ledger state while staying under the backend's request-rate
// ceiling: bounded batches, strictly sequential writes with an inter-write
// delay, exponential-backoff retries on rate-limit responses, and per-cell
// failure isolation. Only hard transport failure aborts a commit.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/skuva/reconcile/grid"
	"github.com/skuva/reconcile/id"
)

// Write is one pending cell write. A nil Value marks the write as a
// no-op: it is skipped, not attempted, and not counted as a failure.
type Write struct {
	Cell  grid.RangeSpec
	Value grid.Value
}

// Outcome records what happened to one pending write, for observability.
type Outcome struct {
	Batch        string
	Cell         string
	Value        grid.Value
	Attempts     int
	UpdatedCells int
	Skipped      bool
	Err          error
}

// Failure identifies a cell that could not be committed.
type Failure struct {
	Cell string
	Err  error
}

func (f Failure) String() string {
	return fmt.Sprintf("write %s: %v", f.Cell, f.Err)
}

// Summary aggregates a whole Commit call.
type Summary struct {
	Attempted int
	Committed int
	Skipped   int
	Batches   int
	Failures  []Failure
}

// Observer receives the outcome of every pending write, including skipped
// ones. Implementations must be fast; they run inline on the pipeline.
type Observer interface {
	WriteCompleted(Outcome)
}

// Pipeline commits pending writes against a grid.Writer.
type Pipeline struct {
	writer   grid.Writer
	clock    Clock
	logger   *slog.Logger
	policy   RetryPolicy
	size     int
	interW   time.Duration
	interB   time.Duration
	observer Observer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock used for all pacing and backoff sleeps.
func WithClock(c Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithRetryPolicy sets the rate-limit retry policy.
func WithRetryPolicy(rp RetryPolicy) Option {
	return func(p *Pipeline) { p.policy = rp }
}

// WithBatchSize bounds how many writes share one throttling window.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.size = n
		}
	}
}

// WithDelays sets the pause after each write and the longer pause between
// batches.
func WithDelays(interWrite, interBatch time.Duration) Option {
	return func(p *Pipeline) {
		p.interW = interWrite
		p.interB = interBatch
	}
}

// WithObserver registers an outcome observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// New creates a Pipeline with the hosted ledger's default pacing.
func New(w grid.Writer, opts ...Option) *Pipeline {
	p := &Pipeline{
		writer: w,
		clock:  SystemClock(),
		logger: slog.Default(),
		policy: DefaultRetryPolicy(),
		size:   10,
		interW: 1100 * time.Millisecond,
		interB: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Commit executes the pending writes in order. Individual write failures
// are recorded in the summary and do not stop the commit; the returned
// error is non-nil only when the backend is unreachable or the context is
// canceled, in which case the summary covers the writes finished so far.
func (p *Pipeline) Commit(ctx context.Context, writes []Write) (Summary, error) {
	var sum Summary
	if len(writes) == 0 {
		return sum, nil
	}

	for start := 0; start < len(writes); start += p.size {
		end := start + p.size
		if end > len(writes) {
			end = len(writes)
		}
		sum.Batches++
		batchID := id.NewBatch()
		p.logger.Debug("committing batch",
			"batch", batchID,
			"writes", end-start,
		)

		for _, w := range writes[start:end] {
			if w.Value == nil {
				sum.Skipped++
				p.notify(Outcome{Batch: batchID, Cell: w.Cell.String(), Skipped: true})
				continue
			}
			out, err := p.commitOne(ctx, batchID, w)
			sum.Attempted++
			p.notify(out)
			switch {
			case err != nil:
				return sum, err
			case out.Err != nil:
				sum.Failures = append(sum.Failures, Failure{Cell: out.Cell, Err: out.Err})
			default:
				sum.Committed++
			}
			if err := p.clock.Sleep(ctx, p.interW); err != nil {
				return sum, err
			}
		}

		if end < len(writes) {
			if err := p.clock.Sleep(ctx, p.interB); err != nil {
				return sum, err
			}
		}
	}
	return sum, nil
}

// commitOne writes a single cell, retrying rate-limit refusals under the
// policy. The outer error is reserved for transport loss and context
// cancellation; everything else lands in the outcome.
func (p *Pipeline) commitOne(ctx context.Context, batchID string, w Write) (Outcome, error) {
	out := Outcome{Batch: batchID, Cell: w.Cell.String(), Value: w.Value}
	for attempt := 1; ; attempt++ {
		out.Attempts = attempt
		res, err := p.writer.Write(ctx, w.Cell, [][]grid.Value{{w.Value}})
		if err == nil {
			out.UpdatedCells = res.UpdatedCells
			return out, nil
		}
		if grid.IsUnreachable(err) {
			out.Err = err
			return out, fmt.Errorf("batch: commit %s: %w", out.Cell, err)
		}
		if !grid.IsRateLimited(err) || attempt >= p.policy.MaxAttempts {
			out.Err = err
			p.logger.Warn("write failed",
				"batch", batchID,
				"cell", out.Cell,
				"attempts", attempt,
				"error", err,
			)
			return out, nil
		}
		delay := p.policy.Delay(attempt)
		p.logger.Debug("rate limited, backing off",
			"batch", batchID,
			"cell", out.Cell,
			"attempt", attempt,
			"delay", delay,
		)
		if err := p.clock.Sleep(ctx, delay); err != nil {
			out.Err = err
			return out, err
		}
	}
}

func (p *Pipeline) notify(out Outcome) {
	if p.observer != nil {
		p.observer.WriteCompleted(out)
	}
}
