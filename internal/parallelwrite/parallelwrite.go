// Package parallelwrite implements the ParallelSinkWriter spec.md §4.8
// describes: one formatted record fanned out to every enabled sink, bounded
// by a concurrency semaphore, with optional retry-with-backoff, fail_fast,
// and write buffering, while preserving per-sink write order.
package parallelwrite

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"emberlog/internal/dispatch"
	"emberlog/internal/metrics"
	"emberlog/internal/ring"
)

// Config configures a ParallelSinkWriter (spec.md §4.8).
type Config struct {
	MaxConcurrent  int
	RetryOnFailure bool
	MaxRetries     int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	FailFast       bool
	// Buffered batches every entry in one Write() call into a single
	// write per sink instead of one write per entry (spec.md §4.8
	// "batch successive writes to the same sink before dispatch").
	Buffered bool
	Metrics  *metrics.Recorder
}

// ParallelSinkWriter implements dispatch.Writer. One goroutine per sink
// processes that sink's share of a batch serially, which is what gives
// spec.md §4.8's per-sink ordering guarantee: since dispatch.Dispatcher
// calls Write once per batch and waits for it to return before draining
// the next one, and each sink's entries within a batch are written in
// submission order by a single goroutine, T1 < T2 always reaches a given
// sink in that order.
type ParallelSinkWriter struct {
	cfg Config
	sem *semaphore.Weighted
}

var _ dispatch.Writer = (*ParallelSinkWriter)(nil)

// New constructs a ParallelSinkWriter. MaxConcurrent <= 0 means unbounded.
func New(cfg Config) *ParallelSinkWriter {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1 << 20 // effectively unbounded
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 10 * time.Millisecond
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 2 * time.Second
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Noop()
	}
	return &ParallelSinkWriter{
		cfg: cfg,
		sem: semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
}

// Write fans entries out to every binding concurrently, one errgroup
// goroutine per sink, and blocks until all of them finish (spec.md §4.8).
func (w *ParallelSinkWriter) Write(bindings []dispatch.SinkBinding, entries []ring.Entry) {
	if len(bindings) == 0 || len(entries) == 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	for _, b := range bindings {
		b := b
		g.Go(func() error {
			if err := w.sem.Acquire(ctx, 1); err != nil {
				return nil // context already cancelled by a sibling's fail_fast
			}
			defer w.sem.Release(1)
			err := w.writeBinding(ctx, b, entries)
			if err != nil && w.cfg.FailFast {
				return err // cancels ctx, aborting siblings' remaining writes
			}
			return nil
		})
	}
	_ = g.Wait()
}

// writeBinding delivers entries to b, either as one buffered call or one
// call per entry, retrying on failure per cfg and aborting the rest of
// this sink's batch (and, under fail_fast, siblings via ctx) on error.
func (w *ParallelSinkWriter) writeBinding(ctx context.Context, b dispatch.SinkBinding, entries []ring.Entry) error {
	batches := [][]ring.Entry{entries}
	if !w.cfg.Buffered {
		batches = make([][]ring.Entry, len(entries))
		for i, e := range entries {
			batches[i] = []ring.Entry{e}
		}
	}

	for _, batch := range batches {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.writeWithRetry(b, batch); err != nil {
			w.cfg.Metrics.IncrCounter("parallelwrite.failed", 1)
			return err
		}
	}
	return nil
}

func (w *ParallelSinkWriter) writeWithRetry(b dispatch.SinkBinding, batch []ring.Entry) error {
	attempts := 1
	if w.cfg.RetryOnFailure {
		attempts += w.cfg.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = w.writeEntries(b, batch)
		if lastErr == nil {
			w.cfg.Metrics.IncrCounter("parallelwrite.written", float32(len(batch)))
			return nil
		}
		w.cfg.Metrics.IncrCounter("parallelwrite.retry", 1)
		if attempt+1 < attempts {
			time.Sleep(backoffDuration(w.cfg.BackoffBase, w.cfg.BackoffMax, attempt))
		}
	}
	return lastErr
}

// writeEntries renders every accepted entry and delivers them to the sink
// in a single Write call, so a Buffered batch of many entries reaches the
// sink as one write rather than one per entry (spec.md §4.8 "batch
// successive writes to the same sink before dispatch"). The non-buffered
// path calls this with a one-entry batch, so it degenerates to a single
// per-entry write as before.
func (w *ParallelSinkWriter) writeEntries(b dispatch.SinkBinding, entries []ring.Entry) error {
	var rendered []byte
	var last ring.Entry
	wrote := false
	for _, e := range entries {
		if !b.Sink.Accepts(e.Record.Level) {
			continue
		}
		formatted, err := b.Formatter.Format(e.Record)
		if err != nil {
			return err
		}
		rendered = append(rendered, formatted...)
		last = e
		wrote = true
	}
	if !wrote {
		return nil
	}
	return b.Sink.Write(rendered, last.Record)
}

func backoffDuration(base, max time.Duration, attempt int) time.Duration {
	d := base << uint(attempt)
	if d <= 0 || d > max {
		d = max
	}
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	return d - jitter/2
}
