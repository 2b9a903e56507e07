// Package dispatch implements the async dispatcher worker loop (spec.md
// §4.6): drains the ring buffer, renders each entry per eligible sink, and
// either writes inline or submits a ParallelSinkWriter task to the thread
// pool.
package dispatch

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"emberlog/internal/format"
	"emberlog/internal/metrics"
	"emberlog/internal/ring"
	"emberlog/internal/sink"
)

// errFlushTimeout is returned by FlushNow when the buffer has not
// drained to empty before the caller's deadline.
var errFlushTimeout = errors.New("dispatch: flush timed out before the buffer drained")

// SinkBinding pairs a sink with the formatter that renders records for it.
type SinkBinding struct {
	Sink      sink.Sink
	Formatter format.Formatter
}

// Writer is however the dispatcher ultimately delivers a rendered batch to
// sinks — normally internal/parallelwrite.ParallelSinkWriter, injected so
// this package does not need to import the thread pool directly. Write is
// called once per drained batch with every binding whose sink is
// currently enabled; Writer itself decides per-record accepts()
// filtering.
type Writer interface {
	Write(bindings []SinkBinding, entries []ring.Entry)
}

// WriterFunc adapts a function to Writer.
type WriterFunc func(bindings []SinkBinding, entries []ring.Entry)

func (f WriterFunc) Write(bindings []SinkBinding, entries []ring.Entry) { f(bindings, entries) }

// Config configures a Dispatcher.
type Config struct {
	Buffer           *ring.Buffer
	Bindings         []SinkBinding
	Writer           Writer
	BatchSize        int
	FlushInterval    time.Duration
	MaxLatency       time.Duration // 0 disables the force-drain check
	ShutdownTimeout  time.Duration
	Metrics          *metrics.Recorder
	// Pool, if non-nil, causes batches to be submitted through it
	// instead of calling Writer inline on the dispatcher goroutine
	// (spec.md §4.6 step 4: "If the logger has a thread pool configured,
	// submit a ParallelSinkWriter task; otherwise, write inline.").
	Pool func(task func())
}

// Stats mirrors spec.md §4.6 step 5's required counters.
type Stats struct {
	Queued    uint64
	Written   uint64
	Dropped   uint64
	Batches   uint64
	LatencyNs uint64 // cumulative, for computing a running average
}

// Dispatcher owns the single worker goroutine that drains the ring buffer.
type Dispatcher struct {
	cfg Config

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	stats struct {
		written, dropped, batches, latencyNs atomic.Uint64
	}

	wakeCh chan struct{}
}

// New constructs a Dispatcher. Start must be called to begin draining.
func New(cfg Config) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 50 * time.Millisecond
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Noop()
	}
	return &Dispatcher{
		cfg:    cfg,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		wakeCh: make(chan struct{}, 1),
	}
}

// Start launches the worker goroutine (spec.md §4.6 "a dedicated worker
// thread loops").
func (d *Dispatcher) Start() {
	go d.loop()
}

// Notify wakes the worker early, e.g. right after a Push, so a burst of
// records doesn't wait the full flush interval (spec.md §4.6 step 1:
// "wait until at least one entry is available").
func (d *Dispatcher) Notify() {
	select {
	case d.wakeCh <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) loop() {
	defer close(d.doneCh)
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			d.drainRemaining()
			return
		case <-d.wakeCh:
			d.drainOnce()
		case <-ticker.C:
			d.drainOnce()
		}
	}
}

func (d *Dispatcher) drainOnce() {
	entries, ok := d.cfg.Buffer.Pop(d.cfg.BatchSize)
	if !ok {
		return
	}
	d.dispatchBatch(entries)

	// spec.md §4.6 step 6: force an immediate additional drain if the
	// oldest pending entry already exceeds max_latency_ms.
	if d.cfg.MaxLatency > 0 {
		for d.oldestExceeds(d.cfg.MaxLatency) {
			more, ok := d.cfg.Buffer.Pop(d.cfg.BatchSize)
			if !ok {
				break
			}
			d.dispatchBatch(more)
		}
	}
}

func (d *Dispatcher) oldestExceeds(maxLatency time.Duration) bool {
	e, ok := d.cfg.Buffer.Peek()
	if !ok || e.Record.QueuedAt.IsZero() {
		return false
	}
	return time.Since(e.Record.QueuedAt) > maxLatency
}

func (d *Dispatcher) dispatchBatch(entries []ring.Entry) {
	if len(entries) == 0 {
		return
	}
	start := time.Now()

	var eligible []SinkBinding
	for _, b := range d.cfg.Bindings {
		if b.Sink.Enabled() {
			eligible = append(eligible, b)
		}
	}

	if d.cfg.Pool != nil {
		// Wait for the pool task so batches reach each sink in order.
		done := make(chan struct{})
		d.cfg.Pool(func() {
			defer close(done)
			d.write(eligible, entries)
		})
		<-done
	} else {
		d.write(eligible, entries)
	}

	d.stats.batches.Add(1)
	d.stats.written.Add(uint64(len(entries)))
	d.cfg.Metrics.IncrCounter("dispatch.written", float32(len(entries)))
	d.cfg.Metrics.AddSample("dispatch.batch_latency_ms", float32(time.Since(start).Milliseconds()))

	for _, e := range entries {
		if !e.Record.QueuedAt.IsZero() {
			d.stats.latencyNs.Add(uint64(time.Since(e.Record.QueuedAt)))
		}
	}
}

func (d *Dispatcher) write(bindings []SinkBinding, entries []ring.Entry) {
	if d.cfg.Writer != nil {
		d.cfg.Writer.Write(bindings, entries)
		return
	}
	for _, e := range entries {
		for _, b := range bindings {
			if !b.Sink.Accepts(e.Record.Level) {
				continue
			}
			rendered, err := b.Formatter.Format(e.Record)
			if err != nil {
				continue
			}
			b.Sink.Write(rendered, e.Record)
		}
	}
}

// drainRemaining flushes whatever is left in the buffer, bounded by
// ShutdownTimeout (spec.md §4.6 "Shutdown"). Anything still queued past
// the deadline is reported as dropped.
func (d *Dispatcher) drainRemaining() {
	deadline := time.Now().Add(d.cfg.ShutdownTimeout)
	for time.Now().Before(deadline) {
		entries, ok := d.cfg.Buffer.Pop(d.cfg.BatchSize)
		if !ok {
			break
		}
		d.dispatchBatch(entries)
	}
	if remaining := d.cfg.Buffer.Size(); remaining > 0 {
		d.stats.dropped.Add(uint64(remaining))
		d.cfg.Metrics.IncrCounter("dispatch.dropped", float32(remaining))
	}
	for _, b := range d.cfg.Bindings {
		b.Sink.Flush()
	}
}

// FlushNow wakes the worker and blocks until the buffer drains to empty
// and every sink has been flushed, or timeout elapses (spec.md §4.1
// "flush(): completes all pending async writes across all sinks; blocks
// caller until drain completes or a configured shutdown timeout
// elapses"). Unlike Stop, the worker keeps running afterward.
func (d *Dispatcher) FlushNow(timeout time.Duration) error {
	d.Notify()
	deadline := time.Now().Add(timeout)
	for d.cfg.Buffer.Size() > 0 {
		if time.Now().After(deadline) {
			return errFlushTimeout
		}
		time.Sleep(time.Millisecond)
	}
	for _, b := range d.cfg.Bindings {
		if err := b.Sink.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// Stop signals the worker to drain and exit, blocking until it has
// (spec.md §4.6 "stop() signals the worker, waits for the queue to drain
// ... then joins the worker").
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
	<-d.doneCh
}

// Stats returns a point-in-time snapshot of the dispatcher's counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Queued:    uint64(d.cfg.Buffer.Size()),
		Written:   d.stats.written.Load(),
		Dropped:   d.stats.dropped.Load(),
		Batches:   d.stats.batches.Load(),
		LatencyNs: d.stats.latencyNs.Load(),
	}
}
