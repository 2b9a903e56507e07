// Package ring implements the fixed-capacity RingBuffer<Entry> spec.md
// §4.6 describes: power-of-two capacity, unsigned wrapping head/tail
// arithmetic, and four overflow policies (drop_oldest, drop_newest, block,
// expand).
package ring

import (
	"sync"

	"emberlog/internal/metrics"
	"emberlog/internal/record"
)

// Entry is one queued record. Its enqueue time lives on Record.QueuedAt,
// which the dispatcher reads to compute dispatch latency (spec.md §4.6
// "now - entry.queued_at").
type Entry struct {
	Record record.Record
}

// OverflowPolicy selects how Push behaves when the buffer is full
// (spec.md §4.6).
type OverflowPolicy int

const (
	OverflowDropOldest OverflowPolicy = iota
	OverflowDropNewest
	OverflowBlock
	OverflowExpand
)

// PushResult is the outcome of a Push call.
type PushResult int

const (
	PushOK PushResult = iota
	PushOverflow
)

// Config configures a Buffer.
type Config struct {
	// Capacity must be a power of two; NewBuffer rounds up if it isn't.
	Capacity int
	Overflow OverflowPolicy
	// ExpandCeiling bounds OverflowExpand's reallocation (spec.md §4.6:
	// "reallocate to 2*C (bounded by a configured ceiling)").
	ExpandCeiling int
	Metrics       *metrics.Recorder
}

// Buffer is a fixed-capacity ring buffer of Entry, safe for concurrent
// producers and a single consumer (the dispatcher). Size is computed as
// an unsigned wrapping difference of tail-head so 64-bit wraparound never
// produces a negative size (spec.md §4.6).
type Buffer struct {
	mu       sync.Mutex
	cond     *sync.Cond
	entries  []Entry
	mask     uint64
	head     uint64
	tail     uint64
	overflow OverflowPolicy
	ceiling  int
	closed   bool

	metrics *metrics.Recorder

	droppedOldest uint64
	droppedNewest uint64
	expansions    uint64
}

// NewBuffer constructs a Buffer. Capacity is rounded up to the next power
// of two if it isn't one already.
func NewBuffer(cfg Config) *Buffer {
	capacity := nextPowerOfTwo(cfg.Capacity)
	if cfg.ExpandCeiling == 0 {
		cfg.ExpandCeiling = capacity * 64
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.Noop()
	}
	b := &Buffer{
		entries:  make([]Entry, capacity),
		mask:     uint64(capacity - 1),
		overflow: cfg.Overflow,
		ceiling:  nextPowerOfTwo(cfg.ExpandCeiling),
		metrics:  m,
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func nextPowerOfTwo(n int) int {
	if n < 1 {
		n = 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Size reports the number of entries currently queued.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int(b.tail - b.head)
}

// Capacity reports the buffer's current capacity (may grow under
// OverflowExpand).
func (b *Buffer) Capacity() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Push enqueues e, applying the configured overflow policy if the buffer
// is full (spec.md §4.6). It returns PushOverflow only for drop_newest
// (the entry was not queued); every other outcome either succeeds or
// blocks until it can.
func (b *Buffer) Push(e Entry) PushResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.full() {
		switch b.overflow {
		case OverflowDropOldest:
			b.head++
			b.droppedOldest++
			b.metrics.IncrCounter("ring.dropped_oldest", 1)
		case OverflowDropNewest:
			b.droppedNewest++
			b.metrics.IncrCounter("ring.dropped_newest", 1)
			return PushOverflow
		case OverflowBlock:
			if b.closed {
				return PushOverflow
			}
			b.cond.Wait()
			continue
		case OverflowExpand:
			if !b.tryExpandLocked() {
				// Ceiling reached: fall back to drop_oldest (spec.md
				// §4.6 "failure reverts to drop_oldest").
				b.head++
				b.droppedOldest++
				b.metrics.IncrCounter("ring.dropped_oldest", 1)
			}
		}
		break
	}

	idx := b.tail & b.mask
	b.entries[idx] = e
	b.tail++
	b.metrics.IncrCounter("ring.queued", 1)
	b.cond.Broadcast()
	return PushOK
}

func (b *Buffer) full() bool {
	return b.tail-b.head >= uint64(len(b.entries))
}

// tryExpandLocked doubles capacity up to ceiling. Caller holds mu.
func (b *Buffer) tryExpandLocked() bool {
	current := len(b.entries)
	next := current * 2
	if next > b.ceiling {
		return false
	}
	grown := make([]Entry, next)
	n := b.tail - b.head
	for i := uint64(0); i < n; i++ {
		grown[i] = b.entries[(b.head+i)&b.mask]
	}
	b.entries = grown
	b.mask = uint64(next - 1)
	b.head = 0
	b.tail = n
	b.expansions++
	b.metrics.IncrCounter("ring.expansions", 1)
	return true
}

// Pop removes and returns up to max entries (spec.md §4.6 dispatcher step
// 2: "drain up to batch_size entries"). It never blocks; ok is false if
// the buffer was empty.
func (b *Buffer) Pop(max int) (out []Entry, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := int(b.tail - b.head)
	if n == 0 {
		return nil, false
	}
	if n > max {
		n = max
	}
	out = make([]Entry, n)
	for i := 0; i < n; i++ {
		out[i] = b.entries[(b.head+uint64(i))&b.mask]
	}
	b.head += uint64(n)
	b.cond.Broadcast() // wake any blocked producers
	return out, true
}

// Peek returns the oldest queued entry without removing it, for callers
// that need to inspect age (e.g. the dispatcher's max_latency_ms check)
// before deciding whether to force an extra drain. ok is false if the
// buffer is empty.
func (b *Buffer) Peek() (e Entry, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tail == b.head {
		return Entry{}, false
	}
	return b.entries[b.head&b.mask], true
}

// Close signals blocked producers (OverflowBlock) to stop waiting; further
// Push calls under OverflowBlock return PushOverflow instead of blocking
// forever (spec.md §4.6 "until ... the logger is shutting down").
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cond.Broadcast()
}

// Stats is a point-in-time snapshot of drop/expansion counters.
type Stats struct {
	DroppedOldest uint64
	DroppedNewest uint64
	Expansions    uint64
	Size          int
	Capacity      int
}

func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		DroppedOldest: b.droppedOldest,
		DroppedNewest: b.droppedNewest,
		Expansions:    b.expansions,
		Size:          int(b.tail - b.head),
		Capacity:      len(b.entries),
	}
}
