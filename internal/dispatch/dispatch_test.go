package dispatch

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"emberlog/internal/format"
	"emberlog/internal/record"
	"emberlog/internal/ring"
	"emberlog/internal/sink"
)

// fakeSink is a minimal in-memory sink.Sink for dispatcher tests.
type fakeSink struct {
	mu      sync.Mutex
	written []string
	enabled atomic.Bool
}

func newFakeSink() *fakeSink {
	s := &fakeSink{}
	s.enabled.Store(true)
	return s
}

func (s *fakeSink) Write(formatted []byte, _ record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = append(s.written, string(formatted))
	return nil
}
func (s *fakeSink) Flush() error                                  { return nil }
func (s *fakeSink) Name() string                                  { return "fake" }
func (s *fakeSink) Enabled() bool                                 { return s.enabled.Load() }
func (s *fakeSink) Accepts(record.Level) bool                     { return true }
func (s *fakeSink) RotateIfNeeded() (*sink.RotationEvent, error)   { return nil, nil }
func (s *fakeSink) Close() error                                  { return nil }
func (s *fakeSink) count() int                                    { s.mu.Lock(); defer s.mu.Unlock(); return len(s.written) }

type plainFormatter struct{}

func (plainFormatter) Format(r record.Record) ([]byte, error) { return []byte(r.Message), nil }

var _ format.Formatter = plainFormatter{}
var _ sink.Sink = (*fakeSink)(nil)

// =============================================================================
// Dispatcher Tests
// =============================================================================

func TestDispatcherDrainsOnFlushInterval(t *testing.T) {
	buf := ring.NewBuffer(ring.Config{Capacity: 16})
	s := newFakeSink()
	d := New(Config{
		Buffer:        buf,
		Bindings:      []SinkBinding{{Sink: s, Formatter: plainFormatter{}}},
		FlushInterval: 10 * time.Millisecond,
	})
	d.Start()
	defer d.Stop()

	buf.Push(ring.Entry{Record: record.New(record.LevelInfo, "hello", time.Now())})

	deadline := time.Now().Add(2 * time.Second)
	for s.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.count() != 1 {
		t.Fatalf("expected 1 written record, got %d", s.count())
	}
}

func TestDispatcherNotifyWakesWorkerEarly(t *testing.T) {
	buf := ring.NewBuffer(ring.Config{Capacity: 16})
	s := newFakeSink()
	d := New(Config{
		Buffer:        buf,
		Bindings:      []SinkBinding{{Sink: s, Formatter: plainFormatter{}}},
		FlushInterval: time.Hour, // effectively disabled; rely on Notify
	})
	d.Start()
	defer d.Stop()

	buf.Push(ring.Entry{Record: record.New(record.LevelInfo, "hi", time.Now())})
	d.Notify()

	deadline := time.Now().Add(2 * time.Second)
	for s.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.count() != 1 {
		t.Fatal("expected Notify to wake the worker well before the hour-long flush interval")
	}
}

func TestDispatcherStopDrainsRemainingAndFlushes(t *testing.T) {
	buf := ring.NewBuffer(ring.Config{Capacity: 16})
	s := newFakeSink()
	d := New(Config{
		Buffer:        buf,
		Bindings:      []SinkBinding{{Sink: s, Formatter: plainFormatter{}}},
		FlushInterval: time.Hour,
	})
	d.Start()

	for i := 0; i < 5; i++ {
		buf.Push(ring.Entry{Record: record.New(record.LevelInfo, "m", time.Now())})
	}
	d.Stop()

	if s.count() != 5 {
		t.Fatalf("expected all 5 queued entries drained on Stop, got %d", s.count())
	}
}

func TestDispatcherSkipsDisabledSinks(t *testing.T) {
	buf := ring.NewBuffer(ring.Config{Capacity: 16})
	s := newFakeSink()
	s.enabled.Store(false)
	d := New(Config{
		Buffer:        buf,
		Bindings:      []SinkBinding{{Sink: s, Formatter: plainFormatter{}}},
		FlushInterval: 10 * time.Millisecond,
	})
	d.Start()
	defer d.Stop()

	buf.Push(ring.Entry{Record: record.New(record.LevelInfo, "m", time.Now())})
	time.Sleep(50 * time.Millisecond)

	if s.count() != 0 {
		t.Fatal("expected a disabled sink to receive nothing")
	}
}

func TestDispatcherStatsCountBatches(t *testing.T) {
	buf := ring.NewBuffer(ring.Config{Capacity: 16})
	s := newFakeSink()
	d := New(Config{
		Buffer:        buf,
		Bindings:      []SinkBinding{{Sink: s, Formatter: plainFormatter{}}},
		FlushInterval: 10 * time.Millisecond,
	})
	d.Start()

	buf.Push(ring.Entry{Record: record.New(record.LevelInfo, "m", time.Now())})
	time.Sleep(50 * time.Millisecond)
	d.Stop()

	stats := d.Stats()
	if stats.Written == 0 {
		t.Fatal("expected Written > 0")
	}
	if stats.Batches == 0 {
		t.Fatal("expected Batches > 0")
	}
}

func TestFlushNowDrainsBeforeReturning(t *testing.T) {
	buf := ring.NewBuffer(ring.Config{Capacity: 16})
	s := newFakeSink()
	d := New(Config{
		Buffer:        buf,
		Bindings:      []SinkBinding{{Sink: s, Formatter: plainFormatter{}}},
		FlushInterval: time.Hour, // disabled; FlushNow must not depend on it
	})
	d.Start()
	defer d.Stop()

	for i := 0; i < 10; i++ {
		buf.Push(ring.Entry{Record: record.New(record.LevelInfo, "m", time.Now())})
	}
	if err := d.FlushNow(2 * time.Second); err != nil {
		t.Fatalf("FlushNow: %v", err)
	}
	if s.count() != 10 {
		t.Fatalf("expected all 10 entries drained by FlushNow, got %d", s.count())
	}
}

func TestFlushNowTimesOutWithoutAWorkerDraining(t *testing.T) {
	buf := ring.NewBuffer(ring.Config{Capacity: 16})
	d := New(Config{
		Buffer:        buf,
		FlushInterval: time.Hour,
	})
	// Deliberately never Start: nothing pops the buffer, so FlushNow must
	// observe it staying non-empty past the deadline.
	buf.Push(ring.Entry{Record: record.New(record.LevelInfo, "m", time.Now())})

	err := d.FlushNow(20 * time.Millisecond)
	if err == nil {
		t.Fatal("expected FlushNow to time out when the buffer never drains")
	}
}
