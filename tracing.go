package emberlog

import (
	"crypto/rand"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// traceState is the logger's current trace/span identifiers, swapped
// atomically by SetTraceContext and StartSpan (spec.md §4.1
// "set_trace_context(trace_id, span_id?)").
type traceState struct {
	TraceID trace.TraceID
	SpanID  trace.SpanID
}

func newRandomTraceID() trace.TraceID {
	var id trace.TraceID
	rand.Read(id[:])
	return id
}

func newRandomSpanID() trace.SpanID {
	var id trace.SpanID
	rand.Read(id[:])
	return id
}

// SetTraceContext binds trace_id (and, if valid, span_id) to the logger's
// current scope; every subsequent log call on this logger (and any
// scoped child created afterward) carries these identifiers until
// overwritten or a span is started (spec.md §4.1).
func (l *Logger) SetTraceContext(traceID trace.TraceID, spanID trace.SpanID) {
	l.trace.Store(&traceState{TraceID: traceID, SpanID: spanID})
}

// SpanGuard restores the logger's previous span (and, if the trace was
// freshly minted for this span, the previous trace) when Close is called
// (spec.md §4.1 "start_span(name) -> SpanGuard: SpanGuard on drop
// restores the previous span and optionally emits a completion record").
// Go has no destructors, so "on drop" is this explicit Close — callers
// are expected to `defer guard.Close()`.
type SpanGuard struct {
	logger *Logger
	name   string
	start  time.Time

	prev *traceState
}

// StartSpan mints a new span id (and a new trace id, if none was active)
// and returns a guard that restores the prior state on Close.
func (l *Logger) StartSpan(name string) *SpanGuard {
	prev := l.trace.Load()
	traceID := newRandomTraceID()
	if prev != nil && prev.TraceID.IsValid() {
		traceID = prev.TraceID
	}
	l.trace.Store(&traceState{TraceID: traceID, SpanID: newRandomSpanID()})
	return &SpanGuard{logger: l, name: name, start: time.Now(), prev: prev}
}

// Close restores the span active before StartSpan, without emitting a
// completion record.
func (g *SpanGuard) Close() {
	g.logger.trace.Store(g.prev)
}

// CloseWithLog restores the prior span and emits a completion record at
// level, with a "span" binding set to the span's name and an "elapsed_ms"
// binding set to its duration in whole milliseconds.
func (g *SpanGuard) CloseWithLog(level Level, message string) {
	elapsed := time.Since(g.start)
	l := g.logger
	g.Close()
	child := l.Bind("span", g.name).Bind("elapsed_ms", elapsed.Milliseconds())
	child.log(level, message, nil)
}
