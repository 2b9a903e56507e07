package record

import (
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Source identifies where a Record was emitted from.
type Source struct {
	File     string
	Line     int
	Function string
	Module   string
}

// Annotation is a rule-engine annotation attached to a Record after
// filtering (SPEC_FULL / spec.md §3, "rule_annotations").
type Annotation struct {
	Category string
	Text     string
	URL      string // optional, "" if absent
}

// Record is one log event. Once built, Level, Timestamp, Message, and
// Source are immutable; Context may only grow via Context.Push (producing
// a new *Context, never mutating the old one) and Annotations may only be
// appended by the owning pipeline stage, never by sinks (spec.md §3
// invariants).
type Record struct {
	Level     Level
	Timestamp time.Time
	Message   string
	Source    Source
	hasSource bool

	ctx *Context

	TraceID trace.TraceID
	SpanID  trace.SpanID

	StackTrace []uintptr // instruction addresses; nil unless captured

	Annotations []Annotation

	// QueuedAt is set by the Logger just before a record is pushed into
	// the ring buffer, and read by the dispatcher to compute dispatch
	// latency. Zero if dispatched synchronously.
	QueuedAt time.Time
}

// New constructs a Record. now is injected so callers (and tests) control
// the timestamp instead of relying on a hidden time.Now() call deep in the
// pipeline.
func New(level Level, message string, now time.Time) Record {
	return Record{Level: level, Message: message, Timestamp: now}
}

// WithSource returns a copy of r with source information attached.
func (r Record) WithSource(src Source) Record {
	r.Source = src
	r.hasSource = true
	return r
}

// HasSource reports whether source information was attached.
func (r Record) HasSource() bool { return r.hasSource }

// Context returns the record's context frame (possibly nil).
func (r Record) Context() *Context { return r.ctx }

// WithContext returns a copy of r bound to the given context frame.
func (r Record) WithContext(ctx *Context) Record {
	r.ctx = ctx
	return r
}

// WithTrace returns a copy of r carrying the given trace/span identifiers.
func (r Record) WithTrace(traceID trace.TraceID, spanID trace.SpanID) Record {
	r.TraceID = traceID
	r.SpanID = spanID
	return r
}

// WithStack returns a copy of r carrying a captured stack trace.
func (r Record) WithStack(pcs []uintptr) Record {
	r.StackTrace = pcs
	return r
}

// Annotate returns a copy of r with one more rule annotation appended.
// Only the rules-engine pipeline stage should call this; it is the one
// documented exception to "Record is immutable after construction" (spec.md
// §3).
func (r Record) Annotate(a Annotation) Record {
	next := make([]Annotation, len(r.Annotations), len(r.Annotations)+1)
	copy(next, r.Annotations)
	r.Annotations = append(next, a)
	return r
}

// ShouldCaptureStack reports whether stack capture is warranted for level
// per spec.md §3 ("captured iff level >= error and enabled").
func ShouldCaptureStack(level Level, enabled bool) bool {
	return enabled && level >= LevelError
}
