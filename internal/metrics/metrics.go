// Package metrics provides a thin, always-safe wrapper around
// hashicorp/go-metrics for the ring buffer, thread pool, dispatcher, and
// scheduler. emberlog never forces a host process to run a particular
// metrics backend: callers may supply a *metrics.Metrics sink (statsd,
// Prometheus via a sink adapter, etc.) or leave it nil, in which case
// every call here is a no-op.
package metrics

import (
	gometrics "github.com/hashicorp/go-metrics"
)

// Recorder records counters, gauges, and timing samples for one emberlog
// subsystem (e.g. "dispatcher", "pool", "ringbuffer", "scheduler"). A zero
// Recorder (nil *gometrics.Metrics) is safe to use and discards everything.
type Recorder struct {
	sink   *gometrics.Metrics
	prefix []string
}

// New returns a Recorder that labels every metric with prefix. If sink is
// nil, New falls back to a global no-op sink so callers never need a nil
// check.
func New(sink *gometrics.Metrics, prefix ...string) *Recorder {
	if sink == nil {
		sink, _ = gometrics.New(gometrics.DefaultConfig("emberlog"), &gometrics.BlackholeSink{})
	}
	return &Recorder{sink: sink, prefix: prefix}
}

// Noop returns a Recorder that discards everything, for components
// constructed without an explicit metrics sink.
func Noop() *Recorder { return New(nil) }

func (r *Recorder) key(name string) []string {
	if r == nil {
		return []string{name}
	}
	out := make([]string, 0, len(r.prefix)+1)
	out = append(out, r.prefix...)
	out = append(out, name)
	return out
}

// IncrCounter increments a named counter by delta.
func (r *Recorder) IncrCounter(name string, delta float32) {
	if r == nil || r.sink == nil {
		return
	}
	r.sink.IncrCounter(r.key(name), delta)
}

// SetGauge sets a named gauge to val.
func (r *Recorder) SetGauge(name string, val float32) {
	if r == nil || r.sink == nil {
		return
	}
	r.sink.SetGauge(r.key(name), val)
}

// AddSample records a timing/size sample (e.g. dispatch latency in
// milliseconds, batch size) into a named summary.
func (r *Recorder) AddSample(name string, val float32) {
	if r == nil || r.sink == nil {
		return
	}
	r.sink.AddSample(r.key(name), val)
}
