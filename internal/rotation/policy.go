// Package rotation implements the rotating file sink's trigger and
// retention policies (spec.md §4.4), ported from the teacher's
// internal/chunk rotation/retention design: pure, IO-free, composable
// predicates evaluated against an immutable state snapshot.
package rotation

import "time"

// ActiveFileState is an immutable snapshot of the sink's active file at
// append time — no file handles, no locks, safe to copy by value.
type ActiveFileState struct {
	BytesWritten uint64
	CreatedAt    time.Time
}

// Policy decides whether the active file should be rotated before the
// next write lands. Policies are pure: no IO, no locks, no mutation.
type Policy interface {
	ShouldRotate(state ActiveFileState, now time.Time, nextWriteBytes int) bool
}

// PolicyFunc adapts an ordinary function to Policy.
type PolicyFunc func(state ActiveFileState, now time.Time, nextWriteBytes int) bool

func (f PolicyFunc) ShouldRotate(state ActiveFileState, now time.Time, nextWriteBytes int) bool {
	return f(state, now, nextWriteBytes)
}

// CompositePolicy OR-combines sub-policies: rotation triggers if any one
// of them says so (spec.md §4.4 "Rotation triggers (OR-combined)").
type CompositePolicy struct {
	policies []Policy
}

func NewCompositePolicy(policies ...Policy) *CompositePolicy {
	return &CompositePolicy{policies: policies}
}

func (c *CompositePolicy) ShouldRotate(state ActiveFileState, now time.Time, nextWriteBytes int) bool {
	for _, p := range c.policies {
		if p.ShouldRotate(state, now, nextWriteBytes) {
			return true
		}
	}
	return false
}

// SizePolicy rotates once the active file has already accumulated Limit
// bytes, so the write that crosses the threshold rotates, not the one
// that merely reaches it (spec.md §8: "Rotation at exactly size_limit
// bytes: triggers on the write that crosses the threshold, not the one
// that reaches it").
type SizePolicy struct{ Limit uint64 }

func (p SizePolicy) ShouldRotate(state ActiveFileState, _ time.Time, _ int) bool {
	if p.Limit == 0 {
		return false
	}
	return state.BytesWritten >= p.Limit
}

// Interval names the wall-clock boundary an IntervalPolicy watches for
// (spec.md §4.4).
type Interval int

const (
	IntervalMinutely Interval = iota
	IntervalHourly
	IntervalDaily
	IntervalWeekly
	IntervalMonthly
	IntervalYearly
)

// IntervalPolicy rotates when now has crossed the configured interval
// boundary since the active file was created.
type IntervalPolicy struct{ Every Interval }

func (p IntervalPolicy) ShouldRotate(state ActiveFileState, now time.Time, _ int) bool {
	if state.CreatedAt.IsZero() {
		return false
	}
	return boundaryKey(state.CreatedAt, p.Every) != boundaryKey(now, p.Every)
}

func boundaryKey(t time.Time, interval Interval) [6]int {
	y, mo, d := t.Date()
	h, mi := t.Hour(), t.Minute()
	switch interval {
	case IntervalMinutely:
		return [6]int{y, int(mo), d, h, mi, 0}
	case IntervalHourly:
		return [6]int{y, int(mo), d, h, 0, 0}
	case IntervalDaily:
		return [6]int{y, int(mo), d, 0, 0, 0}
	case IntervalWeekly:
		yr, wk := t.ISOWeek()
		return [6]int{yr, wk, 0, 0, 0, 0}
	case IntervalMonthly:
		return [6]int{y, int(mo), 0, 0, 0, 0}
	case IntervalYearly:
		return [6]int{y, 0, 0, 0, 0, 0}
	default:
		return [6]int{y, int(mo), d, h, mi, t.Second()}
	}
}

// HardLimitPolicy always wins: an absolute ceiling no composite may
// exceed, mirroring the teacher's HardLimitPolicy ("always wins over
// other policies").
type HardLimitPolicy struct{ MaxBytes uint64 }

func (p HardLimitPolicy) ShouldRotate(state ActiveFileState, _ time.Time, nextWriteBytes int) bool {
	if p.MaxBytes == 0 {
		return false
	}
	return state.BytesWritten+uint64(nextWriteBytes) > p.MaxBytes
}

// NeverRotatePolicy never triggers rotation.
type NeverRotatePolicy struct{}

func (NeverRotatePolicy) ShouldRotate(ActiveFileState, time.Time, int) bool { return false }
