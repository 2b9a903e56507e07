package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/time/rate"

	"emberlog/internal/record"
)

// Sampler decides, after Filter.admit, whether an admitted Record should
// actually be dispatched (spec.md §4.2). A nil Sampler always accepts
// (identity).
type Sampler interface {
	Accept(r record.Record) bool
}

// xorshift64 is a minimal, fast, thread-local PRNG: spec.md explicitly
// calls for a "xorshift-style" generator rather than math/rand's
// lock-guarded global source, so ProbabilitySampler's hot path never
// contends with other goroutines.
type xorshift64 struct{ state uint64 }

func newXorshift64(seed uint64) *xorshift64 {
	if seed == 0 {
		seed = 0x9E3779B97F4A7C15 // avoid the fixed point at zero
	}
	return &xorshift64{state: seed}
}

func (x *xorshift64) next() uint64 {
	s := x.state
	s ^= s << 13
	s ^= s >> 7
	s ^= s << 17
	x.state = s
	return s
}

// ProbabilitySampler accepts a record with probability P, using a
// thread-local xorshift64 PRNG (spec.md §4.2 "probability(p)"). Not safe
// for concurrent use by multiple goroutines — callers wanting concurrent
// sampling should construct one ProbabilitySampler per goroutine, or wrap
// access with their own synchronization; the thread-local design is the
// point (no shared-state contention).
type ProbabilitySampler struct {
	P   float64
	rng *xorshift64
}

// NewProbabilitySampler builds a sampler with optional deterministic seed
// (0 picks a fixed, reproducible default rather than a time-based seed, so
// tests stay deterministic unless they explicitly ask for entropy
// elsewhere).
func NewProbabilitySampler(p float64, seed uint64) *ProbabilitySampler {
	return &ProbabilitySampler{P: p, rng: newXorshift64(seed)}
}

func (s *ProbabilitySampler) Accept(record.Record) bool {
	if s.P >= 1 {
		return true
	}
	if s.P <= 0 {
		return false
	}
	draw := s.rng.next()
	threshold := uint64(s.P * (1 << 63) * 2)
	return draw < threshold
}

// RateLimitSampler is a token-bucket sampler keyed on the current window
// (spec.md §4.2 "rate_limit(max, window_ms)"). It is backed by
// golang.org/x/time/rate.Limiter rather than a hand-rolled CAS counter,
// with one limiter per window cached in a bounded LRU keyed by the
// window's start, so limiters of past windows are evicted instead of
// accumulating.
type RateLimitSampler struct {
	max    int
	window time.Duration
	cache  *lru.Cache
	mu     sync.Mutex
}

// NewRateLimitSampler builds a sampler admitting up to max records per
// window. cacheSize bounds the number of distinct window-keyed limiters
// retained at once (LRU eviction beyond that).
func NewRateLimitSampler(max int, window time.Duration, cacheSize int) *RateLimitSampler {
	if cacheSize <= 0 {
		cacheSize = 1
	}
	c, _ := lru.New(cacheSize)
	return &RateLimitSampler{max: max, window: window, cache: c}
}

// Accept admits up to max records within the current window, keyed by the
// window's own start boundary so every caller sharing this sampler
// observes the same reset points.
func (s *RateLimitSampler) Accept(record.Record) bool {
	now := time.Now()
	windowKey := now.Truncate(s.window).UnixNano()

	s.mu.Lock()
	var limiter *rate.Limiter
	if v, ok := s.cache.Get(windowKey); ok {
		limiter = v.(*rate.Limiter)
	} else {
		// A zero refill rate makes the burst of max the window's whole
		// budget; a fresh limiter starts with each new window.
		limiter = rate.NewLimiter(0, s.max)
		s.cache.Add(windowKey, limiter)
	}
	s.mu.Unlock()

	return limiter.Allow()
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// EveryNSampler accepts every Nth record via an atomic counter mod N
// (spec.md §4.2 "every_n(n)").
type EveryNSampler struct {
	n       int64
	counter int64
}

func NewEveryNSampler(n int64) *EveryNSampler {
	if n < 1 {
		n = 1
	}
	return &EveryNSampler{n: n}
}

func (s *EveryNSampler) Accept(record.Record) bool {
	v := atomic.AddInt64(&s.counter, 1) - 1
	return v%s.n == 0
}

// AdaptiveSampler adjusts its acceptance probability every AdjustEvery
// toward TargetRate, clamped to [MinP, MaxP] (spec.md §4.2 "adaptive").
// The measured rate is the count of Accept calls since the last
// adjustment, divided by the elapsed interval.
type AdaptiveSampler struct {
	TargetRate  float64
	MinP        float64
	MaxP        float64
	AdjustEvery time.Duration

	mu       sync.Mutex
	p        float64
	rng      *xorshift64
	lastTick time.Time
	seen     int64
}

func NewAdaptiveSampler(targetRate, minP, maxP float64, adjustEvery time.Duration, seed uint64) *AdaptiveSampler {
	return &AdaptiveSampler{
		TargetRate:  targetRate,
		MinP:        minP,
		MaxP:        maxP,
		AdjustEvery: adjustEvery,
		p:           maxP,
		rng:         newXorshift64(seed),
		lastTick:    time.Now(),
	}
}

func (s *AdaptiveSampler) Accept(record.Record) bool {
	s.mu.Lock()
	now := time.Now()
	s.seen++
	if elapsed := now.Sub(s.lastTick); elapsed >= s.AdjustEvery && s.AdjustEvery > 0 {
		measured := float64(s.seen) / elapsed.Seconds()
		if measured > 0 {
			ratio := s.TargetRate / measured
			s.p *= ratio
		}
		if s.p < s.MinP {
			s.p = s.MinP
		}
		if s.p > s.MaxP {
			s.p = s.MaxP
		}
		s.seen = 0
		s.lastTick = now
	}
	p := s.p
	draw := s.rng.next()
	s.mu.Unlock()

	threshold := uint64(p * (1 << 63) * 2)
	return draw < threshold
}

// CurrentProbability reports the sampler's current acceptance probability,
// mainly for tests and diagnostics.
func (s *AdaptiveSampler) CurrentProbability() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p
}
