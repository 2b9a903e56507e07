// Package pool implements the work-stealing thread pool spec.md §4.7
// describes: N workers each owning a banded local deque, a banded global
// submission queue, work stealing from a peer's back when a worker runs
// dry, and shutdown/halt/wait_all lifecycle control.
package pool

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"emberlog/internal/metrics"
)

// Config configures a Pool.
type Config struct {
	Workers int
	// Capacity bounds the global queue; 0 means unbounded. A bounded
	// queue makes Submit block when full and TrySubmit fail fast, except
	// for PriorityCritical which always bypasses the bound (spec.md
	// §4.7 "may cause a queue-full condition to wake a blocking producer
	// immediately").
	Capacity int
	// ArenaSize sizes each worker's per-task bump allocator in bytes.
	ArenaSize int
	Metrics   *metrics.Recorder
}

// Stats mirrors spec.md §4.7's required atomic counters.
type Stats struct {
	Submitted       uint64
	Completed       uint64
	Stolen          uint64
	Dropped         uint64
	WaitTimeNsTotal uint64
	ExecTimeNsTotal uint64
	Utilization     float64
}

// Pool is a fixed-size work-stealing thread pool.
type Pool struct {
	cfg    Config
	locals []*workerQueue
	global bandedQueue

	mu   sync.Mutex // guards global and the stopping/halting flags
	cond *sync.Cond

	pending atomic.Int64 // tasks sitting in global + all locals
	active  atomic.Int64 // tasks currently executing

	stopping atomic.Bool
	halting  atomic.Bool

	wg sync.WaitGroup

	stats struct {
		submitted, completed, stolen, dropped atomic.Uint64
		waitNs, execNs                        atomic.Uint64
	}
}

type workerQueue struct {
	mu    sync.Mutex
	q     bandedQueue
	arena *Arena
}

// New constructs and starts a Pool with cfg.Workers goroutines.
func New(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Noop()
	}
	p := &Pool{cfg: cfg}
	p.cond = sync.NewCond(&p.mu)
	p.locals = make([]*workerQueue, cfg.Workers)
	for i := range p.locals {
		p.locals[i] = &workerQueue{arena: newArena(cfg.ArenaSize)}
	}
	p.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go p.workerLoop(i)
	}
	return p
}

// Submit enqueues fn on the global queue at priority (spec.md §4.7
// "submit(task, priority)"). It blocks if the global queue is bounded and
// full, unless priority is PriorityCritical.
func (p *Pool) Submit(fn func(), priority Priority) {
	p.submit(wrap(fn), priority, true)
}

// SubmitArena is Submit for a task that wants access to its worker's
// scratch arena.
func (p *Pool) SubmitArena(fn func(a *Arena), priority Priority) {
	p.submit(fn, priority, true)
}

// TrySubmit is Submit's non-blocking variant: it returns false instead of
// blocking when the global queue is bounded and full.
func (p *Pool) TrySubmit(fn func(), priority Priority) bool {
	return p.submit(wrap(fn), priority, false)
}

// SubmitToWorker pins fn to worker i's local queue (spec.md §4.7
// "submit_to_worker(i, task, priority)").
func (p *Pool) SubmitToWorker(i int, fn func(), priority Priority) {
	if i < 0 || i >= len(p.locals) {
		i = 0
	}
	t := task{fn: wrap(fn), priority: priority, queuedAt: p.now()}
	lq := p.locals[i]
	lq.mu.Lock()
	lq.q.pushBack(t)
	lq.mu.Unlock()

	p.stats.submitted.Add(1)
	p.pending.Add(1)
	p.cfg.Metrics.IncrCounter("pool.submitted", 1)
	p.wakeAll()
}

// SubmitBatch pushes every task in fns onto the global queue, acquiring
// its mutex exactly once (spec.md §4.7 "single lock acquisition").
func (p *Pool) SubmitBatch(fns []func(), priority Priority) {
	if len(fns) == 0 {
		return
	}
	now := p.now()
	p.mu.Lock()
	for _, fn := range fns {
		p.global.pushBack(task{fn: wrap(fn), priority: priority, queuedAt: now})
	}
	p.mu.Unlock()

	p.stats.submitted.Add(uint64(len(fns)))
	p.pending.Add(int64(len(fns)))
	p.cfg.Metrics.IncrCounter("pool.submitted", float32(len(fns)))
	p.mu.Lock()
	p.cond.Broadcast()
	p.mu.Unlock()
}

func wrap(fn func()) func(a *Arena) { return func(*Arena) { fn() } }

func (p *Pool) now() time.Time { return time.Now() }

func (p *Pool) submit(fn func(a *Arena), priority Priority, blocking bool) bool {
	p.mu.Lock()
	for priority != PriorityCritical && p.cfg.Capacity > 0 && p.global.len() >= p.cfg.Capacity {
		if !blocking {
			p.mu.Unlock()
			p.stats.dropped.Add(1)
			p.cfg.Metrics.IncrCounter("pool.dropped", 1)
			return false
		}
		p.cond.Wait()
	}
	p.global.pushBack(task{fn: fn, priority: priority, queuedAt: p.now()})
	p.pending.Add(1)
	p.cond.Broadcast()
	p.mu.Unlock()

	p.stats.submitted.Add(1)
	p.cfg.Metrics.IncrCounter("pool.submitted", 1)
	return true
}

func (p *Pool) wakeAll() {
	p.mu.Lock()
	p.cond.Broadcast()
	p.mu.Unlock()
}

// workerLoop is the body every pool goroutine runs: local queue, then
// global queue, then steal from a random peer, then park until woken
// (spec.md §4.7 "Scheduling").
func (p *Pool) workerLoop(idx int) {
	defer p.wg.Done()
	for {
		t, ok := p.dequeue(idx)
		if ok {
			p.runTask(idx, t)
			continue
		}

		p.mu.Lock()
		for p.pending.Load() == 0 && !p.stopping.Load() {
			p.cond.Wait()
		}
		stopped := p.stopping.Load()
		halted := p.halting.Load()
		p.mu.Unlock()

		if stopped {
			if halted {
				return
			}
			if t, ok := p.dequeue(idx); ok {
				p.runTask(idx, t)
				continue
			}
			return
		}
	}
}

// dequeue tries, in order, this worker's own local queue, the global
// queue, then stealing from a random peer (spec.md §4.7).
func (p *Pool) dequeue(idx int) (task, bool) {
	lq := p.locals[idx]
	lq.mu.Lock()
	t, ok := lq.q.popFront()
	lq.mu.Unlock()
	if ok {
		p.pending.Add(-1)
		return t, true
	}

	p.mu.Lock()
	t, ok = p.global.popFront()
	p.mu.Unlock()
	if ok {
		p.pending.Add(-1)
		return t, true
	}

	if len(p.locals) > 1 {
		victim := rand.Intn(len(p.locals))
		if victim == idx {
			victim = (victim + 1) % len(p.locals)
		}
		vq := p.locals[victim]
		vq.mu.Lock()
		t, ok = vq.q.popBack()
		vq.mu.Unlock()
		if ok {
			p.pending.Add(-1)
			p.stats.stolen.Add(1)
			p.cfg.Metrics.IncrCounter("pool.stolen", 1)
			return t, true
		}
	}
	return task{}, false
}

func (p *Pool) runTask(idx int, t task) {
	waited := time.Since(t.queuedAt)
	p.stats.waitNs.Add(uint64(waited))
	p.cfg.Metrics.AddSample("pool.wait_ns", float32(waited))

	p.active.Add(1)
	arena := p.locals[idx].arena
	start := time.Now()

	func() {
		defer func() { recover() }()
		t.fn(arena)
	}()

	execDur := time.Since(start)
	arena.Reset()
	p.active.Add(-1)

	p.stats.completed.Add(1)
	p.stats.execNs.Add(uint64(execDur))
	p.cfg.Metrics.IncrCounter("pool.completed", 1)
	p.cfg.Metrics.AddSample("pool.exec_ns", float32(execDur))

	p.mu.Lock()
	p.cond.Broadcast() // wake WaitAll and any blocked submitters
	p.mu.Unlock()
}

// WaitAll blocks until the global queue, every local queue, and the set
// of currently-executing tasks are all empty (spec.md §4.7).
func (p *Pool) WaitAll() {
	p.mu.Lock()
	for p.pending.Load() > 0 || p.active.Load() > 0 {
		p.cond.Wait()
	}
	p.mu.Unlock()
}

// Shutdown drains every remaining queued task before joining all workers
// (spec.md §4.7 "shutdown() drains remaining tasks ... and joins all
// workers").
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.stopping.Store(true)
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

// Halt discards every pending task (counting them as dropped) and returns
// once any task already executing finishes, without draining the rest
// (spec.md §4.7 "halt() ... discards pending and returns immediately
// after current tasks complete").
func (p *Pool) Halt() {
	p.mu.Lock()
	discarded := int64(p.global.len())
	p.global = bandedQueue{}
	for _, lq := range p.locals {
		lq.mu.Lock()
		discarded += int64(lq.q.len())
		lq.q = bandedQueue{}
		lq.mu.Unlock()
	}
	p.pending.Add(-discarded)
	p.stopping.Store(true)
	p.halting.Store(true)
	p.cond.Broadcast()
	p.mu.Unlock()

	if discarded > 0 {
		p.stats.dropped.Add(uint64(discarded))
		p.cfg.Metrics.IncrCounter("pool.dropped", float32(discarded))
	}
	p.wg.Wait()
}

// Stats returns a point-in-time snapshot of the pool's counters.
func (p *Pool) Stats() Stats {
	active := p.active.Load()
	util := float64(0)
	if len(p.locals) > 0 {
		util = float64(active) / float64(len(p.locals))
	}
	return Stats{
		Submitted:       p.stats.submitted.Load(),
		Completed:       p.stats.completed.Load(),
		Stolen:          p.stats.stolen.Load(),
		Dropped:         p.stats.dropped.Load(),
		WaitTimeNsTotal: p.stats.waitNs.Load(),
		ExecTimeNsTotal: p.stats.execNs.Load(),
		Utilization:     util,
	}
}

// AsDispatchPool adapts p to the dispatch package's submission hook
// (internal/dispatch.Config.Pool), submitting at normal priority.
func (p *Pool) AsDispatchPool() func(task func()) {
	return func(task func()) { p.Submit(task, PriorityNormal) }
}
