package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// =============================================================================
// Basic Execution
// =============================================================================

func TestSubmitExecutesTask(t *testing.T) {
	p := New(Config{Workers: 2})
	defer p.Shutdown()

	var ran atomic.Bool
	var wg sync.WaitGroup
	wg.Add(1)
	p.Submit(func() {
		ran.Store(true)
		wg.Done()
	}, PriorityNormal)

	waitOrTimeout(t, &wg)
	if !ran.Load() {
		t.Fatal("expected submitted task to run")
	}
}

func TestSubmitBatchRunsAllTasks(t *testing.T) {
	p := New(Config{Workers: 4})
	defer p.Shutdown()

	const n = 50
	var count atomic.Int64
	var wg sync.WaitGroup
	wg.Add(n)
	fns := make([]func(), n)
	for i := 0; i < n; i++ {
		fns[i] = func() {
			count.Add(1)
			wg.Done()
		}
	}
	p.SubmitBatch(fns, PriorityNormal)

	waitOrTimeout(t, &wg)
	if count.Load() != n {
		t.Fatalf("expected %d tasks to run, got %d", n, count.Load())
	}
}

func TestSubmitToWorkerPinsToLocalQueue(t *testing.T) {
	p := New(Config{Workers: 3})
	defer p.Shutdown()

	var wg sync.WaitGroup
	wg.Add(1)
	p.SubmitToWorker(1, func() { wg.Done() }, PriorityHigh)
	waitOrTimeout(t, &wg)
}

// =============================================================================
// Priority Ordering
// =============================================================================

func TestHigherPriorityBandDrainsFirstWithinQueue(t *testing.T) {
	q := &bandedQueue{}
	q.pushBack(task{priority: PriorityLow})
	q.pushBack(task{priority: PriorityCritical})
	q.pushBack(task{priority: PriorityNormal})

	first, ok := q.popFront()
	if !ok || first.priority != PriorityCritical {
		t.Fatalf("expected critical task first, got %+v ok=%v", first, ok)
	}
	second, _ := q.popFront()
	if second.priority != PriorityNormal {
		t.Fatalf("expected normal task second, got %+v", second)
	}
}

// =============================================================================
// Work Stealing
// =============================================================================

func TestWorkStealingDrainsOverloadedWorker(t *testing.T) {
	p := New(Config{Workers: 4})
	defer p.Shutdown()

	const n = 200
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		p.SubmitToWorker(0, func() {
			time.Sleep(time.Millisecond)
			wg.Done()
		}, PriorityNormal)
	}

	waitOrTimeout(t, &wg)
	if p.Stats().Stolen == 0 {
		t.Fatal("expected idle workers to steal at least one task from worker 0's backlog")
	}
}

// =============================================================================
// WaitAll / Shutdown / Halt
// =============================================================================

func TestWaitAllBlocksUntilQueueAndActiveAreEmpty(t *testing.T) {
	p := New(Config{Workers: 2})
	defer p.Shutdown()

	var ran atomic.Int64
	for i := 0; i < 10; i++ {
		p.Submit(func() {
			time.Sleep(2 * time.Millisecond)
			ran.Add(1)
		}, PriorityNormal)
	}
	p.WaitAll()
	if ran.Load() != 10 {
		t.Fatalf("expected WaitAll to block until all 10 tasks ran, got %d", ran.Load())
	}
}

func TestShutdownDrainsPendingTasks(t *testing.T) {
	p := New(Config{Workers: 2})
	var ran atomic.Int64
	for i := 0; i < 20; i++ {
		p.Submit(func() { ran.Add(1) }, PriorityNormal)
	}
	p.Shutdown()
	if ran.Load() != 20 {
		t.Fatalf("expected shutdown to drain all 20 tasks, got %d", ran.Load())
	}
}

func TestHaltDiscardsPendingTasks(t *testing.T) {
	p := New(Config{Workers: 1})

	blockCh := make(chan struct{})
	p.Submit(func() { <-blockCh }, PriorityNormal) // occupies the sole worker
	for i := 0; i < 10; i++ {
		p.Submit(func() {}, PriorityNormal)
	}
	time.Sleep(20 * time.Millisecond) // let the 10 extra tasks queue up

	// Release the blocker only after Halt has had time to discard the
	// queue; Halt then waits for the running task to return.
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(blockCh)
	}()
	p.Halt()

	if p.Stats().Dropped == 0 {
		t.Fatal("expected Halt to count discarded pending tasks as dropped")
	}
}

// =============================================================================
// TrySubmit / Capacity
// =============================================================================

func TestTrySubmitFailsWhenGlobalQueueFull(t *testing.T) {
	p := New(Config{Workers: 1, Capacity: 1})
	defer p.Halt()

	blockCh := make(chan struct{})
	defer close(blockCh)
	p.Submit(func() { <-blockCh }, PriorityNormal) // occupies the sole worker
	time.Sleep(10 * time.Millisecond)

	if ok := p.TrySubmit(func() {}, PriorityNormal); !ok {
		t.Fatal("expected the first queued slot under capacity 1 to succeed")
	}
	if ok := p.TrySubmit(func() {}, PriorityNormal); ok {
		t.Fatal("expected TrySubmit to fail once the bounded global queue is full")
	}
	if p.Stats().Dropped == 0 {
		t.Fatal("expected the failed TrySubmit to be counted as dropped")
	}
}

func TestCriticalPriorityBypassesCapacity(t *testing.T) {
	p := New(Config{Workers: 1, Capacity: 1})
	defer p.Shutdown()

	blockCh := make(chan struct{})
	p.Submit(func() { <-blockCh }, PriorityNormal)
	time.Sleep(10 * time.Millisecond)

	p.Submit(func() {}, PriorityNormal) // fills the bounded global queue to capacity

	done := make(chan struct{})
	go func() {
		p.Submit(func() {}, PriorityCritical) // must not block despite the full queue
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a critical submit to bypass the full capacity check")
	}
	close(blockCh)
}

// =============================================================================
// Stats
// =============================================================================

func TestStatsTrackSubmittedAndCompleted(t *testing.T) {
	p := New(Config{Workers: 2})
	defer p.Shutdown()

	var wg sync.WaitGroup
	wg.Add(5)
	for i := 0; i < 5; i++ {
		p.Submit(func() { wg.Done() }, PriorityNormal)
	}
	waitOrTimeout(t, &wg)
	p.WaitAll()

	stats := p.Stats()
	if stats.Submitted != 5 || stats.Completed != 5 {
		t.Fatalf("expected submitted=completed=5, got %+v", stats)
	}
}

// =============================================================================
// Helpers
// =============================================================================

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for tasks to complete")
	}
}
