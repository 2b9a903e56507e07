package schedule

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New(Config{MaxConcurrentTasks: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Shutdown() })
	return s
}

// =============================================================================
// Cron validation
// =============================================================================

func TestAddTaskAcceptsValidCronExpression(t *testing.T) {
	s := newTestScheduler(t)
	_, err := s.AddTask(TaskConfig{
		Name:     "tick",
		Kind:     KindCustom,
		CronExpr: "*/5 * * * *",
		Run:      func() error { return nil },
	})
	if err != nil {
		t.Fatalf("expected valid cron expression to register, got: %v", err)
	}
}

func TestAddTaskRejectsInvalidCronExpression(t *testing.T) {
	s := newTestScheduler(t)
	_, err := s.AddTask(TaskConfig{
		Name:     "bad",
		Kind:     KindCustom,
		CronExpr: "not a cron expression",
		Run:      func() error { return nil },
	})
	if err == nil {
		t.Fatal("expected invalid cron expression to be rejected at registration")
	}
}

func TestAddTaskRejectsDuplicateName(t *testing.T) {
	s := newTestScheduler(t)
	cfg := TaskConfig{Name: "dupe", Kind: KindCustom, CronExpr: "@every 1h", Run: func() error { return nil }}
	if _, err := s.AddTask(cfg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := s.AddTask(cfg); err == nil {
		t.Fatal("expected duplicate task name to be rejected")
	}
}

func TestAddTaskRequiresCronOrDaily(t *testing.T) {
	s := newTestScheduler(t)
	_, err := s.AddTask(TaskConfig{Name: "neither", Kind: KindCustom, Run: func() error { return nil }})
	if err == nil {
		t.Fatal("expected a task with neither CronExpr nor Daily set to be rejected")
	}
}

// =============================================================================
// Daily scheduling
// =============================================================================

func TestAddTaskAcceptsDailySchedule(t *testing.T) {
	s := newTestScheduler(t)
	_, err := s.AddTask(TaskConfig{
		Name:  "midnight-sweep",
		Kind:  KindCustom,
		Daily: &DailyTime{Hour: 0, Minute: 0},
		Run:   func() error { return nil },
	})
	if err != nil {
		t.Fatalf("expected a daily schedule to register, got: %v", err)
	}
}

// =============================================================================
// Once
// =============================================================================

func TestOnceTaskFiresExactlyOnce(t *testing.T) {
	s := newTestScheduler(t)
	var runs atomic.Int32
	id, err := s.AddTask(TaskConfig{
		Name:     "boot-check",
		Kind:     KindCustom,
		CronExpr: "@every 1h",
		Once:     true,
		Run:      func() error { runs.Add(1); return nil },
	})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	s.runTask(id)
	s.runTask(id)
	s.runTask(id)

	if runs.Load() != 1 {
		t.Fatalf("expected a Once task to run exactly once, ran %d times", runs.Load())
	}
	stats, ok := s.TaskStats(id)
	if !ok || !stats.OnceFired {
		t.Fatalf("expected OnceFired to be recorded, got %+v ok=%v", stats, ok)
	}
}

// =============================================================================
// Disabled / SetEnabled
// =============================================================================

func TestDisabledTaskDoesNotFire(t *testing.T) {
	s := newTestScheduler(t)
	var runs atomic.Int32
	id, err := s.AddTask(TaskConfig{
		Name:     "quiet",
		Kind:     KindCustom,
		CronExpr: "@every 1h",
		Disabled: true,
		Run:      func() error { runs.Add(1); return nil },
	})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if s.Enabled(id) {
		t.Fatal("expected a task registered with Disabled: true to report Enabled() == false")
	}

	s.runTask(id)
	if runs.Load() != 0 {
		t.Fatal("expected a disabled task not to run")
	}

	s.SetEnabled(id, true)
	if !s.Enabled(id) {
		t.Fatal("expected SetEnabled(id, true) to re-enable the task")
	}
	s.runTask(id)
	if runs.Load() != 1 {
		t.Fatalf("expected the task to run once after being re-enabled, ran %d times", runs.Load())
	}
}

func TestTaskIsEnabledByDefault(t *testing.T) {
	s := newTestScheduler(t)
	id, err := s.AddTask(TaskConfig{Name: "default-on", Kind: KindCustom, CronExpr: "@every 1h", Run: func() error { return nil }})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if !s.Enabled(id) {
		t.Fatal("expected the zero value of Disabled (false) to mean the task defaults to enabled")
	}
}

// =============================================================================
// Retry on failure
// =============================================================================

func TestRetryOnFailureReschedulesAfterFailure(t *testing.T) {
	s := newTestScheduler(t)
	var attempts atomic.Int32
	id, err := s.AddTask(TaskConfig{
		Name:        "flaky",
		Kind:        KindCustom,
		CronExpr:    "@every 1h",
		RetryFailed: true,
		RetryDelay:  5 * time.Millisecond,
		MaxRetries:  3,
		Run: func() error {
			n := attempts.Add(1)
			if n < 3 {
				return errors.New("not yet")
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	s.runTask(id)
	deadline := time.After(2 * time.Second)
	for attempts.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected 3 attempts via retry, got %d", attempts.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}

	stats, ok := s.TaskStats(id)
	if !ok {
		t.Fatal("expected task stats to exist")
	}
	if stats.RunCount != 1 {
		t.Fatalf("expected exactly one successful run recorded, got %d", stats.RunCount)
	}
}

func TestRetryExhaustsAfterMaxRetries(t *testing.T) {
	s := newTestScheduler(t)
	var attempts atomic.Int32
	id, err := s.AddTask(TaskConfig{
		Name:        "always-fails",
		Kind:        KindCustom,
		CronExpr:    "@every 1h",
		RetryFailed: true,
		RetryDelay:  2 * time.Millisecond,
		MaxRetries:  2,
		Run:         func() error { attempts.Add(1); return errors.New("nope") },
	})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	s.runTask(id)
	time.Sleep(100 * time.Millisecond)

	if got := attempts.Load(); got != 3 { // 1 initial + 2 retries
		t.Fatalf("expected 1 initial attempt + 2 retries = 3 total, got %d", got)
	}
	stats, _ := s.TaskStats(id)
	if stats.FailureCount != 3 {
		t.Fatalf("expected all 3 attempts to be recorded as failures, got %d", stats.FailureCount)
	}
}

// =============================================================================
// Shutdown
// =============================================================================

func TestShutdownStopsAcceptingNewRuns(t *testing.T) {
	s, err := New(Config{MaxConcurrentTasks: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = s.AddTask(TaskConfig{Name: "noop", Kind: KindCustom, CronExpr: "@every 1h", Run: func() error { return nil }})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if err := s.Shutdown(); err != nil {
		t.Fatalf("expected Shutdown to succeed, got: %v", err)
	}
}

// =============================================================================
// Built-in kind executors
// =============================================================================

func TestRunCleanupKeepsNewestAndDeletesOldMatches(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "app.1.log")
	mid := filepath.Join(dir, "app.2.log")
	newest := filepath.Join(dir, "app.3.log")
	for _, p := range []string{old, mid, newest} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	now := time.Now()
	os.Chtimes(old, now.Add(-48*time.Hour), now.Add(-48*time.Hour))
	os.Chtimes(mid, now.Add(-36*time.Hour), now.Add(-36*time.Hour))
	os.Chtimes(newest, now, now)

	err := runCleanup(CleanupSpec{
		Dir:            dir,
		Glob:           "*.log",
		MaxAge:         24 * time.Hour,
		MinFilesToKeep: 1,
	}, now)
	if err != nil {
		t.Fatalf("runCleanup: %v", err)
	}

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("expected the oldest file beyond MinFilesToKeep to be deleted")
	}
	if _, err := os.Stat(newest); err != nil {
		t.Fatal("expected the newest file to survive cleanup")
	}
}

func TestRunRotationInvokesForceRotateCallback(t *testing.T) {
	var called atomic.Bool
	err := runRotation(RotationSpec{ForceRotate: func() error { called.Store(true); return nil }})
	if err != nil {
		t.Fatalf("runRotation: %v", err)
	}
	if !called.Load() {
		t.Fatal("expected ForceRotate callback to be invoked")
	}
}

func TestRunFlushRequiresCallback(t *testing.T) {
	if err := runFlush(FlushSpec{}); err == nil {
		t.Fatal("expected runFlush with no Flush callback to return an error")
	}
}

func TestRunHealthCheckInvokesEmit(t *testing.T) {
	var called atomic.Bool
	err := runHealthCheck(HealthCheckSpec{Emit: func() error { called.Store(true); return nil }})
	if err != nil {
		t.Fatalf("runHealthCheck: %v", err)
	}
	if !called.Load() {
		t.Fatal("expected Emit callback to be invoked")
	}
}
