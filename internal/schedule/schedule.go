// Package schedule implements the task scheduler spec.md §4.9 describes: a
// sorted set of due tasks dispatched to built-in kinds (cleanup,
// compression, rotation, flush, health_check, custom), with retry-on-failure
// and a fixed UTC-offset timezone for daily/weekly boundaries.
//
// It generalizes the teacher's internal/orchestrator/scheduler.go — the
// same gocron/v2 wrapper — retargeted from chunk-compression/index-build
// jobs to emberlog's task kinds. The API here is AddTask/RemoveTask/
// SetEnabled/TaskStats/Shutdown; no JobProgress/JobInfo/RunOnce/Submit/
// Rebuild counterparts exist.
package schedule

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dustinkirkland/golang-petname"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"emberlog/internal/logging"
	"emberlog/internal/metrics"
)

// Kind selects a built-in task behavior (spec.md §4.9).
type Kind string

const (
	KindCleanup     Kind = "cleanup"
	KindCompression Kind = "compression"
	KindRotation    Kind = "rotation"
	KindFlush       Kind = "flush"
	KindHealthCheck Kind = "health_check"
	KindCustom      Kind = "custom"
)

// DailyTime is a daily(h, m) schedule, evaluated in the Scheduler's fixed
// timezone offset (spec.md §4.9 "Timezone").
type DailyTime struct {
	Hour   int
	Minute int
}

// TaskConfig describes one registered task. Exactly one of the kind-specific
// spec fields matching Kind should be set; Run implements KindCustom.
type TaskConfig struct {
	Name string // generated via golang-petname if empty
	Kind Kind

	// Schedule: set exactly one of CronExpr or Daily.
	CronExpr string
	Daily    *DailyTime

	Cleanup     CleanupSpec
	Compression CompressionSpec
	Rotation    RotationSpec
	Flush       FlushSpec
	HealthCheck HealthCheckSpec
	Run         func() error // KindCustom

	Once bool // run once and stop firing, rather than recurring

	RetryFailed bool
	RetryDelay  time.Duration
	MaxRetries  int

	// Disabled registers the task without letting it fire, until
	// SetEnabled(id, true) is called.
	Disabled bool
}

// taskState tracks a registered task's runtime bookkeeping.
type taskState struct {
	cfg          TaskConfig
	id           string
	runCount     uint64
	failureCount uint64
	onceFired    bool
	retries      int
}

// Config configures a Scheduler.
type Config struct {
	MaxConcurrentTasks int
	// Location is the fixed timezone offset daily/weekly boundaries are
	// computed in (spec.md §4.9 "Timezone"). Defaults to UTC.
	Location *time.Location
	Logger   *slog.Logger
	Now      func() time.Time
	Metrics  *metrics.Recorder
}

// Scheduler wraps gocron.Scheduler, dispatching due tasks to the built-in
// kind executors.
type Scheduler struct {
	mu     sync.Mutex
	gs     gocron.Scheduler
	jobs   map[string]gocron.Job  // task id → job
	states map[string]*taskState  // task id → state
	names  map[string]string      // name → task id, for uniqueness
	logger *slog.Logger
	now    func() time.Time
	loc    *time.Location
	rec    *metrics.Recorder
}

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New constructs and starts a Scheduler.
func New(cfg Config) (*Scheduler, error) {
	if cfg.MaxConcurrentTasks <= 0 {
		cfg.MaxConcurrentTasks = 4
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Noop()
	}
	gs, err := gocron.NewScheduler(
		gocron.WithLimitConcurrentJobs(uint(cfg.MaxConcurrentTasks), gocron.LimitModeWait),
		gocron.WithLocation(cfg.Location),
	)
	if err != nil {
		return nil, fmt.Errorf("create task scheduler: %w", err)
	}
	s := &Scheduler{
		gs:     gs,
		jobs:   make(map[string]gocron.Job),
		states: make(map[string]*taskState),
		names:  make(map[string]string),
		logger: logging.Default(cfg.Logger),
		now:    cfg.Now,
		loc:    cfg.Location,
		rec:    cfg.Metrics,
	}
	gs.Start()
	return s, nil
}

// AddTask registers cfg, returning its generated task id. CronExpr, if set,
// is validated eagerly so a malformed expression is a configuration error
// at registration time rather than a job that silently never fires.
func (s *Scheduler) AddTask(cfg TaskConfig) (string, error) {
	if cfg.Name == "" {
		cfg.Name = petname.Generate(2, "-")
	}
	if cfg.CronExpr == "" && cfg.Daily == nil {
		return "", fmt.Errorf("task %s: must set CronExpr or Daily", cfg.Name)
	}
	if cfg.CronExpr != "" {
		if _, err := cronParser.Parse(cfg.CronExpr); err != nil {
			return "", fmt.Errorf("task %s: invalid cron expression %q: %w", cfg.Name, cfg.CronExpr, err)
		}
	}
	if cfg.RetryFailed && cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.names[cfg.Name]; exists {
		return "", fmt.Errorf("task name already registered: %s", cfg.Name)
	}

	id := uuid.Must(uuid.NewV7()).String()
	state := &taskState{cfg: cfg, id: id}

	def, err := s.jobDefinition(cfg)
	if err != nil {
		return "", err
	}

	j, err := s.gs.NewJob(
		def,
		gocron.NewTask(func() { s.runTask(id) }),
		gocron.WithName(cfg.Name),
	)
	if err != nil {
		return "", fmt.Errorf("task %s: register job: %w", cfg.Name, err)
	}

	s.jobs[id] = j
	s.states[id] = state
	s.names[cfg.Name] = id
	s.logger.Info("task registered", "name", cfg.Name, "kind", cfg.Kind, "id", id)
	return id, nil
}

func (s *Scheduler) jobDefinition(cfg TaskConfig) (gocron.JobDefinition, error) {
	withSeconds := len(strings.Fields(cfg.CronExpr)) >= 6
	switch {
	case cfg.Daily != nil:
		at := gocron.NewAtTime(uint(cfg.Daily.Hour), uint(cfg.Daily.Minute), 0)
		return gocron.DailyJob(1, gocron.NewAtTimes(at)), nil
	case cfg.Once:
		return gocron.OneTimeJob(gocron.OneTimeJobStartImmediately()), nil
	default:
		return gocron.CronJob(cfg.CronExpr, withSeconds), nil
	}
}

// RemoveTask stops and removes a registered task. No-op if unknown.
func (s *Scheduler) RemoveTask(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
}

func (s *Scheduler) removeLocked(id string) {
	j, ok := s.jobs[id]
	if !ok {
		return
	}
	if err := s.gs.RemoveJob(j.ID()); err != nil {
		s.logger.Warn("failed to remove task job", "id", id, "error", err)
	}
	if st, ok := s.states[id]; ok {
		delete(s.names, st.cfg.Name)
	}
	delete(s.jobs, id)
	delete(s.states, id)
}

// Enabled reports whether a registered task is currently enabled.
func (s *Scheduler) Enabled(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id]
	return ok && !st.cfg.Disabled
}

// SetEnabled toggles a task's enabled flag without removing its schedule.
func (s *Scheduler) SetEnabled(id string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[id]; ok {
		st.cfg.Disabled = !enabled
	}
}

// Stats is a point-in-time snapshot of one task's run bookkeeping.
type Stats struct {
	RunCount     uint64
	FailureCount uint64
	OnceFired    bool
}

// TaskStats returns a task's run bookkeeping, or ok=false if unknown.
func (s *Scheduler) TaskStats(id string) (Stats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id]
	if !ok {
		return Stats{}, false
	}
	return Stats{RunCount: st.runCount, FailureCount: st.failureCount, OnceFired: st.onceFired}, true
}

// runTask executes one due task (spec.md §4.9 "For each due task").
func (s *Scheduler) runTask(id string) {
	s.mu.Lock()
	st, ok := s.states[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	disabled := st.cfg.Disabled
	alreadyFired := st.cfg.Once && st.onceFired
	cfg := st.cfg
	s.mu.Unlock()

	if disabled || alreadyFired {
		return
	}

	err := s.dispatch(cfg)

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok = s.states[id]
	if !ok {
		return
	}
	if err == nil {
		st.runCount++
		st.retries = 0
		if cfg.Once {
			st.onceFired = true
		}
		s.rec.IncrCounter("schedule.run_success", 1)
		return
	}

	st.failureCount++
	s.rec.IncrCounter("schedule.run_failure", 1)
	s.logger.Error("scheduled task failed", "name", cfg.Name, "kind", cfg.Kind, "error", err)

	if cfg.RetryFailed && st.retries < cfg.MaxRetries {
		st.retries++
		delay := cfg.RetryDelay
		go func() {
			time.Sleep(delay)
			s.runTask(id)
		}()
	} else {
		st.retries = 0
	}
}

// dispatch routes cfg to its built-in kind executor (spec.md §4.9 "Built-in
// task kinds").
func (s *Scheduler) dispatch(cfg TaskConfig) error {
	switch cfg.Kind {
	case KindCleanup:
		return runCleanup(cfg.Cleanup, s.now())
	case KindCompression:
		return runCompression(cfg.Compression, s.now())
	case KindRotation:
		return runRotation(cfg.Rotation)
	case KindFlush:
		return runFlush(cfg.Flush)
	case KindHealthCheck:
		return runHealthCheck(cfg.HealthCheck)
	case KindCustom:
		if cfg.Run == nil {
			return fmt.Errorf("custom task %s has no Run callback", cfg.Name)
		}
		return cfg.Run()
	default:
		return fmt.Errorf("unknown task kind: %s", cfg.Kind)
	}
}

// Shutdown stops the scheduler, waiting for in-flight tasks to finish
// (spec.md §5 "scheduler.shutdown(timeout)").
func (s *Scheduler) Shutdown() error {
	return s.gs.Shutdown()
}
