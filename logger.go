// Package emberlog is a structured, high-throughput logging library: a
// fixed admission/transformation pipeline (filter, sampler, redactor,
// rule annotations), pluggable sinks dispatched synchronously or through
// an async ring buffer and work-stealing thread pool, rotating and
// compressing file sinks, and a cron-like task scheduler for cleanup,
// compression, rotation, flush, and health-check housekeeping.
package emberlog

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"emberlog/internal/archive"
	"emberlog/internal/compress"
	"emberlog/internal/dispatch"
	"emberlog/internal/format"
	"emberlog/internal/logging"
	"emberlog/internal/metrics"
	"emberlog/internal/parallelwrite"
	"emberlog/internal/pipeline"
	"emberlog/internal/pool"
	"emberlog/internal/record"
	"emberlog/internal/ring"
	"emberlog/internal/rotation"
	"emberlog/internal/schedule"
	"emberlog/internal/sink"
)

// namedSink pairs a constructed sink.Sink with the formatter that renders
// records for it.
type namedSink struct {
	sink      sink.Sink
	formatter format.Formatter
}

// Logger is emberlog's façade (spec.md §4.1). The zero Logger is not
// usable; construct one with New or NewDefault.
type Logger struct {
	mu    sync.RWMutex
	sinks map[string]*namedSink

	buf        *ring.Buffer
	dispatcher *dispatch.Dispatcher
	pool       *pool.Pool
	scheduler  *schedule.Scheduler

	stages  atomic.Pointer[pipeline.Stages]
	ctx     atomic.Pointer[record.Context]
	trace   atomic.Pointer[traceState]
	module  string

	onSinkError     func(string, *Error)
	shutdownTimeout time.Duration
	now             func() time.Time

	metrics *metrics.Recorder
	slogger *slog.Logger
}

// New constructs a Logger from cfg (spec.md §4.1 "init(config)").
func New(cfg Config) (*Logger, error) {
	l := &Logger{
		sinks:           make(map[string]*namedSink),
		onSinkError:     cfg.OnSinkError,
		shutdownTimeout: 5 * time.Second,
		now:             time.Now,
		metrics:         cfg.Metrics,
		slogger:         logging.Default(cfg.Logger),
	}
	if l.metrics == nil {
		l.metrics = metrics.Noop()
	}
	l.stages.Store(&pipeline.Stages{})
	l.ctx.Store(nil)

	if cfg.Async != nil && cfg.Async.ShutdownTimeout > 0 {
		l.shutdownTimeout = cfg.Async.ShutdownTimeout
	}

	if cfg.Pool != nil {
		l.pool = pool.New(pool.Config{
			Workers:   cfg.Pool.Workers,
			Capacity:  cfg.Pool.Capacity,
			ArenaSize: cfg.Pool.ArenaSize,
			Metrics:   metrics.New(nil, "pool"),
		})
	}

	// buildSinks must run after l.pool is constructed: buildRotatingFile
	// wires background compression and archive uploads onto l.pool, and a
	// nil pool here would silently make both run synchronously on the
	// rotation write path (spec.md §4.5, §4.4 step 8).
	if err := l.buildSinks(cfg.Sinks); err != nil {
		return nil, err
	}
	l.buildStages(cfg)

	if cfg.Async != nil && cfg.Async.Enabled {
		if err := l.buildAsync(*cfg.Async, cfg.ParallelWrite); err != nil {
			return nil, err
		}
	}

	if cfg.Scheduler != nil {
		if err := l.buildScheduler(*cfg.Scheduler); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// NewDefault builds a Logger from DefaultConfig() (spec.md §4.1
// "init_default()").
func NewDefault() (*Logger, error) { return New(DefaultConfig()) }

func (l *Logger) buildSinks(cfgs []SinkConfig) error {
	for _, sc := range cfgs {
		formatter := sc.Format.build()
		s, err := buildOneSink(sc, formatter, l.pool)
		if err != nil {
			return newError(KindConfigurationError, "sink.build", err)
		}
		l.sinks[sc.Name] = &namedSink{sink: s, formatter: formatter}
	}
	return nil
}

func buildOneSink(sc SinkConfig, formatter format.Formatter, p *pool.Pool) (sink.Sink, error) {
	switch sc.Type {
	case "console":
		return sink.NewConsole(sink.ConsoleConfig{
			Name:      sc.Name,
			Writer:    sc.Writer,
			MinLevel:  sc.MinLevel,
			MaxLevel:  sc.MaxLevel,
			Formatter: formatter,
		}), nil
	case "file":
		return sink.NewFile(sink.FileConfig{
			Name:       sc.Name,
			Path:       sc.Path,
			BufferSize: sc.BufferSize,
			MinLevel:   sc.MinLevel,
			MaxLevel:   sc.MaxLevel,
			Formatter:  formatter,
		})
	case "rotating_file":
		return buildRotatingFile(sc, formatter, p)
	default:
		if sc.Sink == nil {
			return nil, fmt.Errorf("sink %q: Type %q unrecognized and no pre-built Sink supplied", sc.Name, sc.Type)
		}
		return sc.Sink, nil
	}
}

func buildRotatingFile(sc SinkConfig, formatter format.Formatter, p *pool.Pool) (sink.Sink, error) {
	if sc.Rotation == nil {
		return nil, fmt.Errorf("sink %q: Type rotating_file requires Rotation", sc.Name)
	}
	rc := sc.Rotation

	var policies []rotation.Policy
	if rc.SizeLimit > 0 {
		policies = append(policies, rotation.SizePolicy{Limit: rc.SizeLimit})
	}
	if rc.UseInterval {
		policies = append(policies, rotation.IntervalPolicy{Every: rc.Interval})
	}
	policy := rotation.Policy(rotation.NeverRotatePolicy{})
	if len(policies) > 0 {
		policy = rotation.NewCompositePolicy(policies...)
	}

	var retention []rotation.RetentionPolicy
	if rc.RetentionCount > 0 {
		retention = append(retention, rotation.CountRetentionPolicy{MaxCount: rc.RetentionCount})
	}
	if rc.MaxAge > 0 {
		retention = append(retention, rotation.TTLRetentionPolicy{MaxAge: rc.MaxAge})
	}
	retentionPolicy := rotation.RetentionPolicy(rotation.NeverRetainPolicy{})
	if len(retention) > 0 {
		retentionPolicy = rotation.NewCompositeRetentionPolicy(retention...)
	}

	naming := rc.Naming
	if naming == nil {
		naming = rotation.BuiltinNaming{Kind: rotation.NamingTimestamp}
	}

	hooks := rotation.Hooks{}
	if rc.Compression != nil {
		codec, err := compress.NewCodec(rc.Compression.Algorithm)
		if err != nil {
			return nil, fmt.Errorf("sink %q: %w", sc.Name, err)
		}
		level := rc.Compression.Level
		background := rc.Compression.Background && p != nil
		hooks.Compress = func(path string) {
			if background {
				p.Submit(func() { compress.CompressFile(codec, level, path, path+codec.Extension()) }, pool.PriorityLow)
				return
			}
			compress.CompressFile(codec, level, path, path+codec.Extension())
		}
	}
	if rc.ArchiveDirectory != "" && archive.IsRemoteURI(rc.ArchiveDirectory) {
		up, err := archive.NewUploader(rc.ArchiveDirectory, metrics.New(nil, "archive"))
		if err != nil {
			return nil, fmt.Errorf("sink %q: %w", sc.Name, err)
		}
		var submit func(func())
		if p != nil {
			submit = p.AsDispatchPool()
		}
		hooks.Archive = archive.Hook(up, submit, nil)
	}

	dir, base, ext := splitRotationPath(sc.Path)
	return rotation.New(rotation.Config{
		Name:                  sc.Name,
		Dir:                   dir,
		BaseName:              base,
		Ext:                   ext,
		WriteMode:             rc.WriteMode,
		BufferSize:            sc.BufferSize,
		RotationPolicy:        policy,
		RetentionPolicy:       retentionPolicy,
		Naming:                naming,
		ArchiveDirectory:      localArchiveDir(rc.ArchiveDirectory),
		CleanEmptyDirs:        rc.CleanEmptyDirs,
		CompressionOnRotation: rc.Compression != nil,
		MinLevel:              sc.MinLevel,
		MaxLevel:              sc.MaxLevel,
		Formatter:             formatter,
		Hooks:                 hooks,
	})
}

// splitRotationPath breaks a configured sink path like "/var/log/app.log"
// into its directory, base name, and extension, the three pieces
// rotation.Config expects separately so it can compute rotated names
// without re-parsing the active path on every rotation.
func splitRotationPath(path string) (dir, base, ext string) {
	dir = filepath.Dir(path)
	name := filepath.Base(path)
	ext = filepath.Ext(name)
	base = strings.TrimSuffix(name, ext)
	return dir, base, ext
}

// localArchiveDir returns dir unchanged unless it is a cloud URI, in
// which case rotation moves nothing locally; the archive.Hook already
// handles the upload from the rotated path in place.
func localArchiveDir(dir string) string {
	if archive.IsRemoteURI(dir) {
		return ""
	}
	return dir
}

func (l *Logger) buildStages(cfg Config) {
	stages := &pipeline.Stages{}
	if cfg.Filter != nil {
		stages.Filter = pipeline.NewFilter(cfg.Filter.Rules...)
	}
	stages.Sampler = cfg.Sampler
	stages.Redact = cfg.Redactor
	if cfg.Rules != nil {
		stages.Rules = pipeline.NewRulesEngine(cfg.Rules.Rules...)
	}
	l.stages.Store(stages)
}

func (l *Logger) buildAsync(cfg AsyncConfig, pw *ParallelWriteConfig) error {
	l.buf = ring.NewBuffer(ring.Config{
		Capacity:      cfg.Capacity,
		Overflow:      cfg.Overflow,
		ExpandCeiling: cfg.ExpandCeiling,
		Metrics:       metrics.New(nil, "ringbuffer"),
	})

	bindings := make([]dispatch.SinkBinding, 0, len(l.sinks))
	for _, ns := range l.sinks {
		bindings = append(bindings, dispatch.SinkBinding{Sink: ns.sink, Formatter: ns.formatter})
	}

	var writer dispatch.Writer
	if l.pool != nil {
		pwCfg := parallelwrite.Config{Metrics: metrics.New(nil, "parallelwrite")}
		if pw != nil {
			pwCfg.MaxConcurrent = pw.MaxConcurrent
			pwCfg.RetryOnFailure = pw.RetryOnFailure
			pwCfg.MaxRetries = pw.MaxRetries
			pwCfg.BackoffBase = pw.BackoffBase
			pwCfg.BackoffMax = pw.BackoffMax
			pwCfg.FailFast = pw.FailFast
			pwCfg.Buffered = pw.Buffered
		}
		writer = parallelwrite.New(pwCfg)
	}

	var poolFn func(func())
	if l.pool != nil {
		poolFn = l.pool.AsDispatchPool()
	}

	l.dispatcher = dispatch.New(dispatch.Config{
		Buffer:          l.buf,
		Bindings:        bindings,
		Writer:          writer,
		BatchSize:       cfg.BatchSize,
		FlushInterval:   cfg.FlushInterval,
		MaxLatency:      cfg.MaxLatency,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Metrics:         metrics.New(nil, "dispatch"),
		Pool:            poolFn,
	})
	l.dispatcher.Start()
	return nil
}

func (l *Logger) buildScheduler(cfg SchedulerConfig) error {
	s, err := schedule.New(schedule.Config{
		MaxConcurrentTasks: cfg.MaxConcurrentTasks,
		Location:           cfg.Location,
		Logger:             l.slogger,
		Metrics:            metrics.New(nil, "scheduler"),
	})
	if err != nil {
		return newError(KindSchedulerError, "scheduler.new", err)
	}
	for _, t := range cfg.Tasks {
		if _, err := s.AddTask(t); err != nil {
			return newError(KindSchedulerError, "scheduler.add_task", err)
		}
	}
	l.scheduler = s
	return nil
}

// Bind returns a child Logger with key bound in its context, leaving the
// receiver untouched (spec.md §4.1 "bind(key, value)"). Because
// record.Context is an immutable linked list, this is an O(1) frame push,
// not a map copy.
func (l *Logger) Bind(key string, value any) *Logger {
	child := l.clone()
	child.ctx.Store(l.ctx.Load().Push(record.Field{Key: key, Value: toValue(value)}))
	return child
}

// Unbind returns a child Logger with key masked out of its context
// (spec.md §4.1 "unbind(key)").
func (l *Logger) Unbind(key string) *Logger {
	child := l.clone()
	child.ctx.Store(l.ctx.Load().Unbind(key))
	return child
}

// Scoped returns a child façade that layers an additional module label
// without copying the parent context (spec.md §4.1 "scoped(name)").
func (l *Logger) Scoped(module string) *Logger {
	child := l.clone()
	if child.module != "" {
		child.module = child.module + "." + module
	} else {
		child.module = module
	}
	return child
}

// clone shares every owned resource (sinks, dispatcher, pool, scheduler,
// pipeline stages) with l, copying only the per-caller state (context
// frame pointer, module label, trace state).
func (l *Logger) clone() *Logger {
	child := &Logger{
		sinks:           l.sinks,
		buf:             l.buf,
		dispatcher:      l.dispatcher,
		pool:            l.pool,
		scheduler:       l.scheduler,
		module:          l.module,
		onSinkError:     l.onSinkError,
		shutdownTimeout: l.shutdownTimeout,
		now:             l.now,
		metrics:         l.metrics,
		slogger:         l.slogger,
	}
	child.stages.Store(l.stages.Load())
	child.ctx.Store(l.ctx.Load())
	child.trace.Store(l.trace.Load())
	return child
}

func toValue(v any) record.Value {
	switch x := v.(type) {
	case string:
		return record.StringValue(x)
	case int:
		return record.IntValue(int64(x))
	case int64:
		return record.IntValue(x)
	case float64:
		return record.FloatValue(x)
	case bool:
		return record.BoolValue(x)
	case nil:
		return record.NullValue()
	default:
		return record.StringValue(fmt.Sprint(x))
	}
}

// SetFilter atomically swaps the pipeline's Filter stage (spec.md §4.1
// "set_filter: atomic pointer swap; old reference remains valid for
// concurrent readers until they complete").
func (l *Logger) SetFilter(f *pipeline.Filter) { l.swapStages(func(s *pipeline.Stages) { s.Filter = f }) }

// SetSampler atomically swaps the pipeline's Sampler stage.
func (l *Logger) SetSampler(s pipeline.Sampler) {
	l.swapStages(func(st *pipeline.Stages) { st.Sampler = s })
}

// SetRedactor atomically swaps the pipeline's Redactor stage.
func (l *Logger) SetRedactor(r *pipeline.Redactor) {
	l.swapStages(func(s *pipeline.Stages) { s.Redact = r })
}

// SetRules atomically swaps the pipeline's annotation rules engine.
func (l *Logger) SetRules(e *pipeline.RulesEngine) {
	l.swapStages(func(s *pipeline.Stages) { s.Rules = e })
}

func (l *Logger) swapStages(mutate func(*pipeline.Stages)) {
	for {
		old := l.stages.Load()
		next := *old
		mutate(&next)
		if l.stages.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Trace, Debug, Info, Notice, Success, Warning, Error, Fail, Critical,
// and Fatal log at the matching standard level (spec.md §6 level
// priorities).
func (l *Logger) Trace(message string)    { l.log(LevelTrace, message, nil) }
func (l *Logger) Debug(message string)    { l.log(LevelDebug, message, nil) }
func (l *Logger) Info(message string)     { l.log(LevelInfo, message, nil) }
func (l *Logger) Notice(message string)   { l.log(LevelNotice, message, nil) }
func (l *Logger) Success(message string)  { l.log(LevelSuccess, message, nil) }
func (l *Logger) Warning(message string)  { l.log(LevelWarning, message, nil) }
func (l *Logger) Error(message string)    { l.log(LevelError, message, nil) }
func (l *Logger) Fail(message string)     { l.log(LevelFail, message, nil) }
func (l *Logger) Critical(message string) { l.log(LevelCritical, message, nil) }
func (l *Logger) Fatal(message string)    { l.log(LevelFatal, message, nil) }

// Log dispatches a Record at level (spec.md §4.1 "log(level, message,
// source?) -> Result").
func (l *Logger) Log(level Level, message string) error { return l.log(level, message, nil) }

// Logf formats args into message before dispatch (spec.md §4.1
// "log_fmt(level, template, args, source?)").
func (l *Logger) Logf(level Level, template string, args ...any) error {
	return l.log(level, fmt.Sprintf(template, args...), nil)
}

func (l *Logger) log(level Level, message string, src *record.Source) error {
	r := record.New(level, message, l.now())
	if src != nil {
		r = r.WithSource(*src)
	} else if l.module != "" {
		r = r.WithSource(record.Source{Module: l.module})
	}
	if ctx := l.ctx.Load(); ctx != nil {
		r = r.WithContext(ctx)
	}
	if ts := l.trace.Load(); ts != nil {
		r = r.WithTrace(ts.TraceID, ts.SpanID)
	}

	stages := l.stages.Load()
	out, admitted := stages.Run(r)
	if !admitted {
		return nil
	}

	if l.buf != nil {
		out.QueuedAt = l.now()
		if res := l.buf.Push(ring.Entry{Record: out}); res == ring.PushOverflow {
			l.metrics.IncrCounter("logger.queue_full", 1)
			return newError(KindQueueFull, "log", fmt.Errorf("ring buffer overflow"))
		}
		l.dispatcher.Notify()
		return nil
	}

	l.writeSync(out)
	return nil
}

func (l *Logger) writeSync(r record.Record) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for name, ns := range l.sinks {
		if !ns.sink.Enabled() || !ns.sink.Accepts(r.Level) {
			continue
		}
		rendered, err := ns.formatter.Format(r)
		if err != nil {
			l.reportSinkError(name, newSinkError(KindSinkIOError, "format", name, err))
			continue
		}
		if err := ns.sink.Write(rendered, r); err != nil {
			l.reportSinkError(name, newSinkError(KindSinkIOError, "write", name, err))
		}
	}
}

func (l *Logger) reportSinkError(name string, err *Error) {
	if l.onSinkError != nil {
		l.onSinkError(name, err)
	}
}

// Flush completes all pending async writes across all sinks, blocking
// until drain completes or the configured shutdown timeout elapses
// (spec.md §4.1 "flush()").
func (l *Logger) Flush() error {
	if l.dispatcher != nil {
		if err := l.dispatcher.FlushNow(l.shutdownTimeout); err != nil {
			return newError(KindShutdownTimeout, "flush", err)
		}
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	for name, ns := range l.sinks {
		if err := ns.sink.Flush(); err != nil {
			return newSinkError(KindSinkIOError, "flush", name, err)
		}
	}
	return nil
}

// Close stops the dispatcher, the scheduler, and the thread pool (in
// that order, so nothing still feeds the pool once it shuts down), then
// closes every sink (spec.md §5 "Cancellation and timeouts").
func (l *Logger) Close() error {
	if l.dispatcher != nil {
		l.dispatcher.Stop()
	}
	if l.scheduler != nil {
		l.scheduler.Shutdown()
	}
	if l.pool != nil {
		l.pool.Shutdown()
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	var firstErr error
	for name, ns := range l.sinks {
		if err := ns.sink.Close(); err != nil && firstErr == nil {
			firstErr = newSinkError(KindSinkIOError, "close", name, err)
		}
	}
	return firstErr
}
