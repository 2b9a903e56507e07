package emberlog

import (
	"log/slog"
	"os"
	"time"

	"emberlog/internal/compress"
	"emberlog/internal/format"
	"emberlog/internal/metrics"
	"emberlog/internal/pipeline"
	"emberlog/internal/record"
	"emberlog/internal/ring"
	"emberlog/internal/rotation"
	"emberlog/internal/schedule"
	"emberlog/internal/sink"
)

// Level is a log priority (spec.md §6). Re-exported from internal/record
// so callers never import an internal package directly.
type Level = record.Level

const (
	LevelTrace    = record.LevelTrace
	LevelDebug    = record.LevelDebug
	LevelInfo     = record.LevelInfo
	LevelNotice   = record.LevelNotice
	LevelSuccess  = record.LevelSuccess
	LevelWarning  = record.LevelWarning
	LevelError    = record.LevelError
	LevelFail     = record.LevelFail
	LevelCritical = record.LevelCritical
	LevelFatal    = record.LevelFatal
)

// RegisterCustomLevel registers a custom level name and style hint at the
// given priority (spec.md §6 "Custom levels occupy any unused integer").
func RegisterCustomLevel(priority Level, name, styleHint string) {
	record.RegisterCustomLevel(priority, name, styleHint)
}

// LevelColors maps a level to the ANSI escape sequence wrapping an entire
// rendered line (spec.md §4.3).
type LevelColors = format.LevelColors

// DefaultLevelColors is the built-in palette a console/file sink's
// Formatter falls back to when FormatStructureConfig.LevelColors is nil.
func DefaultLevelColors() LevelColors { return format.DefaultLevelColors() }

// Highlighters is a list of substring/regex highlight rules carried in a
// sink's format configuration. The Formatter does not apply them: they
// have no effect on the rendered line (see format.Highlighter).
type Highlighters = []format.Highlighter

// FormatStructureConfig selects and configures a sink's Formatter
// (spec.md §4.3, §6).
type FormatStructureConfig struct {
	// Kind is "text" or "json"; "" defaults to "text".
	Kind string

	// Text-formatter fields.
	Template           string // placeholder template; "" uses TextFormatter's default
	TimeLayout         string
	ColorPolicy        format.ColorPolicy
	LevelColors        LevelColors
	GlobalColorDisplay bool
	SinkSupportsANSI   bool
	Highlighters       Highlighters

	// JSON-formatter fields.
	Pretty           bool
	TimestampISO     bool
	CorrelationIDKey string
}

func (c FormatStructureConfig) build() format.Formatter {
	if c.Kind == "json" {
		return format.NewJSONFormatter(format.JSONConfig{
			TimestampISO:     c.TimestampISO,
			Pretty:           c.Pretty,
			CorrelationIDKey: c.CorrelationIDKey,
		})
	}
	return format.NewTextFormatter(format.TextConfig{
		Template:           c.Template,
		TimeLayout:         c.TimeLayout,
		Colors:             c.LevelColors,
		Policy:             c.ColorPolicy,
		GlobalColorDisplay: c.GlobalColorDisplay,
		SinkSupportsANSI:   c.SinkSupportsANSI,
		Highlighters:       c.Highlighters,
	})
}

// CompressionConfig configures the compression subsystem attached to a
// rotating file sink's CompressionOnRotation hook (spec.md §4.5).
type CompressionConfig struct {
	Algorithm  compress.Algorithm
	Level      int
	Background bool // run compress_file on the thread pool rather than inline
}

// RotationConfig configures a rotating file sink (spec.md §4.4).
type RotationConfig struct {
	SizeLimit      uint64        // bytes; 0 disables the size trigger
	Interval       rotation.Interval
	UseInterval    bool // whether Interval participates (zero value IntervalMinutely is valid)
	Naming         rotation.NamingStrategy
	WriteMode      sink.WriteMode
	RetentionCount int
	MaxAge         time.Duration
	CleanEmptyDirs bool

	// ArchiveDirectory is a local path or a s3://, azblob://, gs:// URI
	// (SPEC_FULL §4.4 expansion). A remote URI is resolved to an
	// internal/archive.Uploader by the Logger at construction time.
	ArchiveDirectory string

	Compression *CompressionConfig
}

// SinkConfig describes one sink a Logger writes to (spec.md §4.3, §6).
type SinkConfig struct {
	Name     string
	MinLevel Level
	MaxLevel Level
	Format   FormatStructureConfig

	// Type selects a built-in sink: "console", "file", or
	// "rotating_file". Leave "" and set Sink directly to attach a
	// pre-built sink.Sink (e.g. a netsink.Kafka/MQTT/RELP instance, or a
	// network_tcp/network_udp adapter the caller constructed).
	Type string

	// console
	Writer *os.File // nil means os.Stdout

	// file / rotating_file
	Path       string
	BufferSize int
	Rotation   *RotationConfig

	// Pre-built sink, used when Type == "" (spec.md §4.3 "polymorphic
	// over {console, file, network_tcp, network_udp, rotating_file,
	// event_log}" — network and event_log variants are constructed by
	// the caller via internal/netsink or their own sink.Sink and handed
	// in here).
	Sink sink.Sink
}

// AsyncConfig configures the ring buffer and dispatcher (spec.md §4.6).
type AsyncConfig struct {
	Enabled         bool
	Capacity        int
	ExpandCeiling   int
	Overflow        ring.OverflowPolicy
	BatchSize       int
	FlushInterval   time.Duration
	MaxLatency      time.Duration
	ShutdownTimeout time.Duration
}

// ThreadPoolConfig configures the work-stealing thread pool (spec.md
// §4.7).
type ThreadPoolConfig struct {
	Workers   int
	Capacity  int
	ArenaSize int
}

// ParallelWriteConfig configures the ParallelSinkWriter used when both
// Async and a thread pool are enabled (spec.md §4.8).
type ParallelWriteConfig struct {
	MaxConcurrent  int
	RetryOnFailure bool
	MaxRetries     int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	FailFast       bool
	Buffered       bool
}

// SchedulerConfig configures the task scheduler (spec.md §4.9).
type SchedulerConfig struct {
	Location           *time.Location
	CheckInterval      time.Duration
	MaxConcurrentTasks int
	Tasks              []schedule.TaskConfig
}

// FilterConfig is the ordered rule list Filter.admit evaluates (spec.md
// §4.2).
type FilterConfig struct {
	Rules []pipeline.FilterRule
}

// RulesConfig is the ordered list of annotation rules Rules.annotate
// evaluates (spec.md §4.2).
type RulesConfig struct {
	Rules []pipeline.Rule
}

// Config is the Logger's full construction-time configuration (spec.md
// §4.1 "init(config)", §6).
type Config struct {
	Sinks []SinkConfig

	Async *AsyncConfig
	Pool  *ThreadPoolConfig
	ParallelWrite *ParallelWriteConfig

	Scheduler *SchedulerConfig

	Filter   *FilterConfig
	Sampler  pipeline.Sampler
	Redactor *pipeline.Redactor
	Rules    *RulesConfig

	// OnSinkError is invoked when a sink's Write/Flush fails; it MUST
	// NOT block and MUST NOT panic (spec.md §4.1 "a sink failure is
	// reported via the sink_error callback but MUST NOT abort the log
	// call").
	OnSinkError func(sinkName string, err *Error)

	Metrics *metrics.Recorder
	Logger  *slog.Logger
}

// DefaultConfig returns the configuration init_default() builds from:
// one enabled console sink at LevelInfo with a text formatter, no async
// dispatch, no thread pool, no scheduler (spec.md §4.1 "constructs with
// an optional auto-added console sink per config").
func DefaultConfig() Config {
	return Config{
		Sinks: []SinkConfig{
			{Name: "console", Type: "console", MinLevel: LevelInfo},
		},
	}
}
