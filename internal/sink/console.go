package sink

import (
	"os"
	"sync/atomic"

	"emberlog/internal/format"
	"emberlog/internal/record"
)

// ConsoleConfig configures a Console sink.
type ConsoleConfig struct {
	Name      string
	Writer    *os.File // defaults to os.Stdout
	MinLevel  record.Level
	MaxLevel  record.Level // zero value means "no ceiling"; see Accepts
	Formatter format.Formatter
}

// Console writes formatted records to a file descriptor (typically stdout
// or stderr), unbuffered per spec.md §4.3 ("unbuffered for console").
type Console struct {
	name      string
	bw        *bufferedWriter
	formatter format.Formatter
	minLevel  record.Level
	maxLevel  record.Level
	enabled   atomic.Bool
}

// NewConsole builds a Console sink. If cfg.Writer is nil, os.Stdout is
// used.
func NewConsole(cfg ConsoleConfig) *Console {
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	c := &Console{
		name:      cfg.Name,
		bw:        newBufferedWriter(w, 0), // unbuffered
		formatter: cfg.Formatter,
		minLevel:  cfg.MinLevel,
		maxLevel:  cfg.MaxLevel,
	}
	c.enabled.Store(true)
	return c
}

func (c *Console) Write(formatted []byte, _ record.Record) error {
	return c.bw.write(formatted)
}

func (c *Console) Flush() error { return c.bw.flush() }

func (c *Console) Name() string { return c.name }

func (c *Console) Enabled() bool { return c.enabled.Load() }

// SetEnabled toggles the sink on or off without reconstructing it.
func (c *Console) SetEnabled(v bool) { c.enabled.Store(v) }

func (c *Console) Accepts(level record.Level) bool {
	if level < c.minLevel {
		return false
	}
	if c.maxLevel != 0 && level > c.maxLevel {
		return false
	}
	return true
}

// RotateIfNeeded is a no-op for Console; it never rotates.
func (c *Console) RotateIfNeeded() (*RotationEvent, error) { return nil, nil }

func (c *Console) Close() error { return c.Flush() }

var _ Sink = (*Console)(nil)
