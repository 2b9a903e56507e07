package sink

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"emberlog/internal/format"
	"emberlog/internal/record"
)

// WriteMode selects how a File sink opens its target path.
type WriteMode int

const (
	WriteAppend WriteMode = iota
	WriteTruncate
)

// FileConfig configures a non-rotating File sink.
type FileConfig struct {
	Name       string
	Path       string
	WriteMode  WriteMode
	BufferSize int // default 8 KiB, per spec.md §4.3
	MinLevel   record.Level
	MaxLevel   record.Level
	Formatter  format.Formatter
}

// File writes formatted records to a path on disk through a buffered
// writer (default 8 KiB, spec.md §4.3). File itself never rotates; the
// rotation package builds RotatingFile on top of the same open/write/flush
// primitives.
type File struct {
	mu   sync.Mutex
	name string
	path string
	f    *os.File
	bw   *bufferedWriter

	formatter format.Formatter
	minLevel  record.Level
	maxLevel  record.Level
	enabled   atomic.Bool
}

// NewFile opens cfg.Path per cfg.WriteMode and returns a File sink.
func NewFile(cfg FileConfig) (*File, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if cfg.WriteMode == WriteTruncate {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}
	f, err := os.OpenFile(cfg.Path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sink: open file %q: %w", cfg.Path, err)
	}
	bufSize := cfg.BufferSize
	if bufSize == 0 {
		bufSize = 8 * 1024
	}
	fs := &File{
		name:      cfg.Name,
		path:      cfg.Path,
		f:         f,
		bw:        newBufferedWriter(f, bufSize),
		formatter: cfg.Formatter,
		minLevel:  cfg.MinLevel,
		maxLevel:  cfg.MaxLevel,
	}
	fs.enabled.Store(true)
	return fs, nil
}

func (fs *File) Write(formatted []byte, _ record.Record) error {
	return fs.bw.write(formatted)
}

func (fs *File) Flush() error { return fs.bw.flush() }

func (fs *File) Name() string { return fs.name }

func (fs *File) Enabled() bool { return fs.enabled.Load() }

func (fs *File) SetEnabled(v bool) { fs.enabled.Store(v) }

func (fs *File) Accepts(level record.Level) bool {
	if level < fs.minLevel {
		return false
	}
	if fs.maxLevel != 0 && level > fs.maxLevel {
		return false
	}
	return true
}

func (fs *File) RotateIfNeeded() (*RotationEvent, error) { return nil, nil }

// Path reports the sink's current target path.
func (fs *File) Path() string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.path
}

func (fs *File) Close() error {
	if err := fs.Flush(); err != nil {
		fs.f.Close()
		return err
	}
	return fs.f.Close()
}

var _ Sink = (*File)(nil)
