package rotation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"emberlog/internal/format"
	"emberlog/internal/record"
	"emberlog/internal/sink"
)

// Hooks are optional callbacks RotatingFile invokes around a rotation
// (spec.md §4.4 steps 5 and 8). Leaving a hook nil skips that step.
// RotatingFile intentionally takes these as injected functions rather than
// importing the compression/archive/thread-pool packages directly, so the
// rotation engine itself stays a leaf package; the composition root
// (emberlog.Logger) wires the real compressor, archiver, and pool.
type Hooks struct {
	// Archive moves a rotated path into long-term storage (local dir or
	// cloud URI) and returns the final resting path.
	Archive func(rotatedPath string) (string, error)
	// Compress is handed the rotated (or archived) path when
	// CompressionOnRotation is set; it runs however the caller wants
	// (inline or, typically, submitted to the thread pool).
	Compress func(path string)
}

// Config configures a RotatingFile sink.
type Config struct {
	Name       string
	Dir        string
	BaseName   string // filename without extension, e.g. "app"
	Ext        string // e.g. ".log"
	WriteMode  sink.WriteMode
	BufferSize int

	RotationPolicy  Policy
	RetentionPolicy RetentionPolicy
	Naming          NamingStrategy

	ArchiveDirectory    string
	CleanEmptyDirs      bool
	CompressionOnRotation bool

	MinLevel  record.Level
	MaxLevel  record.Level
	Formatter format.Formatter

	Hooks Hooks

	// Now is injected for deterministic tests; defaults to time.Now.
	Now func() time.Time
}

// RotatingFile implements sink.Sink, wrapping an active *sink.File with
// rotation and retention per spec.md §4.4. All state mutation is
// serialized behind mu ("acquire the sink's write lock", step 1), so the
// public Write call never observes a closed or partially-renamed handle
// (the invariant in spec.md §4.4).
type RotatingFile struct {
	mu  sync.Mutex
	cfg Config
	now func() time.Time

	active    *sink.File
	state     ActiveFileState
	index     int
	formatter format.Formatter
	enabled   bool
}

// New opens the active file and returns a RotatingFile sink.
func New(cfg Config) (*RotatingFile, error) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.RotationPolicy == nil {
		cfg.RotationPolicy = NeverRotatePolicy{}
	}
	if cfg.RetentionPolicy == nil {
		cfg.RetentionPolicy = NeverRetainPolicy{}
	}
	if cfg.Naming == nil {
		cfg.Naming = BuiltinNaming{Kind: NamingTimestamp}
	}

	rf := &RotatingFile{cfg: cfg, now: cfg.Now, formatter: cfg.Formatter, enabled: true}
	if err := rf.openActive(); err != nil {
		return nil, err
	}
	return rf, nil
}

func (rf *RotatingFile) activePath() string {
	return filepath.Join(rf.cfg.Dir, rf.cfg.BaseName+rf.cfg.Ext)
}

func (rf *RotatingFile) openActive() error {
	f, err := sink.NewFile(sink.FileConfig{
		Name:       rf.cfg.Name,
		Path:       rf.activePath(),
		WriteMode:  rf.cfg.WriteMode,
		BufferSize: rf.cfg.BufferSize,
		MinLevel:   rf.cfg.MinLevel,
		MaxLevel:   rf.cfg.MaxLevel,
		Formatter:  rf.cfg.Formatter,
	})
	if err != nil {
		return err
	}
	rf.active = f
	rf.state = ActiveFileState{CreatedAt: rf.now()}
	return nil
}

// Write appends formatted to the active file, rotating first if the
// configured policy says the write would cross a trigger (spec.md §4.4:
// rotation decisions are evaluated "before each append").
func (rf *RotatingFile) Write(formatted []byte, rec record.Record) error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.cfg.RotationPolicy.ShouldRotate(rf.state, rf.now(), len(formatted)) {
		if err := rf.rotateLocked(); err != nil {
			return err
		}
	}
	if err := rf.active.Write(formatted, rec); err != nil {
		return err
	}
	rf.state.BytesWritten += uint64(len(formatted))
	return nil
}

// rotateLocked implements spec.md §4.4 steps 2–9; the caller already holds
// mu (step 1).
func (rf *RotatingFile) rotateLocked() error {
	if err := rf.active.Close(); err != nil {
		return fmt.Errorf("rotation: close active file: %w", err)
	}

	at := rf.now()
	rotatedName := rf.cfg.Naming.RotatedName(rf.cfg.BaseName, rf.cfg.Ext, at, rf.index)
	rotatedPath := filepath.Join(rf.cfg.Dir, rotatedName)
	if err := os.Rename(rf.activePath(), rotatedPath); err != nil {
		return fmt.Errorf("rotation: rename active file: %w", err)
	}
	rf.index++

	finalPath := rotatedPath
	if rf.cfg.ArchiveDirectory != "" {
		if rf.cfg.Hooks.Archive != nil {
			moved, err := rf.cfg.Hooks.Archive(rotatedPath)
			if err != nil {
				return fmt.Errorf("rotation: archive rotated file: %w", err)
			}
			finalPath = moved
		} else {
			if err := os.MkdirAll(rf.cfg.ArchiveDirectory, 0o755); err != nil {
				return fmt.Errorf("rotation: create archive directory: %w", err)
			}
			dest := filepath.Join(rf.cfg.ArchiveDirectory, rotatedName)
			if err := os.Rename(rotatedPath, dest); err != nil {
				return fmt.Errorf("rotation: move into archive directory: %w", err)
			}
			finalPath = dest
		}
	}

	if err := rf.openActive(); err != nil {
		return fmt.Errorf("rotation: open fresh active file: %w", err)
	}

	if err := rf.enforceRetentionLocked(); err != nil {
		return fmt.Errorf("rotation: enforce retention: %w", err)
	}

	if rf.cfg.CompressionOnRotation && rf.cfg.Hooks.Compress != nil {
		rf.cfg.Hooks.Compress(finalPath)
	}
	return nil
}

// enforceRetentionLocked implements spec.md §4.4 step 7.
func (rf *RotatingFile) enforceRetentionLocked() error {
	dir := rf.cfg.Dir
	if rf.cfg.ArchiveDirectory != "" {
		dir = rf.cfg.ArchiveDirectory
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var files []RotatedFile
	prefix := rf.cfg.BaseName + "."
	activeName := filepath.Base(rf.activePath())
	for _, e := range entries {
		if e.IsDir() || e.Name() == activeName || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, RotatedFile{
			Path:       filepath.Join(dir, e.Name()),
			ModTime:    info.ModTime(),
			Bytes:      info.Size(),
			Compressed: strings.HasSuffix(e.Name(), ".zst") || strings.HasSuffix(e.Name(), ".br") || strings.HasSuffix(e.Name(), ".lz4") || strings.HasSuffix(e.Name(), ".gz"),
		})
	}

	toDelete := rf.cfg.RetentionPolicy.Apply(VaultState{Files: files, Now: rf.now()})
	for _, path := range toDelete {
		os.Remove(path)
	}

	if rf.cfg.CleanEmptyDirs && rf.cfg.ArchiveDirectory != "" {
		remaining, err := os.ReadDir(rf.cfg.ArchiveDirectory)
		if err == nil && len(remaining) == 0 {
			os.Remove(rf.cfg.ArchiveDirectory)
		}
	}
	return nil
}

func (rf *RotatingFile) Flush() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	return rf.active.Flush()
}

func (rf *RotatingFile) Name() string { return rf.cfg.Name }

func (rf *RotatingFile) Enabled() bool {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	return rf.enabled
}

func (rf *RotatingFile) SetEnabled(v bool) {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	rf.enabled = v
}

func (rf *RotatingFile) Accepts(level record.Level) bool {
	if level < rf.cfg.MinLevel {
		return false
	}
	if rf.cfg.MaxLevel != 0 && level > rf.cfg.MaxLevel {
		return false
	}
	return true
}

// RotateIfNeeded forces the rotation decision outside of a write, e.g. for
// a scheduler-driven "rotation" task kind.
func (rf *RotatingFile) RotateIfNeeded() (*sink.RotationEvent, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	if !rf.cfg.RotationPolicy.ShouldRotate(rf.state, rf.now(), 0) {
		return nil, nil
	}
	before := rf.activePath()
	if err := rf.rotateLocked(); err != nil {
		return nil, err
	}
	return &sink.RotationEvent{PreviousPath: before, NewPath: rf.activePath()}, nil
}

// ForceRotate rotates unconditionally, bypassing RotationPolicy, for a
// scheduler-driven "rotation" task kind that rotates a named sink on
// demand (spec.md §4.9 built-in task kind "rotation").
func (rf *RotatingFile) ForceRotate() (*sink.RotationEvent, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	before := rf.activePath()
	if err := rf.rotateLocked(); err != nil {
		return nil, err
	}
	return &sink.RotationEvent{PreviousPath: before, NewPath: rf.activePath()}, nil
}

func (rf *RotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	return rf.active.Close()
}

var _ sink.Sink = (*RotatingFile)(nil)
