package schedule

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"emberlog/internal/compress"
)

// CleanupSpec configures KindCleanup (spec.md §4.9: "cleanup — delete
// matching files older than max_age while keeping min_files_to_keep
// newest").
type CleanupSpec struct {
	Dir            string
	Glob           string // doublestar pattern, relative to Dir
	MaxAge         time.Duration
	MinFilesToKeep int
}

// CompressionSpec configures KindCompression (spec.md §4.9: "compression
// — compress matching files older than min_age_days").
type CompressionSpec struct {
	Dir       string
	Glob      string
	MinAge    time.Duration
	Codec     compress.Codec
	Level     int
	DeleteSrc bool // remove the uncompressed original after a successful compress
}

// RotationSpec configures KindRotation (spec.md §4.9: "rotation — force
// rotate a named sink").
type RotationSpec struct {
	// ForceRotate is bound to the target sink's ForceRotate method by the
	// caller; schedule never imports the rotation package directly so the
	// two packages stay decoupled leaves.
	ForceRotate func() error
}

// FlushSpec configures KindFlush (spec.md §4.9: "flush — logger.flush").
type FlushSpec struct {
	Flush func() error
}

// HealthCheckSpec configures KindHealthCheck (spec.md §4.9: "health_check
// — emit a diagnostics record"). Rendering the diagnostics placeholders
// themselves is internal/format's job; this just triggers the emit.
type HealthCheckSpec struct {
	Emit func() error
}

// runCleanup deletes files under spec.Dir matching spec.Glob that are
// older than spec.MaxAge, always keeping the spec.MinFilesToKeep
// newest-by-mtime files regardless of age.
func runCleanup(spec CleanupSpec, now time.Time) error {
	matches, err := globFiles(spec.Dir, spec.Glob)
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	if len(matches) <= spec.MinFilesToKeep {
		return nil
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].modTime.After(matches[j].modTime)
	})

	keep := spec.MinFilesToKeep
	if keep < 0 {
		keep = 0
	}
	var firstErr error
	for _, f := range matches[keep:] {
		if spec.MaxAge > 0 && now.Sub(f.modTime) < spec.MaxAge {
			continue
		}
		if err := os.Remove(f.path); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("cleanup: remove %s: %w", f.path, err)
		}
	}
	return firstErr
}

// runCompression compresses files under spec.Dir matching spec.Glob that
// are older than spec.MinAge, writing dst_or_same+extension per spec.md
// §4.5 and optionally deleting the uncompressed original.
func runCompression(spec CompressionSpec, now time.Time) error {
	if spec.Codec == nil {
		return fmt.Errorf("compression: no codec configured")
	}
	matches, err := globFiles(spec.Dir, spec.Glob)
	if err != nil {
		return fmt.Errorf("compression: %w", err)
	}

	var firstErr error
	for _, f := range matches {
		if spec.MinAge > 0 && now.Sub(f.modTime) < spec.MinAge {
			continue
		}
		dst := f.path + spec.Codec.Extension()
		if _, err := compress.CompressFile(spec.Codec, spec.Level, f.path, dst); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("compression: %s: %w", f.path, err)
			}
			continue
		}
		if spec.DeleteSrc {
			if err := os.Remove(f.path); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("compression: remove source %s: %w", f.path, err)
			}
		}
	}
	return firstErr
}

// runRotation invokes the caller-supplied ForceRotate, wiring the
// scheduler to whichever sink it was configured against.
func runRotation(spec RotationSpec) error {
	if spec.ForceRotate == nil {
		return fmt.Errorf("rotation: no ForceRotate callback configured")
	}
	return spec.ForceRotate()
}

// runFlush invokes the caller-supplied Flush.
func runFlush(spec FlushSpec) error {
	if spec.Flush == nil {
		return fmt.Errorf("flush: no Flush callback configured")
	}
	return spec.Flush()
}

// runHealthCheck invokes the caller-supplied Emit, which is expected to
// log a record carrying {diag.*} placeholders.
func runHealthCheck(spec HealthCheckSpec) error {
	if spec.Emit == nil {
		return fmt.Errorf("health_check: no Emit callback configured")
	}
	return spec.Emit()
}

type globMatch struct {
	path    string
	modTime time.Time
}

func globFiles(dir, pattern string) ([]globMatch, error) {
	if pattern == "" {
		pattern = "*"
	}
	fsys := os.DirFS(dir)
	names, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}

	matches := make([]globMatch, 0, len(names))
	for _, name := range names {
		full := filepath.Join(dir, name)
		info, err := os.Stat(full)
		if err != nil || info.IsDir() {
			continue
		}
		matches = append(matches, globMatch{path: full, modTime: info.ModTime()})
	}
	return matches, nil
}
