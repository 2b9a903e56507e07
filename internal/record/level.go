// Package record defines the immutable log event payload (Level, Record,
// Context) that flows through the rest of the pipeline. It has no
// dependency on any other emberlog package: every other package either
// consumes a Record or produces one.
package record

import (
	"fmt"
	"strings"
	"sync"
)

// Level is a log priority. Standard levels use the fixed integers from
// SPEC_FULL §6; custom levels may occupy any unused integer.
type Level int16

// Standard level priorities, per SPEC_FULL §6.
const (
	LevelTrace    Level = 5
	LevelDebug    Level = 10
	LevelInfo     Level = 20
	LevelNotice   Level = 22
	LevelSuccess  Level = 25
	LevelWarning  Level = 30
	LevelError    Level = 40
	LevelFail     Level = 45
	LevelCritical Level = 50
	LevelFatal    Level = 55
)

var builtinNames = map[Level]string{
	LevelTrace:    "TRACE",
	LevelDebug:    "DEBUG",
	LevelInfo:     "INFO",
	LevelNotice:   "NOTICE",
	LevelSuccess:  "SUCCESS",
	LevelWarning:  "WARNING",
	LevelError:    "ERROR",
	LevelFail:     "FAIL",
	LevelCritical: "CRITICAL",
	LevelFatal:    "FATAL",
}

// customLevel is a registered custom level: a name and a style hint.
type customLevel struct {
	name  string
	style string
}

// levelRegistry is the process-wide table of custom levels. Registration is
// rare (typically at startup) and reads happen on the logging hot path, so
// it is guarded by an RWMutex rather than copy-on-write; contention is not
// expected to matter here since registration is effectively write-once.
var levelRegistry = struct {
	mu    sync.RWMutex
	byLvl map[Level]customLevel
}{byLvl: make(map[Level]customLevel)}

// RegisterCustomLevel registers a custom level name and style hint for the
// given priority. If priority collides with a built-in or a previously
// registered custom level, the later registration wins for that priority
// (SPEC_FULL §8). The registry is keyed by priority only and keeps just
// the latest name: the earlier name is no longer rendered by String(), and
// no name->level lookup is provided for either name.
func RegisterCustomLevel(priority Level, name, styleHint string) {
	levelRegistry.mu.Lock()
	defer levelRegistry.mu.Unlock()
	levelRegistry.byLvl[priority] = customLevel{name: strings.ToUpper(name), style: styleHint}
}

// String renders the level's upper-case name for text and JSON output.
// Custom levels registered via RegisterCustomLevel take precedence over a
// built-in name at the same priority (last-writer-wins, SPEC_FULL §8).
func (l Level) String() string {
	levelRegistry.mu.RLock()
	if cl, ok := levelRegistry.byLvl[l]; ok {
		levelRegistry.mu.RUnlock()
		return cl.name
	}
	levelRegistry.mu.RUnlock()

	if name, ok := builtinNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int16(l))
}

// StyleHint returns the style hint registered for a custom level, or "" if
// l is a built-in level or unregistered.
func (l Level) StyleHint() string {
	levelRegistry.mu.RLock()
	defer levelRegistry.mu.RUnlock()
	return levelRegistry.byLvl[l].style
}

// IsCustom reports whether l has a registered custom name.
func (l Level) IsCustom() bool {
	levelRegistry.mu.RLock()
	defer levelRegistry.mu.RUnlock()
	_, ok := levelRegistry.byLvl[l]
	return ok
}
