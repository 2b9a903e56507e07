package format

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"emberlog/internal/record"
)

// TextConfig configures a TextFormatter.
type TextConfig struct {
	// Template holds the placeholder string, e.g.
	// "[{time}] [{level}] {message}".
	Template string
	// TimeLayout is passed to format.FormatTime for the {time} placeholder.
	TimeLayout string
	Colors     LevelColors
	Policy     ColorPolicy
	// GlobalColorDisplay mirrors a process-wide "colors enabled" switch.
	GlobalColorDisplay bool
	SinkSupportsANSI   bool
	ExplicitOverride   bool
	Diag               Diag
	Highlighters       []Highlighter
}

// TextFormatter renders a Record against a placeholder template.
type TextFormatter struct {
	cfg TextConfig
}

// NewTextFormatter constructs a TextFormatter. Unset fields get sane
// defaults: the spec's default time layout and colors.
func NewTextFormatter(cfg TextConfig) *TextFormatter {
	if cfg.Template == "" {
		cfg.Template = "[{time}] [{level}] {message}\n"
	}
	if cfg.TimeLayout == "" {
		cfg.TimeLayout = "default"
	}
	if cfg.Colors == nil {
		cfg.Colors = DefaultLevelColors()
	}
	if cfg.Diag == nil {
		cfg.Diag = DefaultDiag
	}
	return &TextFormatter{cfg: cfg}
}

// Format implements Formatter.
func (f *TextFormatter) Format(r record.Record) ([]byte, error) {
	line := substitutePlaceholders(f.cfg.Template, r, f.cfg.TimeLayout, f.cfg.Diag)

	if shouldColor(f.cfg.Policy, f.cfg.GlobalColorDisplay, f.cfg.SinkSupportsANSI, f.cfg.ExplicitOverride) {
		if style, ok := f.cfg.Colors[r.Level]; ok && style != "" {
			line = style + line + ansiReset
		}
	}
	return []byte(line), nil
}

// substitutePlaceholders replaces every {placeholder} recognized by
// spec.md §6; unknown placeholders render literally, unchanged.
func substitutePlaceholders(tmpl string, r record.Record, timeLayout string, diag Diag) string {
	var b strings.Builder
	b.Grow(len(tmpl) + 32)

	for i := 0; i < len(tmpl); {
		if tmpl[i] != '{' {
			b.WriteByte(tmpl[i])
			i++
			continue
		}
		end := strings.IndexByte(tmpl[i:], '}')
		if end < 0 {
			b.WriteString(tmpl[i:])
			break
		}
		end += i
		name := tmpl[i+1 : end]
		if val, ok := resolvePlaceholder(name, r, timeLayout, diag); ok {
			b.WriteString(val)
		} else {
			// Unknown placeholder: render literally, braces and all.
			b.WriteString(tmpl[i : end+1])
		}
		i = end + 1
	}
	return b.String()
}

func resolvePlaceholder(name string, r record.Record, timeLayout string, diag Diag) (string, bool) {
	switch {
	case name == "time":
		return FormatTime(r.Timestamp, timeLayout), true
	case name == "level":
		return r.Level.String(), true
	case name == "message":
		return r.Message, true
	case name == "module":
		return r.Source.Module, true
	case name == "function":
		return r.Source.Function, true
	case name == "file":
		return r.Source.File, true
	case name == "line":
		if r.Source.Line == 0 {
			return "", true
		}
		return strconv.Itoa(r.Source.Line), true
	case name == "caller":
		if !r.HasSource() {
			return "", true
		}
		return fmt.Sprintf("%s:%d in %s", r.Source.File, r.Source.Line, r.Source.Function), true
	case name == "trace_id":
		if r.TraceID.IsValid() {
			return r.TraceID.String(), true
		}
		return "", true
	case name == "span_id":
		if r.SpanID.IsValid() {
			return r.SpanID.String(), true
		}
		return "", true
	case name == "thread":
		return goroutineID(), true
	case strings.HasPrefix(name, "diag."):
		return resolveDiag(name[len("diag."):], diag)
	default:
		return "", false
	}
}

func resolveDiag(field string, diag Diag) (string, bool) {
	switch field {
	case "os":
		return diag.OS(), true
	case "arch":
		return diag.Arch(), true
	case "cpu":
		return diag.CPU(), true
	case "cores":
		return diag.Cores(), true
	case "ram_total_mb":
		return diag.RAMTotalMB(), true
	case "ram_avail_mb":
		return diag.RAMAvailMB(), true
	default:
		return "", false
	}
}

// goroutineID extracts the numeric id from runtime.Stack's leading
// "goroutine N [...]" line. This is not a stable or documented Go API
// contract, but it is the conventional way small Go tools recover a
// thread-like identifier for {thread}-style placeholders without cgo.
func goroutineID() string {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	s := string(buf[:n])
	const prefix = "goroutine "
	if !strings.HasPrefix(s, prefix) {
		return ""
	}
	s = s[len(prefix):]
	if sp := strings.IndexByte(s, ' '); sp >= 0 {
		return s[:sp]
	}
	return ""
}
