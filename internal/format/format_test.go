package format

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"emberlog/internal/record"
)

func TestFormatTimeDefault(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 890_000_000, time.UTC)
	got := FormatTime(ts, "default")
	want := "2026-03-04 05:06:07.890"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestFormatTimeUnix(t *testing.T) {
	ts := time.Unix(1700000000, 0).UTC()
	if got := FormatTime(ts, "unix"); got != "1700000000" {
		t.Fatalf("got %q", got)
	}
}

func TestTextFormatterSeedScenario1(t *testing.T) {
	f := NewTextFormatter(TextConfig{
		Template: "[{time}] [{level}] {message}\n",
		Policy:   ColorOff,
	})
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := record.New(record.LevelInfo, "hello", ts)
	out, err := f.Format(r)
	if err != nil {
		t.Fatal(err)
	}
	want := "[2026-01-01 00:00:00.000] [INFO] hello\n"
	if string(out) != want {
		t.Fatalf("got %q want %q", out, want)
	}
}

func TestTextFormatterColorWrapsWholeLine(t *testing.T) {
	f := NewTextFormatter(TextConfig{
		Template:           "{level} {message}",
		Policy:             ColorOn,
		GlobalColorDisplay: true,
		SinkSupportsANSI:   true,
	})
	r := record.New(record.LevelError, "boom", time.Now())
	out, _ := f.Format(r)
	s := string(out)
	if !strings.HasPrefix(s, "\x1b[31m") || !strings.HasSuffix(s, ansiReset) {
		t.Fatalf("expected whole line wrapped in ANSI, got %q", s)
	}
	// The message itself must not be separately wrapped.
	if strings.Count(s, "\x1b[31m") != 1 {
		t.Fatalf("expected exactly one color escape, got %q", s)
	}
}

func TestTextFormatterNoColorWhenPolicyOff(t *testing.T) {
	f := NewTextFormatter(TextConfig{
		Template:           "{message}",
		Policy:             ColorOff,
		GlobalColorDisplay: true,
		SinkSupportsANSI:   true,
	})
	r := record.New(record.LevelError, "boom", time.Now())
	out, _ := f.Format(r)
	if strings.Contains(string(out), "\x1b[") {
		t.Fatalf("expected no ANSI codes, got %q", out)
	}
}

func TestTextFormatterUnknownPlaceholderLiteral(t *testing.T) {
	f := NewTextFormatter(TextConfig{Template: "{bogus} {message}", Policy: ColorOff})
	r := record.New(record.LevelInfo, "hi", time.Now())
	out, _ := f.Format(r)
	if string(out) != "{bogus} hi" {
		t.Fatalf("got %q", out)
	}
}

func TestJSONFormatterBasicFields(t *testing.T) {
	f := NewJSONFormatter(JSONConfig{})
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := record.New(record.LevelWarning, "careful", ts)
	out, err := f.Format(r)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatal(err)
	}
	if m["level"] != "WARNING" {
		t.Fatalf("level = %v", m["level"])
	}
	if m["message"] != "careful" {
		t.Fatalf("message = %v", m["message"])
	}
	tsMs, ok := m["timestamp"].(float64)
	if !ok || int64(tsMs) != ts.UnixMilli() {
		t.Fatalf("timestamp = %v", m["timestamp"])
	}
}

func TestJSONFormatterContextCollisionPrefixed(t *testing.T) {
	f := NewJSONFormatter(JSONConfig{})
	var ctx *record.Context
	ctx = ctx.Push(record.Field{Key: "level", Value: record.StringValue("custom")})
	r := record.New(record.LevelInfo, "m", time.Now()).WithContext(ctx)

	out, err := f.Format(r)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	json.Unmarshal(out, &m)
	if m["level"] != "INFO" {
		t.Fatalf("reserved level field got clobbered: %v", m["level"])
	}
	if m["ctx_level"] != "custom" {
		t.Fatalf("expected ctx_level binding, got %v", m["ctx_level"])
	}
}

func TestJSONFormatterPretty(t *testing.T) {
	f := NewJSONFormatter(JSONConfig{Pretty: true})
	r := record.New(record.LevelInfo, "m", time.Now())
	out, _ := f.Format(r)
	if !strings.Contains(string(out), "\n  \"") {
		t.Fatalf("expected 2-space indented output, got %q", out)
	}
}
