package pipeline

import (
	"testing"
	"time"

	"emberlog/internal/record"
)

// =============================================================================
// Filter Tests
// =============================================================================

func TestFilterNilIsIdentity(t *testing.T) {
	var f *Filter
	r := record.New(record.LevelTrace, "hi", time.Now())
	if !f.Admit(r) {
		t.Fatal("nil filter must admit everything")
	}
}

func TestFilterDefaultAllowWhenNoRuleMatches(t *testing.T) {
	f := NewFilter(ModulePrefixRule{Prefix: "db.", Allow: false})
	r := record.New(record.LevelInfo, "hi", time.Now()).WithSource(record.Source{Module: "http.handler"})
	if !f.Admit(r) {
		t.Fatal("expected default allow when no rule matches")
	}
}

func TestFilterMinLevelSeedScenario(t *testing.T) {
	// spec.md seed scenario 4: min_level=warning admits only
	// warning/error/critical.
	f := NewFilter(MinLevelRule{Level: record.LevelWarning})
	levels := []record.Level{record.LevelTrace, record.LevelDebug, record.LevelInfo}
	for _, lvl := range levels {
		r := record.New(lvl, "m", time.Now())
		if f.Admit(r) {
			t.Fatalf("level %s should not be admitted", lvl)
		}
	}
	admitted := []record.Level{record.LevelWarning, record.LevelError, record.LevelCritical}
	count := 0
	for _, lvl := range admitted {
		r := record.New(lvl, "m", time.Now())
		if f.Admit(r) {
			count++
		}
	}
	if count != 3 {
		t.Fatalf("expected exactly 3 admitted, got %d", count)
	}
}

func TestFilterMaxLevelDenies(t *testing.T) {
	f := NewFilter(MaxLevelRule{Level: record.LevelWarning})
	r := record.New(record.LevelError, "m", time.Now())
	if f.Admit(r) {
		t.Fatal("expected error level to be denied by max_level=warning")
	}
}

func TestFilterModulePrefixDenyShortCircuits(t *testing.T) {
	f := NewFilter(
		ModulePrefixRule{Prefix: "internal.", Allow: false},
		MessageSubstringRule{Substring: "always", Allow: true},
	)
	r := record.New(record.LevelInfo, "always visible", time.Now()).
		WithSource(record.Source{Module: "internal.secret"})
	if f.Admit(r) {
		t.Fatal("explicit deny on module prefix must short-circuit before the allow rule")
	}
}

func TestFilterMessageSubstringAllow(t *testing.T) {
	f := NewFilter(
		MessageSubstringRule{Substring: "heartbeat", Allow: true},
		MinLevelRule{Level: record.LevelCritical},
	)
	r := record.New(record.LevelDebug, "heartbeat ok", time.Now())
	if !f.Admit(r) {
		t.Fatal("expected explicit allow rule, evaluated first, to admit before the later min_level rule runs")
	}
}

func TestFilterIdempotentAdmitDecision(t *testing.T) {
	// Applying the same filter twice to the same record must yield the
	// same admit decision (spec.md §8 idempotence property).
	f := NewFilter(MinLevelRule{Level: record.LevelWarning})
	r := record.New(record.LevelInfo, "m", time.Now())
	first := f.Admit(r)
	second := f.Admit(r)
	if first != second {
		t.Fatalf("admit decision not idempotent: %v != %v", first, second)
	}
}
