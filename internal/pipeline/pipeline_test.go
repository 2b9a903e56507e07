package pipeline

import (
	"testing"
	"time"

	"emberlog/internal/record"
)

// =============================================================================
// Stages.Run Tests
// =============================================================================

func TestStagesRunZeroValueAdmitsEverything(t *testing.T) {
	var s Stages
	r := record.New(record.LevelInfo, "hi", time.Now())
	out, admitted := s.Run(r)
	if !admitted {
		t.Fatal("zero-value Stages must admit (all stages identity)")
	}
	if out.Message != "hi" {
		t.Fatalf("expected message unchanged, got %q", out.Message)
	}
}

func TestStagesRunFilterDenyStopsPipeline(t *testing.T) {
	s := Stages{Filter: NewFilter(MinLevelRule{Level: record.LevelError})}
	r := record.New(record.LevelInfo, "hi", time.Now())
	_, admitted := s.Run(r)
	if admitted {
		t.Fatal("filter deny must stop the pipeline before redaction/rules")
	}
}

func TestStagesRunSamplerRejectStopsPipeline(t *testing.T) {
	s := Stages{Sampler: NewProbabilitySampler(0, 1)}
	r := record.New(record.LevelInfo, "hi", time.Now())
	_, admitted := s.Run(r)
	if admitted {
		t.Fatal("sampler rejection must stop the pipeline")
	}
}

func TestStagesRunOrderFilterThenSamplerThenRedactThenRules(t *testing.T) {
	red := NewRedactor(RedactionPattern{Kind: PatternContains, Pattern: "secret", Redaction: RedactFull})
	rules := NewRulesEngine(Rule{
		Condition:  ConditionFunc(func(r record.Record) bool { return r.Message == "[REDACTED] leaked" }),
		Annotation: record.Annotation{Category: "leak", Text: "matched-post-redaction"},
	})
	s := Stages{
		Filter:  NewFilter(MinLevelRule{Level: record.LevelInfo}),
		Sampler: NewProbabilitySampler(1, 1),
		Redact:  red,
		Rules:   rules,
	}
	r := record.New(record.LevelWarning, "secret leaked", time.Now())
	out, admitted := s.Run(r)
	if !admitted {
		t.Fatal("expected record to be admitted")
	}
	if out.Message != "[REDACTED] leaked" {
		t.Fatalf("expected redaction applied, got %q", out.Message)
	}
	if len(out.Annotations) != 1 || out.Annotations[0].Category != "leak" {
		t.Fatalf("expected rules engine to see the already-redacted message, got %+v", out.Annotations)
	}
}
