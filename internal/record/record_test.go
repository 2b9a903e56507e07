package record

import (
	"testing"
	"time"
)

func TestRecordIsImmutableAfterConstruction(t *testing.T) {
	now := time.Now()
	r1 := New(LevelInfo, "hello", now)
	r2 := r1.WithSource(Source{File: "a.go", Line: 1})

	if r1.HasSource() {
		t.Fatal("original record should not have source after WithSource copy")
	}
	if !r2.HasSource() {
		t.Fatal("copy should carry the new source")
	}
	if r1.Message != "hello" || r2.Message != "hello" {
		t.Fatal("message must be preserved across copies")
	}
}

func TestContextPushDoesNotMutateParent(t *testing.T) {
	var base *Context
	c1 := base.Push(Field{Key: "a", Value: IntValue(1)})
	c2 := c1.Push(Field{Key: "b", Value: IntValue(2)})

	if c1.Len() != 1 {
		t.Fatalf("c1 should still have 1 key, got %d", c1.Len())
	}
	if c2.Len() != 2 {
		t.Fatalf("c2 should have 2 keys, got %d", c2.Len())
	}
}

func TestContextNewerBindingWins(t *testing.T) {
	var c *Context
	c = c.Push(Field{Key: "k", Value: IntValue(1)})
	c = c.Push(Field{Key: "k", Value: IntValue(2)})

	flat := c.Flatten()
	if flat["k"].Int != 2 {
		t.Fatalf("expected newest binding to win, got %v", flat["k"])
	}
}

func TestContextUnbind(t *testing.T) {
	var c *Context
	c = c.Push(Field{Key: "a", Value: IntValue(1)}, Field{Key: "b", Value: IntValue(2)})
	c = c.Unbind("a")

	flat := c.Flatten()
	if _, ok := flat["a"]; ok {
		t.Fatal("unbound key should not be visible")
	}
	if flat["b"].Int != 2 {
		t.Fatal("other keys must survive unbind")
	}
}

func TestRecordSnapshotIsolatesFromLaterBinds(t *testing.T) {
	var c *Context
	c = c.Push(Field{Key: "req", Value: StringValue("1")})
	r := New(LevelInfo, "m", time.Now()).WithContext(c)

	// Simulate a later bind on the logger's context; r must be unaffected
	// because Context.Push never mutates c.
	_ = c.Push(Field{Key: "req", Value: StringValue("2")})

	if r.Context().Flatten()["req"].Str != "1" {
		t.Fatal("record's snapshotted context must not observe later binds")
	}
}

func TestCustomLevelLastWriterWins(t *testing.T) {
	RegisterCustomLevel(31, "ALPHA", "bold")
	RegisterCustomLevel(31, "BETA", "faint")

	if got := Level(31).String(); got != "BETA" {
		t.Fatalf("expected last registration to win, got %q", got)
	}
}

func TestBuiltinLevelNames(t *testing.T) {
	cases := map[Level]string{
		LevelTrace: "TRACE", LevelInfo: "INFO", LevelWarning: "WARNING",
		LevelError: "ERROR", LevelFatal: "FATAL",
	}
	for lvl, want := range cases {
		if got := lvl.String(); got != want {
			t.Fatalf("level %d: got %q want %q", lvl, got, want)
		}
	}
}

func TestShouldCaptureStack(t *testing.T) {
	if ShouldCaptureStack(LevelInfo, true) {
		t.Fatal("info should not capture stack even if enabled")
	}
	if !ShouldCaptureStack(LevelError, true) {
		t.Fatal("error should capture stack when enabled")
	}
	if ShouldCaptureStack(LevelError, false) {
		t.Fatal("error should not capture stack when disabled")
	}
}
