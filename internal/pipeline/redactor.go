package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"

	"emberlog/internal/record"
)

// PatternKind identifies how a RedactionPattern matches text (spec.md
// §4.2).
type PatternKind int

const (
	PatternExact PatternKind = iota
	PatternPrefix
	PatternSuffix
	PatternContains
	// PatternSimpleGlob matches the small pattern alphabet spec.md names
	// verbatim: *, +, ., \d, \w, \s. That alphabet is regular-expression
	// syntax, not filesystem glob syntax, so it is compiled with the
	// standard library's regexp rather than a glob matcher — see
	// DESIGN.md for why no pack library covers this; doublestar (used
	// elsewhere in this repository for filesystem glob matching) does not
	// understand \d/\w/\s.
	PatternSimpleGlob
)

// RedactionKind identifies how matched text is rewritten (spec.md §4.2).
type RedactionKind int

const (
	RedactFull RedactionKind = iota
	RedactPartialStart
	RedactPartialEnd
	RedactMaskMiddle
	RedactHash
)

// RedactionPattern is one entry in a Redactor's ordered pattern list.
type RedactionPattern struct {
	Kind      PatternKind
	Pattern   string
	Redaction RedactionKind

	compiled *regexp.Regexp // only set for PatternSimpleGlob
}

func compilePattern(p RedactionPattern) RedactionPattern {
	if p.Kind == PatternSimpleGlob {
		p.compiled = regexp.MustCompile(p.Pattern)
	}
	return p
}

func (p RedactionPattern) matches(s string) (start, end int, ok bool) {
	switch p.Kind {
	case PatternExact:
		if s == p.Pattern {
			return 0, len(s), true
		}
	case PatternPrefix:
		if len(s) >= len(p.Pattern) && s[:len(p.Pattern)] == p.Pattern {
			return 0, len(p.Pattern), true
		}
	case PatternSuffix:
		if len(s) >= len(p.Pattern) && s[len(s)-len(p.Pattern):] == p.Pattern {
			return len(s) - len(p.Pattern), len(s), true
		}
	case PatternContains:
		if idx := indexOf(s, p.Pattern); idx >= 0 {
			return idx, idx + len(p.Pattern), true
		}
	case PatternSimpleGlob:
		if loc := p.compiled.FindStringIndex(s); loc != nil {
			return loc[0], loc[1], true
		}
	}
	return 0, 0, false
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

// redact rewrites the matched [start:end) slice of s per kind. The
// surrounding text (outside the match) is left untouched; kind's
// keep-N-characters semantics apply to the matched substring itself.
func redact(s string, start, end int, kind RedactionKind) string {
	matched := s[start:end]
	var replacement string
	switch kind {
	case RedactFull:
		replacement = "[REDACTED]"
	case RedactPartialStart:
		replacement = keepLast(matched, 4)
	case RedactPartialEnd:
		replacement = keepFirst(matched, 4)
	case RedactMaskMiddle:
		replacement = maskMiddle(matched, 3, 3)
	case RedactHash:
		replacement = shortHash(matched)
	default:
		replacement = "[REDACTED]"
	}
	return s[:start] + replacement + s[end:]
}

func keepLast(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "***" + s[len(s)-n:]
}

func keepFirst(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "***"
}

func maskMiddle(s string, keepStart, keepEnd int) string {
	if len(s) <= keepStart+keepEnd {
		return s
	}
	return s[:keepStart] + "***" + s[len(s)-keepEnd:]
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:4])
}

// Redactor applies an ordered list of RedactionPatterns to text (spec.md
// §4.2). Patterns are evaluated in registration order; for each match the
// corresponding redaction is applied in place. A nil *Redactor returns
// text unchanged (identity, spec.md §4.1).
//
// Apply never mutates its input; if no pattern matches, the original
// string header is returned borrowed (no allocation). Once any pattern
// matches, the remainder of the pass works on a freshly built string.
type Redactor struct {
	patterns []RedactionPattern
}

// NewRedactor compiles and stores the given patterns in order.
func NewRedactor(patterns ...RedactionPattern) *Redactor {
	compiled := make([]RedactionPattern, len(patterns))
	for i, p := range patterns {
		compiled[i] = compilePattern(p)
	}
	return &Redactor{patterns: compiled}
}

// Apply runs every pattern against text in order, applying each match's
// redaction before moving to the next pattern (so later patterns see
// already-redacted text, closing over previously matched spans).
func (red *Redactor) Apply(text string) string {
	if red == nil {
		return text
	}
	for _, p := range red.patterns {
		text = applyPattern(text, p)
	}
	return text
}

// applyPattern redacts every non-overlapping match of p in text, scanning
// forward from the end of each replacement rather than re-scanning from
// the start. A RedactFull replacement like "[REDACTED]" can itself
// contain characters the pattern matches (e.g. a glob matching any of
// D/E/T); re-scanning from position 0 would match the replacement and
// loop forever, so the scan only ever looks past what it has already
// written.
func applyPattern(text string, p RedactionPattern) string {
	offset := 0
	for offset <= len(text) {
		start, end, ok := p.matches(text[offset:])
		if !ok {
			break
		}
		absStart, absEnd := offset+start, offset+end
		tail := text[absEnd:]
		text = redact(text, absStart, absEnd, p.Redaction)
		offset = len(text) - len(tail)
	}
	return text
}

// ApplyContext redacts every string-valued field in a flattened context
// map, returning a new map (spec.md §4.2 "and analogously on context
// values"). Non-string values pass through unchanged.
func (red *Redactor) ApplyContext(fields map[string]record.Value) map[string]record.Value {
	if red == nil || len(fields) == 0 {
		return fields
	}
	out := make(map[string]record.Value, len(fields))
	for k, v := range fields {
		if v.Kind == record.KindString {
			out[k] = record.StringValue(red.Apply(v.Str))
		} else {
			out[k] = v
		}
	}
	return out
}
