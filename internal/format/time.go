package format

import (
	"strconv"
	"strings"
	"time"
)

// timeTokens are recognized in longest-first order so "YYYY" is matched
// before "YY", "HH" before "H", etc. (SPEC_FULL / spec.md §6).
var timeTokens = []string{"YYYY", "SSS", "HH", "mm", "ss", "MM", "DD", "YY", "H", "M", "D", "m", "s"}

// FormatTime renders t according to layout. Two literals are recognized
// outright: "unix" (Unix seconds as a decimal string) and "ISO8601"
// (time.RFC3339Nano-ish ISO form). "default" resolves to the spec's
// default layout before token substitution. Any other layout is treated
// as a token template; unrecognized characters pass through unchanged.
func FormatTime(t time.Time, layout string) string {
	switch layout {
	case "unix":
		return strconv.FormatInt(t.Unix(), 10)
	case "ISO8601":
		return t.Format("2006-01-02T15:04:05.000Z07:00")
	case "default", "":
		layout = "YYYY-MM-DD HH:mm:ss.SSS"
	}
	return substituteTokens(t, layout)
}

func substituteTokens(t time.Time, layout string) string {
	var b strings.Builder
	for i := 0; i < len(layout); {
		matched := false
		for _, tok := range timeTokens {
			if strings.HasPrefix(layout[i:], tok) {
				b.WriteString(tokenValue(t, tok))
				i += len(tok)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(layout[i])
			i++
		}
	}
	return b.String()
}

func tokenValue(t time.Time, tok string) string {
	switch tok {
	case "YYYY":
		return pad(t.Year(), 4)
	case "YY":
		return pad(t.Year()%100, 2)
	case "MM":
		return pad(int(t.Month()), 2)
	case "M":
		return strconv.Itoa(int(t.Month()))
	case "DD":
		return pad(t.Day(), 2)
	case "D":
		return strconv.Itoa(t.Day())
	case "HH":
		return pad(t.Hour(), 2)
	case "H":
		return strconv.Itoa(t.Hour())
	case "mm":
		return pad(t.Minute(), 2)
	case "m":
		return strconv.Itoa(t.Minute())
	case "ss":
		return pad(t.Second(), 2)
	case "s":
		return strconv.Itoa(t.Second())
	case "SSS":
		return pad(t.Nanosecond()/1e6, 3)
	default:
		return tok
	}
}

func pad(n, width int) string {
	s := strconv.Itoa(n)
	for len(s) < width {
		s = "0" + s
	}
	return s
}
