package rotation

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NamingStrategy computes the rotated name for the active file going out
// of service (spec.md §4.4 step 3).
type NamingStrategy interface {
	RotatedName(base, ext string, at time.Time, index int) string
}

// NamingKind selects one of the built-in strategies.
type NamingKind int

const (
	NamingTimestamp NamingKind = iota
	NamingDate
	NamingISODatetime
	NamingIndex
	NamingTemplate
)

// BuiltinNaming implements NamingTimestamp, NamingDate, NamingISODatetime,
// and NamingIndex; NamingTemplate is handled by TemplateNaming.
type BuiltinNaming struct{ Kind NamingKind }

func (n BuiltinNaming) RotatedName(base, ext string, at time.Time, index int) string {
	switch n.Kind {
	case NamingTimestamp:
		return fmt.Sprintf("%s.%d%s", base, at.UnixMilli(), ext)
	case NamingDate:
		return fmt.Sprintf("%s.%s%s", base, at.Format("2006-01-02"), ext)
	case NamingISODatetime:
		return fmt.Sprintf("%s.%s%s", base, at.Format("2006-01-02T15:04:05"), ext)
	case NamingIndex:
		return fmt.Sprintf("%s.%d%s", base, index+1, ext)
	default:
		return fmt.Sprintf("%s.%d%s", base, at.UnixMilli(), ext)
	}
}

// TemplateNaming renders a user-supplied template against placeholders
// {base} {ext} {date} {time} {iso} {YYYY} {MM} {DD} {HH} {mm} {ss}
// (spec.md §4.4 step 3).
type TemplateNaming struct{ Template string }

func (n TemplateNaming) RotatedName(base, ext string, at time.Time, _ int) string {
	replacer := strings.NewReplacer(
		"{base}", base,
		"{ext}", ext,
		"{date}", at.Format("2006-01-02"),
		"{time}", at.Format("15-04-05"),
		"{iso}", at.Format("2006-01-02T15:04:05"),
		"{YYYY}", strconv.Itoa(at.Year()),
		"{MM}", twoDigit(int(at.Month())),
		"{DD}", twoDigit(at.Day()),
		"{HH}", twoDigit(at.Hour()),
		"{mm}", twoDigit(at.Minute()),
		"{ss}", twoDigit(at.Second()),
	)
	return replacer.Replace(n.Template)
}

func twoDigit(n int) string {
	s := strconv.Itoa(n)
	if len(s) < 2 {
		return "0" + s
	}
	return s
}
