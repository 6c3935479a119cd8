// Package pathengine implements the Output Path Engine of spec §4.5:
// resolving a timestamped output filename from a strftime-style
// pattern, and deciding when a timestamp has crossed into a later
// rotation window than the currently-open file. Grounded on the
// filename()/need_rotate() calls in original_source/src/
// blockcborwriter.cpp and pcapwriter.hpp; those headers' own
// OutputPattern type wasn't present in the retrieval pack, so the
// substitution grammar below follows strftime conventions directly
// (the convention the original's PATTERN string documents) rather
// than a file this workspace could cite verbatim.
package pathengine

import (
	"strconv"
	"strings"
	"time"
)

// Pattern resolves filenames from a strftime-subset pattern string.
// Recognised conversions: %Y %m %d %H %M %S %%; an unrecognised
// directive passes through unchanged rather than erroring, matching
// strftime's own permissiveness.
type Pattern struct {
	raw string
}

// NewPattern wraps an output-pattern string (spec §6's
// output_pattern config field).
func NewPattern(raw string) Pattern { return Pattern{raw: raw} }

// Filename substitutes timestamp components into the pattern and
// appends suggestedExt (the sink's SuggestedExtension()), per spec
// §4.5.
func (p Pattern) Filename(timestamp time.Time, suggestedExt string) string {
	return substitute(p.raw, timestamp) + suggestedExt
}

func substitute(pattern string, t time.Time) string {
	var b strings.Builder
	u := t.UTC()
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c != '%' || i == len(pattern)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		switch pattern[i] {
		case 'Y':
			b.WriteString(strconv.Itoa(u.Year()))
		case 'm':
			b.WriteString(pad2(int(u.Month())))
		case 'd':
			b.WriteString(pad2(u.Day()))
		case 'H':
			b.WriteString(pad2(u.Hour()))
		case 'M':
			b.WriteString(pad2(u.Minute()))
		case 'S':
			b.WriteString(pad2(u.Second()))
		case '%':
			b.WriteByte('%')
		default:
			b.WriteByte('%')
			b.WriteByte(pattern[i])
		}
	}
	return b.String()
}

func pad2(v int) string {
	if v < 10 {
		return "0" + strconv.Itoa(v)
	}
	return strconv.Itoa(v)
}

// NeedRotate reports whether timestamp falls in a later rotation
// window than openedAt, windows being rotationPeriod-second intervals
// aligned on epoch boundaries (spec §4.5). A non-positive
// rotationPeriod means rotation-by-period is disabled: it never
// fires.
func NeedRotate(openedAt, timestamp time.Time, rotationPeriod time.Duration) bool {
	if rotationPeriod <= 0 {
		return false
	}
	windowOf := func(t time.Time) int64 {
		return t.Unix() / int64(rotationPeriod.Seconds())
	}
	return windowOf(timestamp) > windowOf(openedAt)
}
