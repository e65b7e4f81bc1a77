package tui

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxLine bounds a printed log line.
const DefaultMaxLine = 4096

// Sanitize makes backend text safe to print on a terminal: invalid UTF-8 is
// replaced, control characters other than tab are stripped (ANSI escapes,
// NUL, BEL, and line breaks that would forge extra log lines), and the
// result is cut to max bytes with an ellipsis.
func Sanitize(s string, max int) string {
	if max <= 0 {
		max = DefaultMaxLine
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}

	// Fast path: if no control chars, keep the string.
	clean := true
	for _, r := range s {
		if unicode.IsControl(r) && r != '\t' {
			clean = false
			break
		}
	}
	if !clean {
		var b strings.Builder
		b.Grow(len(s))
		for _, r := range s {
			switch {
			case r == '\n' || r == '\r':
				b.WriteRune(' ')
			case !unicode.IsControl(r) || r == '\t':
				b.WriteRune(r)
			}
		}
		s = b.String()
	}

	if len(s) > max {
		cut := max
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "…"
	}
	return s
}
