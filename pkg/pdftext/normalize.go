package pdftext

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	// "pharmaco-\nkinetics" -> "pharmacokinetics"
	reHyphenBreak = regexp.MustCompile(`(\p{L})-[ \t]*\r?\n[ \t]*(\p{Ll})`)
	reWhitespace  = regexp.MustCompile(`\s+`)
)

// Normalize prepares recovered text for prompting: NFKC folding (ligatures,
// full-width digits), de-hyphenation of words split across lines, removal of
// control and private-use runes, and a collapse of all whitespace runs into
// single spaces.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = norm.NFKC.String(s)
	s = reHyphenBreak.ReplaceAllString(s, "$1$2")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteByte(' ')
		case isGarbageRune(r):
			continue
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}

	return strings.TrimSpace(reWhitespace.ReplaceAllString(b.String(), " "))
}

func isGarbageRune(r rune) bool {
	switch {
	case r == unicode.ReplacementChar:
		return true
	case r >= 0xE000 && r <= 0xF8FF: // private use area
		return true
	case unicode.IsControl(r):
		return true
	}
	return false
}
