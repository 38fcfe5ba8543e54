package util

import (
	"strings"
	"unicode"
)

// NormalizeSpace replaces every whitespace character in s with a plain space.
// Runs of whitespace keep their length so character offsets into s stay valid.
func NormalizeSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, s)
}

// NormalizeSurface lowercases a mention string and trims the punctuation
// the linker tends to swallow at span boundaries.
func NormalizeSurface(s string) string {
	return strings.ToLower(strings.Trim(s, " .,"))
}
