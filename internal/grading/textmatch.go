package grading

import (
	"strings"
	"unicode"
)

// fold trims surrounding whitespace and lower-cases.
func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func isBlank(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}
