package util

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var reSpaces = regexp.MustCompile(`\s+`)

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// SplitMulti splits text on any of the given separators, trims every
// fragment and keeps those longer than minLen characters, in original order.
func SplitMulti(text string, separators []string, minLen int) []string {
	if len(separators) == 0 {
		separators = []string{"\n"}
	}
	unified := text
	for _, sep := range separators[1:] {
		unified = strings.ReplaceAll(unified, sep, separators[0])
	}
	parts := strings.Split(unified, separators[0])
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if utf8.RuneCountInString(p) > minLen {
			out = append(out, p)
		}
	}
	return out
}

// FuzzyMatch reports whether every rune of query occurs in text in order,
// ignoring case. An empty query matches any non-empty text.
func FuzzyMatch(text, query string) bool {
	if text == "" {
		return false
	}
	t := []rune(strings.ToLower(text))
	ti := 0
	for _, q := range strings.ToLower(query) {
		found := false
		for ti < len(t) {
			ti++
			if t[ti-1] == q {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func ContainsAny(text string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
