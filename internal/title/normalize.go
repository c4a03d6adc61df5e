package title

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	noisePattern       = regexp.MustCompile(`(?i)dvd|blu-ray|\bset\b|edition|\b\d{4}\b|-disc|blister pack|\bby\b|\bmovie\b|\bno\.\s\d+`)
	punctuationPattern = regexp.MustCompile(`[",:]`)
	emptyBracketsPattn = regexp.MustCompile(`\(\s*\)|\[\s*\]`)
	whitespacePattern  = regexp.MustCompile(`\s+`)
)

// MinSearchLength is the shortest normalized title worth searching for.
const MinSearchLength = 3

// Normalize lowercases raw, removes packaging noise and punctuation, and
// collapses whitespace. Passes repeat until the output is stable, so
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	current := raw
	for {
		next := normalizeOnce(current)
		if next == current {
			return next
		}
		current = next
	}
}

func normalizeOnce(s string) string {
	s = strings.ToLower(s)
	s = noisePattern.ReplaceAllString(s, "")
	s = punctuationPattern.ReplaceAllString(s, "")
	s = emptyBracketsPattn.ReplaceAllString(s, "")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Searchable reports whether a normalized title is long enough to search.
// Length is counted in characters, not bytes.
func Searchable(normalized string) bool {
	return utf8.RuneCountInString(normalized) >= MinSearchLength
}
