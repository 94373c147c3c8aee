package search

import "strings"

// NormalizeKeyword canonicalizes a keyword or query term for matching:
// surrounding whitespace is trimmed, interior runs of whitespace
// collapse to a single space, letters are lowercased, and the Cyrillic
// letter ё folds to е so both spellings compare equal.
func NormalizeKeyword(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "ё", "е")
	if !strings.ContainsAny(s, " \t\n\r") {
		return s
	}
	return strings.Join(strings.Fields(s), " ")
}
