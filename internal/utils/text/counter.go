// Package text holds the small text helpers the blurb pipeline needs.
package text

// CountRunes measures a string in Unicode characters, not bytes. Blurb
// length limits are expressed in characters so Japanese titles and artist
// names count the same as ASCII ones.
func CountRunes(s string) int {
	return len([]rune(s))
}

// TruncateRunes cuts s to at most limit characters, appending an ellipsis
// when anything was dropped. A limit below one returns the empty string.
func TruncateRunes(s string, limit int) string {
	if limit < 1 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit == 1 {
		return "…"
	}
	return string(runes[:limit-1]) + "…"
}
