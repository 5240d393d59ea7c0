package search

import (
	"strings"
	"unicode"
)

// Snippet shortens content to at most maxRunes runes, cutting at the last word
// boundary when one exists, and appends "...". maxRunes <= 0 returns content as-is.
func Snippet(content string, maxRunes int) string {
	runes := []rune(content)
	if maxRunes <= 0 || len(runes) <= maxRunes {
		return content
	}
	cut := runes[:maxRunes]
	for i := len(cut) - 1; i > 0; i-- {
		if unicode.IsSpace(cut[i]) {
			cut = cut[:i]
			break
		}
	}
	return strings.TrimRightFunc(string(cut), unicode.IsSpace) + "..."
}
