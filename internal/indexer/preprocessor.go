package indexer

import (
	"strings"
	"unicode"
)

// Preprocess trims text and collapses whitespace runs to one space. Applied to
// extracted file text, where layout whitespace carries no meaning.
func Preprocess(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	pendingSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
