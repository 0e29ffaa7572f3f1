package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ValidUTF8 returns s with invalid UTF-8 sequences replaced by the replacement character.
func ValidUTF8(s string) string {
	if !utf8.ValidString(s) {
		return strings.ToValidUTF8(s, "�")
	}
	return s
}

// CollapseWhitespace trims text and collapses every run of whitespace to a single space.
func CollapseWhitespace(text string) string {
	text = strings.TrimSpace(text)
	var b strings.Builder
	b.Grow(len(text))
	wasSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		} else {
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return b.String()
}
