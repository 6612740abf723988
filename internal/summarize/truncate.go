package summarize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Ellipsis marks text that was cut.
const Ellipsis = "..."

// Truncate shortens text to at most max runes. It cuts on a word boundary,
// never inside a word, and appends Ellipsis when anything was removed.
func Truncate(text string, max int) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	budget := max - utf8.RuneCountInString(Ellipsis)
	if budget <= 0 {
		return ""
	}

	runes := []rune(text)
	cut := budget
	// runes[cut] is the first rune dropped; if it is not a space we are
	// inside a word and must back up to the previous space.
	if !unicode.IsSpace(runes[cut]) {
		for cut > 0 && !unicode.IsSpace(runes[cut-1]) {
			cut--
		}
	}
	head := strings.TrimRightFunc(string(runes[:cut]), func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ';' || r == ':' || r == '-'
	})
	if head == "" {
		return Ellipsis
	}
	return head + Ellipsis
}
