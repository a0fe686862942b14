package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Control characters are dropped, everything else is NFC normalized so the
// same review text or name compares equal however it was typed.
var textCleaner = transform.Chain(runes.Remove(runes.Predicate(isStrippedControl)), norm.NFC)

func isStrippedControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t'
}

// SanitizeString trims free text and caps it at maxLen runes.
func SanitizeString(input string, maxLen int) string {
	cleaned, _, err := transform.String(textCleaner, input)
	if err != nil {
		cleaned = input
	}
	cleaned = strings.TrimSpace(cleaned)
	if maxLen <= 0 || utf8.RuneCountInString(cleaned) <= maxLen {
		return cleaned
	}
	return strings.TrimSpace(string([]rune(cleaned)[:maxLen]))
}
