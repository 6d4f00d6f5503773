package validators

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// SanitizeString strips markup from free text, trims it and caps it at maxLen
// runes, the same unit validator's max tag counts.
func SanitizeString(input string, maxLen int) string {
	cleaned := html.UnescapeString(strictPolicy.Sanitize(input))
	trimmed := strings.TrimSpace(cleaned)
	if maxLen <= 0 || utf8.RuneCountInString(trimmed) <= maxLen {
		return trimmed
	}
	cut, n := 0, 0
	for i := range trimmed {
		if n == maxLen {
			cut = i
			break
		}
		n++
	}
	return strings.TrimSpace(trimmed[:cut])
}

// SanitizeOptional applies SanitizeString to an optional field. Blank input
// stays blank so required-notes checks still see it.
func SanitizeOptional(input *string, maxLen int) *string {
	if input == nil {
		return nil
	}
	cleaned := SanitizeString(*input, maxLen)
	return &cleaned
}
