package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var htmlPolicy = bluemonday.StrictPolicy()

// SanitizeString trims and bounds free-form text coming in through the
// admin API or spreadsheet import.
func SanitizeString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")

	if len(input) > 1000 {
		input = input[:1000]
	}

	return input
}

// SanitizeHTML removes all HTML tags.
func SanitizeHTML(input string) string {
	return htmlPolicy.Sanitize(input)
}

// SanitizeQuestionText is applied to question and answer titles before they
// enter the catalog.
func SanitizeQuestionText(input string) string {
	return SanitizeString(SanitizeHTML(input))
}
