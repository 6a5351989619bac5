package utils

import "strings"

// NormalizeAnswer folds a player's answer into the canonical form used as a
// key in the remaining-answers set: lowercased, trimmed, inner whitespace
// collapsed to single spaces, Russian "ё" treated as "е".
func NormalizeAnswer(input string) string {
	input = strings.ToLower(strings.TrimSpace(input))
	input = strings.ReplaceAll(input, "ё", "е")
	return strings.Join(strings.Fields(input), " ")
}

// TruncateText shortens text for chat messages and log fields.
func TruncateText(input string, max int) string {
	runes := []rune(input)
	if len(runes) <= max {
		return input
	}
	return string(runes[:max]) + "…"
}
