package service

import (
	"regexp"
	"strings"
)

// Form labels arrive with decoration the matching stages must not see:
// required markers, character limits, inline instructions. The rules are
// applied in order and each may fire at most once.
var labelNoiseRules = []*regexp.Regexp{
	// Required markers and trailing asterisks.
	regexp.MustCompile(`\s*\*+\s*$`),
	// Parenthesized instructions and constraints.
	regexp.MustCompile(`(?i)\s*\((?:required|optional|if applicable|please[^)]*|select[^)]*|choose[^)]*|enter[^)]*|max[^)]*|\d+\s*(?:characters?|words?)[^)]*|e\.g\.[^)]*)\)`),
	// Instructions appended after a dash or colon.
	regexp.MustCompile(`(?i)\s*[-:]\s*(?:please|select|choose|enter|type|specify|pick|list)\b.*$`),
	// Trailing punctuation left over from the label itself.
	regexp.MustCompile(`\s*[:?]\s*$`),
}

// CleanQuery strips form-field decoration from a raw label, leaving the
// human-readable question text.
func CleanQuery(label string) string {
	cleaned := strings.TrimSpace(label)
	for _, rule := range labelNoiseRules {
		cleaned = rule.ReplaceAllString(cleaned, "")
	}
	return strings.Join(strings.Fields(cleaned), " ")
}

// NormalizeKey reduces a label to its canonical comparison key: lowercase
// with everything but letters and digits removed. "Field of Study *" and
// "field_of_study" collapse to the same key.
func NormalizeKey(label string) string {
	cleaned := CleanQuery(label)

	var b strings.Builder
	b.Grow(len(cleaned))
	for _, r := range strings.ToLower(cleaned) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// labelTokens splits a label into lowercase word tokens for dictionary
// matching. Token boundaries are anything non-alphanumeric, so
// "Field_of_Study" and "Field of Study" tokenize identically.
func labelTokens(label string) []string {
	cleaned := strings.ToLower(CleanQuery(label))
	return strings.FieldsFunc(cleaned, func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	})
}

// QueryVariants returns the semantic query rewrites tried during the broad
// fallback stage, most literal first.
func QueryVariants(cleaned string) []string {
	return []string{cleaned, cleaned + " degree", cleaned + " education"}
}
