package service

import (
	"regexp"
	"strings"
)

var (
	emailExtractPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneExtractPattern = regexp.MustCompile(`(?:\+?1[\s.\-]?)?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}\b`)
	gpaContextPattern   = regexp.MustCompile(`(?i)\bgpa\b[^0-9]{0,20}([0-4](?:\.\d{1,2})?)\b`)
	gpaBarePattern      = regexp.MustCompile(`\b([0-4]\.\d{1,2})\b`)
)

// ExtractPattern pulls a structured value out of prose for categories with
// a recognizable shape. Broad semantic matches over freeform text may only
// answer high-stakes fields through this path, never verbatim.
func ExtractPattern(category FieldCategory, text string) (string, bool) {
	switch category {
	case CategoryEmail:
		if m := emailExtractPattern.FindString(text); m != "" {
			return m, true
		}
	case CategoryPhone:
		if m := phoneExtractPattern.FindString(text); m != "" {
			return strings.TrimSpace(m), true
		}
	case CategoryGPA:
		// Prefer a number that appears next to "GPA" in the text.
		if m := gpaContextPattern.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
		if m := gpaBarePattern.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// PatternExtractable reports whether the category has a structured
// extraction rule.
func PatternExtractable(category FieldCategory) bool {
	switch category {
	case CategoryEmail, CategoryPhone, CategoryGPA:
		return true
	}
	return false
}
