package service

import "time"

// VerifiedFreshnessWindow is how long a user-confirmed answer is trusted
// to outrank new extractions for the same field.
const VerifiedFreshnessWindow = 30 * 24 * time.Hour

// StalenessDecision says what to do with a freshly extracted value when a
// verified answer may already cover its field.
type StalenessDecision int

const (
	// StalenessStore keeps the extraction as an unverified candidate.
	StalenessStore StalenessDecision = iota
	// StalenessSkip drops the extraction because a verified answer is
	// still fresh.
	StalenessSkip
)

// EvaluateStaleness decides whether an incoming extraction should be kept.
// lastVerifiedAt is nil when the field has no verified answer. A verified
// answer younger than the freshness window suppresses the extraction; an
// older one no longer does, though it stays canonical until the user
// confirms a replacement.
func EvaluateStaleness(lastVerifiedAt *time.Time, now time.Time) StalenessDecision {
	if lastVerifiedAt == nil {
		return StalenessStore
	}
	if now.Sub(*lastVerifiedAt) < VerifiedFreshnessWindow {
		return StalenessSkip
	}
	return StalenessStore
}
