package service

import (
	"strings"

	"github.com/fieldbankhq/fieldbank/internal/domain"
)

// Candidate is one stored answer competing to fill a field.
type Candidate struct {
	EntryID    string
	Value      string
	Verified   bool
	Confidence float64
}

// PickCandidate applies the conflict rule to a stage's candidate set.
// Candidates agreeing on a single distinct value (exact equality after
// whitespace trimming) collapse to the strongest of them: verified wins,
// then higher confidence. More than one distinct value means nobody can
// safely answer and the caller must defer to the user.
//
// Equality is deliberately literal. "CS" and "Computer Science" are
// different values here; recognizing synonyms is a resolver concern, not a
// conflict-detection one.
func PickCandidate(cands []Candidate) (best *Candidate, conflict bool) {
	distinct := map[string]bool{}
	for i := range cands {
		value := strings.TrimSpace(cands[i].Value)
		if value == "" {
			continue
		}
		distinct[value] = true
		if best == nil || stronger(&cands[i], best) {
			best = &cands[i]
		}
	}
	if len(distinct) > 1 {
		return nil, true
	}
	return best, false
}

func stronger(a, b *Candidate) bool {
	if a.Verified != b.Verified {
		return a.Verified
	}
	return a.Confidence > b.Confidence
}

// candidatesFromEntries converts stored entries into conflict candidates.
// Only entries carrying a well-formed field value payload participate;
// malformed or prose entries are skipped rather than substituted.
func candidatesFromEntries(entries []*domain.Entry) []Candidate {
	cands := make([]Candidate, 0, len(entries))
	for _, e := range entries {
		if e == nil || e.Kind != domain.EntryKindFieldValue {
			continue
		}
		value, ok := domain.ParseFieldValue(e.Payload)
		if !ok {
			continue
		}
		cands = append(cands, Candidate{
			EntryID:    e.ID,
			Value:      value,
			Verified:   e.Verified,
			Confidence: e.Confidence,
		})
	}
	return cands
}

// distinctValues counts the distinct trimmed values among entries, using
// the parsed field value when the payload follows the convention and the
// trimmed payload otherwise.
func distinctValues(entries []*domain.Entry) int {
	seen := map[string]bool{}
	for _, e := range entries {
		if e == nil {
			continue
		}
		value, ok := e.AnswerValue()
		if !ok {
			value = strings.TrimSpace(e.Payload)
		}
		if value == "" {
			continue
		}
		seen[value] = true
	}
	return len(seen)
}
