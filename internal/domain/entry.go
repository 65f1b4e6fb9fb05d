package domain

import (
	"fmt"
	"strings"
	"time"
)

// EntryKind represents the kind of knowledge entry
type EntryKind string

const (
	EntryKindFieldValue  EntryKind = "derived_field_value"
	EntryKindExperience  EntryKind = "experience"
	EntryKindAchievement EntryKind = "achievement"
	EntryKindValue       EntryKind = "value"
	EntryKindGoal        EntryKind = "goal"
	EntryKindFreeform    EntryKind = "freeform"
)

// ProvenanceUserConfirmed marks entries written by the confirmation path.
const ProvenanceUserConfirmed = "user_confirmed"

// Entry represents one stored fact scoped to an owner. Derived-field-value
// entries carry their payload in the "Value: <x>" convention so the answer
// can be mechanically parsed back out; any other payload is freeform prose.
type Entry struct {
	ID             string
	OwnerID        string
	Kind           EntryKind
	Group          string
	Label          string
	Payload        string
	Confidence     float64
	Verified       bool
	LastVerifiedAt *time.Time
	Provenance     string
	Embedding      []float32
	UsageCount     int64
	LastUsedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const fieldValuePrefix = "Value:"

// EncodeFieldValue wraps a field answer in the payload convention.
func EncodeFieldValue(value string) string {
	return fieldValuePrefix + " " + strings.TrimSpace(value)
}

// ParseFieldValue extracts the answer from a conventional payload.
// The second return is false when the payload does not follow the
// convention; such entries are treated as prose and never substituted
// directly into a form field.
func ParseFieldValue(payload string) (string, bool) {
	trimmed := strings.TrimSpace(payload)
	if !strings.HasPrefix(trimmed, fieldValuePrefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(trimmed, fieldValuePrefix)), true
}

// AnswerValue returns the substitutable answer carried by the entry.
// For derived-field-value entries this is the parsed "Value:" payload;
// malformed ones report ok=false so lookup stages can skip them.
func (e *Entry) AnswerValue() (string, bool) {
	if e.Kind == EntryKindFieldValue {
		return ParseFieldValue(e.Payload)
	}
	return strings.TrimSpace(e.Payload), e.Payload != ""
}

// ValidateEntry validates an Entry instance
func ValidateEntry(e *Entry) error {
	if e == nil {
		return fmt.Errorf("entry cannot be nil")
	}

	if e.ID == "" {
		return fmt.Errorf("entry ID is required")
	}

	if e.OwnerID == "" {
		return fmt.Errorf("entry OwnerID is required")
	}

	if e.Label == "" {
		return fmt.Errorf("entry Label is required")
	}

	if e.Payload == "" {
		return fmt.Errorf("entry Payload is required")
	}

	if !isValidEntryKind(e.Kind) {
		return fmt.Errorf("entry Kind is invalid: %s", e.Kind)
	}

	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("entry Confidence must be within [0,1], got %f", e.Confidence)
	}

	if e.Verified {
		if e.Confidence != 1.0 {
			return fmt.Errorf("verified entry must carry confidence 1.0")
		}
		if e.LastVerifiedAt == nil {
			return fmt.Errorf("verified entry must carry LastVerifiedAt")
		}
	} else if e.Confidence == 1.0 {
		return fmt.Errorf("confidence 1.0 is reserved for verified entries")
	}

	return nil
}

// isValidEntryKind checks if an EntryKind is valid
func isValidEntryKind(k EntryKind) bool {
	switch k {
	case EntryKindFieldValue, EntryKindExperience, EntryKindAchievement,
		EntryKindValue, EntryKindGoal, EntryKindFreeform:
		return true
	}
	return false
}
