package domain

// ResolutionStatus is the tagged outcome of a field resolution.
type ResolutionStatus string

const (
	ResolutionValue    ResolutionStatus = "value"
	ResolutionDeferred ResolutionStatus = "deferred"
	ResolutionNoMatch  ResolutionStatus = "no_match"
)

// Resolution stages, reported for observability and the consumption
// feedback loop.
const (
	StageGate      = "gate"
	StageExact     = "exact"
	StagePartial   = "partial"
	StageCandidate = "candidate_check"
	StageSemantic  = "semantic"
	StageBroad     = "broad"
)

// Resolution is the result of resolving one form field. Deferred means
// distinct candidate values exist and a human must disambiguate; it is a
// first-class outcome, not an error.
type Resolution struct {
	Status  ResolutionStatus
	Value   string
	EntryID string
	Stage   string
}

// ResolvedValue builds a successful resolution.
func ResolvedValue(value, entryID, stage string) Resolution {
	return Resolution{Status: ResolutionValue, Value: value, EntryID: entryID, Stage: stage}
}

// DeferredResolution builds a deferred (ambiguous) resolution.
func DeferredResolution(stage string) Resolution {
	return Resolution{Status: ResolutionDeferred, Stage: stage}
}

// NoMatchResolution builds an unresolved result.
func NoMatchResolution(stage string) Resolution {
	return Resolution{Status: ResolutionNoMatch, Stage: stage}
}
