package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/fieldbankhq/fieldbank/internal/domain"
	"github.com/fieldbankhq/fieldbank/internal/metrics"
	"github.com/fieldbankhq/fieldbank/internal/telemetry"
)

const (
	// Minimum cosine similarity for a semantic match over stored field
	// values to be trusted without confirmation.
	semanticMatchThreshold = 0.85
	// Looser floor for the broad fallback over all entry kinds.
	broadMatchThreshold = 0.50

	semanticCandidateLimit = 5
	broadCandidateLimit    = 10

	// embedCallTimeout bounds a single embedding call on the resolve
	// path so a stalled capability degrades the cascade instead of
	// hanging it.
	embedCallTimeout = 5 * time.Second
)

// EntryMatch is a nearest-neighbor hit with its cosine similarity.
type EntryMatch struct {
	Entry      *domain.Entry
	Similarity float64
}

// ResolverEntryRepository is the read surface the cascade needs.
type ResolverEntryRepository interface {
	FindByExactLabel(ctx context.Context, ownerID, label string) ([]*domain.Entry, error)
	FindByNormalizedKey(ctx context.Context, ownerID, key string) ([]*domain.Entry, error)
	FindUnverifiedByGroup(ctx context.Context, ownerID, group string) ([]*domain.Entry, error)
	SearchSemantic(ctx context.Context, ownerID string, embedding []float32, kind domain.EntryKind, limit int) ([]*EntryMatch, error)
	IncrementUsage(ctx context.Context, ownerID, entryID string, usedAt time.Time) error
}

// ResolverService answers form fields from the owner's stored knowledge.
// Stages run cheapest first and the first stage with a usable outcome
// wins; a conflict at any stage defers to the user instead of guessing.
type ResolverService struct {
	repo              ResolverEntryRepository
	embedder          EmbeddingClient
	semanticThreshold float64
	broadThreshold    float64
	embedTimeout      time.Duration
}

// NewResolverService creates a resolver. embedder may be nil, in which
// case the semantic stages are skipped and only literal matching runs.
func NewResolverService(repo ResolverEntryRepository, embedder EmbeddingClient) *ResolverService {
	return &ResolverService{
		repo:              repo,
		embedder:          embedder,
		semanticThreshold: semanticMatchThreshold,
		broadThreshold:    broadMatchThreshold,
		embedTimeout:      embedCallTimeout,
	}
}

// ResolverOptions tunes the cascade. Zero values keep package defaults.
type ResolverOptions struct {
	SemanticThreshold float64
	BroadThreshold    float64
	EmbedTimeout      time.Duration
}

// NewResolverServiceWithOptions creates a resolver with custom
// similarity floors and embedding deadline.
func NewResolverServiceWithOptions(repo ResolverEntryRepository, embedder EmbeddingClient, opts ResolverOptions) *ResolverService {
	s := NewResolverService(repo, embedder)
	if opts.SemanticThreshold > 0 {
		s.semanticThreshold = opts.SemanticThreshold
	}
	if opts.BroadThreshold > 0 {
		s.broadThreshold = opts.BroadThreshold
	}
	if opts.EmbedTimeout > 0 {
		s.embedTimeout = opts.EmbedTimeout
	}
	return s
}

// ResolveField resolves one form field label for an owner.
func (s *ResolverService) ResolveField(ctx context.Context, ownerID, label string) (domain.Resolution, error) {
	start := time.Now()

	ctx, span := telemetry.StartSpan(ctx, "resolver.resolve_field", telemetry.SpanAttributes{
		OwnerID:   ownerID,
		Operation: "resolve_field",
	})
	defer span.End()

	if ownerID == "" {
		return domain.Resolution{}, domain.NewDomainError(domain.ErrCodeValidation, "owner ID is required")
	}
	if strings.TrimSpace(label) == "" {
		return domain.Resolution{}, domain.NewDomainError(domain.ErrCodeValidation, "field label is required")
	}

	cleaned := CleanQuery(label)
	key := NormalizeKey(label)

	// Only fields the dictionary recognizes get answered at all. Essay
	// prompts and other free-response labels stop here.
	category, obvious := DetectObviousField(label)
	if !obvious {
		return finishResolution(start, domain.NoMatchResolution(domain.StageGate)), nil
	}

	exact, err := s.repo.FindByExactLabel(ctx, ownerID, label)
	if err != nil {
		span.SetError(err)
		return domain.Resolution{}, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "exact label lookup failed", err)
	}
	pending, deferred := resolveLiteralStage(exact, domain.StageExact)
	if deferred != nil {
		return finishResolution(start, *deferred), nil
	}

	if pending == nil {
		partial, err := s.repo.FindByNormalizedKey(ctx, ownerID, key)
		if err != nil {
			span.SetError(err)
			return domain.Resolution{}, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "partial label lookup failed", err)
		}
		pending, deferred = resolveLiteralStage(partial, domain.StagePartial)
		if deferred != nil {
			return finishResolution(start, *deferred), nil
		}
	}

	// The ambiguity check runs even when a literal stage found an answer:
	// competing unverified candidates for the same field mean the stored
	// state is contested and the user has to pick.
	unverified, err := s.repo.FindUnverifiedByGroup(ctx, ownerID, key)
	if err != nil {
		span.SetError(err)
		return domain.Resolution{}, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "unverified candidate lookup failed", err)
	}
	if distinctValues(unverified) > 1 {
		return finishResolution(start, domain.DeferredResolution(domain.StageCandidate)), nil
	}
	if pending != nil {
		return finishResolution(start, *pending), nil
	}

	// Semantic stages are best-effort. A missing or failing embedding
	// capability degrades to no_match rather than erroring the call.
	if s.embedder == nil {
		return finishResolution(start, domain.NoMatchResolution(domain.StageSemantic)), nil
	}
	embedding, err := s.generateEmbedding(ctx, cleaned)
	if err != nil {
		log.Printf("resolver: embedding unavailable for %q, skipping semantic stages: %v", cleaned, err)
		return finishResolution(start, domain.NoMatchResolution(domain.StageSemantic)), nil
	}

	matches, err := s.repo.SearchSemantic(ctx, ownerID, embedding, domain.EntryKindFieldValue, semanticCandidateLimit)
	if err != nil {
		span.SetError(err)
		return domain.Resolution{}, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "semantic search failed", err)
	}
	if len(matches) > 0 && matches[0].Similarity >= s.semanticThreshold {
		if answer, ok := matches[0].Entry.AnswerValue(); ok && matches[0].Entry.Kind == domain.EntryKindFieldValue {
			return finishResolution(start, domain.ResolvedValue(answer, matches[0].Entry.ID, domain.StageSemantic)), nil
		}
	}

	best, err := s.broadSearch(ctx, ownerID, cleaned, embedding)
	if err != nil {
		span.SetError(err)
		return domain.Resolution{}, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "broad search failed", err)
	}
	if best != nil && best.Similarity >= s.broadThreshold {
		if res, ok := answerFromBroadMatch(category, best.Entry); ok {
			return finishResolution(start, res), nil
		}
	}

	return finishResolution(start, domain.NoMatchResolution(domain.StageBroad)), nil
}

// broadSearch runs the query variants over all entry kinds and keeps the
// single best hit.
func (s *ResolverService) broadSearch(ctx context.Context, ownerID, cleaned string, baseEmbedding []float32) (*EntryMatch, error) {
	var best *EntryMatch
	for i, variant := range QueryVariants(cleaned) {
		embedding := baseEmbedding
		if i > 0 {
			var err error
			embedding, err = s.generateEmbedding(ctx, variant)
			if err != nil {
				log.Printf("resolver: embedding failed for variant %q: %v", variant, err)
				continue
			}
		}

		matches, err := s.repo.SearchSemantic(ctx, ownerID, embedding, "", broadCandidateLimit)
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 && (best == nil || matches[0].Similarity > best.Similarity) {
			best = matches[0]
		}
	}
	return best, nil
}

// generateEmbedding runs one embedding call under the per-call deadline.
// A stalled capability expires the deadline and surfaces as an ordinary
// embedding error, which the caller treats as capability-unavailable.
func (s *ResolverService) generateEmbedding(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	defer cancel()
	return s.embedder.GenerateEmbedding(ctx, text)
}

// RecordUsage bumps the consumption counter for an entry whose value the
// client actually placed into a form. Failures are logged and swallowed;
// usage tracking never blocks or fails a fill.
func (s *ResolverService) RecordUsage(ctx context.Context, ownerID, entryID string) {
	if ownerID == "" || entryID == "" {
		return
	}
	if err := s.repo.IncrementUsage(ctx, ownerID, entryID, time.Now().UTC()); err != nil {
		log.Printf("resolver: usage increment failed for entry %s: %v", entryID, err)
	}
}

// resolveLiteralStage applies the conflict rule to an exact or partial
// match set. Returns the winning resolution (or nil when the stage found
// nothing usable) and a deferral when the candidates disagree.
func resolveLiteralStage(entries []*domain.Entry, stage string) (*domain.Resolution, *domain.Resolution) {
	best, conflict := PickCandidate(candidatesFromEntries(entries))
	if conflict {
		deferred := domain.DeferredResolution(stage)
		return nil, &deferred
	}
	if best == nil {
		return nil, nil
	}
	res := domain.ResolvedValue(best.Value, best.EntryID, stage)
	return &res, nil
}

// answerFromBroadMatch turns a loose semantic hit into an answer, if the
// category allows it. Field value entries answer directly. Prose entries
// answer high-stakes categories only through pattern extraction, and other
// categories verbatim.
func answerFromBroadMatch(category FieldCategory, entry *domain.Entry) (domain.Resolution, bool) {
	answer, ok := entry.AnswerValue()
	if !ok {
		return domain.Resolution{}, false
	}

	if entry.Kind == domain.EntryKindFieldValue {
		return domain.ResolvedValue(answer, entry.ID, domain.StageBroad), true
	}

	if PatternExtractable(category) {
		extracted, found := ExtractPattern(category, answer)
		if !found {
			return domain.Resolution{}, false
		}
		return domain.ResolvedValue(extracted, entry.ID, domain.StageBroad), true
	}
	if IsHighStakes(category) {
		return domain.Resolution{}, false
	}

	return domain.ResolvedValue(answer, entry.ID, domain.StageBroad), true
}

func finishResolution(start time.Time, res domain.Resolution) domain.Resolution {
	metrics.ResolutionsTotal.WithLabelValues(res.Stage, string(res.Status)).Inc()
	metrics.ResolutionDuration.Observe(time.Since(start).Seconds())
	return res
}
