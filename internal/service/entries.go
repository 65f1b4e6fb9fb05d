package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/fieldbankhq/fieldbank/internal/domain"
	"github.com/fieldbankhq/fieldbank/internal/metrics"
	"github.com/fieldbankhq/fieldbank/internal/pagination"
	"github.com/fieldbankhq/fieldbank/internal/telemetry"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	// Confidence assigned when the extractor did not report one.
	defaultExtractionConfidence = 0.5
)

// EntryRepositoryInterface is the storage surface for entry lifecycle
// operations.
type EntryRepositoryInterface interface {
	Create(ctx context.Context, entry *domain.Entry) error
	GetByID(ctx context.Context, ownerID, id string) (*domain.Entry, error)
	GetVerifiedByGroup(ctx context.Context, ownerID, group string) (*domain.Entry, error)
	List(ctx context.Context, ownerID string, kind domain.EntryKind, limit int, cursor *pagination.Cursor) ([]*domain.Entry, error)
	Delete(ctx context.Context, ownerID, id string) error
	PurgeKind(ctx context.Context, ownerID string, kind domain.EntryKind) (int64, error)
}

// EntryEmbeddingJobRepository queues async embedding work for new entries.
type EntryEmbeddingJobRepository interface {
	Create(ctx context.Context, job *domain.EmbeddingJob) error
}

// EntryService manages the entry lifecycle: extraction intake, listing,
// deletion, and purging a kind outright.
type EntryService struct {
	repo    EntryRepositoryInterface
	jobRepo EntryEmbeddingJobRepository
	uuidGen UUIDGenerator
}

// NewEntryService creates a new EntryService instance.
func NewEntryService(repo EntryRepositoryInterface, jobRepo EntryEmbeddingJobRepository) *EntryService {
	return &EntryService{
		repo:    repo,
		jobRepo: jobRepo,
		uuidGen: &DefaultUUIDGenerator{},
	}
}

// NewEntryServiceWithUUIDGen creates an EntryService with a custom UUID
// generator.
func NewEntryServiceWithUUIDGen(repo EntryRepositoryInterface, jobRepo EntryEmbeddingJobRepository, uuidGen UUIDGenerator) *EntryService {
	return &EntryService{
		repo:    repo,
		jobRepo: jobRepo,
		uuidGen: uuidGen,
	}
}

// ExtractionInput is one machine-extracted fact arriving from a source
// artifact. Value is used for derived field values; Payload for prose
// kinds.
type ExtractionInput struct {
	OwnerID    string
	Kind       domain.EntryKind
	Group      string
	Label      string
	Value      string
	Payload    string
	Confidence float64
	Provenance string
}

// RecordExtraction stores an extracted fact as an unverified candidate.
// The stored flag is false when a still-fresh verified answer covers the
// same field and the extraction was dropped; verified answers are only
// ever displaced by user confirmation, never by extraction.
func (s *EntryService) RecordExtraction(ctx context.Context, input ExtractionInput) (*domain.Entry, bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "entries.record_extraction", telemetry.SpanAttributes{
		OwnerID:   input.OwnerID,
		Operation: "record_extraction",
	})
	defer span.End()

	if input.OwnerID == "" {
		return nil, false, domain.NewDomainError(domain.ErrCodeValidation, "owner ID is required")
	}
	label := strings.TrimSpace(input.Label)
	if label == "" {
		return nil, false, domain.NewDomainError(domain.ErrCodeValidation, "entry label is required")
	}

	kind := input.Kind
	if kind == "" && input.Value != "" {
		kind = domain.EntryKindFieldValue
	}

	var payload string
	if kind == domain.EntryKindFieldValue {
		if strings.TrimSpace(input.Value) == "" {
			return nil, false, domain.NewDomainError(domain.ErrCodeValidation, "field value is required for derived field values")
		}
		payload = domain.EncodeFieldValue(input.Value)
	} else {
		payload = strings.TrimSpace(input.Payload)
		if payload == "" {
			return nil, false, domain.NewDomainError(domain.ErrCodeValidation, "entry payload is required")
		}
	}

	group := strings.TrimSpace(input.Group)
	if group == "" {
		group = NormalizeKey(label)
	}

	confidence := input.Confidence
	if confidence == 0 {
		confidence = defaultExtractionConfidence
	}

	now := time.Now().UTC()

	// A fresh verified answer for the field suppresses the extraction
	// entirely. A stale one does not; the extraction lands next to it as
	// an unverified candidate for the user to promote.
	if kind == domain.EntryKindFieldValue {
		verified, err := s.repo.GetVerifiedByGroup(ctx, input.OwnerID, group)
		if err != nil && err != domain.ErrEntryNotFound {
			span.SetError(err)
			return nil, false, err
		}
		if verified != nil && EvaluateStaleness(verified.LastVerifiedAt, now) == StalenessSkip {
			metrics.ExtractionsTotal.WithLabelValues("skipped_fresh").Inc()
			return nil, false, nil
		}
	}

	entry := &domain.Entry{
		ID:         s.uuidGen.NewString(),
		OwnerID:    input.OwnerID,
		Kind:       kind,
		Group:      group,
		Label:      label,
		Payload:    payload,
		Confidence: confidence,
		Provenance: input.Provenance,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := domain.ValidateEntry(entry); err != nil {
		return nil, false, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid extraction", err)
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		span.SetError(err)
		return nil, false, err
	}
	metrics.ExtractionsTotal.WithLabelValues("stored").Inc()

	if s.jobRepo != nil {
		job := domain.NewEmbeddingJob(s.uuidGen.NewString(), entry.ID, domain.EmbeddingJobStatusPending, 0, "", now, nil)
		if err := s.jobRepo.Create(ctx, job); err != nil {
			log.Printf("entries: embedding job enqueue failed for entry %s: %v", entry.ID, err)
		}
	}

	return entry, true, nil
}

// GetEntry fetches one entry scoped to its owner.
func (s *EntryService) GetEntry(ctx context.Context, ownerID, entryID string) (*domain.Entry, error) {
	if ownerID == "" || entryID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "owner ID and entry ID are required")
	}
	return s.repo.GetByID(ctx, ownerID, entryID)
}

// ListEntries returns a page of the owner's entries, newest first. kind
// filters to a single entry kind when non-empty.
func (s *EntryService) ListEntries(ctx context.Context, ownerID string, kind domain.EntryKind, limit int, cursorStr string) (*pagination.PageResult[*domain.Entry], error) {
	if ownerID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "owner ID is required")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	cursor, err := pagination.DecodeCursor(cursorStr)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}

	items, err := s.repo.List(ctx, ownerID, kind, limit, cursor)
	if err != nil {
		return nil, err
	}

	next := pagination.CreateNextCursor(items, limit,
		func(e *domain.Entry) string { return e.ID },
		func(e *domain.Entry) time.Time { return e.CreatedAt },
	)

	return &pagination.PageResult[*domain.Entry]{
		Items:   items,
		Cursor:  next,
		HasMore: next != "",
	}, nil
}

// DeleteEntry removes a single entry.
func (s *EntryService) DeleteEntry(ctx context.Context, ownerID, entryID string) error {
	if ownerID == "" || entryID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "owner ID and entry ID are required")
	}
	return s.repo.Delete(ctx, ownerID, entryID)
}

// PurgeKind deletes every entry of a kind for the owner and reports how
// many rows went away. This is the bulk-forget operation; it is not
// undoable.
func (s *EntryService) PurgeKind(ctx context.Context, ownerID string, kind domain.EntryKind) (int64, error) {
	if ownerID == "" {
		return 0, domain.NewDomainError(domain.ErrCodeValidation, "owner ID is required")
	}
	if kind == "" {
		return 0, domain.NewDomainError(domain.ErrCodeValidation, "entry kind is required")
	}

	if !isPurgeableKind(kind) {
		return 0, domain.ErrInvalidEntryKind
	}

	return s.repo.PurgeKind(ctx, ownerID, kind)
}

func isPurgeableKind(kind domain.EntryKind) bool {
	switch kind {
	case domain.EntryKindFieldValue, domain.EntryKindExperience, domain.EntryKindAchievement,
		domain.EntryKindValue, domain.EntryKindGoal, domain.EntryKindFreeform:
		return true
	}
	return false
}
