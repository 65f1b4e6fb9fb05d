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

// ConfirmEntryRepository is the write surface for verified answers.
type ConfirmEntryRepository interface {
	// UpsertVerified atomically installs entry as the single verified
	// answer for its (owner, group), replacing any previous one. Returns
	// the stored row and whether it was newly created.
	UpsertVerified(ctx context.Context, entry *domain.Entry) (*domain.Entry, bool, error)
}

// ConfirmEmbeddingJobRepository queues async embedding work.
type ConfirmEmbeddingJobRepository interface {
	Create(ctx context.Context, job *domain.EmbeddingJob) error
}

// ConfirmationService records answers the user explicitly accepted or
// corrected in a form. A confirmation is the strongest signal the system
// ever receives about a field, so it always wins over extracted values.
type ConfirmationService struct {
	repo    ConfirmEntryRepository
	jobRepo ConfirmEmbeddingJobRepository
	uuidGen UUIDGenerator
}

// NewConfirmationService creates a new ConfirmationService instance.
func NewConfirmationService(repo ConfirmEntryRepository, jobRepo ConfirmEmbeddingJobRepository) *ConfirmationService {
	return &ConfirmationService{
		repo:    repo,
		jobRepo: jobRepo,
		uuidGen: &DefaultUUIDGenerator{},
	}
}

// NewConfirmationServiceWithUUIDGen creates a ConfirmationService with a
// custom UUID generator.
func NewConfirmationServiceWithUUIDGen(repo ConfirmEntryRepository, jobRepo ConfirmEmbeddingJobRepository, uuidGen UUIDGenerator) *ConfirmationService {
	return &ConfirmationService{
		repo:    repo,
		jobRepo: jobRepo,
		uuidGen: uuidGen,
	}
}

// ConfirmInput describes one confirmed field answer.
type ConfirmInput struct {
	OwnerID  string
	FieldKey string
	Label    string
	Value    string
}

// ConfirmField writes the confirmed value as the canonical verified answer
// for the field. The write is a single atomic upsert so concurrent
// confirmations of the same field cannot leave two verified rows; the last
// writer wins.
func (s *ConfirmationService) ConfirmField(ctx context.Context, input ConfirmInput) (*domain.Entry, error) {
	ctx, span := telemetry.StartSpan(ctx, "confirmation.confirm_field", telemetry.SpanAttributes{
		OwnerID:   input.OwnerID,
		Operation: "confirm_field",
	})
	defer span.End()

	if input.OwnerID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "owner ID is required")
	}
	label := strings.TrimSpace(input.Label)
	if label == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "field label is required")
	}
	if strings.TrimSpace(input.Value) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "confirmed value is required")
	}

	fieldKey := strings.TrimSpace(input.FieldKey)
	if fieldKey == "" {
		fieldKey = NormalizeKey(label)
	}
	if fieldKey == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "field label normalizes to an empty key")
	}

	now := time.Now().UTC()
	entry := &domain.Entry{
		ID:             s.uuidGen.NewString(),
		OwnerID:        input.OwnerID,
		Kind:           domain.EntryKindFieldValue,
		Group:          fieldKey,
		Label:          label,
		Payload:        domain.EncodeFieldValue(input.Value),
		Confidence:     1.0,
		Verified:       true,
		LastVerifiedAt: &now,
		Provenance:     domain.ProvenanceUserConfirmed,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := domain.ValidateEntry(entry); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid confirmation", err)
	}

	stored, created, err := s.repo.UpsertVerified(ctx, entry)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	mode := "replaced"
	if created {
		mode = "created"
	}
	metrics.ConfirmationsTotal.WithLabelValues(mode).Inc()

	// Embedding is queued best-effort. A failed queue write degrades
	// semantic recall for this entry, never the confirmation itself.
	if s.jobRepo != nil {
		job := domain.NewEmbeddingJob(s.uuidGen.NewString(), stored.ID, domain.EmbeddingJobStatusPending, 0, "", now, nil)
		if err := s.jobRepo.Create(ctx, job); err != nil {
			log.Printf("confirmation: embedding job enqueue failed for entry %s: %v", stored.ID, err)
		}
	}

	return stored, nil
}
