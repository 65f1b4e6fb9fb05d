package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/fieldbankhq/fieldbank/internal/domain"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingEntryRepository defines the repository interface for embedding operations
type EmbeddingEntryRepository interface {
	GetByAnyOwner(ctx context.Context, id string) (*domain.Entry, error)
	UpdateEmbedding(ctx context.Context, id string, embedding []float32) error
}

// EmbeddingService generates and stores entry embeddings. It is driven by
// the background worker, never by request handlers.
type EmbeddingService struct {
	client EmbeddingClient
	repo   EmbeddingEntryRepository
}

// NewEmbeddingService creates a new EmbeddingService instance
func NewEmbeddingService(client EmbeddingClient, repo EmbeddingEntryRepository) *EmbeddingService {
	return &EmbeddingService{
		client: client,
		repo:   repo,
	}
}

// GenerateEntryEmbedding generates and stores the embedding for one entry.
// The embedding always covers the entry's current label and payload; a
// re-run after an edit fully replaces the old vector.
func (s *EmbeddingService) GenerateEntryEmbedding(ctx context.Context, entryID string) error {
	entry, err := s.repo.GetByAnyOwner(ctx, entryID)
	if err != nil {
		return err
	}

	text := buildEntryEmbeddingText(entry)

	embedding, err := s.client.GenerateEmbedding(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to generate embedding: %w", err)
	}

	if err := s.repo.UpdateEmbedding(ctx, entryID, embedding); err != nil {
		return fmt.Errorf("failed to update embedding: %w", err)
	}

	return nil
}

// buildEntryEmbeddingText renders the entry the way resolution queries it.
// Field values embed as "label: answer" so a label-shaped query lands near
// them; prose entries embed label and payload together.
func buildEntryEmbeddingText(e *domain.Entry) string {
	if answer, ok := e.AnswerValue(); ok && e.Kind == domain.EntryKindFieldValue {
		return fmt.Sprintf("%s: %s", e.Label, answer)
	}

	var parts []string
	if e.Label != "" {
		parts = append(parts, e.Label)
	}
	if e.Payload != "" {
		parts = append(parts, e.Payload)
	}
	return strings.Join(parts, "\n\n")
}
