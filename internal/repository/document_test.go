//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/fieldbankhq/fieldbank/internal/domain"
	"github.com/fieldbankhq/fieldbank/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDocument(ownerID, filename string) *domain.Document {
	id := uuid.NewString()
	return &domain.Document{
		ID:         id,
		OwnerID:    ownerID,
		Filename:   filename,
		MimeType:   "application/pdf",
		SHA256:     "sha-" + uuid.NewString(),
		StorageKey: ownerID + "/" + id + "/" + filename,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestDocumentRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	ownerRepo := NewOwnerRepository(pool)
	docRepo := NewDocumentRepository(pool)
	owner := setupOwner(ctx, t, ownerRepo)

	doc := newTestDocument(owner.ID, "transcript.pdf")
	doc.Description = "official transcript"
	require.NoError(t, docRepo.Create(ctx, doc))

	got, err := docRepo.GetByID(ctx, owner.ID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Filename, got.Filename)
	assert.Equal(t, doc.StorageKey, got.StorageKey)
	assert.Equal(t, "official transcript", got.Description)
}

func TestDocumentRepository_GetByID_WrongOwner(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	ownerRepo := NewOwnerRepository(pool)
	docRepo := NewDocumentRepository(pool)
	owner := setupOwner(ctx, t, ownerRepo)
	other := setupOwner(ctx, t, ownerRepo)

	doc := newTestDocument(owner.ID, "resume.pdf")
	require.NoError(t, docRepo.Create(ctx, doc))

	_, err := docRepo.GetByID(ctx, other.ID, doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestDocumentRepository_ListByOwner(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	ownerRepo := NewOwnerRepository(pool)
	docRepo := NewDocumentRepository(pool)
	owner := setupOwner(ctx, t, ownerRepo)
	other := setupOwner(ctx, t, ownerRepo)

	first := newTestDocument(owner.ID, "first.pdf")
	second := newTestDocument(owner.ID, "second.pdf")
	second.CreatedAt = first.CreatedAt.Add(time.Second)

	require.NoError(t, docRepo.Create(ctx, first))
	require.NoError(t, docRepo.Create(ctx, second))
	require.NoError(t, docRepo.Create(ctx, newTestDocument(other.ID, "elsewhere.pdf")))

	docs, err := docRepo.ListByOwner(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "second.pdf", docs[0].Filename)
	assert.Equal(t, "first.pdf", docs[1].Filename)
}

func TestDocumentRepository_Delete(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	ownerRepo := NewOwnerRepository(pool)
	docRepo := NewDocumentRepository(pool)
	owner := setupOwner(ctx, t, ownerRepo)

	doc := newTestDocument(owner.ID, "todelete.pdf")
	require.NoError(t, docRepo.Create(ctx, doc))
	require.NoError(t, docRepo.Delete(ctx, owner.ID, doc.ID))

	_, err := docRepo.GetByID(ctx, owner.ID, doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	assert.ErrorIs(t, docRepo.Delete(ctx, owner.ID, doc.ID), domain.ErrDocumentNotFound)
}
