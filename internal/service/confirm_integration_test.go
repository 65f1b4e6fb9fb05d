//go:build integration

package service

import (
	"context"
	"testing"
	"time"

	"github.com/fieldbankhq/fieldbank/internal/domain"
	"github.com/fieldbankhq/fieldbank/internal/repository"
	"github.com/fieldbankhq/fieldbank/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmationService_Integration_ReconfirmationClearsEmbeddingAndQueuesJob(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	ownerRepo := repository.NewOwnerRepository(pool)
	entryRepo := repository.NewEntryRepository(pool)
	jobRepo := repository.NewEmbeddingJobRepository(pool)

	owner := &domain.Owner{
		ID:        uuid.NewString(),
		Name:      "Test Owner " + uuid.NewString(),
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, ownerRepo.Create(ctx, owner))

	svc := NewConfirmationService(entryRepo, jobRepo)

	first, err := svc.ConfirmField(ctx, ConfirmInput{
		OwnerID: owner.ID,
		Label:   "GPA",
		Value:   "3.8",
	})
	require.NoError(t, err)

	// Give the first confirmation an embedding so the replacement
	// provably invalidates it.
	vec := make([]float32, 1536)
	vec[0] = 1
	require.NoError(t, entryRepo.UpdateEmbedding(ctx, first.ID, vec))

	second, err := svc.ConfirmField(ctx, ConfirmInput{
		OwnerID: owner.ID,
		Label:   "GPA",
		Value:   "3.9",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var verifiedCount int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM entries WHERE owner_id = $1 AND grp = 'gpa' AND verified`,
		owner.ID,
	).Scan(&verifiedCount))
	assert.Equal(t, 1, verifiedCount)

	var embeddingIsNull bool
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT embedding IS NULL FROM entries WHERE id = $1`, first.ID,
	).Scan(&embeddingIsNull))
	assert.True(t, embeddingIsNull)

	// Each confirmation queues a fresh embedding job for the stored row.
	var pendingJobs int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM embedding_jobs WHERE entry_id = $1 AND status = $2`,
		first.ID, string(domain.EmbeddingJobStatusPending),
	).Scan(&pendingJobs))
	assert.Equal(t, 2, pendingJobs)
}
