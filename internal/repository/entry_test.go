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

func setupOwner(ctx context.Context, t *testing.T, ownerRepo *OwnerRepository) *domain.Owner {
	owner := &domain.Owner{
		ID:        uuid.NewString(),
		Name:      "Test Owner " + uuid.NewString(),
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, ownerRepo.Create(ctx, owner))
	return owner
}

func newFieldEntry(ownerID, label, value string, verified bool) *domain.Entry {
	now := time.Now().UTC().Truncate(time.Microsecond)
	e := &domain.Entry{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Kind:       domain.EntryKindFieldValue,
		Group:      normalizedTestKey(label),
		Label:      label,
		Payload:    domain.EncodeFieldValue(value),
		Confidence: 0.8,
		Provenance: "doc-1",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if verified {
		e.Confidence = 1.0
		e.Verified = true
		e.LastVerifiedAt = &now
		e.Provenance = domain.ProvenanceUserConfirmed
	}
	return e
}

// normalizedTestKey mirrors the service-layer key: lowercase alphanumerics.
func normalizedTestKey(label string) string {
	var out []rune
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		}
	}
	return string(out)
}

func TestEntryRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	ownerRepo := NewOwnerRepository(pool)
	repo := NewEntryRepository(pool)
	owner := setupOwner(ctx, t, ownerRepo)

	entry := newFieldEntry(owner.ID, "GPA", "3.8", false)
	require.NoError(t, repo.Create(ctx, entry))

	got, err := repo.GetByID(ctx, owner.ID, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, "Value: 3.8", got.Payload)
	assert.Equal(t, "gpa", got.Group)
	assert.False(t, got.Verified)
	assert.Equal(t, "doc-1", got.Provenance)
}

func TestEntryRepository_GetByID_WrongOwner(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	ownerRepo := NewOwnerRepository(pool)
	repo := NewEntryRepository(pool)
	owner := setupOwner(ctx, t, ownerRepo)
	other := setupOwner(ctx, t, ownerRepo)

	entry := newFieldEntry(owner.ID, "GPA", "3.8", false)
	require.NoError(t, repo.Create(ctx, entry))

	_, err := repo.GetByID(ctx, other.ID, entry.ID)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestEntryRepository_FindByExactLabel(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	ownerRepo := NewOwnerRepository(pool)
	repo := NewEntryRepository(pool)
	owner := setupOwner(ctx, t, ownerRepo)

	verified := newFieldEntry(owner.ID, "Email Address", "jane@example.com", true)
	unverified := newFieldEntry(owner.ID, "Email Address", "jane@example.com", false)
	otherLabel := newFieldEntry(owner.ID, "Phone Number", "555-123-4567", false)
	require.NoError(t, repo.Create(ctx, verified))
	require.NoError(t, repo.Create(ctx, unverified))
	require.NoError(t, repo.Create(ctx, otherLabel))

	got, err := repo.FindByExactLabel(ctx, owner.ID, "Email Address")
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Verified rows sort first.
	assert.Equal(t, verified.ID, got[0].ID)
}

func TestEntryRepository_FindByNormalizedKey(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	ownerRepo := NewOwnerRepository(pool)
	repo := NewEntryRepository(pool)
	owner := setupOwner(ctx, t, ownerRepo)

	stored := newFieldEntry(owner.ID, "field_of_study", "Computer Science", true)
	require.NoError(t, repo.Create(ctx, stored))

	// Superset key ("fieldofstudy" contained in a longer stored key) and
	// substring both match.
	got, err := repo.FindByNormalizedKey(ctx, owner.ID, "fieldofstudy")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, stored.ID, got[0].ID)

	got, err = repo.FindByNormalizedKey(ctx, owner.ID, "study")
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = repo.FindByNormalizedKey(ctx, owner.ID, "graduationyear")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEntryRepository_FindUnverifiedByGroup(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	ownerRepo := NewOwnerRepository(pool)
	repo := NewEntryRepository(pool)
	owner := setupOwner(ctx, t, ownerRepo)

	verified := newFieldEntry(owner.ID, "Major", "Computer Science", true)
	candidateA := newFieldEntry(owner.ID, "Major", "CS", false)
	candidateB := newFieldEntry(owner.ID, "Major", "Mathematics", false)
	require.NoError(t, repo.Create(ctx, verified))
	require.NoError(t, repo.Create(ctx, candidateA))
	require.NoError(t, repo.Create(ctx, candidateB))

	got, err := repo.FindUnverifiedByGroup(ctx, owner.ID, "major")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	for _, e := range got {
		assert.False(t, e.Verified)
	}
}

func TestEntryRepository_UpsertVerified(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	ownerRepo := NewOwnerRepository(pool)
	repo := NewEntryRepository(pool)
	owner := setupOwner(ctx, t, ownerRepo)

	first := newFieldEntry(owner.ID, "GPA", "3.8", true)
	stored, created, err := repo.UpsertVerified(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, first.ID, stored.ID)

	vec := make([]float32, 1536)
	vec[0] = 1
	require.NoError(t, repo.UpdateEmbedding(ctx, first.ID, vec))

	// A second confirmation for the same field replaces in place: same
	// row, new payload, no second verified row.
	second := newFieldEntry(owner.ID, "GPA", "3.9", true)
	stored, created, err = repo.UpsertVerified(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, stored.ID)

	got, err := repo.GetVerifiedByGroup(ctx, owner.ID, "gpa")
	require.NoError(t, err)
	assert.Equal(t, "Value: 3.9", got.Payload)

	var count int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM entries WHERE owner_id = $1 AND grp = 'gpa' AND verified`,
		owner.ID,
	).Scan(&count))
	assert.Equal(t, 1, count)

	// The payload changed, so the stale embedding is dropped until the
	// worker regenerates it.
	var embeddingIsNull bool
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT embedding IS NULL FROM entries WHERE id = $1`, first.ID,
	).Scan(&embeddingIsNull))
	assert.True(t, embeddingIsNull)
}

func TestEntryRepository_UpsertVerified_DoesNotTouchUnverified(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	ownerRepo := NewOwnerRepository(pool)
	repo := NewEntryRepository(pool)
	owner := setupOwner(ctx, t, ownerRepo)

	candidate := newFieldEntry(owner.ID, "GPA", "3.7", false)
	require.NoError(t, repo.Create(ctx, candidate))

	confirmed := newFieldEntry(owner.ID, "GPA", "3.8", true)
	_, created, err := repo.UpsertVerified(ctx, confirmed)
	require.NoError(t, err)
	assert.True(t, created)

	// The unverified candidate survives alongside the verified answer.
	got, err := repo.FindUnverifiedByGroup(ctx, owner.ID, "gpa")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, candidate.ID, got[0].ID)
}

func TestEntryRepository_IncrementUsage(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	ownerRepo := NewOwnerRepository(pool)
	repo := NewEntryRepository(pool)
	owner := setupOwner(ctx, t, ownerRepo)

	entry := newFieldEntry(owner.ID, "GPA", "3.8", false)
	require.NoError(t, repo.Create(ctx, entry))

	usedAt := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.IncrementUsage(ctx, owner.ID, entry.ID, usedAt))
	require.NoError(t, repo.IncrementUsage(ctx, owner.ID, entry.ID, usedAt))

	got, err := repo.GetByID(ctx, owner.ID, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.UsageCount)
	require.NotNil(t, got.LastUsedAt)

	err = repo.IncrementUsage(ctx, owner.ID, uuid.NewString(), usedAt)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestEntryRepository_SearchSemantic(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	ownerRepo := NewOwnerRepository(pool)
	repo := NewEntryRepository(pool)
	owner := setupOwner(ctx, t, ownerRepo)

	fieldEntry := newFieldEntry(owner.ID, "Cumulative GPA", "3.8", true)
	require.NoError(t, repo.Create(ctx, fieldEntry))

	now := time.Now().UTC().Truncate(time.Microsecond)
	essay := &domain.Entry{
		ID:         uuid.NewString(),
		OwnerID:    owner.ID,
		Kind:       domain.EntryKindFreeform,
		Group:      "essay",
		Label:      "scholarship essay",
		Payload:    "I maintained a GPA of 3.8 while working.",
		Confidence: 0.6,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, repo.Create(ctx, essay))

	vecA := make([]float32, 1536)
	vecA[0] = 1
	vecB := make([]float32, 1536)
	vecB[1] = 1
	require.NoError(t, repo.UpdateEmbedding(ctx, fieldEntry.ID, vecA))
	require.NoError(t, repo.UpdateEmbedding(ctx, essay.ID, vecB))

	// Kind-restricted search only sees the field entry.
	matches, err := repo.SearchSemantic(ctx, owner.ID, vecB, domain.EntryKindFieldValue, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, fieldEntry.ID, matches[0].Entry.ID)

	// Unrestricted search ranks the closest vector first with
	// similarity 1 for an identical vector.
	matches, err = repo.SearchSemantic(ctx, owner.ID, vecB, "", 5)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, essay.ID, matches[0].Entry.ID)
	assert.InDelta(t, 1.0, matches[0].Similarity, 0.001)
	assert.Less(t, matches[1].Similarity, matches[0].Similarity)
}

func TestEntryRepository_ListAndPurge(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	ownerRepo := NewOwnerRepository(pool)
	repo := NewEntryRepository(pool)
	owner := setupOwner(ctx, t, ownerRepo)

	for i := 0; i < 3; i++ {
		e := newFieldEntry(owner.ID, "GPA", "3.8", false)
		e.Group = normalizedTestKey(e.Label) + uuid.NewString()[:4]
		require.NoError(t, repo.Create(ctx, e))
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	freeform := &domain.Entry{
		ID:         uuid.NewString(),
		OwnerID:    owner.ID,
		Kind:       domain.EntryKindFreeform,
		Group:      "note",
		Label:      "note",
		Payload:    "some prose",
		Confidence: 0.5,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, repo.Create(ctx, freeform))

	all, err := repo.List(ctx, owner.ID, "", 10, nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	fieldOnly, err := repo.List(ctx, owner.ID, domain.EntryKindFieldValue, 10, nil)
	require.NoError(t, err)
	assert.Len(t, fieldOnly, 3)

	purged, err := repo.PurgeKind(ctx, owner.ID, domain.EntryKindFieldValue)
	require.NoError(t, err)
	assert.Equal(t, int64(3), purged)

	remaining, err := repo.List(ctx, owner.ID, "", 10, nil)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
	assert.Equal(t, domain.EntryKindFreeform, remaining[0].Kind)
}
