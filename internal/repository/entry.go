package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fieldbankhq/fieldbank/internal/domain"
	"github.com/fieldbankhq/fieldbank/internal/pagination"
	"github.com/fieldbankhq/fieldbank/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

const entryColumns = `id, owner_id, kind, grp, label, payload, confidence, verified,
	last_verified_at, provenance, usage_count, last_used_at, created_at, updated_at`

type EntryRepository struct {
	db dbtx
}

func NewEntryRepository(pool *pgxpool.Pool) *EntryRepository {
	return &EntryRepository{db: pool}
}

func NewEntryRepositoryWithTx(tx pgx.Tx) *EntryRepository {
	return &EntryRepository{db: tx}
}

func (r *EntryRepository) Create(ctx context.Context, e *domain.Entry) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO entries (id, owner_id, kind, grp, label, payload, confidence, verified, last_verified_at, provenance, usage_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		e.ID, e.OwnerID, e.Kind, e.Group, e.Label, e.Payload, e.Confidence, e.Verified,
		e.LastVerifiedAt, nullableString(e.Provenance), e.UsageCount, e.CreatedAt, e.UpdatedAt,
	)
	return err
}

func (r *EntryRepository) GetByID(ctx context.Context, ownerID, id string) (*domain.Entry, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE owner_id = $1 AND id = $2`,
		ownerID, id,
	)
	return scanEntryRow(row)
}

// GetByAnyOwner fetches an entry without owner scoping. Only the embedding
// worker uses this; API paths always scope by owner.
func (r *EntryRepository) GetByAnyOwner(ctx context.Context, id string) (*domain.Entry, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE id = $1`,
		id,
	)
	return scanEntryRow(row)
}

// GetVerifiedByGroup returns the single verified entry for a field, if one
// exists. The partial unique index guarantees at most one row qualifies.
func (r *EntryRepository) GetVerifiedByGroup(ctx context.Context, ownerID, group string) (*domain.Entry, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM entries
		 WHERE owner_id = $1 AND grp = $2 AND verified`,
		ownerID, group,
	)
	return scanEntryRow(row)
}

func (r *EntryRepository) FindByExactLabel(ctx context.Context, ownerID, label string) ([]*domain.Entry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+entryColumns+` FROM entries
		 WHERE owner_id = $1 AND label = $2 AND kind = $3
		 ORDER BY verified DESC, confidence DESC, created_at DESC`,
		ownerID, label, domain.EntryKindFieldValue,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntryRows(rows)
}

// FindByNormalizedKey matches field-value entries whose group key contains
// the query key or is contained by it, covering labels that differ only in
// decoration or extra words.
func (r *EntryRepository) FindByNormalizedKey(ctx context.Context, ownerID, key string) ([]*domain.Entry, error) {
	if key == "" {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+entryColumns+` FROM entries
		 WHERE owner_id = $1 AND kind = $2
		   AND (grp LIKE '%' || $3 || '%' OR $3 LIKE '%' || grp || '%')
		 ORDER BY verified DESC, confidence DESC, created_at DESC`,
		ownerID, domain.EntryKindFieldValue, key,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntryRows(rows)
}

func (r *EntryRepository) FindUnverifiedByGroup(ctx context.Context, ownerID, group string) ([]*domain.Entry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+entryColumns+` FROM entries
		 WHERE owner_id = $1 AND grp = $2 AND kind = $3 AND NOT verified
		 ORDER BY confidence DESC, created_at DESC`,
		ownerID, group, domain.EntryKindFieldValue,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntryRows(rows)
}

// SearchSemantic returns the nearest entries by cosine similarity. kind
// restricts the search to one entry kind; empty searches every kind.
func (r *EntryRepository) SearchSemantic(ctx context.Context, ownerID string, embedding []float32, kind domain.EntryKind, limit int) ([]*service.EntryMatch, error) {
	if limit <= 0 {
		limit = 10
	}

	vec := pgvector.NewVector(embedding)
	rows, err := r.db.Query(ctx,
		`SELECT `+entryColumns+`, 1 - (embedding <=> $1) AS similarity
		 FROM entries
		 WHERE owner_id = $2 AND embedding IS NOT NULL
		   AND ($3 = '' OR kind = $3)
		 ORDER BY embedding <=> $1
		 LIMIT $4`,
		vec, ownerID, string(kind), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*service.EntryMatch
	for rows.Next() {
		var e domain.Entry
		var provenance pgtype.Text
		var similarity float64
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.Kind, &e.Group, &e.Label, &e.Payload,
			&e.Confidence, &e.Verified, &e.LastVerifiedAt, &provenance,
			&e.UsageCount, &e.LastUsedAt, &e.CreatedAt, &e.UpdatedAt, &similarity); err != nil {
			return nil, err
		}
		if provenance.Valid {
			e.Provenance = provenance.String
		}
		matches = append(matches, &service.EntryMatch{Entry: &e, Similarity: similarity})
	}
	return matches, rows.Err()
}

// UpsertVerified installs e as the sole verified entry for its
// (owner, group) in one statement. The partial unique index on verified
// rows makes the insert race-free: concurrent confirmations serialize on
// the index and the last writer wins. The stored embedding is cleared on
// replacement so the queued job regenerates it for the new payload.
func (r *EntryRepository) UpsertVerified(ctx context.Context, e *domain.Entry) (*domain.Entry, bool, error) {
	stored := *e
	var inserted bool
	err := r.db.QueryRow(ctx,
		`INSERT INTO entries (id, owner_id, kind, grp, label, payload, confidence, verified, last_verified_at, provenance, usage_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, $9, 0, $10, $11)
		 ON CONFLICT (owner_id, grp) WHERE verified DO UPDATE
		 SET label = EXCLUDED.label,
		     payload = EXCLUDED.payload,
		     confidence = EXCLUDED.confidence,
		     last_verified_at = EXCLUDED.last_verified_at,
		     provenance = EXCLUDED.provenance,
		     embedding = NULL,
		     updated_at = EXCLUDED.updated_at
		 RETURNING id, usage_count, last_used_at, created_at, (xmax = 0) AS inserted`,
		e.ID, e.OwnerID, e.Kind, e.Group, e.Label, e.Payload, e.Confidence,
		e.LastVerifiedAt, nullableString(e.Provenance), e.CreatedAt, e.UpdatedAt,
	).Scan(&stored.ID, &stored.UsageCount, &stored.LastUsedAt, &stored.CreatedAt, &inserted)
	if err != nil {
		return nil, false, err
	}
	return &stored, inserted, nil
}

func (r *EntryRepository) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE entries SET embedding = $1, updated_at = $2 WHERE id = $3`,
		pgvector.NewVector(embedding), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}

// IncrementUsage bumps the consumption counter. Plain last-write-wins on
// last_used_at; concurrent increments are each counted by the atomic add.
func (r *EntryRepository) IncrementUsage(ctx context.Context, ownerID, entryID string, usedAt time.Time) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE entries SET usage_count = usage_count + 1, last_used_at = $1 WHERE owner_id = $2 AND id = $3`,
		usedAt, ownerID, entryID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}

func (r *EntryRepository) List(ctx context.Context, ownerID string, kind domain.EntryKind, limit int, cursor *pagination.Cursor) ([]*domain.Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+entryColumns+` FROM entries
			 WHERE owner_id = $1 AND ($2 = '' OR kind = $2)
			   AND (created_at, id) < ($3, $4)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $5`,
			ownerID, string(kind), cursor.Timestamp, cursor.LastID, limit,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+entryColumns+` FROM entries
			 WHERE owner_id = $1 AND ($2 = '' OR kind = $2)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $3`,
			ownerID, string(kind), limit,
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntryRows(rows)
}

func (r *EntryRepository) Delete(ctx context.Context, ownerID, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM entries WHERE owner_id = $1 AND id = $2`,
		ownerID, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}

func (r *EntryRepository) PurgeKind(ctx context.Context, ownerID string, kind domain.EntryKind) (int64, error) {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM entries WHERE owner_id = $1 AND kind = $2`,
		ownerID, kind,
	)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}

func scanEntryRow(row pgx.Row) (*domain.Entry, error) {
	var e domain.Entry
	var provenance pgtype.Text
	err := row.Scan(&e.ID, &e.OwnerID, &e.Kind, &e.Group, &e.Label, &e.Payload,
		&e.Confidence, &e.Verified, &e.LastVerifiedAt, &provenance,
		&e.UsageCount, &e.LastUsedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, err
	}
	if provenance.Valid {
		e.Provenance = provenance.String
	}
	return &e, nil
}

func scanEntryRows(rows pgx.Rows) ([]*domain.Entry, error) {
	var results []*domain.Entry
	for rows.Next() {
		var e domain.Entry
		var provenance pgtype.Text
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.Kind, &e.Group, &e.Label, &e.Payload,
			&e.Confidence, &e.Verified, &e.LastVerifiedAt, &provenance,
			&e.UsageCount, &e.LastUsedAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		if provenance.Valid {
			e.Provenance = provenance.String
		}
		results = append(results, &e)
	}
	return results, rows.Err()
}
