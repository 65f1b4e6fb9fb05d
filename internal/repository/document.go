package repository

import (
	"context"
	"errors"

	"github.com/fieldbankhq/fieldbank/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, owner_id, filename, mime_type, sha256, storage_key, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.OwnerID, d.Filename, d.MimeType, d.SHA256, d.StorageKey, nullableString(d.Description), d.CreatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, ownerID, id string) (*domain.Document, error) {
	var d domain.Document
	var description pgtype.Text
	err := r.db.QueryRow(ctx,
		`SELECT id, owner_id, filename, mime_type, sha256, storage_key, description, created_at
		 FROM documents WHERE owner_id = $1 AND id = $2`,
		ownerID, id,
	).Scan(&d.ID, &d.OwnerID, &d.Filename, &d.MimeType, &d.SHA256, &d.StorageKey, &description, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if description.Valid {
		d.Description = description.String
	}
	return &d, nil
}

func (r *DocumentRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, owner_id, filename, mime_type, sha256, storage_key, description, created_at
		 FROM documents WHERE owner_id = $1 ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		var d domain.Document
		var description pgtype.Text
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.Filename, &d.MimeType, &d.SHA256, &d.StorageKey, &description, &d.CreatedAt); err != nil {
			return nil, err
		}
		if description.Valid {
			d.Description = description.String
		}
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}

func (r *DocumentRepository) Delete(ctx context.Context, ownerID, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM documents WHERE owner_id = $1 AND id = $2`,
		ownerID, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}
