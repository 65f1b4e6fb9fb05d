package repository

import (
	"context"
	"errors"

	"github.com/fieldbankhq/fieldbank/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OwnerRepository struct {
	pool *pgxpool.Pool
}

func NewOwnerRepository(pool *pgxpool.Pool) *OwnerRepository {
	return &OwnerRepository{pool: pool}
}

func (r *OwnerRepository) Create(ctx context.Context, owner *domain.Owner) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO owners (id, name, created_at) VALUES ($1, $2, $3)`,
		owner.ID, owner.Name, owner.CreatedAt,
	)
	return err
}

func (r *OwnerRepository) GetByID(ctx context.Context, id string) (*domain.Owner, error) {
	var owner domain.Owner
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, created_at FROM owners WHERE id = $1`,
		id,
	).Scan(&owner.ID, &owner.Name, &owner.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOwnerNotFound
		}
		return nil, err
	}
	return &owner, nil
}

func (r *OwnerRepository) GetByName(ctx context.Context, name string) (*domain.Owner, error) {
	var owner domain.Owner
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, created_at FROM owners WHERE name = $1`,
		name,
	).Scan(&owner.ID, &owner.Name, &owner.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOwnerNotFound
		}
		return nil, err
	}
	return &owner, nil
}

func (r *OwnerRepository) List(ctx context.Context) ([]*domain.Owner, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, created_at FROM owners ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var owners []*domain.Owner
	for rows.Next() {
		var owner domain.Owner
		if err := rows.Scan(&owner.ID, &owner.Name, &owner.CreatedAt); err != nil {
			return nil, err
		}
		owners = append(owners, &owner)
	}
	return owners, rows.Err()
}

func (r *OwnerRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`DELETE FROM owners WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrOwnerNotFound
	}
	return nil
}
