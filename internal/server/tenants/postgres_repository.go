package tenants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/tenantvault/internal/common"
	"github.com/dmitrijs2005/tenantvault/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, t *Tenant) (*Tenant, error) {
	query :=
		`INSERT INTO tenants (id, slug, name, store_dsn)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at
		 `

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	err := r.db.QueryRowContext(ctx, query,
		t.ID, t.Slug, t.Name, t.StoreDSN).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return t, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	query :=
		`SELECT id, slug, name, store_dsn, created_at, updated_at FROM tenants
		 WHERE id = $1
		 `

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetBySlug(ctx context.Context, slug string) (*Tenant, error) {
	query :=
		`SELECT id, slug, name, store_dsn, created_at, updated_at FROM tenants
		 WHERE slug = $1
		 `

	return r.scanOne(r.db.QueryRowContext(ctx, query, slug))
}

func (r *PostgresRepository) List(ctx context.Context) ([]*Tenant, error) {
	query := `SELECT id, slug, name, store_dsn, created_at, updated_at FROM tenants ORDER BY slug`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*Tenant
	for rows.Next() {
		t := &Tenant{}
		if err := rows.Scan(&t.ID, &t.Slug, &t.Name, &t.StoreDSN, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*Tenant, error) {
	t := &Tenant{}
	err := row.Scan(&t.ID, &t.Slug, &t.Name, &t.StoreDSN, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}
