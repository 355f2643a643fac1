package tenants

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/tenantvault/internal/common"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)^INSERT\s+INTO\s+tenants\s*\(id,\s*slug,\s*name,\s*store_dsn\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*RETURNING\s+created_at,\s*updated_at\s*$`

	now := time.Now()
	mock.ExpectQuery(q).
		WithArgs(sqlmock.AnyArg(), "acme", "Acme Corp", "postgres://acme").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	got, err := repo.Create(context.Background(), &Tenant{Slug: "acme", Name: "Acme Corp", StoreDSN: "postgres://acme"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.Equal(t, now, got.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBySlug_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	id := uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "slug", "name", "store_dsn", "created_at", "updated_at"}).
		AddRow(id, "acme", "Acme Corp", "postgres://acme", now, now)
	mock.ExpectQuery(`SELECT\s+id,\s*slug,\s*name,\s*store_dsn`).
		WithArgs("acme").
		WillReturnRows(rows)

	got, err := repo.GetBySlug(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "acme", got.Slug)
}

func TestGetBySlug_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT\s+id,\s*slug,\s*name,\s*store_dsn`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "name", "store_dsn", "created_at", "updated_at"}))

	_, err := repo.GetBySlug(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetByID_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT\s+id,\s*slug,\s*name,\s*store_dsn`).
		WillReturnError(errors.New("db down"))

	_, err := repo.GetByID(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error")
}

func TestList(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "slug", "name", "store_dsn", "created_at", "updated_at"}).
		AddRow(uuid.New(), "acme", "Acme", "dsn1", now, now).
		AddRow(uuid.New(), "beta", "Beta", "dsn2", now, now)
	mock.ExpectQuery(`SELECT\s+id,\s*slug,\s*name,\s*store_dsn.*ORDER\s+BY\s+slug`).
		WillReturnRows(rows)

	got, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "acme", got[0].Slug)
	assert.Equal(t, "beta", got[1].Slug)
}
