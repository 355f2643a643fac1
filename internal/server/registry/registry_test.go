package registry

import (
	"context"
	"database/sql"
	"regexp"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/tenantvault/internal/common"
	"github.com/dmitrijs2005/tenantvault/internal/server/tenants"
)

func newStoreHandle(t *testing.T) (*tenants.Handle, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return tenants.NewHandle(tenants.Tenant{ID: uuid.New(), Slug: "acme"}, db), mock
}

func testAttrs() Attributes {
	return Attributes{
		"email": {Type: TypeText, NotNull: true, Unique: true},
		"role":  {Type: TypeText, Default: "'user'"},
	}
}

func TestGetOrDefine_ExecutesDDLOnce(t *testing.T) {
	h, mock := newStoreHandle(t)
	r := New(nil)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS accounts`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	eh1, err := r.GetOrDefine(context.Background(), h, "accounts", testAttrs(), Options{Timestamps: true})
	require.NoError(t, err)

	// second call: same handle, no further DDL
	eh2, err := r.GetOrDefine(context.Background(), h, "accounts", testAttrs(), Options{Timestamps: true})
	require.NoError(t, err)

	assert.Same(t, eh1, eh2)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "accounts", eh1.Name())
	assert.Equal(t, "accounts", eh1.Table())
	assert.Equal(t, []string{"id", "email", "role", "created_at", "updated_at"}, eh1.Columns())
	assert.True(t, eh1.HasColumn("email"))
	assert.False(t, eh1.HasColumn("nope"))
}

func TestGetOrDefine_CreatesDeclaredIndexes(t *testing.T) {
	h, mock := newStoreHandle(t)
	r := New(nil)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS accounts`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE INDEX IF NOT EXISTS idx_accounts_role ON accounts (role)`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	_, err := r.GetOrDefine(context.Background(), h, "accounts", testAttrs(), Options{
		Indexes: []Index{{Name: "idx_accounts_role", Columns: []string{"role"}}},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrDefine_ConcurrentFirstRegistration(t *testing.T) {
	h, mock := newStoreHandle(t)
	r := New(nil)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS accounts`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	const n = 16
	handles := make([]*EntityHandle, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			eh, err := r.GetOrDefine(context.Background(), h, "accounts", testAttrs(), Options{})
			require.NoError(t, err)
			handles[i] = eh
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, handles[0], handles[i], "all callers must see one definition")
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrDefine_DistinctTenantsGetDistinctDefinitions(t *testing.T) {
	h1, mock1 := newStoreHandle(t)
	h2, mock2 := newStoreHandle(t)
	r := New(nil)

	for _, m := range []sqlmock.Sqlmock{mock1, mock2} {
		m.ExpectBegin()
		m.ExpectExec(`CREATE TABLE IF NOT EXISTS accounts`).WillReturnResult(sqlmock.NewResult(0, 0))
		m.ExpectCommit()
	}

	eh1, err := r.GetOrDefine(context.Background(), h1, "accounts", testAttrs(), Options{})
	require.NoError(t, err)
	eh2, err := r.GetOrDefine(context.Background(), h2, "accounts", testAttrs(), Options{})
	require.NoError(t, err)

	assert.NotSame(t, eh1, eh2)
	require.NoError(t, mock1.ExpectationsWereMet())
	require.NoError(t, mock2.ExpectationsWereMet())
}

func TestGetOrDefine_SchemaErrors(t *testing.T) {
	h, _ := newStoreHandle(t)
	r := New(nil)

	tests := []struct {
		name   string
		entity string
		attrs  Attributes
		opts   Options
	}{
		{"nil attributes", "accounts", nil, Options{}},
		{"empty attributes", "accounts", Attributes{}, Options{}},
		{"bad entity name", "Drop Table", testAttrs(), Options{}},
		{"bad column name", "accounts", Attributes{"bad name": {Type: TypeText}}, Options{}},
		{"reserved column", "accounts", Attributes{"id": {Type: TypeUUID}}, Options{}},
		{"unknown type", "accounts", Attributes{"x": {Type: "blob"}}, Options{}},
		{"index on unknown column", "accounts", testAttrs(), Options{
			Indexes: []Index{{Name: "idx_x", Columns: []string{"missing"}}},
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.GetOrDefine(context.Background(), h, tc.entity, tc.attrs, tc.opts)
			assert.ErrorIs(t, err, common.ErrSchema)
		})
	}
}

func TestGetOrDefine_NilStore(t *testing.T) {
	r := New(nil)
	_, err := r.GetOrDefine(context.Background(), nil, "accounts", testAttrs(), Options{})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestGetOrDefine_DDLError(t *testing.T) {
	h, mock := newStoreHandle(t)
	r := New(nil)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS accounts`).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err := r.GetOrDefine(context.Background(), h, "accounts", testAttrs(), Options{})
	require.Error(t, err)

	// a failed registration must not be cached
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS accounts`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	_, err = r.GetOrDefine(context.Background(), h, "accounts", testAttrs(), Options{})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrDefine_RollsBackOnIndexFailure(t *testing.T) {
	h, mock := newStoreHandle(t)
	r := New(nil)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS accounts`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_accounts_role`).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err := r.GetOrDefine(context.Background(), h, "accounts", testAttrs(), Options{
		Indexes: []Index{{Name: "idx_accounts_role", Columns: []string{"role"}}},
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
