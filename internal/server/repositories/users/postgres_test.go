package users

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/authhub/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userColumns = []string{"id", "tenant_id", "identifier", "password_hash", "status", "created_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestFindByIdentifier_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,\s*tenant_id,\s*identifier,\s*password_hash,\s*status,\s*created_at\s+FROM\s+users\s+WHERE\s+tenant_id\s*=\s*\$1\s+AND\s+identifier\s*=\s*\$2\s*$`

	created := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(q).
		WithArgs(int64(1), "a@b.com").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow("u1", int64(1), "a@b.com", "$2a$hash", "ACTIVE", created))

	got, err := repo.FindByIdentifier(context.Background(), 1, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
	assert.Equal(t, int64(1), got.TenantID)
	assert.Equal(t, "$2a$hash", got.PasswordHash)
	assert.True(t, got.Active())
	assert.Equal(t, created, got.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIdentifier_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+users`).
		WithArgs(int64(2), "ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByIdentifier(context.Background(), 2, "ghost")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestFindByID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,.*FROM\s+users\s+WHERE\s+id\s*=\s*\$1\s*$`

	mock.ExpectQuery(q).
		WithArgs("u9").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow("u9", int64(4), "x", "h", "DISABLED", time.Now()))

	got, err := repo.FindByID(context.Background(), "u9")
	require.NoError(t, err)
	assert.False(t, got.Active())

	mock.ExpectQuery(q).WithArgs("u10").WillReturnError(errors.New("db down"))
	_, err = repo.FindByID(context.Background(), "u10")
	require.ErrorIs(t, err, common.ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "user_id=u10")
}
