package refreshtokens

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

var rtColumns = []string{"user_id", "token", "expires_at", "created_at", "updated_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestFindByToken_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*SELECT\s+user_id,\s*token,\s*expires_at,\s*created_at,\s*updated_at\s+FROM\s+refresh_tokens\s+WHERE\s+token\s*=\s*\$1\s*$`

	expires := time.Now().Add(10 * time.Minute)
	mock.ExpectQuery(q).
		WithArgs("tok123").
		WillReturnRows(sqlmock.NewRows(rtColumns).AddRow("u1", "tok123", expires, expires, expires))

	got, err := repo.FindByToken(context.Background(), "tok123")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.True(t, got.ExpiresAt.Equal(expires))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByToken_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`WHERE\s+token\s*=\s*\$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByToken(context.Background(), "missing")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestFindByUser_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)WHERE\s+user_id\s*=\s*\$1\s*$`
	mock.ExpectQuery(q).
		WithArgs("u1").
		WillReturnError(errors.New("db err"))

	_, err := repo.FindByUser(context.Background(), "u1")
	require.ErrorIs(t, err, common.ErrStoreUnavailable)
	require.ErrorContains(t, err, "db err")
}

func TestLockByUser_UsesForUpdate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)WHERE\s+user_id\s*=\s*\$1\s+FOR\s+UPDATE\s*$`
	now := time.Now()
	mock.ExpectQuery(q).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(rtColumns).AddRow("u1", "old", now, now, now))

	got, err := repo.LockByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "old", got.Token)
}

func TestUpsert(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*INSERT\s+INTO\s+refresh_tokens\s*\(user_id,\s*token,\s*expires_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*ON\s+CONFLICT\s+\(user_id\)\s+DO\s+UPDATE`
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(q).
		WithArgs("u1", "tok123", exp).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Upsert(context.Background(), "u1", "tok123", exp))

	mock.ExpectExec(q).
		WithArgs("u1", "tok123", exp).
		WillReturnError(errors.New("db down"))
	err := repo.Upsert(context.Background(), "u1", "tok123", exp)
	require.ErrorIs(t, err, common.ErrStoreUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplace(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*UPDATE\s+refresh_tokens\s+SET\s+token\s*=\s*\$3,\s*expires_at\s*=\s*\$4.*WHERE\s+user_id\s*=\s*\$1\s+AND\s+token\s*=\s*\$2`
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(q).WithArgs("u1", "old", "new", exp).WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.Replace(context.Background(), "u1", "old", "new", exp)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(q).WithArgs("u1", "old", "newer", exp).WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.Replace(context.Background(), "u1", "old", "newer", exp)
	require.NoError(t, err)
	assert.False(t, ok, "second swap of the same old token must lose")
}

func TestDeleteByUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+user_id\s*=\s*\$1\s*$`

	mock.ExpectExec(q).WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, repo.DeleteByUser(context.Background(), "u1"))

	mock.ExpectExec(q).WithArgs("u1").WillReturnError(errors.New("db err"))
	require.ErrorIs(t, repo.DeleteByUser(context.Background(), "u1"), common.ErrStoreUnavailable)
}

func TestDeleteExpired(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`(?s)DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+expires_at\s*<=\s*\$1`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
