package endpoints

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/authhub/internal/common"
	"github.com/dmitrijs2005/authhub/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epColumns = []string{"id", "service_name", "path_pattern", "http_method", "description", "is_public",
	"required_permissions", "required_roles", "permission_id", "version", "deleted", "created_at", "updated_at"}

var ts = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func row(id, path, method string, public bool) []driverValue {
	return []driverValue{id, "orders", path, method, "", public, "{order:read}", "{}", "p1", int64(1), false, ts, ts}
}

type driverValue = driver.Value

func addRows(rows *sqlmock.Rows, rs ...[]driverValue) *sqlmock.Rows {
	for _, r := range rs {
		rows.AddRow(r...)
	}
	return rows
}

func TestFindExact_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,.*FROM\s+endpoint_permissions\s+WHERE\s+service_name\s*=\s*\$1\s+AND\s+path_pattern\s*=\s*\$2\s+AND\s+http_method\s*=\s*\$3\s+AND\s+NOT\s+deleted`

	mock.ExpectQuery(q).
		WithArgs("orders", "/api/orders", "GET").
		WillReturnRows(addRows(sqlmock.NewRows(epColumns), row("e1", "/api/orders", "GET", false)))

	got, err := repo.FindExact(context.Background(), "orders", "/api/orders", "GET")
	require.NoError(t, err)
	assert.Equal(t, &models.EndpointPermission{
		ID: "e1", ServiceName: "orders", PathPattern: "/api/orders", HTTPMethod: "GET",
		RequiredPermissions: []string{"order:read"}, RequiredRoles: []string{},
		PermissionID: "p1", Version: 1, CreatedAt: ts, UpdatedAt: ts,
	}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindExact_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+endpoint_permissions`).WillReturnError(sql.ErrNoRows)

	_, err := repo.FindExact(context.Background(), "orders", "/nope", "GET")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestFindExact_DBErrorIsNotAbsence(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+endpoint_permissions`).WillReturnError(errors.New("timeout"))

	_, err := repo.FindExact(context.Background(), "orders", "/x", "GET")
	require.ErrorIs(t, err, common.ErrStoreUnavailable)
	require.NotErrorIs(t, err, common.ErrNotFound)
}

func TestFindByServiceMethod(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)WHERE\s+service_name\s*=\s*\$1\s+AND\s+http_method\s*=\s*\$2\s+AND\s+NOT\s+deleted`
	mock.ExpectQuery(q).
		WithArgs("orders", "GET").
		WillReturnRows(addRows(sqlmock.NewRows(epColumns),
			row("e1", "/api/orders/{id}", "GET", false),
			row("e2", "/api/public/**", "GET", true)))

	got, err := repo.FindByServiceMethod(context.Background(), "orders", "GET")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[1].IsPublic)
}

func TestFindByService(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)WHERE\s+service_name\s*=\s*\$1\s+AND\s+NOT\s+deleted\s+ORDER\s+BY\s+path_pattern,\s*http_method`
	mock.ExpectQuery(q).
		WithArgs("orders").
		WillReturnRows(addRows(sqlmock.NewRows(epColumns), row("e1", "/a", "GET", false)))

	got, err := repo.FindByService(context.Background(), "orders")
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestFindByPatterns(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	got, err := repo.FindByPatterns(context.Background(), "orders", nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	q := `(?s)WHERE\s+service_name\s*=\s*\$1\s+AND\s+path_pattern\s*=\s*ANY\(\$2\)`
	mock.ExpectQuery(q).
		WithArgs("orders", sqlmock.AnyArg()).
		WillReturnRows(addRows(sqlmock.NewRows(epColumns), row("e1", "/a", "GET", false), row("e2", "/a", "POST", false)))

	got, err = repo.FindByPatterns(context.Background(), "orders", []string{"/a", "/b"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+endpoint_permissions.*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7,\s*\$8,\s*\$9\)\s*RETURNING`

	mock.ExpectQuery(q).
		WithArgs("e1", "orders", "/api/orders", "POST", "create", false, sqlmock.AnyArg(), sqlmock.AnyArg(), nil).
		WillReturnRows(addRows(sqlmock.NewRows(epColumns), row("e1", "/api/orders", "POST", false)))

	got, err := repo.Create(context.Background(), &models.EndpointPermission{
		ID: "e1", ServiceName: "orders", PathPattern: "/api/orders", HTTPMethod: "POST", Description: "create",
	})
	require.NoError(t, err)
	assert.Equal(t, "e1", got.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_Duplicate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+endpoint_permissions`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), &models.EndpointPermission{ServiceName: "orders", PathPattern: "/a", HTTPMethod: "GET"})
	require.ErrorIs(t, err, common.ErrDuplicateEndpointPermission)
	assert.Contains(t, err.Error(), "path=/a")
}

func TestCreateMany(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+endpoint_permissions.*VALUES\s+\(\$1,.*\$9\),\s+\(\$10,.*\$18\)\s+ON\s+CONFLICT\s+\(service_name,\s*path_pattern,\s*http_method\)\s+WHERE\s+NOT\s+deleted\s+DO\s+NOTHING`

	mock.ExpectExec(q).WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.CreateMany(context.Background(), []models.EndpointPermission{
		{ServiceName: "orders", PathPattern: "/a", HTTPMethod: "GET", PermissionID: "p1", RequiredPermissions: []string{"order:read"}},
		{ServiceName: "orders", PathPattern: "/a", HTTPMethod: "POST", PermissionID: "p2", RequiredPermissions: []string{"order:create"}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMany_Empty(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	n, err := repo.CreateMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+endpoint_permissions\s+SET\s+description\s*=\s*\$2,.*version\s*=\s*version\s*\+\s*1.*WHERE\s+id\s*=\s*\$1\s+AND\s+NOT\s+deleted\s+RETURNING`

	updated := row("e1", "/a", "GET", true)
	updated[9] = int64(2)
	mock.ExpectQuery(q).
		WithArgs("e1", "now public", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(addRows(sqlmock.NewRows(epColumns), updated))

	got, err := repo.Update(context.Background(), &models.EndpointPermission{ID: "e1", Description: "now public", IsPublic: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.True(t, got.IsPublic)

	mock.ExpectQuery(q).WillReturnError(sql.ErrNoRows)
	_, err = repo.Update(context.Background(), &models.EndpointPermission{ID: "missing"})
	require.ErrorIs(t, err, common.ErrEndpointPermissionNotFound)
}

func TestSoftDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+endpoint_permissions\s+SET\s+deleted\s*=\s*TRUE.*WHERE\s+id\s*=\s*\$1\s+AND\s+NOT\s+deleted`

	mock.ExpectExec(q).WithArgs("e1").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SoftDelete(context.Background(), "e1"))

	mock.ExpectExec(q).WithArgs("e1").WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.SoftDelete(context.Background(), "e1")
	require.ErrorIs(t, err, common.ErrEndpointPermissionNotFound)

	mock.ExpectExec(q).WithArgs("e2").WillReturnError(errors.New("db down"))
	err = repo.SoftDelete(context.Background(), "e2")
	require.ErrorIs(t, err, common.ErrStoreUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`WHERE\s+id\s*=\s*\$1\s+AND\s+NOT\s+deleted`).WithArgs("x").WillReturnError(sql.ErrNoRows)
	_, err := repo.FindByID(context.Background(), "x")
	require.ErrorIs(t, err, common.ErrEndpointPermissionNotFound)
}
