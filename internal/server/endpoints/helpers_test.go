package endpoints

import (
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/authhub/internal/logging"
	"github.com/dmitrijs2005/authhub/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/require"
)

var epColumns = []string{"id", "service_name", "path_pattern", "http_method", "description", "is_public",
	"required_permissions", "required_roles", "permission_id", "version", "deleted", "created_at", "updated_at"}

var ts = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

const (
	qExact         = `(?s)FROM\s+endpoint_permissions\s+WHERE\s+service_name\s*=\s*\$1\s+AND\s+path_pattern\s*=\s*\$2\s+AND\s+http_method\s*=\s*\$3`
	qServiceMethod = `(?s)FROM\s+endpoint_permissions\s+WHERE\s+service_name\s*=\s*\$1\s+AND\s+http_method\s*=\s*\$2`
	qByService     = `(?s)FROM\s+endpoint_permissions\s+WHERE\s+service_name\s*=\s*\$1\s+AND\s+NOT\s+deleted\s+ORDER\s+BY`
	qByPatterns    = `(?s)FROM\s+endpoint_permissions\s+WHERE\s+service_name\s*=\s*\$1\s+AND\s+path_pattern\s*=\s*ANY\(\$2\)`
	qInsertEps     = `(?s)INSERT\s+INTO\s+endpoint_permissions.*ON\s+CONFLICT`
	qPermsByKeys   = `(?s)FROM\s+permissions\s+WHERE\s+permission_key\s*=\s*ANY\(\$1\)`
	qInsertPerms   = `(?s)INSERT\s+INTO\s+permissions.*unnest`
	qRolesBySvc    = `(?s)FROM\s+roles\s+WHERE\s+service_name\s*=\s*\$1\s+AND\s+name\s*=\s*ANY\(\$2\)`
	qGrant         = `(?s)INSERT\s+INTO\s+role_permissions`
)

func rule(id, path, method string, perms string, public bool) []driver.Value {
	return []driver.Value{id, "orders", path, method, "", public, perms, "{}", "", int64(1), false, ts, ts}
}

func epRows(rs ...[]driver.Value) *sqlmock.Rows {
	rows := sqlmock.NewRows(epColumns)
	for _, r := range rs {
		rows.AddRow(r...)
	}
	return rows
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func newTestMatcher(t *testing.T, db *sql.DB, ttl time.Duration) *Matcher {
	t.Helper()
	m, err := NewMatcher(db, repomanager.NewPostgresRepositoryManager(), ttl, logging.Nop{})
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}
