package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/authhub/internal/dbx"
	"github.com/dmitrijs2005/authhub/internal/server/repositories/endpoints"
	"github.com/dmitrijs2005/authhub/internal/server/repositories/permissions"
	"github.com/dmitrijs2005/authhub/internal/server/repositories/rbac"
	"github.com/dmitrijs2005/authhub/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/authhub/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code
// runs against the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RBAC(db dbx.DBTX) rbac.Repository
	Permissions(db dbx.DBTX) permissions.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Endpoints(db dbx.DBTX) endpoints.Repository
}
