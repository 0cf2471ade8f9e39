package users

import (
	"context"
	"strconv"

	"github.com/dmitrijs2005/authhub/internal/dbx"
	"github.com/dmitrijs2005/authhub/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByIdentifier(ctx context.Context, tenantID int64, identifier string) (*models.User, error) {
	query :=
		`SELECT id, tenant_id, identifier, password_hash, status, created_at FROM users
		 WHERE tenant_id = $1 AND identifier = $2
		 `

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, tenantID, identifier).
		Scan(&user.ID, &user.TenantID, &user.Identifier, &user.PasswordHash, &user.Status, &user.CreatedAt)
	if err != nil {
		return nil, dbx.Classify("users.FindByIdentifier", err, "tenant_id", strconv.FormatInt(tenantID, 10))
	}

	return user, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query :=
		`SELECT id, tenant_id, identifier, password_hash, status, created_at FROM users
		 WHERE id = $1
		 `

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&user.ID, &user.TenantID, &user.Identifier, &user.PasswordHash, &user.Status, &user.CreatedAt)
	if err != nil {
		return nil, dbx.Classify("users.FindByID", err, "user_id", id)
	}

	return user, nil
}
