package rbac

import (
	"context"

	"github.com/dmitrijs2005/authhub/internal/dbx"
	"github.com/dmitrijs2005/authhub/internal/server/models"
	"github.com/lib/pq"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) RolesForUser(ctx context.Context, userID string) ([]models.Role, error) {
	query :=
		`SELECT r.id, r.name, COALESCE(r.tenant_id, 0), COALESCE(r.service_name, '')
		 FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = $1
		 ORDER BY r.name
		 `

	return r.queryRoles(ctx, "rbac.RolesForUser", query, userID)
}

func (r *PostgresRepository) PermissionKeysForRoles(ctx context.Context, roleIDs []string) ([]string, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}

	query :=
		`SELECT DISTINCT p.permission_key
		 FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 WHERE rp.role_id = ANY($1)
		 ORDER BY p.permission_key
		 `

	rows, err := r.db.QueryContext(ctx, query, pq.Array(roleIDs))
	if err != nil {
		return nil, dbx.Classify("rbac.PermissionKeysForRoles", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, dbx.Classify("rbac.PermissionKeysForRoles", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.Classify("rbac.PermissionKeysForRoles", err)
	}
	return keys, nil
}

func (r *PostgresRepository) RolesByService(ctx context.Context, serviceName string, names []string) ([]models.Role, error) {
	query :=
		`SELECT id, name, COALESCE(tenant_id, 0), COALESCE(service_name, '')
		 FROM roles
		 WHERE service_name = $1 AND name = ANY($2)
		 `

	return r.queryRoles(ctx, "rbac.RolesByService", query, serviceName, pq.Array(names))
}

func (r *PostgresRepository) GrantPermissions(ctx context.Context, grants []Grant) (int64, error) {
	if len(grants) == 0 {
		return 0, nil
	}

	roleIDs := make([]string, len(grants))
	permIDs := make([]string, len(grants))
	for i, g := range grants {
		roleIDs[i] = g.RoleID
		permIDs[i] = g.PermissionID
	}

	query :=
		`INSERT INTO role_permissions (role_id, permission_id)
		 SELECT * FROM unnest($1::uuid[], $2::uuid[])
		 ON CONFLICT DO NOTHING
		 `

	res, err := r.db.ExecContext(ctx, query, pq.Array(roleIDs), pq.Array(permIDs))
	if err != nil {
		return 0, dbx.Classify("rbac.GrantPermissions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbx.Classify("rbac.GrantPermissions", err)
	}
	return n, nil
}

func (r *PostgresRepository) queryRoles(ctx context.Context, op, query string, args ...any) ([]models.Role, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbx.Classify(op, err)
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.TenantID, &role.ServiceName); err != nil {
			return nil, dbx.Classify(op, err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.Classify(op, err)
	}
	return roles, nil
}
