package endpoints

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/authhub/internal/common"
	"github.com/dmitrijs2005/authhub/internal/dbx"
	"github.com/dmitrijs2005/authhub/internal/server/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const selectColumns = `id, service_name, path_pattern, http_method, description, is_public,
		        required_permissions, required_roles, COALESCE(permission_id::text, ''),
		        version, deleted, created_at, updated_at`

// insertBatch bounds the rows per INSERT so the statement stays under the
// 65535 bind-parameter limit.
const insertBatch = 1000

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEndpoint(s scanner) (*models.EndpointPermission, error) {
	ep := &models.EndpointPermission{}
	err := s.Scan(&ep.ID, &ep.ServiceName, &ep.PathPattern, &ep.HTTPMethod, &ep.Description, &ep.IsPublic,
		pq.Array(&ep.RequiredPermissions), pq.Array(&ep.RequiredRoles), &ep.PermissionID,
		&ep.Version, &ep.Deleted, &ep.CreatedAt, &ep.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return ep, nil
}

func (r *PostgresRepository) queryMany(ctx context.Context, op, query string, args ...any) ([]models.EndpointPermission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbx.Classify(op, err)
	}
	defer rows.Close()

	var out []models.EndpointPermission
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, dbx.Classify(op, err)
		}
		out = append(out, *ep)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.Classify(op, err)
	}
	return out, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.EndpointPermission, error) {
	query := `SELECT ` + selectColumns + `
		 FROM endpoint_permissions
		 WHERE id = $1 AND NOT deleted
		 `

	ep, err := scanEndpoint(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.E(common.KindEndpointPermissionNotFound, "endpoints.FindByID", nil, "id", id)
		}
		return nil, dbx.Classify("endpoints.FindByID", err, "id", id)
	}
	return ep, nil
}

func (r *PostgresRepository) FindExact(ctx context.Context, serviceName, path, method string) (*models.EndpointPermission, error) {
	query := `SELECT ` + selectColumns + `
		 FROM endpoint_permissions
		 WHERE service_name = $1 AND path_pattern = $2 AND http_method = $3 AND NOT deleted
		 `

	ep, err := scanEndpoint(r.db.QueryRowContext(ctx, query, serviceName, path, method))
	if err != nil {
		return nil, dbx.Classify("endpoints.FindExact", err, "service", serviceName, "method", method)
	}
	return ep, nil
}

func (r *PostgresRepository) FindByServiceMethod(ctx context.Context, serviceName, method string) ([]models.EndpointPermission, error) {
	query := `SELECT ` + selectColumns + `
		 FROM endpoint_permissions
		 WHERE service_name = $1 AND http_method = $2 AND NOT deleted
		 `

	return r.queryMany(ctx, "endpoints.FindByServiceMethod", query, serviceName, method)
}

func (r *PostgresRepository) FindByService(ctx context.Context, serviceName string) ([]models.EndpointPermission, error) {
	query := `SELECT ` + selectColumns + `
		 FROM endpoint_permissions
		 WHERE service_name = $1 AND NOT deleted
		 ORDER BY path_pattern, http_method
		 `

	return r.queryMany(ctx, "endpoints.FindByService", query, serviceName)
}

func (r *PostgresRepository) FindByPatterns(ctx context.Context, serviceName string, patterns []string) ([]models.EndpointPermission, error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	query := `SELECT ` + selectColumns + `
		 FROM endpoint_permissions
		 WHERE service_name = $1 AND path_pattern = ANY($2) AND NOT deleted
		 `

	return r.queryMany(ctx, "endpoints.FindByPatterns", query, serviceName, pq.Array(patterns))
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (r *PostgresRepository) Create(ctx context.Context, ep *models.EndpointPermission) (*models.EndpointPermission, error) {
	if ep.ID == "" {
		ep.ID = uuid.NewString()
	}

	query :=
		`INSERT INTO endpoint_permissions
		   (id, service_name, path_pattern, http_method, description, is_public,
		    required_permissions, required_roles, permission_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING ` + selectColumns

	created, err := scanEndpoint(r.db.QueryRowContext(ctx, query,
		ep.ID, ep.ServiceName, ep.PathPattern, ep.HTTPMethod, ep.Description, ep.IsPublic,
		pq.Array(nonNil(ep.RequiredPermissions)), pq.Array(nonNil(ep.RequiredRoles)), nullable(ep.PermissionID)))
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.E(common.KindDuplicateEndpointPermission, "endpoints.Create", nil,
				"service", ep.ServiceName, "path", ep.PathPattern, "method", ep.HTTPMethod)
		}
		return nil, dbx.Classify("endpoints.Create", err)
	}
	return created, nil
}

func (r *PostgresRepository) CreateMany(ctx context.Context, eps []models.EndpointPermission) (int64, error) {
	var total int64
	for start := 0; start < len(eps); start += insertBatch {
		end := min(start+insertBatch, len(eps))
		n, err := r.insertBatch(ctx, eps[start:end])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (r *PostgresRepository) insertBatch(ctx context.Context, eps []models.EndpointPermission) (int64, error) {
	const cols = 9

	var b strings.Builder
	b.WriteString(`INSERT INTO endpoint_permissions
		   (id, service_name, path_pattern, http_method, description, is_public,
		    required_permissions, required_roles, permission_id)
		 VALUES `)

	args := make([]any, 0, len(eps)*cols)
	for i, ep := range eps {
		if i > 0 {
			b.WriteString(", ")
		}
		base := i * cols
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9)

		id := ep.ID
		if id == "" {
			id = uuid.NewString()
		}
		args = append(args, id, ep.ServiceName, ep.PathPattern, ep.HTTPMethod, ep.Description, ep.IsPublic,
			pq.Array(nonNil(ep.RequiredPermissions)), pq.Array(nonNil(ep.RequiredRoles)), nullable(ep.PermissionID))
	}
	b.WriteString(`
		 ON CONFLICT (service_name, path_pattern, http_method) WHERE NOT deleted DO NOTHING`)

	res, err := r.db.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return 0, dbx.Classify("endpoints.CreateMany", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbx.Classify("endpoints.CreateMany", err)
	}
	return n, nil
}

func (r *PostgresRepository) Update(ctx context.Context, ep *models.EndpointPermission) (*models.EndpointPermission, error) {
	query :=
		`UPDATE endpoint_permissions
		 SET description = $2, is_public = $3, required_permissions = $4, required_roles = $5,
		     version = version + 1, updated_at = now()
		 WHERE id = $1 AND NOT deleted
		 RETURNING ` + selectColumns

	updated, err := scanEndpoint(r.db.QueryRowContext(ctx, query,
		ep.ID, ep.Description, ep.IsPublic, pq.Array(nonNil(ep.RequiredPermissions)), pq.Array(nonNil(ep.RequiredRoles))))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.E(common.KindEndpointPermissionNotFound, "endpoints.Update", nil, "id", ep.ID)
		}
		return nil, dbx.Classify("endpoints.Update", err, "id", ep.ID)
	}
	return updated, nil
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, id string) error {
	query :=
		`UPDATE endpoint_permissions
		 SET deleted = TRUE, version = version + 1, updated_at = now()
		 WHERE id = $1 AND NOT deleted
		 `

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return dbx.Classify("endpoints.SoftDelete", err, "id", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbx.Classify("endpoints.SoftDelete", err, "id", id)
	}
	if n == 0 {
		return common.E(common.KindEndpointPermissionNotFound, "endpoints.SoftDelete", nil, "id", id)
	}
	return nil
}
