package permissions

import (
	"context"

	"github.com/dmitrijs2005/authhub/internal/dbx"
	"github.com/dmitrijs2005/authhub/internal/server/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByKeys(ctx context.Context, keys []string) ([]models.Permission, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	query :=
		`SELECT id, permission_key, resource, action, description, COALESCE(service_name, '')
		 FROM permissions
		 WHERE permission_key = ANY($1)
		 `

	rows, err := r.db.QueryContext(ctx, query, pq.Array(keys))
	if err != nil {
		return nil, dbx.Classify("permissions.FindByKeys", err)
	}
	defer rows.Close()

	var out []models.Permission
	for rows.Next() {
		var p models.Permission
		if err := rows.Scan(&p.ID, &p.Key, &p.Resource, &p.Action, &p.Description, &p.ServiceName); err != nil {
			return nil, dbx.Classify("permissions.FindByKeys", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.Classify("permissions.FindByKeys", err)
	}
	return out, nil
}

func (r *PostgresRepository) CreateMany(ctx context.Context, perms []models.Permission) ([]models.Permission, error) {
	if len(perms) == 0 {
		return nil, nil
	}

	ids := make([]string, len(perms))
	keys := make([]string, len(perms))
	resources := make([]string, len(perms))
	actions := make([]string, len(perms))
	descriptions := make([]string, len(perms))
	services := make([]string, len(perms))
	for i, p := range perms {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		ids[i], keys[i], resources[i], actions[i], descriptions[i], services[i] =
			p.ID, p.Key, p.Resource, p.Action, p.Description, p.ServiceName
	}

	query :=
		`INSERT INTO permissions (id, permission_key, resource, action, description, service_name)
		 SELECT * FROM unnest($1::uuid[], $2::text[], $3::text[], $4::text[], $5::text[], $6::text[])
		 ON CONFLICT (permission_key) DO NOTHING
		 RETURNING id, permission_key, resource, action, description, COALESCE(service_name, '')
		 `

	rows, err := r.db.QueryContext(ctx, query,
		pq.Array(ids), pq.Array(keys), pq.Array(resources), pq.Array(actions), pq.Array(descriptions), pq.Array(services))
	if err != nil {
		return nil, dbx.Classify("permissions.CreateMany", err)
	}
	defer rows.Close()

	var created []models.Permission
	for rows.Next() {
		var p models.Permission
		if err := rows.Scan(&p.ID, &p.Key, &p.Resource, &p.Action, &p.Description, &p.ServiceName); err != nil {
			return nil, dbx.Classify("permissions.CreateMany", err)
		}
		created = append(created, p)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.Classify("permissions.CreateMany", err)
	}
	return created, nil
}
