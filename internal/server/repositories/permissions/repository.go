// Package permissions declares the repository contract for permission
// definitions keyed by "resource:action".
package permissions

import (
	"context"

	"github.com/dmitrijs2005/authhub/internal/server/models"
)

type Repository interface {
	// FindByKeys returns the permissions whose key is in keys, in one query.
	FindByKeys(ctx context.Context, keys []string) ([]models.Permission, error)

	// CreateMany inserts perms, skipping keys that already exist, and returns
	// the rows actually created.
	CreateMany(ctx context.Context, perms []models.Permission) ([]models.Permission, error)
}
