// Package endpoints declares the repository contract for endpoint
// permission rules. Rules are soft-deleted; every read ignores deleted rows.
package endpoints

import (
	"context"

	"github.com/dmitrijs2005/authhub/internal/server/models"
)

type Repository interface {
	FindByID(ctx context.Context, id string) (*models.EndpointPermission, error)

	// FindExact returns the live rule for the triple, or a NotFound error.
	FindExact(ctx context.Context, serviceName, path, method string) (*models.EndpointPermission, error)

	// FindByServiceMethod returns the live rules of serviceName for method.
	FindByServiceMethod(ctx context.Context, serviceName, method string) ([]models.EndpointPermission, error)

	// FindByService returns every live rule of serviceName.
	FindByService(ctx context.Context, serviceName string) ([]models.EndpointPermission, error)

	// FindByPatterns returns the live rules of serviceName whose pattern is
	// in patterns, in one query.
	FindByPatterns(ctx context.Context, serviceName string, patterns []string) ([]models.EndpointPermission, error)

	// Create inserts one rule. A live rule with the same triple yields a
	// DuplicateEndpointPermission error.
	Create(ctx context.Context, ep *models.EndpointPermission) (*models.EndpointPermission, error)

	// CreateMany inserts rules, skipping triples that already exist, and
	// returns how many were created.
	CreateMany(ctx context.Context, eps []models.EndpointPermission) (int64, error)

	// Update rewrites the mutable fields of a live rule and bumps its version.
	Update(ctx context.Context, ep *models.EndpointPermission) (*models.EndpointPermission, error)

	// SoftDelete marks a live rule deleted. Missing ids yield NotFound.
	SoftDelete(ctx context.Context, id string) error
}
