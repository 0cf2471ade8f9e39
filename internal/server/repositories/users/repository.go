// Package users declares the read-side repository contract for the
// principals that authenticate against the hub.
package users

import (
	"context"

	"github.com/dmitrijs2005/authhub/internal/server/models"
)

type Repository interface {
	// FindByIdentifier returns the user with the given login identifier in
	// tenantID, or a NotFound error.
	FindByIdentifier(ctx context.Context, tenantID int64, identifier string) (*models.User, error)

	// FindByID returns the user with the given id, or a NotFound error.
	FindByID(ctx context.Context, id string) (*models.User, error)
}
