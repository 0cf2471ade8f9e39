// Package rbac declares the repository contract for role assignments and
// role→permission grants.
package rbac

import (
	"context"

	"github.com/dmitrijs2005/authhub/internal/server/models"
)

// Grant assigns a permission to a role.
type Grant struct {
	RoleID       string
	PermissionID string
}

type Repository interface {
	// RolesForUser returns the roles assigned to userID; an unknown user
	// has none.
	RolesForUser(ctx context.Context, userID string) ([]models.Role, error)

	// PermissionKeysForRoles returns the distinct permission keys granted to
	// any of roleIDs.
	PermissionKeysForRoles(ctx context.Context, roleIDs []string) ([]string, error)

	// RolesByService returns the roles of serviceName whose name is in names.
	RolesByService(ctx context.Context, serviceName string, names []string) ([]models.Role, error)

	// GrantPermissions inserts grants, skipping ones that already exist, and
	// returns how many were created.
	GrantPermissions(ctx context.Context, grants []Grant) (int64, error)
}
