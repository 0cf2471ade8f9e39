// Package rbac computes a principal's effective roles and permissions and
// answers wildcard-aware permission checks.
package rbac

import (
	"context"
	"database/sql"
	"sort"

	"github.com/dmitrijs2005/authhub/internal/server/models"
	"github.com/dmitrijs2005/authhub/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// Resolver aggregates role assignments into a Snapshot. It does not expand
// wildcards; HasPermission does that for consumers.
type Resolver struct {
	db   *sql.DB
	repo repomanager.RepositoryManager
}

func NewResolver(db *sql.DB, repo repomanager.RepositoryManager) *Resolver {
	return &Resolver{db: db, repo: repo}
}

// Resolve returns the role names and distinct permission keys of userID,
// both sorted. An unknown principal, including an id that is not a UUID,
// yields empty sets, not an error.
func (r *Resolver) Resolve(ctx context.Context, userID string) (models.Snapshot, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return models.Snapshot{Roles: []string{}, Permissions: []string{}}, nil
	}
	repo := r.repo.RBAC(r.db)

	roles, err := repo.RolesForUser(ctx, userID)
	if err != nil {
		return models.Snapshot{}, err
	}

	snap := models.Snapshot{Roles: []string{}, Permissions: []string{}}
	if len(roles) == 0 {
		return snap, nil
	}

	ids := make([]string, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		ids = append(ids, role.ID)
		if _, ok := seen[role.Name]; ok {
			continue
		}
		seen[role.Name] = struct{}{}
		snap.Roles = append(snap.Roles, role.Name)
	}
	sort.Strings(snap.Roles)

	keys, err := repo.PermissionKeysForRoles(ctx, ids)
	if err != nil {
		return models.Snapshot{}, err
	}
	snap.Permissions = dedupe(keys)
	return snap, nil
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
