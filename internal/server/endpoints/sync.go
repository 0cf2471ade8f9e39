package endpoints

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/authhub/internal/common"
	"github.com/dmitrijs2005/authhub/internal/dbx"
	"github.com/dmitrijs2005/authhub/internal/logging"
	"github.com/dmitrijs2005/authhub/internal/server/models"
	"github.com/dmitrijs2005/authhub/internal/server/repositories/rbac"
	"github.com/dmitrijs2005/authhub/internal/server/repositories/repomanager"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dmitrijs2005/authhub/internal/server/endpoints"

// SyncItem is one endpoint a service declares, with the permission that
// guards it.
type SyncItem struct {
	PermissionKey string `json:"permissionKey" yaml:"permissionKey"`
	PathPattern   string `json:"pathPattern" yaml:"pathPattern"`
	HTTPMethod    string `json:"httpMethod" yaml:"httpMethod"`
	Resource      string `json:"resource,omitempty" yaml:"resource,omitempty"`
	Action        string `json:"action,omitempty" yaml:"action,omitempty"`
	Description   string `json:"description,omitempty" yaml:"description,omitempty"`
}

type SyncResult struct {
	TotalRequested        int   `json:"totalRequested"`
	PermissionsCreated    int   `json:"permissionsCreated"`
	EndpointsCreated      int64 `json:"endpointsCreated"`
	EndpointsSkipped      int64 `json:"endpointsSkipped"`
	RolePermissionsMapped int64 `json:"rolePermissionsMapped"`
}

var (
	editorActions = map[string]bool{
		"read": true, "list": true, "search": true, "get": true,
		"create": true, "update": true, "write": true, "edit": true,
	}
	viewerActions = map[string]bool{
		"read": true, "list": true, "search": true, "get": true,
	}
)

// Coordinator registers a service's endpoints in bulk: missing permissions
// and missing rules are created, existing ones are left alone, and the
// whole run is one transaction so reruns converge.
type Coordinator struct {
	db      *sql.DB
	repo    repomanager.RepositoryManager
	matcher *Matcher
	tracer  trace.Tracer
	log     logging.Logger
}

func NewCoordinator(db *sql.DB, repo repomanager.RepositoryManager, matcher *Matcher, log logging.Logger) *Coordinator {
	return &Coordinator{
		db:      db,
		repo:    repo,
		matcher: matcher,
		tracer:  otel.Tracer(tracerName),
		log:     log.With("module", "sync"),
	}
}

func normalizeItems(service string, items []SyncItem) error {
	const op = "endpoints.Coordinate"
	if strings.TrimSpace(service) == "" {
		return common.E(common.KindValidation, op, errors.New("service name is required"))
	}
	for i := range items {
		it := &items[i]
		it.HTTPMethod = strings.ToUpper(strings.TrimSpace(it.HTTPMethod))
		idx := fmt.Sprint(i)
		if !httpMethods[it.HTTPMethod] {
			return common.E(common.KindValidation, op, errors.New("unsupported http method"), "item", idx, "method", it.HTTPMethod)
		}
		if err := validatePattern(op, it.PathPattern); err != nil {
			return err
		}
		resource, action, ok := strings.Cut(it.PermissionKey, ":")
		if !ok || resource == "" || action == "" {
			return common.E(common.KindValidation, op, errors.New("permission key must be resource:action"), "item", idx, "permission", it.PermissionKey)
		}
		if it.Resource == "" {
			it.Resource = resource
		}
		if it.Action == "" {
			it.Action = action
		}
	}
	return nil
}

// Coordinate syncs items for service.
func (c *Coordinator) Coordinate(ctx context.Context, service string, items []SyncItem) (SyncResult, error) {
	ctx, span := c.tracer.Start(ctx, "endpoints.Coordinate",
		trace.WithAttributes(attribute.String("service", service), attribute.Int("items", len(items))))
	defer span.End()

	res := SyncResult{TotalRequested: len(items)}
	items = append([]SyncItem(nil), items...)
	if err := normalizeItems(service, items); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	if len(items) == 0 {
		return res, nil
	}

	err := dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		ids, created, err := c.ensurePermissions(ctx, tx, service, items)
		if err != nil {
			return err
		}
		res.PermissionsCreated = len(created)

		n, err := c.createEndpoints(ctx, tx, service, items, ids)
		if err != nil {
			return err
		}
		res.EndpointsCreated = n
		res.EndpointsSkipped = int64(len(items)) - n

		res.RolePermissionsMapped, err = c.mapRoles(ctx, tx, service, created)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var e *common.Error
		if !errors.As(err, &e) {
			err = common.E(common.KindStoreUnavailable, "endpoints.Coordinate", err, "service", service)
		}
		return SyncResult{TotalRequested: len(items)}, err
	}

	if res.EndpointsCreated > 0 {
		c.matcher.Invalidate()
	}
	span.SetAttributes(
		attribute.Int("permissions_created", res.PermissionsCreated),
		attribute.Int64("endpoints_created", res.EndpointsCreated),
		attribute.Int64("endpoints_skipped", res.EndpointsSkipped),
		attribute.Int64("role_permissions_mapped", res.RolePermissionsMapped),
	)
	c.log.Info(ctx, "endpoints synced", "service", service,
		"requested", res.TotalRequested, "permissions_created", res.PermissionsCreated,
		"endpoints_created", res.EndpointsCreated, "endpoints_skipped", res.EndpointsSkipped,
		"role_permissions_mapped", res.RolePermissionsMapped)
	return res, nil
}

// ensurePermissions returns a key -> id map covering every key in items and
// the permissions this run created.
func (c *Coordinator) ensurePermissions(ctx context.Context, tx dbx.DBTX, service string, items []SyncItem) (map[string]string, []models.Permission, error) {
	perms := c.repo.Permissions(tx)

	var keys []string
	wanted := make(map[string]SyncItem)
	for _, it := range items {
		if _, ok := wanted[it.PermissionKey]; !ok {
			wanted[it.PermissionKey] = it
			keys = append(keys, it.PermissionKey)
		}
	}

	existing, err := perms.FindByKeys(ctx, keys)
	if err != nil {
		return nil, nil, err
	}
	ids := make(map[string]string, len(keys))
	for _, p := range existing {
		ids[p.Key] = p.ID
	}

	var missing []models.Permission
	for _, k := range keys {
		if _, ok := ids[k]; ok {
			continue
		}
		it := wanted[k]
		missing = append(missing, models.Permission{
			Key: k, Resource: it.Resource, Action: it.Action,
			Description: it.Description, ServiceName: service,
		})
	}

	created, err := perms.CreateMany(ctx, missing)
	if err != nil {
		return nil, nil, err
	}
	for _, p := range created {
		ids[p.Key] = p.ID
	}

	// keys inserted concurrently by another run were skipped by the insert
	var raced []string
	for _, k := range keys {
		if _, ok := ids[k]; !ok {
			raced = append(raced, k)
		}
	}
	if len(raced) > 0 {
		again, err := perms.FindByKeys(ctx, raced)
		if err != nil {
			return nil, nil, err
		}
		for _, p := range again {
			ids[p.Key] = p.ID
		}
		for _, k := range raced {
			if _, ok := ids[k]; !ok {
				return nil, nil, common.E(common.KindPermissionNotFound, "endpoints.Coordinate", nil, "permission", k)
			}
		}
	}
	return ids, created, nil
}

func (c *Coordinator) createEndpoints(ctx context.Context, tx dbx.DBTX, service string, items []SyncItem, ids map[string]string) (int64, error) {
	eps := c.repo.Endpoints(tx)

	var patterns []string
	seenPattern := make(map[string]bool)
	for _, it := range items {
		if !seenPattern[it.PathPattern] {
			seenPattern[it.PathPattern] = true
			patterns = append(patterns, it.PathPattern)
		}
	}

	existing, err := eps.FindByPatterns(ctx, service, patterns)
	if err != nil {
		return 0, err
	}
	present := make(map[models.EndpointKey]bool, len(existing))
	for i := range existing {
		present[existing[i].Key()] = true
	}

	var toCreate []models.EndpointPermission
	for _, it := range items {
		ep := models.EndpointPermission{
			ServiceName:         service,
			PathPattern:         it.PathPattern,
			HTTPMethod:          it.HTTPMethod,
			Description:         it.Description,
			RequiredPermissions: []string{it.PermissionKey},
			PermissionID:        ids[it.PermissionKey],
		}
		k := ep.Key()
		if present[k] {
			continue
		}
		present[k] = true
		toCreate = append(toCreate, ep)
	}
	if len(toCreate) == 0 {
		return 0, nil
	}
	return eps.CreateMany(ctx, toCreate)
}

// mapRoles grants newly created permissions to the service's default
// roles: ADMIN gets all, EDITOR the read and write family, VIEWER the read
// family. Nothing is mapped when the service has no ADMIN role.
func (c *Coordinator) mapRoles(ctx context.Context, tx dbx.DBTX, service string, created []models.Permission) (int64, error) {
	if len(created) == 0 {
		return 0, nil
	}
	r := c.repo.RBAC(tx)

	roles, err := r.RolesByService(ctx, service, []string{models.RoleAdmin, models.RoleEditor, models.RoleViewer})
	if err != nil {
		return 0, err
	}
	byName := make(map[string]string, len(roles))
	for _, role := range roles {
		byName[role.Name] = role.ID
	}
	adminID, ok := byName[models.RoleAdmin]
	if !ok {
		c.log.Debug(ctx, "no ADMIN role, skipping role mapping", "service", service)
		return 0, nil
	}

	var grants []rbac.Grant
	for _, p := range created {
		grants = append(grants, rbac.Grant{RoleID: adminID, PermissionID: p.ID})
		action := strings.ToLower(p.Action)
		if id, ok := byName[models.RoleEditor]; ok && editorActions[action] {
			grants = append(grants, rbac.Grant{RoleID: id, PermissionID: p.ID})
		}
		if id, ok := byName[models.RoleViewer]; ok && viewerActions[action] {
			grants = append(grants, rbac.Grant{RoleID: id, PermissionID: p.ID})
		}
	}
	return r.GrantPermissions(ctx, grants)
}
