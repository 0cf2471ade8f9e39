package endpoints

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/dmitrijs2005/authhub/internal/common"
	"github.com/dmitrijs2005/authhub/internal/logging"
	"github.com/dmitrijs2005/authhub/internal/server/models"
	"github.com/dmitrijs2005/authhub/internal/server/repositories/repomanager"
)

var httpMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true,
}

// Service administers endpoint rules and answers authorization checks.
type Service struct {
	db      *sql.DB
	repo    repomanager.RepositoryManager
	matcher *Matcher
	log     logging.Logger
}

func NewService(db *sql.DB, repo repomanager.RepositoryManager, matcher *Matcher, log logging.Logger) *Service {
	return &Service{db: db, repo: repo, matcher: matcher, log: log.With("module", "endpoints")}
}

func validatePattern(op, pattern string) error {
	if !strings.HasPrefix(pattern, "/") {
		return common.E(common.KindValidation, op, errors.New("path must start with /"), "path", pattern)
	}
	segs := splitPath(pattern)
	for i, seg := range segs {
		if seg == anyRemainder && i != len(segs)-1 {
			return common.E(common.KindValidation, op, errors.New("** is only allowed as the last segment"), "path", pattern)
		}
	}
	return nil
}

func normalizeRule(op string, ep *models.EndpointPermission) error {
	ep.HTTPMethod = strings.ToUpper(strings.TrimSpace(ep.HTTPMethod))
	ep.ServiceName = strings.TrimSpace(ep.ServiceName)
	if ep.ServiceName == "" {
		return common.E(common.KindValidation, op, errors.New("service name is required"))
	}
	if !httpMethods[ep.HTTPMethod] {
		return common.E(common.KindValidation, op, errors.New("unsupported http method"), "method", ep.HTTPMethod)
	}
	return validatePattern(op, ep.PathPattern)
}

// resolvePermissions checks that every non-wildcard key exists and returns
// the id of the single required permission, if there is exactly one.
func (s *Service) resolvePermissions(ctx context.Context, op string, keys []string) (string, error) {
	var concrete []string
	for _, k := range keys {
		if k == common.PermissionWildcard || strings.HasSuffix(k, ":*") {
			continue
		}
		concrete = append(concrete, k)
	}
	if len(concrete) == 0 {
		return "", nil
	}

	found, err := s.repo.Permissions(s.db).FindByKeys(ctx, concrete)
	if err != nil {
		return "", err
	}
	ids := make(map[string]string, len(found))
	for _, p := range found {
		ids[p.Key] = p.ID
	}
	for _, k := range concrete {
		if _, ok := ids[k]; !ok {
			return "", common.E(common.KindPermissionNotFound, op, nil, "permission", k)
		}
	}
	if len(keys) == 1 {
		return ids[keys[0]], nil
	}
	return "", nil
}

// Create registers a rule. An existing live rule with the same
// (service, path, method) yields DuplicateEndpointPermission.
func (s *Service) Create(ctx context.Context, ep models.EndpointPermission) (*models.EndpointPermission, error) {
	const op = "endpoints.Create"
	if err := normalizeRule(op, &ep); err != nil {
		return nil, err
	}
	pid, err := s.resolvePermissions(ctx, op, ep.RequiredPermissions)
	if err != nil {
		return nil, err
	}
	ep.PermissionID = pid

	created, err := s.repo.Endpoints(s.db).Create(ctx, &ep)
	if err != nil {
		return nil, err
	}
	s.matcher.Invalidate()
	s.log.Info(ctx, "endpoint rule created", "id", created.ID, "service", created.ServiceName,
		"method", created.HTTPMethod, "path", created.PathPattern)
	return created, nil
}

// Update rewrites the requirements, public flag and description of a rule.
func (s *Service) Update(ctx context.Context, ep models.EndpointPermission) (*models.EndpointPermission, error) {
	const op = "endpoints.Update"
	if ep.ID == "" {
		return nil, common.E(common.KindValidation, op, errors.New("id is required"))
	}
	pid, err := s.resolvePermissions(ctx, op, ep.RequiredPermissions)
	if err != nil {
		return nil, err
	}
	ep.PermissionID = pid

	updated, err := s.repo.Endpoints(s.db).Update(ctx, &ep)
	if err != nil {
		return nil, err
	}
	s.matcher.Invalidate()
	s.log.Info(ctx, "endpoint rule updated", "id", updated.ID, "version", updated.Version)
	return updated, nil
}

// Delete soft-deletes a rule.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Endpoints(s.db).SoftDelete(ctx, id); err != nil {
		return err
	}
	s.matcher.Invalidate()
	s.log.Info(ctx, "endpoint rule deleted", "id", id)
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.EndpointPermission, error) {
	return s.repo.Endpoints(s.db).FindByID(ctx, id)
}

// Spec lists every live rule of service for gateways building their own
// matcher.
func (s *Service) Spec(ctx context.Context, service string) ([]models.EndpointPermission, error) {
	if strings.TrimSpace(service) == "" {
		return nil, common.E(common.KindValidation, "endpoints.Spec", errors.New("service is required"))
	}
	rules, err := s.repo.Endpoints(s.db).FindByService(ctx, service)
	if err != nil {
		return nil, err
	}
	if rules == nil {
		rules = []models.EndpointPermission{}
	}
	return rules, nil
}

// Check matches the request and decides for p. A lookup failure is
// returned as an error so that callers deny.
func (s *Service) Check(ctx context.Context, service, path, method string, p *models.Principal) (Decision, error) {
	rule, err := s.matcher.Match(ctx, service, path, method)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return Decision{}, err
	}
	return Authorize(rule, p), nil
}
