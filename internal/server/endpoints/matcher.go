// Package endpoints owns endpoint permission rules: matching a request to
// its rule, the authorization decision, administrative mutations and the
// bulk sync used by services to register their endpoints.
package endpoints

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/dmitrijs2005/authhub/internal/common"
	"github.com/dmitrijs2005/authhub/internal/logging"
	"github.com/dmitrijs2005/authhub/internal/server/models"
	"github.com/dmitrijs2005/authhub/internal/server/repositories/repomanager"
)

// Matcher resolves (service, path, method) to an endpoint rule. Exact rules
// win; otherwise the rules of (service, method) are tried most specific
// first. Lookups are cached in-process for ttl; a zero ttl disables the
// cache.
type Matcher struct {
	db    *sql.DB
	repo  repomanager.RepositoryManager
	cache *ristretto.Cache[string, []models.EndpointPermission]
	ttl   time.Duration
	log   logging.Logger
}

func NewMatcher(db *sql.DB, repo repomanager.RepositoryManager, ttl time.Duration, log logging.Logger) (*Matcher, error) {
	m := &Matcher{db: db, repo: repo, ttl: ttl, log: log.With("module", "matcher")}
	if ttl <= 0 {
		return m, nil
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, []models.EndpointPermission]{
		NumCounters: 100_000,
		MaxCost:     50_000,
		BufferItems: 64,

		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	m.cache = c
	return m, nil
}

func exactKey(service, method, path string) string {
	return "x\x00" + service + "\x00" + method + "\x00" + path
}

func candidatesKey(service, method string) string {
	return "c\x00" + service + "\x00" + method
}

// Match returns the rule governing the request, or a NotFound error when
// none does. Callers must treat NotFound as protected, never as public.
func (m *Matcher) Match(ctx context.Context, service, path, method string) (*models.EndpointPermission, error) {
	method = strings.ToUpper(method)

	exact, err := m.load(ctx, exactKey(service, method, path), func() ([]models.EndpointPermission, error) {
		ep, err := m.repo.Endpoints(m.db).FindExact(ctx, service, path, method)
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []models.EndpointPermission{*ep}, nil
	})
	if err != nil {
		return nil, err
	}
	if len(exact) > 0 {
		return &exact[0], nil
	}

	cands, err := m.load(ctx, candidatesKey(service, method), func() ([]models.EndpointPermission, error) {
		rules, err := m.repo.Endpoints(m.db).FindByServiceMethod(ctx, service, method)
		if err != nil {
			return nil, err
		}
		sortCandidates(rules)
		return rules, nil
	})
	if err != nil {
		return nil, err
	}

	for i := range cands {
		if !MatchPattern(cands[i].PathPattern, path) {
			continue
		}
		for j := i + 1; j < len(cands); j++ {
			if MatchPattern(cands[j].PathPattern, path) {
				m.log.Debug(ctx, "overlapping endpoint patterns",
					"service", service, "method", method,
					"chosen", cands[i].PathPattern, "shadowed", cands[j].PathPattern)
				break
			}
		}
		return &cands[i], nil
	}
	return nil, common.E(common.KindNotFound, "endpoints.Match", nil, "service", service, "method", method)
}

func (m *Matcher) load(ctx context.Context, key string, fetch func() ([]models.EndpointPermission, error)) ([]models.EndpointPermission, error) {
	if m.cache != nil {
		if v, ok := m.cache.Get(key); ok {
			return v, nil
		}
	}

	v, err := fetch()
	if err != nil {
		return nil, err
	}

	if m.cache != nil {
		m.cache.SetWithTTL(key, v, int64(len(v))+1, m.ttl)
		m.cache.Wait()
	}
	return v, nil
}

// Invalidate drops every cached lookup. Rule mutations call it.
func (m *Matcher) Invalidate() {
	if m.cache != nil {
		m.cache.Clear()
	}
}

func (m *Matcher) Close() {
	if m.cache != nil {
		m.cache.Close()
	}
}
