package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/authhub/internal/common"
	"github.com/dmitrijs2005/authhub/internal/logging"
	"github.com/dmitrijs2005/authhub/internal/server/models"
	"github.com/dmitrijs2005/authhub/internal/server/rbac"
)

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *models.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the authenticated caller, or nil.
func PrincipalFrom(ctx context.Context) *models.Principal {
	p, _ := ctx.Value(principalKey{}).(*models.Principal)
	return p
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	v := r.Header.Get(common.AuthorizationHeaderName)
	if len(v) <= len(common.BearerPrefix) || !strings.EqualFold(v[:len(common.BearerPrefix)], common.BearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(common.BearerPrefix):])
}

// withPrincipal authenticates the bearer token when one is present. A bad
// or revoked token is rejected outright; no token means anonymous.
func (h *Handler) withPrincipal(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			next(w, r)
			return
		}
		p, err := h.sessions.Authenticate(r.Context(), token)
		if err != nil {
			h.log.Info(r.Context(), "authentication failed", logging.ErrAttrs(err)...)
			writeError(w, err)
			return
		}
		next(w, r.WithContext(WithPrincipal(r.Context(), p)))
	}
}

func (h *Handler) requirePrincipal(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFrom(r.Context()) == nil {
			writeError(w, common.E(common.KindUnauthenticated, "http", nil))
			return
		}
		next(w, r)
	}
}

func isAdmin(p *models.Principal) bool {
	return p != nil && rbac.HasPermission(p.Permissions, common.AdminPermission)
}

func (h *Handler) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return h.requirePrincipal(func(w http.ResponseWriter, r *http.Request) {
		if !isAdmin(PrincipalFrom(r.Context())) {
			writeError(w, common.E(common.KindForbidden, "http", nil))
			return
		}
		next(w, r)
	})
}

func (h *Handler) validServiceToken(r *http.Request) bool {
	got := r.Header.Get(common.ServiceTokenHeaderName)
	return h.serviceToken != "" && got != "" &&
		subtle.ConstantTimeCompare([]byte(got), []byte(h.serviceToken)) == 1
}

// requireInternal admits callers holding the service token. Otherwise an
// admin principal is needed for writes and any principal for reads; reads
// are open when no service token is configured.
func (h *Handler) requireInternal(write bool, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.validServiceToken(r) {
			next(w, r)
			return
		}
		p := PrincipalFrom(r.Context())
		switch {
		case write && isAdmin(p):
		case write && p != nil:
			writeError(w, common.E(common.KindForbidden, "http", nil))
			return
		case !write && (p != nil || h.serviceToken == ""):
		default:
			writeError(w, common.E(common.KindUnauthenticated, "http", nil))
			return
		}
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		attrs := []any{"method", r.Method, "path", r.URL.Path, "status", rec.status,
			"duration_ms", time.Since(start).Milliseconds()}
		if rec.status >= http.StatusInternalServerError {
			h.log.Error(r.Context(), "request", attrs...)
			return
		}
		h.log.Debug(r.Context(), "request", attrs...)
	})
}
