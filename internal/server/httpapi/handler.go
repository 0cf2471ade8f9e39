// Package httpapi exposes the session, key publication and endpoint
// permission operations over HTTP with gorilla/mux.
package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/authhub/internal/logging"
	"github.com/dmitrijs2005/authhub/internal/server/auth"
	"github.com/dmitrijs2005/authhub/internal/server/endpoints"
	"github.com/dmitrijs2005/authhub/internal/server/models"
	"github.com/dmitrijs2005/authhub/internal/server/services"
	"github.com/gorilla/mux"
)

type Sessions interface {
	Login(ctx context.Context, tenantID int64, identifier, password string) (*services.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, caller *models.Principal, userID string) error
	Me(ctx context.Context, p *models.Principal) (*services.MeResult, error)
	Authenticate(ctx context.Context, accessToken string) (*models.Principal, error)
	AuthenticateForLogout(ctx context.Context, accessToken string) (*models.Principal, error)
}

type Rules interface {
	Create(ctx context.Context, ep models.EndpointPermission) (*models.EndpointPermission, error)
	Update(ctx context.Context, ep models.EndpointPermission) (*models.EndpointPermission, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.EndpointPermission, error)
	Spec(ctx context.Context, service string) ([]models.EndpointPermission, error)
	Check(ctx context.Context, service, path, method string, p *models.Principal) (endpoints.Decision, error)
}

type Syncer interface {
	Coordinate(ctx context.Context, service string, items []endpoints.SyncItem) (endpoints.SyncResult, error)
}

type KeyPublisher interface {
	JWKS() auth.JWKSet
}

type Handler struct {
	sessions     Sessions
	rules        Rules
	sync         Syncer
	keys         KeyPublisher
	serviceToken string
	log          logging.Logger
}

// NewHandler builds the HTTP handler. An empty serviceToken leaves the
// permission spec readable without credentials.
func NewHandler(sessions Sessions, rules Rules, sync Syncer, keys KeyPublisher, serviceToken string, log logging.Logger) *Handler {
	return &Handler{
		sessions:     sessions,
		rules:        rules,
		sync:         sync,
		keys:         keys,
		serviceToken: serviceToken,
		log:          log.With("module", "http"),
	}
}

// Router registers every route.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.logRequests)

	r.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/auth/refresh", h.Refresh).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", h.Logout).Methods(http.MethodPost)
	r.HandleFunc("/auth/me", h.withPrincipal(h.requirePrincipal(h.Me))).Methods(http.MethodGet)
	r.HandleFunc("/auth/jwks", h.JWKS).Methods(http.MethodGet)

	p := r.PathPrefix("/permissions").Subrouter()
	p.HandleFunc("/spec", h.withPrincipal(h.requireInternal(false, h.Spec))).Methods(http.MethodGet)
	p.HandleFunc("/sync", h.withPrincipal(h.requireInternal(true, h.Sync))).Methods(http.MethodPost)
	p.HandleFunc("/check", h.withPrincipal(h.Check)).Methods(http.MethodGet)
	p.HandleFunc("/endpoints", h.withPrincipal(h.requireAdmin(h.CreateEndpoint))).Methods(http.MethodPost)
	p.HandleFunc("/endpoints/{id}", h.withPrincipal(h.requirePrincipal(h.GetEndpoint))).Methods(http.MethodGet)
	p.HandleFunc("/endpoints/{id}", h.withPrincipal(h.requireAdmin(h.UpdateEndpoint))).Methods(http.MethodPut)
	p.HandleFunc("/endpoints/{id}", h.withPrincipal(h.requireAdmin(h.DeleteEndpoint))).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "no such route"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method_not_allowed", Message: "method not allowed"})
	})
	return r
}
