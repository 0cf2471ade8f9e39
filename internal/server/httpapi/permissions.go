package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/authhub/internal/common"
	"github.com/dmitrijs2005/authhub/internal/server/endpoints"
	"github.com/dmitrijs2005/authhub/internal/server/models"
	"github.com/gorilla/mux"
)

// SpecEntry is one rule as published to gateways.
type SpecEntry struct {
	Path                string   `json:"path"`
	Method              string   `json:"method"`
	RequiredPermissions []string `json:"requiredPermissions"`
	RequiredRoles       []string `json:"requiredRoles"`
	IsPublic            bool     `json:"isPublic"`
}

type syncRequest struct {
	ServiceName string               `json:"serviceName"`
	Endpoints   []endpoints.SyncItem `json:"endpoints"`
}

type endpointRequest struct {
	ServiceName         string   `json:"serviceName"`
	Path                string   `json:"path"`
	Method              string   `json:"method"`
	Description         string   `json:"description"`
	IsPublic            bool     `json:"isPublic"`
	RequiredPermissions []string `json:"requiredPermissions"`
	RequiredRoles       []string `json:"requiredRoles"`
}

func (e endpointRequest) model() models.EndpointPermission {
	return models.EndpointPermission{
		ServiceName:         e.ServiceName,
		PathPattern:         e.Path,
		HTTPMethod:          e.Method,
		Description:         e.Description,
		IsPublic:            e.IsPublic,
		RequiredPermissions: e.RequiredPermissions,
		RequiredRoles:       e.RequiredRoles,
	}
}

type checkResponse struct {
	Allowed bool   `json:"allowed"`
	Public  bool   `json:"public"`
	Reason  string `json:"reason"`
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (h *Handler) Spec(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.Spec(r.Context(), r.URL.Query().Get("service"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]SpecEntry, 0, len(rules))
	for _, ep := range rules {
		out = append(out, SpecEntry{
			Path:                ep.PathPattern,
			Method:              ep.HTTPMethod,
			RequiredPermissions: orEmpty(ep.RequiredPermissions),
			RequiredRoles:       orEmpty(ep.RequiredRoles),
			IsPublic:            ep.IsPublic,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.sync.Coordinate(r.Context(), req.ServiceName, req.Endpoints)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	service, path, method := q.Get("service"), q.Get("path"), q.Get("method")
	if service == "" || path == "" || method == "" {
		writeError(w, common.E(common.KindValidation, "http.Check", errors.New("service, path and method are required")))
		return
	}
	d, err := h.rules.Check(r.Context(), service, path, method, PrincipalFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, checkResponse{Allowed: d.Allowed, Public: d.Public, Reason: d.Reason})
}

func (h *Handler) CreateEndpoint(w http.ResponseWriter, r *http.Request) {
	var req endpointRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	created, err := h.rules.Create(r.Context(), req.model())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) GetEndpoint(w http.ResponseWriter, r *http.Request) {
	ep, err := h.rules.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ep)
}

func (h *Handler) UpdateEndpoint(w http.ResponseWriter, r *http.Request) {
	var req endpointRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	ep := req.model()
	ep.ID = mux.Vars(r)["id"]
	updated, err := h.rules.Update(r.Context(), ep)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteEndpoint(w http.ResponseWriter, r *http.Request) {
	if err := h.rules.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
