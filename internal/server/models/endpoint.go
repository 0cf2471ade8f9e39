package models

import "time"

// EndpointPermission declares what a caller needs to invoke
// (ServiceName, HTTPMethod, PathPattern). The triple is unique among rows
// that are not soft-deleted.
type EndpointPermission struct {
	ID                  string    `json:"id"`
	ServiceName         string    `json:"serviceName"`
	PathPattern         string    `json:"path"`
	HTTPMethod          string    `json:"method"`
	Description         string    `json:"description,omitempty"`
	IsPublic            bool      `json:"isPublic"`
	RequiredPermissions []string  `json:"requiredPermissions"`
	RequiredRoles       []string  `json:"requiredRoles"`
	PermissionID        string    `json:"-"`
	Version             int64     `json:"version"`
	Deleted             bool      `json:"-"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// EndpointKey identifies an endpoint rule.
type EndpointKey struct {
	ServiceName string
	PathPattern string
	HTTPMethod  string
}

func (e *EndpointPermission) Key() EndpointKey {
	return EndpointKey{ServiceName: e.ServiceName, PathPattern: e.PathPattern, HTTPMethod: e.HTTPMethod}
}
