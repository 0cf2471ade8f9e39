package models

// Role names that the endpoint sync grants new permissions to.
const (
	RoleAdmin  = "ADMIN"
	RoleEditor = "EDITOR"
	RoleViewer = "VIEWER"
)

type Role struct {
	ID          string
	Name        string
	TenantID    int64
	ServiceName string
}

// Permission is a grantable capability identified by its "resource:action"
// key.
type Permission struct {
	ID          string
	Key         string
	Resource    string
	Action      string
	Description string
	ServiceName string
}

// Snapshot is the effective RBAC view of a principal: role names and the
// union of permission keys reachable from them. Never persisted.
type Snapshot struct {
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}
