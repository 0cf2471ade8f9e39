// Package common contains shared constants and the error taxonomy used
// across AuthHub components.
package common

// AuthorizationHeaderName is the HTTP header and gRPC metadata key that
// carries the bearer access token.
const AuthorizationHeaderName = "authorization"

// BearerPrefix precedes the token in the authorization header value.
const BearerPrefix = "Bearer "

// Token kinds carried in the "kind" claim.
const (
	TokenKindAccess  = "access"
	TokenKindRefresh = "refresh"
)

// PermissionWildcard grants every permission key.
const PermissionWildcard = "*:*"

// ServiceTokenHeaderName carries the shared secret of internal callers
// (gateways, sync tooling).
const ServiceTokenHeaderName = "X-Service-Token"

// AdminPermission guards endpoint rule administration. It is granted by
// "endpoint-permission:*" and "*:*" as well.
const AdminPermission = "endpoint-permission:manage"
