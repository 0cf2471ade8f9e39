package endpoints

import (
	"github.com/dmitrijs2005/authhub/internal/server/models"
	"github.com/dmitrijs2005/authhub/internal/server/rbac"
)

// Decision reasons.
const (
	ReasonPublic          = "public"
	ReasonUnauthenticated = "unauthenticated"
	ReasonNoRule          = "authenticated_default"
	ReasonNoRequirements  = "authenticated"
	ReasonPermission      = "permission"
	ReasonRole            = "role"
	ReasonForbidden       = "forbidden"
)

type Decision struct {
	Allowed bool
	Public  bool
	Reason  string
}

// Authorize decides whether p may call the endpoint governed by rule. A nil
// rule means no rule matched: the endpoint is protected and only an
// authenticated principal passes. A nil principal is anonymous.
func Authorize(rule *models.EndpointPermission, p *models.Principal) Decision {
	if rule != nil && rule.IsPublic {
		return Decision{Allowed: true, Public: true, Reason: ReasonPublic}
	}
	if p == nil {
		return Decision{Reason: ReasonUnauthenticated}
	}
	if rule == nil {
		return Decision{Allowed: true, Reason: ReasonNoRule}
	}
	if len(rule.RequiredPermissions) == 0 && len(rule.RequiredRoles) == 0 {
		return Decision{Allowed: true, Reason: ReasonNoRequirements}
	}
	if rbac.HasAnyPermission(p.Permissions, rule.RequiredPermissions) {
		return Decision{Allowed: true, Reason: ReasonPermission}
	}
	if rbac.HasAnyRole(p.Roles, rule.RequiredRoles) {
		return Decision{Allowed: true, Reason: ReasonRole}
	}
	return Decision{Reason: ReasonForbidden}
}
