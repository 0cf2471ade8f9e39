package rbac

import (
	"strings"

	"github.com/dmitrijs2005/authhub/internal/common"
)

// HasPermission reports whether granted covers required. A grant of "*:*"
// covers everything and "resource:*" covers every action on resource.
func HasPermission(granted []string, required string) bool {
	resource, _, ok := strings.Cut(required, ":")
	for _, g := range granted {
		switch {
		case g == required, g == common.PermissionWildcard:
			return true
		case ok && g == resource+":*":
			return true
		}
	}
	return false
}

// HasAnyPermission reports whether granted covers at least one of required.
func HasAnyPermission(granted, required []string) bool {
	for _, r := range required {
		if HasPermission(granted, r) {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether held contains at least one of required.
func HasAnyRole(held, required []string) bool {
	for _, r := range required {
		for _, h := range held {
			if h == r {
				return true
			}
		}
	}
	return false
}
