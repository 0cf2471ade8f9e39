package models

import "time"

// Principal is an authenticated caller as established from a verified
// access token. It travels through request contexts explicitly.
type Principal struct {
	UserID      string
	TenantID    int64
	Roles       []string
	Permissions []string
	JTI         string
	ExpiresAt   time.Time
}
