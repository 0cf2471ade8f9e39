package models

import "time"

// User statuses. Only active users may log in.
const (
	UserStatusActive   = "ACTIVE"
	UserStatusDisabled = "DISABLED"
)

// User is the login-relevant projection of a tenant user.
type User struct {
	ID           string
	TenantID     int64
	Identifier   string
	PasswordHash string
	Status       string
	CreatedAt    time.Time
}

// Active reports whether the user may authenticate.
func (u *User) Active() bool {
	return u.Status == UserStatusActive
}
