package model

import "time"

// User represents an account that can post listings, save alerts and message
// other users.
type User struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	Phone         string     `json:"phone,omitempty"`
	Role          string     `json:"role"`
	EmailVerified bool       `json:"email_verified"`
	Active        bool       `json:"active"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Roles.
const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleUser      = "user"
)

// RoleAtLeast checks if role meets or exceeds the minimum required role.
func RoleAtLeast(role, minimum string) bool {
	levels := map[string]int{
		RoleAdmin:     3,
		RoleModerator: 2,
		RoleUser:      1,
	}
	return levels[role] >= levels[minimum]
}
