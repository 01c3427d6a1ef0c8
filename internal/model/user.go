package model

import "time"

// Role distinguishes admin-only routes from ordinary purchasers.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is the storage layout for the users table. Created on first observed
// email (auto-registration); immutable thereafter except Role.
type User struct {
	UserID    string    `json:"-"`
	Email     string    `json:"-"`
	Role      Role      `json:"-"`
	CreatedAt time.Time `json:"-"`
}
