package domain

import (
	"strings"
	"time"
)

// UserRole is the two-level role model. Admin satisfies every role.
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// Valid reports whether r is one of the enumerated roles.
func (r UserRole) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Satisfies reports whether a holder of r may act with the required role.
func (r UserRole) Satisfies(required UserRole) bool {
	return r == RoleAdmin || r == required
}

// User mirrors the persisted representation in the users table.
type User struct {
	ID                  string
	Email               string
	PasswordHash        string
	Role                UserRole
	FailedLoginAttempts int
	LockedUntil         *time.Time
	CreatedAt           time.Time
	LastLogin           *time.Time
}

// IsLocked reports whether the account lock is still in force at the given time.
func (u User) IsLocked(at time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(at)
}

// NormalizeEmail lowercases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// LoginAttempt records authentication attempts for lockout and audit.
type LoginAttempt struct {
	ID        string
	Email     string
	IP        string
	Succeeded bool
	CreatedAt time.Time
}
