package domain

import "time"

// Role enumerates account privilege levels.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User mirrors the persisted representation in the users table.
type User struct {
	ID                  string
	Username            string
	Email               string
	Phone               string
	PasswordHash        string
	PasswordCreatedOn   time.Time // calendar date (UTC midnight), drives the expiry rule
	FailedLoginAttempts int
	LockUntil           *time.Time
	Role                Role
	RegisteredAt        time.Time
}

// Locked reports whether the account is inside an active lock window.
func (u User) Locked(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}

// PasswordHistoryEntry tracks historical password hashes for reuse prevention.
type PasswordHistoryEntry struct {
	ID           string
	UserID       string
	PasswordHash string
	SetAt        time.Time
}
