package domain

import "time"

// Session is a server-side login session persisted in Redis and referenced
// by the session cookie.
type Session struct {
	ID        string
	UserID    string
	Username  string
	Role      Role
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session lifetime has elapsed at the given instant.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
