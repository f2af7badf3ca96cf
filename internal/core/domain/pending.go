package domain

import "time"

// PendingUser is an unconfirmed registration candidate awaiting OTP proof.
//
// The record is keyed by EmailKey, a deterministic one-way hash of the
// normalized email; the plaintext address is never used as a lookup key.
// Contact data that must remain recoverable (for sending the confirmation
// mail) is stored in a reversible protected form.
type PendingUser struct {
	EmailKey     string // sha256 of the normalized email, hex encoded
	Username     string
	EmailEnc     string // AES-GCM sealed email
	PhoneEnc     string // AES-GCM sealed phone, protected separately
	PasswordHash string // already Argon2id-hashed candidate password
	OTP          string
	Role         Role
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the OTP window has passed.
func (p PendingUser) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
