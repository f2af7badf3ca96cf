package port

import (
	"context"
	"time"

	"github.com/renthol/rental-service/internal/core/domain"
)

// PendingUserRepository stores registrations awaiting OTP verification.
// Entries are keyed by the hashed email so a re-registration overwrites the
// previous attempt.
type PendingUserRepository interface {
	Replace(ctx context.Context, pending domain.PendingUser, ttl time.Duration) error
	Get(ctx context.Context, emailKey string) (*domain.PendingUser, error)
	Delete(ctx context.Context, emailKey string) error
}
