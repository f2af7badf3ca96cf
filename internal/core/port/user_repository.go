package port

import (
	"context"
	"time"

	"github.com/renthol/rental-service/internal/core/domain"
)

// UserFilter narrows user listings.
type UserFilter struct {
	Role   domain.Role
	Limit  int
	Offset int
}

// UserRepository exposes persistence behavior for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
	UpdateProfile(ctx context.Context, id, username, phone string) error
	UpdateRole(ctx context.Context, id string, role domain.Role) error
	Delete(ctx context.Context, id string) error

	// RecordLoginFailure atomically increments the failure counter and, once
	// the threshold is reached, stamps the lock expiry in the same statement.
	RecordLoginFailure(ctx context.Context, id string, threshold int, lockFor time.Duration, now time.Time) (int, *time.Time, error)
	ResetLoginState(ctx context.Context, id string) error
	SetLock(ctx context.Context, id string, until time.Time) error

	UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error
	ListPasswordHistory(ctx context.Context, userID string, limit int) ([]domain.PasswordHistoryEntry, error)
	AddPasswordHistory(ctx context.Context, entry domain.PasswordHistoryEntry) error
	TrimPasswordHistory(ctx context.Context, userID string, maxEntries int) error
}
