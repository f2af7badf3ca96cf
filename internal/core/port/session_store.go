package port

import (
	"context"
	"time"

	"github.com/renthol/rental-service/internal/core/domain"
)

// SessionStore persists login sessions keyed by session ID.
type SessionStore interface {
	Create(ctx context.Context, session domain.Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
}
