package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/renthol/rental-service/internal/core/domain"
	"github.com/renthol/rental-service/internal/core/port"
	"github.com/renthol/rental-service/internal/repository"
)

const (
	defaultSessionPrefix = "session"

	sessionFieldUserID    = "user_id"
	sessionFieldUsername  = "username"
	sessionFieldRole      = "role"
	sessionFieldCreatedAt = "created_at"
	sessionFieldExpiresAt = "expires_at"
)

// SessionStore persists login sessions as Redis hashes keyed by session ID.
type SessionStore struct {
	client *red.Client
	prefix string
}

// NewSessionStore constructs a session store with the provided client and key prefix.
func NewSessionStore(client *red.Client, keyPrefix string) *SessionStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultSessionPrefix
	}

	return &SessionStore{client: client, prefix: prefix}
}

// Create persists the session with the supplied TTL.
func (s *SessionStore) Create(ctx context.Context, session domain.Session, ttl time.Duration) error {
	switch {
	case session.ID == "":
		return errors.New("session id is required")
	case session.UserID == "":
		return errors.New("user id is required")
	case ttl <= 0:
		return errors.New("ttl must be positive")
	}

	key := s.key(session.ID)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		sessionFieldUserID:    session.UserID,
		sessionFieldUsername:  session.Username,
		sessionFieldRole:      string(session.Role),
		sessionFieldCreatedAt: session.CreatedAt.Unix(),
		sessionFieldExpiresAt: session.ExpiresAt.Unix(),
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store session: %w", err)
	}

	return nil
}

// Get retrieves the session by ID.
func (s *SessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("session id is required")
	}

	values, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall session: %w", err)
	}
	if len(values) == 0 {
		return nil, repository.ErrNotFound
	}

	createdAt, err := parseUnix(values[sessionFieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	expiresAt, err := parseUnix(values[sessionFieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}

	return &domain.Session{
		ID:        id,
		UserID:    values[sessionFieldUserID],
		Username:  values[sessionFieldUsername],
		Role:      domain.Role(values[sessionFieldRole]),
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Delete removes the session.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("session id is required")
	}

	deleted, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	if deleted == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (s *SessionStore) key(id string) string {
	return fmt.Sprintf("%s:%s", s.prefix, id)
}

var _ port.SessionStore = (*SessionStore)(nil)
