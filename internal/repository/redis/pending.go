package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/renthol/rental-service/internal/core/domain"
	"github.com/renthol/rental-service/internal/core/port"
	"github.com/renthol/rental-service/internal/repository"
)

const (
	defaultPendingPrefix = "pending"

	fieldUsername     = "username"
	fieldEmailEnc     = "email_enc"
	fieldPhoneEnc     = "phone_enc"
	fieldPasswordHash = "password_hash"
	fieldOTP          = "otp"
	fieldRole         = "role"
	fieldCreatedAt    = "created_at"
	fieldExpiresAt    = "expires_at"
)

// PendingUserRepository keeps registrations awaiting OTP verification as
// Redis hashes. The key TTL is the only expiry mechanism besides the
// explicit expires_at check on read.
type PendingUserRepository struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

// NewPendingUserRepository constructs the repository with the provided client and key prefix.
func NewPendingUserRepository(client *red.Client, keyPrefix string) *PendingUserRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultPendingPrefix
	}

	return &PendingUserRepository{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// Replace overwrites any previous registration attempt for the same email
// key. DEL, HSET, and EXPIRE run in one transaction so a concurrent reader
// never sees fields from two different attempts.
func (r *PendingUserRepository) Replace(ctx context.Context, pending domain.PendingUser, ttl time.Duration) error {
	switch {
	case pending.EmailKey == "":
		return errors.New("email key is required")
	case pending.OTP == "":
		return errors.New("otp is required")
	case ttl <= 0:
		return errors.New("ttl must be positive")
	}

	key := r.key(pending.EmailKey)

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]any{
		fieldUsername:     pending.Username,
		fieldEmailEnc:     pending.EmailEnc,
		fieldPhoneEnc:     pending.PhoneEnc,
		fieldPasswordHash: pending.PasswordHash,
		fieldOTP:          pending.OTP,
		fieldRole:         string(pending.Role),
		fieldCreatedAt:    strconv.FormatInt(pending.CreatedAt.Unix(), 10),
		fieldExpiresAt:    strconv.FormatInt(pending.ExpiresAt.Unix(), 10),
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store pending user: %w", err)
	}

	return nil
}

// Get retrieves the pending registration for the provided email key.
func (r *PendingUserRepository) Get(ctx context.Context, emailKey string) (*domain.PendingUser, error) {
	emailKey = strings.TrimSpace(emailKey)
	if emailKey == "" {
		return nil, errors.New("email key is required")
	}

	values, err := r.client.HGetAll(ctx, r.key(emailKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall pending user: %w", err)
	}
	if len(values) == 0 {
		return nil, repository.ErrNotFound
	}

	createdAt, err := parseUnix(values[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	expiresAt, err := parseUnix(values[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}

	return &domain.PendingUser{
		EmailKey:     emailKey,
		Username:     values[fieldUsername],
		EmailEnc:     values[fieldEmailEnc],
		PhoneEnc:     values[fieldPhoneEnc],
		PasswordHash: values[fieldPasswordHash],
		OTP:          values[fieldOTP],
		Role:         domain.Role(values[fieldRole]),
		CreatedAt:    createdAt,
		ExpiresAt:    expiresAt,
	}, nil
}

// Delete removes the pending registration, enforcing single-use semantics.
func (r *PendingUserRepository) Delete(ctx context.Context, emailKey string) error {
	emailKey = strings.TrimSpace(emailKey)
	if emailKey == "" {
		return errors.New("email key is required")
	}

	deleted, err := r.client.Del(ctx, r.key(emailKey)).Result()
	if err != nil {
		return fmt.Errorf("redis delete pending user: %w", err)
	}
	if deleted == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// WithClock overrides the internal clock, used in tests.
func (r *PendingUserRepository) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

func (r *PendingUserRepository) key(emailKey string) string {
	return fmt.Sprintf("%s:%s", r.prefix, emailKey)
}

func parseUnix(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(v, 0).UTC(), nil
}

var _ port.PendingUserRepository = (*PendingUserRepository)(nil)
