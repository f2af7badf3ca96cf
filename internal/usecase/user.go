package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/renthol/rental-service/internal/core/domain"
	"github.com/renthol/rental-service/internal/core/port"
	"github.com/renthol/rental-service/internal/repository"
)

// ErrInvalidRole indicates an unknown role value.
var ErrInvalidRole = errors.New("invalid role")

// UserService covers profile access and administrative account management.
type UserService struct {
	users    port.UserRepository
	activity port.ActivityRecorder
	log      *zap.Logger

	lockDuration time.Duration
	now          func() time.Time
}

// NewUserService wires the account management dependencies.
func NewUserService(
	users port.UserRepository,
	activity port.ActivityRecorder,
	lockDuration time.Duration,
	log *zap.Logger,
) *UserService {
	if lockDuration <= 0 {
		lockDuration = 10 * time.Minute
	}

	return &UserService{
		users:        users,
		activity:     activity,
		log:          log,
		lockDuration: lockDuration,
		now:          time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *UserService) WithClock(clock func() time.Time) *UserService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// GetProfile returns the account for the given ID.
func (s *UserService) GetProfile(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

// UpdateProfile changes the mutable profile fields. Email is identity and
// never changes through this path.
func (s *UserService) UpdateProfile(ctx context.Context, id, username, phone string, meta RequestMeta) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidUsername
	}
	if !phonePattern.MatchString(phone) {
		return nil, ErrInvalidPhone
	}

	if err := s.users.UpdateProfile(ctx, id, username, phone); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload user: %w", err)
	}

	s.record(ctx, user, domain.ActionProfileUpdate, domain.ActivitySuccess, "", meta)

	return user, nil
}

// List returns accounts matching the filter, for the admin console.
func (s *UserService) List(ctx context.Context, filter port.UserFilter) ([]domain.User, error) {
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// UpdateRole changes an account's privilege level.
func (s *UserService) UpdateRole(ctx context.Context, id string, role domain.Role, meta RequestMeta) error {
	if !role.Valid() {
		return ErrInvalidRole
	}

	if err := s.users.UpdateRole(ctx, id, role); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update role: %w", err)
	}

	if user, err := s.users.GetByID(ctx, id); err == nil {
		s.record(ctx, user, domain.ActionRoleChange, domain.ActivitySuccess, fmt.Sprintf("role set to %s", role), meta)
	}

	return nil
}

// Delete removes an account permanently.
func (s *UserService) Delete(ctx context.Context, id string, meta RequestMeta) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}

	s.record(ctx, user, domain.ActionUserDeletion, domain.ActivitySuccess, "", meta)

	return nil
}

// LockAccount places an administrative lock for the configured window.
func (s *UserService) LockAccount(ctx context.Context, id string, meta RequestMeta) (time.Time, error) {
	until := s.now().UTC().Add(s.lockDuration)

	if err := s.users.SetLock(ctx, id, until); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return time.Time{}, ErrUserNotFound
		}
		return time.Time{}, fmt.Errorf("lock account: %w", err)
	}

	if user, err := s.users.GetByID(ctx, id); err == nil {
		s.record(ctx, user, domain.ActionAccountLockout, domain.ActivitySuccess,
			fmt.Sprintf("locked until %s", until.Format(time.RFC3339)), meta)
	}

	return until, nil
}

// UnlockAccount clears the lock and failure counters.
func (s *UserService) UnlockAccount(ctx context.Context, id string, meta RequestMeta) error {
	if err := s.users.ResetLoginState(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("unlock account: %w", err)
	}

	if user, err := s.users.GetByID(ctx, id); err == nil {
		s.record(ctx, user, domain.ActionAccountLockout, domain.ActivitySuccess, "lock cleared", meta)
	}

	return nil
}

func (s *UserService) record(ctx context.Context, user *domain.User, action string, status domain.ActivityStatus, detail string, meta RequestMeta) {
	recordActivity(ctx, s.activity, s.log, domain.ActivityEntry{
		UserID:     &user.ID,
		Email:      user.Email,
		Action:     action,
		Status:     status,
		Detail:     detail,
		IP:         meta.IP,
		UserAgent:  meta.UserAgent,
		OccurredAt: s.now().UTC(),
	})
}
