package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/renthol/rental-service/internal/core/domain"
	"github.com/renthol/rental-service/internal/core/port"
	"github.com/renthol/rental-service/internal/infra/logger"
	"github.com/renthol/rental-service/internal/infra/mail"
	"github.com/renthol/rental-service/internal/infra/security"
	"github.com/renthol/rental-service/internal/repository"
)

var (
	// ErrUserNotFound indicates no account exists for the identifier.
	ErrUserNotFound = errors.New("user not found")
	// ErrPasswordReuse indicates the new password matches a recent one.
	ErrPasswordReuse = errors.New("password was used recently")
	// ErrResetTokenInvalid indicates the reset token failed validation.
	ErrResetTokenInvalid = errors.New("invalid reset token")
	// ErrResetTokenExpired indicates the reset token lifetime has elapsed.
	ErrResetTokenExpired = errors.New("reset token expired")
)

// PasswordService drives the forgot/reset/change flows and enforces the
// history-based reuse rule.
type PasswordService struct {
	users    port.UserRepository
	tokens   *security.TokenIssuer
	mailer   port.Mailer
	activity port.ActivityRecorder
	log      *zap.Logger

	resetValidator  *security.PasswordValidator
	changeValidator *security.PasswordValidator
	clientURL       string
	resetTTL        time.Duration
	historyLimit    int
	now             func() time.Time
}

// NewPasswordService wires the password lifecycle dependencies.
func NewPasswordService(
	users port.UserRepository,
	tokens *security.TokenIssuer,
	mailer port.Mailer,
	activity port.ActivityRecorder,
	clientURL string,
	resetTTL time.Duration,
	historyLimit int,
	log *zap.Logger,
) *PasswordService {
	if resetTTL <= 0 {
		resetTTL = time.Hour
	}
	if historyLimit <= 0 {
		historyLimit = 5
	}

	return &PasswordService{
		users:           users,
		tokens:          tokens,
		mailer:          mailer,
		activity:        activity,
		log:             log,
		resetValidator:  security.ResetPasswordValidator(),
		changeValidator: security.RegistrationPasswordValidator(),
		clientURL:       strings.TrimRight(clientURL, "/"),
		resetTTL:        resetTTL,
		historyLimit:    historyLimit,
		now:             time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *PasswordService) WithClock(clock func() time.Time) *PasswordService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// ForgotPassword issues a short-lived reset token and mails the reset link.
func (s *PasswordService) ForgotPassword(ctx context.Context, email string, meta RequestMeta) error {
	email = normalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.recordPassword(ctx, email, nil, domain.ActionForgotPassword, domain.ActivityFailed, "unknown email", meta)
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	token, err := s.tokens.IssueResetToken(user.ID)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.clientURL, token)
	body, err := mail.RenderReset(user.Username, resetURL, int(s.resetTTL.Minutes()))
	if err != nil {
		return fmt.Errorf("render reset mail: %w", err)
	}
	if err := s.mailer.Send(ctx, user.Email, mail.SubjectReset, body); err != nil {
		s.recordPassword(ctx, email, &user.ID, domain.ActionForgotPassword, domain.ActivityFailed, "reset mail not delivered", meta)
		return fmt.Errorf("send reset mail: %w", err)
	}

	s.log.Info("password reset link issued",
		zap.String("email", logger.MaskEmail(user.Email)),
	)
	s.recordPassword(ctx, email, &user.ID, domain.ActionForgotPassword, domain.ActivitySuccess, "", meta)

	return nil
}

// ResetPassword redeems a reset token and installs the new password,
// enforcing the recent-history reuse rule.
func (s *PasswordService) ResetPassword(ctx context.Context, token, newPassword string, meta RequestMeta) error {
	claims, err := s.tokens.ParseResetToken(token)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return ErrResetTokenExpired
		}
		return ErrResetTokenInvalid
	}

	if err := s.resetValidator.Validate(newPassword); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	if err := s.installPassword(ctx, user, newPassword); err != nil {
		if errors.Is(err, ErrPasswordReuse) {
			s.recordPassword(ctx, user.Email, &user.ID, domain.ActionResetPassword, domain.ActivityFailed, "recent password reuse", meta)
		}
		return err
	}

	// A successful reset also clears any failure counters and lock.
	if err := s.users.ResetLoginState(ctx, user.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.log.Warn("failed to reset login counters after password reset", zap.Error(err))
	}

	s.recordPassword(ctx, user.Email, &user.ID, domain.ActionResetPassword, domain.ActivitySuccess, "", meta)

	return nil
}

// ChangePassword rotates the password for an authenticated user after
// re-verifying the current one.
func (s *PasswordService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string, meta RequestMeta) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	ok, err := security.VerifyPassword(currentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.recordPassword(ctx, user.Email, &user.ID, domain.ActionResetPassword, domain.ActivityFailed, "current password mismatch", meta)
		return ErrInvalidCredentials
	}

	if err := s.changeValidator.Validate(newPassword); err != nil {
		return err
	}

	if err := s.installPassword(ctx, user, newPassword); err != nil {
		if errors.Is(err, ErrPasswordReuse) {
			s.recordPassword(ctx, user.Email, &user.ID, domain.ActionResetPassword, domain.ActivityFailed, "recent password reuse", meta)
		}
		return err
	}

	s.recordPassword(ctx, user.Email, &user.ID, domain.ActionResetPassword, domain.ActivitySuccess, "password changed", meta)

	return nil
}

// installPassword checks the candidate against the current hash and the
// recent history, retires the outgoing hash into the history, then stores
// the new one. The history holds prior hashes only, so the reuse window is
// the current password plus historyLimit predecessors.
func (s *PasswordService) installPassword(ctx context.Context, user *domain.User, newPassword string) error {
	if same, err := security.VerifyPassword(newPassword, user.PasswordHash); err != nil {
		return fmt.Errorf("compare with current password: %w", err)
	} else if same {
		return ErrPasswordReuse
	}

	history, err := s.users.ListPasswordHistory(ctx, user.ID, s.historyLimit)
	if err != nil {
		return fmt.Errorf("load password history: %w", err)
	}
	for _, entry := range history {
		if same, err := security.VerifyPassword(newPassword, entry.PasswordHash); err != nil {
			return fmt.Errorf("compare with password history: %w", err)
		} else if same {
			return ErrPasswordReuse
		}
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()

	// The registration hash is seeded into the history at account creation,
	// so the outgoing hash may already have an entry.
	retired := false
	for _, entry := range history {
		if entry.PasswordHash == user.PasswordHash {
			retired = true
			break
		}
	}
	if !retired {
		if err := s.users.AddPasswordHistory(ctx, domain.PasswordHistoryEntry{
			ID:           uuid.NewString(),
			UserID:       user.ID,
			PasswordHash: user.PasswordHash,
			SetAt:        now,
		}); err != nil {
			return fmt.Errorf("retire password into history: %w", err)
		}
	}
	if err := s.users.TrimPasswordHistory(ctx, user.ID, s.historyLimit); err != nil {
		return fmt.Errorf("trim password history: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash, now); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	return nil
}

func (s *PasswordService) recordPassword(ctx context.Context, email string, userID *string, action string, status domain.ActivityStatus, detail string, meta RequestMeta) {
	recordActivity(ctx, s.activity, s.log, domain.ActivityEntry{
		UserID:     userID,
		Email:      email,
		Action:     action,
		Status:     status,
		Detail:     detail,
		IP:         meta.IP,
		UserAgent:  meta.UserAgent,
		OccurredAt: s.now().UTC(),
	})
}
