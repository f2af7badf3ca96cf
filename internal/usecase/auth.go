package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/renthol/rental-service/internal/core/domain"
	"github.com/renthol/rental-service/internal/core/port"
	"github.com/renthol/rental-service/internal/infra/logger"
	"github.com/renthol/rental-service/internal/infra/security"
	"github.com/renthol/rental-service/internal/repository"
)

var (
	// ErrInvalidCredentials indicates the email/password pair did not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCaptchaFailed indicates the CAPTCHA response was missing or rejected.
	ErrCaptchaFailed = errors.New("captcha verification failed")
	// ErrExpiredAccessToken indicates the bearer token lifetime has elapsed.
	ErrExpiredAccessToken = errors.New("access token expired")
	// ErrInvalidAccessToken indicates the bearer token failed validation.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrSessionNotFound indicates no active session matches the cookie.
	ErrSessionNotFound = errors.New("session not found")
)

// LockedError reports a login attempt against a locked account.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.UTC().Format(time.RFC3339))
}

// PasswordExpiredError reports a credential check that succeeded against a
// password older than the maximum age. The account role travels with the
// error so the caller can route the user to the right renewal flow.
type PasswordExpiredError struct {
	UserID string
	Role   domain.Role
}

func (e *PasswordExpiredError) Error() string {
	return "password expired"
}

// AuthConfig bundles the login-hardening knobs.
type AuthConfig struct {
	LockoutThreshold   int
	LockoutDuration    time.Duration
	SessionTTL         time.Duration
	PasswordMaxAgeDays int
}

// AuthService authenticates users and manages their sessions and tokens.
type AuthService struct {
	users    port.UserRepository
	sessions port.SessionStore
	captcha  port.CaptchaVerifier
	tokens   *security.TokenIssuer
	activity port.ActivityRecorder
	log      *zap.Logger

	cfg AuthConfig
	now func() time.Time
}

// NewAuthService wires the authentication dependencies.
func NewAuthService(
	users port.UserRepository,
	sessions port.SessionStore,
	captcha port.CaptchaVerifier,
	tokens *security.TokenIssuer,
	activity port.ActivityRecorder,
	cfg AuthConfig,
	log *zap.Logger,
) *AuthService {
	if cfg.LockoutThreshold <= 0 {
		cfg.LockoutThreshold = 5
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = 10 * time.Minute
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * 24 * time.Hour
	}
	if cfg.PasswordMaxAgeDays <= 0 {
		cfg.PasswordMaxAgeDays = 90
	}

	return &AuthService{
		users:    users,
		sessions: sessions,
		captcha:  captcha,
		tokens:   tokens,
		activity: activity,
		log:      log,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *AuthService) WithClock(clock func() time.Time) *AuthService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// LoginInput is the credential payload for a login attempt.
type LoginInput struct {
	Email        string
	Password     string
	CaptchaToken string
	Meta         RequestMeta
}

// LoginResult is a successful authentication outcome.
type LoginResult struct {
	User             domain.User
	AccessToken      string
	SessionID        string
	SessionExpiresAt time.Time
}

// Login authenticates the credential pair behind a CAPTCHA gate. Failed
// attempts are counted atomically in the store; reaching the threshold locks
// the account for the configured window.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := normalizeEmail(in.Email)

	if err := s.captcha.Verify(ctx, in.CaptchaToken, in.Meta.IP); err != nil {
		s.recordLogin(ctx, email, nil, domain.ActivityFailed, "captcha rejected", in.Meta)
		return nil, fmt.Errorf("%w: %v", ErrCaptchaFailed, err)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.recordLogin(ctx, email, nil, domain.ActivityFailed, "unknown email", in.Meta)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	now := s.now().UTC()
	if user.Locked(now) {
		s.recordLogin(ctx, email, &user.ID, domain.ActivityFailed, "account locked", in.Meta)
		return nil, &LockedError{Until: *user.LockUntil}
	}

	ok, err := security.VerifyPassword(in.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		attempts, lockUntil, ferr := s.users.RecordLoginFailure(ctx, user.ID, s.cfg.LockoutThreshold, s.cfg.LockoutDuration, now)
		if ferr != nil {
			s.log.Error("failed to record login failure", zap.Error(ferr))
		}

		if lockUntil != nil && lockUntil.After(now) {
			s.log.Warn("account locked after repeated failures",
				zap.String("email", logger.MaskEmail(email)),
				zap.Int("attempts", attempts),
			)
			s.recordLockout(ctx, user, *lockUntil, in.Meta)
			return nil, &LockedError{Until: *lockUntil}
		}

		s.recordLogin(ctx, email, &user.ID, domain.ActivityFailed, "password mismatch", in.Meta)
		return nil, ErrInvalidCredentials
	}

	if user.FailedLoginAttempts > 0 || user.LockUntil != nil {
		if err := s.users.ResetLoginState(ctx, user.ID); err != nil {
			s.log.Warn("failed to reset login counters", zap.Error(err))
		}
	}

	if security.PasswordExpired(user.PasswordCreatedOn, now, s.cfg.PasswordMaxAgeDays) {
		s.recordLogin(ctx, email, &user.ID, domain.ActivityFailed, "password expired", in.Meta)
		return nil, &PasswordExpiredError{UserID: user.ID, Role: user.Role}
	}

	session := domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}
	if err := s.sessions.Create(ctx, session, s.cfg.SessionTTL); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	token, err := s.tokens.IssueAccessToken(*user)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	s.recordLogin(ctx, email, &user.ID, domain.ActivitySuccess, "", in.Meta)

	return &LoginResult{
		User:             *user,
		AccessToken:      token,
		SessionID:        session.ID,
		SessionExpiresAt: session.ExpiresAt,
	}, nil
}

// Logout tears down the server-side session. A missing session is not an
// error: the client outcome is the same either way.
func (s *AuthService) Logout(ctx context.Context, sessionID string, meta RequestMeta) error {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load session: %w", err)
	}

	if err := s.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}

	recordActivity(ctx, s.activity, s.log, domain.ActivityEntry{
		UserID:     &session.UserID,
		Action:     domain.ActionLogout,
		Status:     domain.ActivitySuccess,
		IP:         meta.IP,
		UserAgent:  meta.UserAgent,
		OccurredAt: s.now().UTC(),
	})

	return nil
}

// ParseAccessToken validates a bearer token and returns its claims.
func (s *AuthService) ParseAccessToken(token string) (*security.AccessTokenClaims, error) {
	claims, err := s.tokens.ParseAccessToken(token)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, ErrExpiredAccessToken
		}
		return nil, ErrInvalidAccessToken
	}
	return claims, nil
}

// ResolveSession loads the session referenced by the cookie. Expired entries
// are pruned on read.
func (s *AuthService) ResolveSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	if session.Expired(s.now().UTC()) {
		if err := s.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("failed to prune expired session", zap.Error(err))
		}
		return nil, ErrSessionNotFound
	}

	return session, nil
}

// AccessTokenTTL exposes the configured JWT lifetime for cookie settings.
func (s *AuthService) AccessTokenTTL() time.Duration {
	return s.tokens.AccessTokenTTL()
}

func (s *AuthService) recordLogin(ctx context.Context, email string, userID *string, status domain.ActivityStatus, detail string, meta RequestMeta) {
	recordActivity(ctx, s.activity, s.log, domain.ActivityEntry{
		UserID:     userID,
		Email:      email,
		Action:     domain.ActionLogin,
		Status:     status,
		Detail:     detail,
		IP:         meta.IP,
		UserAgent:  meta.UserAgent,
		OccurredAt: s.now().UTC(),
	})
}

func (s *AuthService) recordLockout(ctx context.Context, user *domain.User, until time.Time, meta RequestMeta) {
	recordActivity(ctx, s.activity, s.log, domain.ActivityEntry{
		UserID:     &user.ID,
		Email:      user.Email,
		Action:     domain.ActionAccountLockout,
		Status:     domain.ActivityFailed,
		Detail:     fmt.Sprintf("locked until %s", until.UTC().Format(time.RFC3339)),
		IP:         meta.IP,
		UserAgent:  meta.UserAgent,
		OccurredAt: s.now().UTC(),
	})
}
