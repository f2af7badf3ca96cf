package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/renthol/rental-service/internal/core/domain"
	"github.com/renthol/rental-service/internal/infra/security"
	"github.com/renthol/rental-service/internal/repository"
)

const loginPassword = "Sup3rStr0ng!pass@"

func testIssuer(t *testing.T) *security.TokenIssuer {
	t.Helper()
	issuer, err := security.NewTokenIssuer("unit-test-jwt-secret", "rental-service", 10*time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("new token issuer: %v", err)
	}
	return issuer
}

func userFixture(t *testing.T, now time.Time) *domain.User {
	t.Helper()

	hash, err := security.HashPassword(loginPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	return &domain.User{
		ID:                "user-1",
		Username:          "rhea",
		Email:             "rhea@example.com",
		Phone:             "9812345678",
		PasswordHash:      hash,
		PasswordCreatedOn: now.AddDate(0, 0, -30),
		Role:              domain.RoleUser,
		RegisteredAt:      now.AddDate(0, -6, 0),
	}
}

func newAuthService(users *mockUsers, sessions *mockSessions, captcha *mockCaptcha, activity *mockActivity, t *testing.T) *AuthService {
	t.Helper()
	return NewAuthService(users, sessions, captcha, testIssuer(t), activity, AuthConfig{
		LockoutThreshold:   5,
		LockoutDuration:    10 * time.Minute,
		SessionTTL:         30 * 24 * time.Hour,
		PasswordMaxAgeDays: 90,
	}, zap.NewNop())
}

func TestAuthService_Login(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	user := userFixture(t, now)
	user.FailedLoginAttempts = 2

	resetCalled := false
	users := &mockUsers{
		getByEmailFn: func(context.Context, string) (*domain.User, error) { return user, nil },
		resetLoginStateFn: func(context.Context, string) error {
			resetCalled = true
			return nil
		},
	}

	var storedSession domain.Session
	sessions := &mockSessions{
		createFn: func(_ context.Context, session domain.Session, _ time.Duration) error {
			storedSession = session
			return nil
		},
	}
	activity := &mockActivity{}

	svc := newAuthService(users, sessions, &mockCaptcha{}, activity, t).
		WithClock(func() time.Time { return now })

	result, err := svc.Login(context.Background(), LoginInput{
		Email:        "Rhea@Example.com",
		Password:     loginPassword,
		CaptchaToken: "captcha-ok",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if result.SessionID == "" || result.SessionID != storedSession.ID {
		t.Fatalf("session not created: %+v", result)
	}
	if !resetCalled {
		t.Fatal("failure counters not reset on success")
	}

	claims, err := svc.ParseAccessToken(result.AccessToken)
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != string(domain.RoleUser) {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if entry := activity.last(); entry == nil || entry.Action != domain.ActionLogin || entry.Status != domain.ActivitySuccess {
		t.Fatalf("unexpected activity entry: %+v", entry)
	}
}

func TestAuthService_LoginCaptchaRejected(t *testing.T) {
	captcha := &mockCaptcha{err: errors.New("rejected")}
	svc := newAuthService(&mockUsers{}, &mockSessions{}, captcha, &mockActivity{}, t)

	_, err := svc.Login(context.Background(), LoginInput{Email: "rhea@example.com", Password: "x"})
	if !errors.Is(err, ErrCaptchaFailed) {
		t.Fatalf("expected ErrCaptchaFailed, got %v", err)
	}
}

func TestAuthService_LoginUnknownEmail(t *testing.T) {
	svc := newAuthService(&mockUsers{}, &mockSessions{}, &mockCaptcha{}, &mockActivity{}, t)

	_, err := svc.Login(context.Background(), LoginInput{Email: "nobody@example.com", Password: "x"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_LoginWrongPassword(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	user := userFixture(t, now)

	var recordedThreshold int
	users := &mockUsers{
		getByEmailFn: func(context.Context, string) (*domain.User, error) { return user, nil },
		recordLoginFailureFn: func(_ context.Context, _ string, threshold int, _ time.Duration, _ time.Time) (int, *time.Time, error) {
			recordedThreshold = threshold
			return 3, nil, nil
		},
	}

	svc := newAuthService(users, &mockSessions{}, &mockCaptcha{}, &mockActivity{}, t).
		WithClock(func() time.Time { return now })

	_, err := svc.Login(context.Background(), LoginInput{Email: "rhea@example.com", Password: "wrong"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if recordedThreshold != 5 {
		t.Fatalf("expected threshold 5, got %d", recordedThreshold)
	}
}

func TestAuthService_LoginReachesLockout(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	user := userFixture(t, now)
	lockUntil := now.Add(10 * time.Minute)

	users := &mockUsers{
		getByEmailFn: func(context.Context, string) (*domain.User, error) { return user, nil },
		recordLoginFailureFn: func(context.Context, string, int, time.Duration, time.Time) (int, *time.Time, error) {
			return 5, &lockUntil, nil
		},
	}
	activity := &mockActivity{}

	svc := newAuthService(users, &mockSessions{}, &mockCaptcha{}, activity, t).
		WithClock(func() time.Time { return now })

	_, err := svc.Login(context.Background(), LoginInput{Email: "rhea@example.com", Password: "wrong"})

	var locked *LockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected LockedError, got %v", err)
	}
	if !locked.Until.Equal(lockUntil) {
		t.Fatalf("unexpected lock expiry: %s", locked.Until)
	}
	if entry := activity.last(); entry == nil || entry.Action != domain.ActionAccountLockout {
		t.Fatalf("expected lockout activity entry, got %+v", entry)
	}
}

func TestAuthService_LoginLockedAccount(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	user := userFixture(t, now)
	lockUntil := now.Add(5 * time.Minute)
	user.LockUntil = &lockUntil
	user.FailedLoginAttempts = 5

	users := &mockUsers{
		getByEmailFn: func(context.Context, string) (*domain.User, error) { return user, nil },
	}

	svc := newAuthService(users, &mockSessions{}, &mockCaptcha{}, &mockActivity{}, t).
		WithClock(func() time.Time { return now })

	// Even the correct password is rejected while the lock is active.
	_, err := svc.Login(context.Background(), LoginInput{Email: "rhea@example.com", Password: loginPassword})

	var locked *LockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected LockedError, got %v", err)
	}
}

func TestAuthService_LoginExpiredLockAdmitsUser(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	user := userFixture(t, now)
	past := now.Add(-time.Minute)
	user.LockUntil = &past
	user.FailedLoginAttempts = 5

	users := &mockUsers{
		getByEmailFn:      func(context.Context, string) (*domain.User, error) { return user, nil },
		resetLoginStateFn: func(context.Context, string) error { return nil },
	}
	sessions := &mockSessions{
		createFn: func(context.Context, domain.Session, time.Duration) error { return nil },
	}

	svc := newAuthService(users, sessions, &mockCaptcha{}, &mockActivity{}, t).
		WithClock(func() time.Time { return now })

	if _, err := svc.Login(context.Background(), LoginInput{Email: "rhea@example.com", Password: loginPassword}); err != nil {
		t.Fatalf("expected login after lock expiry, got %v", err)
	}
}

func TestAuthService_LoginPasswordExpired(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	user := userFixture(t, now)
	user.PasswordCreatedOn = now.AddDate(0, 0, -91)
	user.Role = domain.RoleAdmin

	users := &mockUsers{
		getByEmailFn: func(context.Context, string) (*domain.User, error) { return user, nil },
	}

	svc := newAuthService(users, &mockSessions{}, &mockCaptcha{}, &mockActivity{}, t).
		WithClock(func() time.Time { return now })

	_, err := svc.Login(context.Background(), LoginInput{Email: "rhea@example.com", Password: loginPassword})

	var expired *PasswordExpiredError
	if !errors.As(err, &expired) {
		t.Fatalf("expected PasswordExpiredError, got %v", err)
	}
	if expired.Role != domain.RoleAdmin || expired.UserID != user.ID {
		t.Fatalf("unexpected error payload: %+v", expired)
	}
}

func TestAuthService_Logout(t *testing.T) {
	deleted := false
	sessions := &mockSessions{
		getFn: func(_ context.Context, id string) (*domain.Session, error) {
			return &domain.Session{ID: id, UserID: "user-1"}, nil
		},
		deleteFn: func(context.Context, string) error {
			deleted = true
			return nil
		},
	}
	activity := &mockActivity{}

	svc := newAuthService(&mockUsers{}, sessions, &mockCaptcha{}, activity, t)

	if err := svc.Logout(context.Background(), "sess-1", RequestMeta{}); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if !deleted {
		t.Fatal("session not deleted")
	}
	if entry := activity.last(); entry == nil || entry.Action != domain.ActionLogout {
		t.Fatalf("unexpected activity entry: %+v", entry)
	}

	// Unknown session is not an error.
	svc = newAuthService(&mockUsers{}, &mockSessions{}, &mockCaptcha{}, &mockActivity{}, t)
	if err := svc.Logout(context.Background(), "missing", RequestMeta{}); err != nil {
		t.Fatalf("logout of unknown session: %v", err)
	}
}

func TestAuthService_ResolveSession(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

	pruned := false
	sessions := &mockSessions{
		getFn: func(_ context.Context, id string) (*domain.Session, error) {
			switch id {
			case "live":
				return &domain.Session{ID: id, UserID: "user-1", ExpiresAt: now.Add(time.Hour)}, nil
			case "stale":
				return &domain.Session{ID: id, UserID: "user-1", ExpiresAt: now.Add(-time.Hour)}, nil
			default:
				return nil, repository.ErrNotFound
			}
		},
		deleteFn: func(context.Context, string) error {
			pruned = true
			return nil
		},
	}

	svc := newAuthService(&mockUsers{}, sessions, &mockCaptcha{}, &mockActivity{}, t).
		WithClock(func() time.Time { return now })

	if _, err := svc.ResolveSession(context.Background(), "live"); err != nil {
		t.Fatalf("resolve live session: %v", err)
	}

	if _, err := svc.ResolveSession(context.Background(), "stale"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for stale session, got %v", err)
	}
	if !pruned {
		t.Fatal("stale session not pruned")
	}

	if _, err := svc.ResolveSession(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestAuthService_ParseAccessToken(t *testing.T) {
	svc := newAuthService(&mockUsers{}, &mockSessions{}, &mockCaptcha{}, &mockActivity{}, t)

	if _, err := svc.ParseAccessToken("garbage"); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected ErrInvalidAccessToken, got %v", err)
	}
}
