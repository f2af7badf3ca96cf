package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/renthol/rental-service/internal/core/domain"
	"github.com/renthol/rental-service/internal/infra/mail"
	"github.com/renthol/rental-service/internal/infra/security"
	"github.com/renthol/rental-service/internal/repository"
)

func testCipher(t *testing.T) *security.ContactCipher {
	t.Helper()
	cipher, err := security.NewContactCipher("unit-test-secret")
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	return cipher
}

func validRegisterInput() RegisterInput {
	return RegisterInput{
		Username: "rhea",
		Email:    "Rhea@Example.com",
		Phone:    "9812345678",
		Password: "Sup3rStr0ng!pass@",
		Meta:     RequestMeta{IP: "10.0.0.1", UserAgent: "go-test"},
	}
}

func TestRegistrationService_Register(t *testing.T) {
	var stored domain.PendingUser
	var storedTTL time.Duration

	users := &mockUsers{}
	pending := &mockPending{
		replaceFn: func(_ context.Context, p domain.PendingUser, ttl time.Duration) error {
			stored = p
			storedTTL = ttl
			return nil
		},
	}
	mailer := &mockMailer{}
	activity := &mockActivity{}
	cipher := testCipher(t)

	svc := NewRegistrationService(users, pending, mailer, cipher, activity, 10*time.Minute, zap.NewNop())

	if err := svc.Register(context.Background(), validRegisterInput()); err != nil {
		t.Fatalf("register: %v", err)
	}

	if stored.EmailKey != security.EmailKey("rhea@example.com") {
		t.Fatalf("unexpected email key: %s", stored.EmailKey)
	}
	if stored.Role != domain.RoleUser {
		t.Fatalf("unexpected role: %s", stored.Role)
	}
	if len(stored.OTP) != 6 {
		t.Fatalf("expected 6-digit otp, got %q", stored.OTP)
	}
	if storedTTL != 10*time.Minute {
		t.Fatalf("unexpected ttl: %s", storedTTL)
	}

	// Contact fields are sealed, never stored in the clear.
	if stored.EmailEnc == "rhea@example.com" || stored.PhoneEnc == "9812345678" {
		t.Fatal("contact fields stored in plaintext")
	}
	if plain, err := cipher.Decrypt(stored.EmailEnc); err != nil || plain != "rhea@example.com" {
		t.Fatalf("email did not round-trip: %q, %v", plain, err)
	}

	if len(mailer.sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(mailer.sent))
	}
	if mailer.sent[0].Subject != mail.SubjectOTP {
		t.Fatalf("unexpected subject: %s", mailer.sent[0].Subject)
	}
	if !strings.Contains(mailer.sent[0].Body, stored.OTP) {
		t.Fatal("otp mail does not contain the code")
	}

	if entry := activity.last(); entry == nil || entry.Action != domain.ActionRegister || entry.Status != domain.ActivitySuccess {
		t.Fatalf("unexpected activity entry: %+v", entry)
	}
}

func TestRegistrationService_RegisterWithRole(t *testing.T) {
	var stored domain.PendingUser
	pending := &mockPending{
		replaceFn: func(_ context.Context, p domain.PendingUser, _ time.Duration) error {
			stored = p
			return nil
		},
	}

	svc := NewRegistrationService(&mockUsers{}, pending, &mockMailer{}, testCipher(t), &mockActivity{}, 0, zap.NewNop())

	in := validRegisterInput()
	in.Role = domain.RoleAdmin
	if err := svc.Register(context.Background(), in); err != nil {
		t.Fatalf("register: %v", err)
	}
	if stored.Role != domain.RoleAdmin {
		t.Fatalf("requested role not carried into pending record: %s", stored.Role)
	}

	in.Role = "superuser"
	if err := svc.Register(context.Background(), in); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestRegistrationService_RegisterEmailTaken(t *testing.T) {
	users := &mockUsers{
		getByEmailFn: func(_ context.Context, email string) (*domain.User, error) {
			return &domain.User{ID: "u1", Email: email}, nil
		},
	}
	activity := &mockActivity{}

	svc := NewRegistrationService(users, &mockPending{}, &mockMailer{}, testCipher(t), activity, 0, zap.NewNop())

	err := svc.Register(context.Background(), validRegisterInput())
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if entry := activity.last(); entry == nil || entry.Status != domain.ActivityFailed {
		t.Fatalf("expected failed activity entry, got %+v", entry)
	}
}

func TestRegistrationService_RegisterValidation(t *testing.T) {
	svc := NewRegistrationService(&mockUsers{}, &mockPending{}, &mockMailer{}, testCipher(t), &mockActivity{}, 0, zap.NewNop())

	cases := []struct {
		name    string
		mutate  func(*RegisterInput)
		wantErr error
	}{
		{"short phone", func(in *RegisterInput) { in.Phone = "12345" }, ErrInvalidPhone},
		{"alpha phone", func(in *RegisterInput) { in.Phone = "98123456ab" }, ErrInvalidPhone},
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }, ErrInvalidEmail},
		{"empty username", func(in *RegisterInput) { in.Username = "  " }, ErrInvalidUsername},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validRegisterInput()
			tc.mutate(&in)
			if err := svc.Register(context.Background(), in); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	t.Run("weak password", func(t *testing.T) {
		in := validRegisterInput()
		in.Password = "weakpass"
		err := svc.Register(context.Background(), in)
		var verr *security.PasswordValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected password validation error, got %v", err)
		}
	})
}

func TestRegistrationService_RegisterMailFailure(t *testing.T) {
	pending := &mockPending{
		replaceFn: func(context.Context, domain.PendingUser, time.Duration) error { return nil },
	}
	mailer := &mockMailer{err: errors.New("smtp down")}

	svc := NewRegistrationService(&mockUsers{}, pending, mailer, testCipher(t), &mockActivity{}, 0, zap.NewNop())

	if err := svc.Register(context.Background(), validRegisterInput()); err == nil {
		t.Fatal("expected error when otp mail cannot be delivered")
	}
}

func pendingFixture(t *testing.T, cipher *security.ContactCipher, now time.Time) domain.PendingUser {
	t.Helper()

	emailEnc, err := cipher.Encrypt("rhea@example.com")
	if err != nil {
		t.Fatalf("encrypt email: %v", err)
	}
	phoneEnc, err := cipher.Encrypt("9812345678")
	if err != nil {
		t.Fatalf("encrypt phone: %v", err)
	}

	return domain.PendingUser{
		EmailKey:     security.EmailKey("rhea@example.com"),
		Username:     "rhea",
		EmailEnc:     emailEnc,
		PhoneEnc:     phoneEnc,
		PasswordHash: "salt:hash",
		OTP:          "482913",
		Role:         domain.RoleUser,
		CreatedAt:    now,
		ExpiresAt:    now.Add(10 * time.Minute),
	}
}

func TestRegistrationService_VerifyOTP(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	cipher := testCipher(t)
	fixture := pendingFixture(t, cipher, now)

	var created domain.User
	deleted := false

	users := &mockUsers{
		createFn: func(_ context.Context, user domain.User) error {
			created = user
			return nil
		},
	}
	pending := &mockPending{
		getFn: func(_ context.Context, emailKey string) (*domain.PendingUser, error) {
			if emailKey != fixture.EmailKey {
				return nil, repository.ErrNotFound
			}
			return &fixture, nil
		},
		deleteFn: func(context.Context, string) error {
			deleted = true
			return nil
		},
	}
	mailer := &mockMailer{}
	activity := &mockActivity{}

	svc := NewRegistrationService(users, pending, mailer, cipher, activity, 0, zap.NewNop()).
		WithClock(func() time.Time { return now.Add(time.Minute) })

	user, err := svc.VerifyOTP(context.Background(), VerifyOTPInput{Email: "Rhea@Example.com", OTP: "482913"})
	if err != nil {
		t.Fatalf("verify otp: %v", err)
	}

	if user.Email != "rhea@example.com" || user.Phone != "9812345678" {
		t.Fatalf("contact fields not unsealed: %+v", user)
	}
	if created.ID == "" || created.PasswordHash != "salt:hash" {
		t.Fatalf("unexpected created user: %+v", created)
	}
	if created.PasswordCreatedOn.IsZero() {
		t.Fatal("password creation date not set")
	}
	if !deleted {
		t.Fatal("pending entry not removed after promotion")
	}
	if len(mailer.sent) != 1 || mailer.sent[0].Subject != mail.SubjectWelcome {
		t.Fatalf("expected welcome mail, got %+v", mailer.sent)
	}
	if entry := activity.last(); entry == nil || entry.Action != domain.ActionOTPVerification || entry.Status != domain.ActivitySuccess {
		t.Fatalf("unexpected activity entry: %+v", entry)
	}
}

func TestRegistrationService_VerifyOTPExpired(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	cipher := testCipher(t)
	fixture := pendingFixture(t, cipher, now)

	deleted := false
	pending := &mockPending{
		getFn: func(context.Context, string) (*domain.PendingUser, error) { return &fixture, nil },
		deleteFn: func(context.Context, string) error {
			deleted = true
			return nil
		},
	}

	svc := NewRegistrationService(&mockUsers{}, pending, &mockMailer{}, cipher, &mockActivity{}, 0, zap.NewNop()).
		WithClock(func() time.Time { return now.Add(11 * time.Minute) })

	_, err := svc.VerifyOTP(context.Background(), VerifyOTPInput{Email: "rhea@example.com", OTP: "482913"})
	if !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("expected ErrOTPExpired, got %v", err)
	}
	if !deleted {
		t.Fatal("expired pending entry not removed")
	}
}

func TestRegistrationService_VerifyOTPMismatch(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	cipher := testCipher(t)
	fixture := pendingFixture(t, cipher, now)

	pending := &mockPending{
		getFn: func(context.Context, string) (*domain.PendingUser, error) { return &fixture, nil },
	}

	svc := NewRegistrationService(&mockUsers{}, pending, &mockMailer{}, cipher, &mockActivity{}, 0, zap.NewNop()).
		WithClock(func() time.Time { return now.Add(time.Minute) })

	_, err := svc.VerifyOTP(context.Background(), VerifyOTPInput{Email: "rhea@example.com", OTP: "000000"})
	if !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("expected ErrOTPInvalid, got %v", err)
	}
}

func TestRegistrationService_VerifyOTPUnknownEmail(t *testing.T) {
	svc := NewRegistrationService(&mockUsers{}, &mockPending{}, &mockMailer{}, testCipher(t), &mockActivity{}, 0, zap.NewNop())

	_, err := svc.VerifyOTP(context.Background(), VerifyOTPInput{Email: "nobody@example.com", OTP: "123456"})
	if !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("expected ErrOTPInvalid, got %v", err)
	}
}
