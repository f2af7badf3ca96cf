package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	netmail "net/mail"
	"regexp"
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
	// ErrEmailTaken indicates a confirmed account already exists for the email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidEmail indicates the email address failed validation.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrInvalidPhone indicates the phone number failed validation.
	ErrInvalidPhone = errors.New("invalid phone number")
	// ErrInvalidUsername indicates the username failed validation.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrOTPInvalid indicates no pending registration matches the email/code pair.
	ErrOTPInvalid = errors.New("invalid verification code")
	// ErrOTPExpired indicates the verification window has passed.
	ErrOTPExpired = errors.New("verification code expired")
)

var phonePattern = regexp.MustCompile(`^\d{10}$`)

// RegistrationService drives the two-phase registration flow: a candidate is
// parked in the pending store until the emailed OTP proves address ownership,
// and only then promoted to a durable account.
type RegistrationService struct {
	users    port.UserRepository
	pending  port.PendingUserRepository
	mailer   port.Mailer
	cipher   *security.ContactCipher
	activity port.ActivityRecorder
	log      *zap.Logger

	validator *security.PasswordValidator
	otpTTL    time.Duration
	now       func() time.Time
}

// NewRegistrationService wires the registration flow dependencies.
func NewRegistrationService(
	users port.UserRepository,
	pending port.PendingUserRepository,
	mailer port.Mailer,
	cipher *security.ContactCipher,
	activity port.ActivityRecorder,
	otpTTL time.Duration,
	log *zap.Logger,
) *RegistrationService {
	if otpTTL <= 0 {
		otpTTL = 10 * time.Minute
	}

	return &RegistrationService{
		users:     users,
		pending:   pending,
		mailer:    mailer,
		cipher:    cipher,
		activity:  activity,
		log:       log,
		validator: security.RegistrationPasswordValidator(),
		otpTTL:    otpTTL,
		now:       time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *RegistrationService) WithClock(clock func() time.Time) *RegistrationService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// RegisterInput is the candidate registration payload. Role is optional and
// defaults to the regular user role.
type RegisterInput struct {
	Username string
	Email    string
	Phone    string
	Password string
	Role     domain.Role
	Meta     RequestMeta
}

// Register validates the candidate, stores it pending verification, and
// emails a one-time code. A repeat registration for the same email simply
// replaces the previous pending attempt with a fresh code.
func (s *RegistrationService) Register(ctx context.Context, in RegisterInput) error {
	email := normalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)

	if username == "" {
		return ErrInvalidUsername
	}
	if _, err := netmail.ParseAddress(email); err != nil || email == "" {
		return ErrInvalidEmail
	}
	if !phonePattern.MatchString(in.Phone) {
		return ErrInvalidPhone
	}
	if err := s.validator.Validate(in.Password); err != nil {
		return err
	}

	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return ErrInvalidRole
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		s.recordRegistration(ctx, email, domain.ActivityFailed, "email already registered", in.Meta)
		return ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("lookup existing user: %w", err)
	}

	passwordHash, err := security.HashPassword(in.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	emailEnc, err := s.cipher.Encrypt(email)
	if err != nil {
		return fmt.Errorf("seal email: %w", err)
	}
	phoneEnc, err := s.cipher.Encrypt(in.Phone)
	if err != nil {
		return fmt.Errorf("seal phone: %w", err)
	}

	otp, err := security.GenerateOTP()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}

	now := s.now().UTC()
	candidate := domain.PendingUser{
		EmailKey:     security.EmailKey(email),
		Username:     username,
		EmailEnc:     emailEnc,
		PhoneEnc:     phoneEnc,
		PasswordHash: passwordHash,
		OTP:          otp,
		Role:         role,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.otpTTL),
	}

	if err := s.pending.Replace(ctx, candidate, s.otpTTL); err != nil {
		return fmt.Errorf("store pending registration: %w", err)
	}

	body, err := mail.RenderOTP(username, otp, int(s.otpTTL.Minutes()))
	if err != nil {
		return fmt.Errorf("render otp mail: %w", err)
	}
	if err := s.mailer.Send(ctx, email, mail.SubjectOTP, body); err != nil {
		s.recordRegistration(ctx, email, domain.ActivityFailed, "verification mail not delivered", in.Meta)
		return fmt.Errorf("send otp mail: %w", err)
	}

	s.log.Info("registration pending verification",
		zap.String("email", logger.MaskEmail(email)),
	)
	s.recordRegistration(ctx, email, domain.ActivitySuccess, "verification code sent", in.Meta)

	return nil
}

// VerifyOTPInput identifies the pending registration being confirmed.
type VerifyOTPInput struct {
	Email string
	OTP   string
	Meta  RequestMeta
}

// VerifyOTP confirms the emailed code and promotes the pending candidate to
// a durable account. The pending entry is removed in every terminal outcome
// so a code can never be replayed.
func (s *RegistrationService) VerifyOTP(ctx context.Context, in VerifyOTPInput) (*domain.User, error) {
	email := normalizeEmail(in.Email)
	emailKey := security.EmailKey(email)

	candidate, err := s.pending.Get(ctx, emailKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.recordVerification(ctx, email, nil, domain.ActivityFailed, "no pending registration", in.Meta)
			return nil, ErrOTPInvalid
		}
		return nil, fmt.Errorf("load pending registration: %w", err)
	}

	now := s.now().UTC()
	if candidate.Expired(now) {
		if err := s.pending.Delete(ctx, emailKey); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("failed to drop expired pending registration", zap.Error(err))
		}
		s.recordVerification(ctx, email, nil, domain.ActivityFailed, "verification code expired", in.Meta)
		return nil, ErrOTPExpired
	}

	if subtle.ConstantTimeCompare([]byte(candidate.OTP), []byte(in.OTP)) != 1 {
		s.recordVerification(ctx, email, nil, domain.ActivityFailed, "verification code mismatch", in.Meta)
		return nil, ErrOTPInvalid
	}

	plainEmail, err := s.cipher.Decrypt(candidate.EmailEnc)
	if err != nil {
		return nil, fmt.Errorf("unseal email: %w", err)
	}
	plainPhone, err := s.cipher.Decrypt(candidate.PhoneEnc)
	if err != nil {
		return nil, fmt.Errorf("unseal phone: %w", err)
	}

	user := domain.User{
		ID:                uuid.NewString(),
		Username:          candidate.Username,
		Email:             plainEmail,
		Phone:             plainPhone,
		PasswordHash:      candidate.PasswordHash,
		PasswordCreatedOn: now,
		Role:              candidate.Role,
		RegisteredAt:      now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// A concurrent verification already promoted this candidate.
			_ = s.pending.Delete(ctx, emailKey)
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.pending.Delete(ctx, emailKey); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.log.Warn("failed to drop promoted pending registration", zap.Error(err))
	}

	if body, err := mail.RenderWelcome(user.Username); err == nil {
		if err := s.mailer.Send(ctx, user.Email, mail.SubjectWelcome, body); err != nil {
			s.log.Warn("welcome mail not delivered",
				zap.String("email", logger.MaskEmail(user.Email)),
				zap.Error(err),
			)
		}
	}

	s.recordVerification(ctx, email, &user.ID, domain.ActivitySuccess, "account activated", in.Meta)

	return &user, nil
}

func (s *RegistrationService) recordRegistration(ctx context.Context, email string, status domain.ActivityStatus, detail string, meta RequestMeta) {
	recordActivity(ctx, s.activity, s.log, domain.ActivityEntry{
		Email:      email,
		Action:     domain.ActionRegister,
		Status:     status,
		Detail:     detail,
		IP:         meta.IP,
		UserAgent:  meta.UserAgent,
		OccurredAt: s.now().UTC(),
	})
}

func (s *RegistrationService) recordVerification(ctx context.Context, email string, userID *string, status domain.ActivityStatus, detail string, meta RequestMeta) {
	recordActivity(ctx, s.activity, s.log, domain.ActivityEntry{
		UserID:     userID,
		Email:      email,
		Action:     domain.ActionOTPVerification,
		Status:     status,
		Detail:     detail,
		IP:         meta.IP,
		UserAgent:  meta.UserAgent,
		OccurredAt: s.now().UTC(),
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
