package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/renthol/rental-service/internal/core/domain"
	"github.com/renthol/rental-service/internal/core/port"
	"github.com/renthol/rental-service/internal/repository"
)

type mockUsers struct {
	createFn             func(ctx context.Context, user domain.User) error
	getByIDFn            func(ctx context.Context, id string) (*domain.User, error)
	getByEmailFn         func(ctx context.Context, email string) (*domain.User, error)
	listFn               func(ctx context.Context, filter port.UserFilter) ([]domain.User, error)
	updateProfileFn      func(ctx context.Context, id, username, phone string) error
	updateRoleFn         func(ctx context.Context, id string, role domain.Role) error
	deleteFn             func(ctx context.Context, id string) error
	recordLoginFailureFn func(ctx context.Context, id string, threshold int, lockFor time.Duration, now time.Time) (int, *time.Time, error)
	resetLoginStateFn    func(ctx context.Context, id string) error
	setLockFn            func(ctx context.Context, id string, until time.Time) error
	updatePasswordFn     func(ctx context.Context, id, hash string, changedAt time.Time) error
	listHistoryFn        func(ctx context.Context, userID string, limit int) ([]domain.PasswordHistoryEntry, error)
	addHistoryFn         func(ctx context.Context, entry domain.PasswordHistoryEntry) error
	trimHistoryFn        func(ctx context.Context, userID string, maxEntries int) error
}

func (m *mockUsers) Create(ctx context.Context, user domain.User) error {
	if m.createFn == nil {
		return errors.New("unexpected Create call")
	}
	return m.createFn(ctx, user)
}

func (m *mockUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if m.getByIDFn == nil {
		return nil, repository.ErrNotFound
	}
	return m.getByIDFn(ctx, id)
}

func (m *mockUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.getByEmailFn == nil {
		return nil, repository.ErrNotFound
	}
	return m.getByEmailFn(ctx, email)
}

func (m *mockUsers) List(ctx context.Context, filter port.UserFilter) ([]domain.User, error) {
	if m.listFn == nil {
		return nil, nil
	}
	return m.listFn(ctx, filter)
}

func (m *mockUsers) UpdateProfile(ctx context.Context, id, username, phone string) error {
	if m.updateProfileFn == nil {
		return errors.New("unexpected UpdateProfile call")
	}
	return m.updateProfileFn(ctx, id, username, phone)
}

func (m *mockUsers) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	if m.updateRoleFn == nil {
		return errors.New("unexpected UpdateRole call")
	}
	return m.updateRoleFn(ctx, id, role)
}

func (m *mockUsers) Delete(ctx context.Context, id string) error {
	if m.deleteFn == nil {
		return errors.New("unexpected Delete call")
	}
	return m.deleteFn(ctx, id)
}

func (m *mockUsers) RecordLoginFailure(ctx context.Context, id string, threshold int, lockFor time.Duration, now time.Time) (int, *time.Time, error) {
	if m.recordLoginFailureFn == nil {
		return 0, nil, errors.New("unexpected RecordLoginFailure call")
	}
	return m.recordLoginFailureFn(ctx, id, threshold, lockFor, now)
}

func (m *mockUsers) ResetLoginState(ctx context.Context, id string) error {
	if m.resetLoginStateFn == nil {
		return nil
	}
	return m.resetLoginStateFn(ctx, id)
}

func (m *mockUsers) SetLock(ctx context.Context, id string, until time.Time) error {
	if m.setLockFn == nil {
		return errors.New("unexpected SetLock call")
	}
	return m.setLockFn(ctx, id, until)
}

func (m *mockUsers) UpdatePassword(ctx context.Context, id, hash string, changedAt time.Time) error {
	if m.updatePasswordFn == nil {
		return errors.New("unexpected UpdatePassword call")
	}
	return m.updatePasswordFn(ctx, id, hash, changedAt)
}

func (m *mockUsers) ListPasswordHistory(ctx context.Context, userID string, limit int) ([]domain.PasswordHistoryEntry, error) {
	if m.listHistoryFn == nil {
		return nil, nil
	}
	return m.listHistoryFn(ctx, userID, limit)
}

func (m *mockUsers) AddPasswordHistory(ctx context.Context, entry domain.PasswordHistoryEntry) error {
	if m.addHistoryFn == nil {
		return errors.New("unexpected AddPasswordHistory call")
	}
	return m.addHistoryFn(ctx, entry)
}

func (m *mockUsers) TrimPasswordHistory(ctx context.Context, userID string, maxEntries int) error {
	if m.trimHistoryFn == nil {
		return errors.New("unexpected TrimPasswordHistory call")
	}
	return m.trimHistoryFn(ctx, userID, maxEntries)
}

type mockPending struct {
	replaceFn func(ctx context.Context, pending domain.PendingUser, ttl time.Duration) error
	getFn     func(ctx context.Context, emailKey string) (*domain.PendingUser, error)
	deleteFn  func(ctx context.Context, emailKey string) error
}

func (m *mockPending) Replace(ctx context.Context, pending domain.PendingUser, ttl time.Duration) error {
	if m.replaceFn == nil {
		return errors.New("unexpected Replace call")
	}
	return m.replaceFn(ctx, pending, ttl)
}

func (m *mockPending) Get(ctx context.Context, emailKey string) (*domain.PendingUser, error) {
	if m.getFn == nil {
		return nil, repository.ErrNotFound
	}
	return m.getFn(ctx, emailKey)
}

func (m *mockPending) Delete(ctx context.Context, emailKey string) error {
	if m.deleteFn == nil {
		return nil
	}
	return m.deleteFn(ctx, emailKey)
}

type mockSessions struct {
	createFn func(ctx context.Context, session domain.Session, ttl time.Duration) error
	getFn    func(ctx context.Context, id string) (*domain.Session, error)
	deleteFn func(ctx context.Context, id string) error
}

func (m *mockSessions) Create(ctx context.Context, session domain.Session, ttl time.Duration) error {
	if m.createFn == nil {
		return errors.New("unexpected session Create call")
	}
	return m.createFn(ctx, session, ttl)
}

func (m *mockSessions) Get(ctx context.Context, id string) (*domain.Session, error) {
	if m.getFn == nil {
		return nil, repository.ErrNotFound
	}
	return m.getFn(ctx, id)
}

func (m *mockSessions) Delete(ctx context.Context, id string) error {
	if m.deleteFn == nil {
		return nil
	}
	return m.deleteFn(ctx, id)
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type mockMailer struct {
	sent []sentMail
	err  error
}

func (m *mockMailer) Send(_ context.Context, to, subject, htmlBody string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: htmlBody})
	return nil
}

type mockCaptcha struct {
	err error
}

func (m *mockCaptcha) Verify(context.Context, string, string) error {
	return m.err
}

type mockActivity struct {
	entries []domain.ActivityEntry
}

func (m *mockActivity) Record(_ context.Context, entry domain.ActivityEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockActivity) last() *domain.ActivityEntry {
	if len(m.entries) == 0 {
		return nil
	}
	return &m.entries[len(m.entries)-1]
}
