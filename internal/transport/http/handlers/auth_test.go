package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/renthol/rental-service/internal/core/domain"
	"github.com/renthol/rental-service/internal/infra/security"
	"github.com/renthol/rental-service/internal/usecase"
)

// fakePendingStore serves a single canned pending registration.
type fakePendingStore struct {
	pending domain.PendingUser
	deleted bool
}

func (f *fakePendingStore) Replace(context.Context, domain.PendingUser, time.Duration) error {
	return nil
}

func (f *fakePendingStore) Get(context.Context, string) (*domain.PendingUser, error) {
	p := f.pending
	return &p, nil
}

func (f *fakePendingStore) Delete(context.Context, string) error {
	f.deleted = true
	return nil
}

func newVerifyOTPRouter(t *testing.T, pending *fakePendingStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cipher, err := security.NewContactCipher("handler-test-secret")
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}

	registration := usecase.NewRegistrationService(nil, pending, nil, cipher, nil, 10*time.Minute, zap.NewNop())
	handler := NewAuthHandler(registration, nil, CookieSettings{}, 0, 0)

	router := gin.New()
	handler.RegisterRoutes(router.Group("/api/v1/auth"), nil, nil)
	return router
}

func postVerifyOTP(router *gin.Engine, email, otp string) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(OTPVerifyRequest{Email: email, OTP: otp})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/verify-otp", strings.NewReader(string(payload)))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestVerifyOTPExpiredCode(t *testing.T) {
	pending := &fakePendingStore{pending: domain.PendingUser{
		Username:  "rhea",
		OTP:       "482913",
		ExpiresAt: time.Now().Add(-time.Minute),
	}}
	router := newVerifyOTPRouter(t, pending)

	rr := postVerifyOTP(router, "rhea@example.com", "482913")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for expired code, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error != "verification code expired" {
		t.Fatalf("unexpected error message: %q", resp.Error)
	}
	if !pending.deleted {
		t.Fatal("expired pending registration not consumed")
	}
}

func TestVerifyOTPWrongCode(t *testing.T) {
	pending := &fakePendingStore{pending: domain.PendingUser{
		Username:  "rhea",
		OTP:       "482913",
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}}
	router := newVerifyOTPRouter(t, pending)

	rr := postVerifyOTP(router, "rhea@example.com", "000000")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong code, got %d: %s", rr.Code, rr.Body.String())
	}
	if pending.deleted {
		t.Fatal("pending registration must survive a wrong code")
	}
}
