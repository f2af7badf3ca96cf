package captcha

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/renthol/rental-service/internal/infra/config"
)

func newTestVerifier(t *testing.T, handler http.HandlerFunc) (*Verifier, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	verifier, err := NewVerifier(config.CaptchaSettings{
		VerifyURL: server.URL,
		Secret:    "test-secret",
	}, nil)
	if err != nil {
		t.Fatalf("NewVerifier returned error: %v", err)
	}

	return verifier, server
}

func TestVerifyAcceptsSuccessVerdict(t *testing.T) {
	verifier, _ := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostFormValue("secret"); got != "test-secret" {
			t.Fatalf("expected secret to be forwarded, got %q", got)
		}
		if got := r.PostFormValue("response"); got != "client-token" {
			t.Fatalf("expected response token to be forwarded, got %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true}`))
	})

	if err := verifier.Verify(context.Background(), "client-token", "1.2.3.4"); err != nil {
		t.Fatalf("expected verification to pass, got %v", err)
	}
}

func TestVerifyRejectsFailureVerdict(t *testing.T) {
	verifier, _ := newTestVerifier(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": false, "error-codes": ["invalid-input-response"]}`))
	})

	err := verifier.Verify(context.Background(), "client-token", "")
	if !errors.Is(err, ErrCaptchaRejected) {
		t.Fatalf("expected ErrCaptchaRejected, got %v", err)
	}
}

func TestVerifyRejectsUpstreamErrors(t *testing.T) {
	verifier, _ := newTestVerifier(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	err := verifier.Verify(context.Background(), "client-token", "")
	if !errors.Is(err, ErrCaptchaRejected) {
		t.Fatalf("expected ErrCaptchaRejected on upstream failure, got %v", err)
	}
}

func TestVerifyRejectsEmptyToken(t *testing.T) {
	verifier, _ := newTestVerifier(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("verification endpoint must not be called for an empty token")
	})

	if err := verifier.Verify(context.Background(), "", ""); !errors.Is(err, ErrCaptchaRejected) {
		t.Fatalf("expected ErrCaptchaRejected, got %v", err)
	}
}
