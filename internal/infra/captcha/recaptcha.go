package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/renthol/rental-service/internal/core/port"
	"github.com/renthol/rental-service/internal/infra/config"
)

// ErrCaptchaRejected indicates the verification service did not accept the token.
var ErrCaptchaRejected = errors.New("captcha verification failed")

// Verifier validates reCAPTCHA response tokens against the siteverify endpoint.
type Verifier struct {
	verifyURL string
	secret    string
	client    *http.Client
	logger    *zap.Logger
}

// NewVerifier constructs a Verifier from configuration.
func NewVerifier(cfg config.CaptchaSettings, logger *zap.Logger) (*Verifier, error) {
	if strings.TrimSpace(cfg.VerifyURL) == "" {
		return nil, fmt.Errorf("captcha verify url is required")
	}
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, fmt.Errorf("captcha secret is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Verifier{
		verifyURL: cfg.VerifyURL,
		secret:    cfg.Secret,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}, nil
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify posts the token to the verification endpoint. Any failure, whether a
// transport error or an unsuccessful verdict, blocks the caller.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) error {
	if strings.TrimSpace(token) == "" {
		return ErrCaptchaRejected
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build captcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCaptchaRejected, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d", ErrCaptchaRejected, resp.StatusCode)
	}

	var result verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrCaptchaRejected, err)
	}

	if !result.Success {
		v.logger.Warn("captcha rejected", zap.Strings("error_codes", result.ErrorCodes))
		return ErrCaptchaRejected
	}

	return nil
}

var _ port.CaptchaVerifier = (*Verifier)(nil)
