package port

import "context"

// CaptchaVerifier validates a client-supplied CAPTCHA response token with the
// upstream verification service.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}
