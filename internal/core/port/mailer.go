package port

import "context"

// Mailer delivers transactional HTML mail.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}
