package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/renthol/rental-service/internal/core/port"
	"github.com/renthol/rental-service/internal/infra/config"
	"github.com/renthol/rental-service/internal/infra/logger"
)

// SMTPMailer delivers HTML mail through an authenticated SMTP relay.
type SMTPMailer struct {
	addr       string
	host       string
	username   string
	password   string
	senderName string
	timeout    time.Duration
	logger     *zap.Logger

	// send is swapped out in tests.
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer constructs a mailer from SMTP configuration.
func NewSMTPMailer(cfg config.SMTPSettings, log *zap.Logger) (*SMTPMailer, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("smtp port is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &SMTPMailer{
		addr:       fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		host:       cfg.Host,
		username:   cfg.Username,
		password:   cfg.Password,
		senderName: cfg.SenderName,
		timeout:    timeout,
		logger:     log,
		send:       smtp.SendMail,
	}, nil
}

// Send delivers a single HTML message. The SMTP dialog upgrades to TLS via
// STARTTLS before authentication.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("recipient is required")
	}

	from := m.username
	headers := []string{
		fmt.Sprintf("From: %s <%s>", m.senderName, from),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=\"UTF-8\"",
	}
	msg := []byte(strings.Join(headers, "\r\n") + "\r\n\r\n" + htmlBody)

	auth := smtp.PlainAuth("", m.username, m.password, m.host)

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- m.send(m.addr, auth, from, []string{to}, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail: %w", err)
		}
		m.logger.Debug("mail sent",
			zap.String("to", logger.MaskEmail(to)),
			zap.String("subject", subject),
		)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send mail: %w", ctx.Err())
	}
}

var _ port.Mailer = (*SMTPMailer)(nil)
