package messaging

import (
	"context"
	"fmt"
	"net"
	"time"

	"leadcrm_backend/platform/config"

	gomail "github.com/wneessen/go-mail"
)

// EmailSender delivers the welcome email over the tenant's SMTP server.
type EmailSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewEmailSender returns nil when email is disabled; a nil sender is safe to
// call and reports itself unavailable.
func NewEmailSender(cfg config.EmailConfig) *EmailSender {
	if !cfg.IsEmailEnabled() || cfg.GetSMTPHost() == "" {
		return nil
	}
	return &EmailSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
}

// Available reports whether SMTP delivery is configured.
func (s *EmailSender) Available() bool { return s != nil }

// SendText delivers one plain-text email.
func (s *EmailSender) SendText(ctx context.Context, toEmail, subject, body string) error {
	if s == nil {
		return fmt.Errorf("email sender not configured")
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
