package messaging

import (
	"context"
	"errors"
	"fmt"

	"leadcrm_backend/internal/leads/domain"
	"leadcrm_backend/platform/logger"
)

// ErrNoChannel means the lead carries no contact detail any configured
// channel can deliver to.
var ErrNoChannel = errors.New("no deliverable channel for lead")

// TextSender is the phone-based primary channel. Satisfied by WhatsAppClient.
type TextSender interface {
	Available() bool
	SendMessage(ctx context.Context, phoneNumber, message string) error
}

// MailSender is the fallback channel. Satisfied by EmailSender.
type MailSender interface {
	Available() bool
	SendText(ctx context.Context, toEmail, subject, body string) error
}

// Dispatcher picks the welcome channel: WhatsApp first when the lead has a
// phone number, email when it does not or when WhatsApp delivery fails.
type Dispatcher struct {
	text TextSender
	mail MailSender
	log  *logger.Logger
}

func NewDispatcher(text TextSender, mail MailSender, log *logger.Logger) *Dispatcher {
	return &Dispatcher{text: text, mail: mail, log: log}
}

// SendWelcome delivers the first-contact message.
func (d *Dispatcher) SendWelcome(ctx context.Context, lead domain.Lead) error {
	message := welcomeMessage(lead)

	var textErr error
	if lead.Phone != "" && d.text != nil && d.text.Available() {
		textErr = d.text.SendMessage(ctx, lead.Phone, message)
		if textErr == nil {
			return nil
		}
		d.log.Warn("whatsapp welcome failed, trying email",
			"lead_id", lead.ID, "error", textErr)
	}

	if lead.Email != "" && d.mail != nil && d.mail.Available() {
		if err := d.mail.SendText(ctx, lead.Email, welcomeSubject, message); err != nil {
			return errors.Join(textErr, err)
		}
		return nil
	}

	if textErr != nil {
		return textErr
	}
	return ErrNoChannel
}

const welcomeSubject = "Thanks for reaching out"

func welcomeMessage(lead domain.Lead) string {
	name := lead.FullName
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf(
		"Hi %s, thanks for your interest! One of our advisors will contact you shortly.",
		name)
}
