// Package service holds the delivery collaborators the passcode manager
// hands codes to: direct SMTP email and the RabbitMQ publisher.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/iliyamo/labor-marketplace/internal/config"
	"github.com/iliyamo/labor-marketplace/internal/model"
)

// mailDialer is satisfied by *gomail.Dialer.
type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSender delivers passcodes over SMTP.
type EmailSender struct {
	dialer mailDialer
	from   string
}

// NewEmailSender returns a sender using the SMTP credentials in cfg.
func NewEmailSender(cfg config.SMTPConfig) *EmailSender {
	return &EmailSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

var subjects = map[model.Purpose]string{
	model.PurposeLogin:         "Your login code",
	model.PurposeChangeNumber:  "Confirm your new phone number",
	model.PurposeDeleteAccount: "Confirm account deletion",
}

var intros = map[model.Purpose]string{
	model.PurposeLogin:         "Use this code to finish signing in.",
	model.PurposeChangeNumber:  "Use this code to confirm the change of your phone number.",
	model.PurposeDeleteAccount: "Use this code to confirm that you want to delete your account.",
}

func expiryLine(at time.Time) string {
	if at.IsZero() {
		return "The code expires shortly."
	}
	return "The code expires at " + at.UTC().Format("15:04 MST") + "."
}

func (s *EmailSender) buildMessage(msg model.OutOfBandMessage) (*gomail.Message, error) {
	if msg.Destination == "" {
		return nil, errors.New("missing email destination")
	}
	subject, ok := subjects[msg.Purpose]
	if !ok {
		return nil, fmt.Errorf("unknown purpose %q", msg.Purpose)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.Destination)
	m.SetHeader("Subject", subject)
	if msg.ID != "" {
		m.SetHeader("X-Message-Id", msg.ID)
	}

	body := fmt.Sprintf(`
		<h3>%s</h3>
		<p>%s</p>
		<p><strong>%s</strong></p>
		<p>%s If you did not request it, you can ignore this email.</p>
	`, subject, intros[msg.Purpose], msg.Code, expiryLine(msg.ExpiresAt))
	m.SetBody("text/html", body)
	return m, nil
}

// SendOutOfBand emails the passcode in msg to msg.Destination.
func (s *EmailSender) SendOutOfBand(ctx context.Context, msg model.OutOfBandMessage) error {
	m, err := s.buildMessage(msg)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send passcode email: %w", err)
	}
	return nil
}
