// Package mailer delivers transactional emails through a configured provider.
package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a message and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

type Config struct {
	Provider       string
	From           string
	MailgunDomain  string
	MailgunAPIKey  string
	SendGridAPIKey string
}

// New returns the sender named by cfg.Provider. An empty provider selects the log sender.
func New(cfg Config, log logrus.FieldLogger) (Sender, error) {
	switch cfg.Provider {
	case "", "log":
		return NewLogSender(log), nil
	case "mailgun":
		if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" || cfg.From == "" {
			return nil, errors.New("invalid Mailgun configuration")
		}
		return NewMailgunSender(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.From), nil
	case "sendgrid":
		if cfg.SendGridAPIKey == "" || cfg.From == "" {
			return nil, errors.New("invalid SendGrid configuration")
		}
		return NewSendGridSender(cfg.SendGridAPIKey, cfg.From), nil
	}
	return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
}
