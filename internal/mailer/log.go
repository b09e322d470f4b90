package mailer

import (
	"context"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/sirupsen/logrus"
)

// LogSender writes messages to the log instead of delivering them. Used in development.
type LogSender struct {
	log logrus.FieldLogger
}

func NewLogSender(log logrus.FieldLogger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	s.log.WithFields(logrus.Fields{
		"message_id": id,
		"to":         msg.To,
		"subject":    msg.Subject,
	}).Info(msg.Text)
	return id, nil
}
