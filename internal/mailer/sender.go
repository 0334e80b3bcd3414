// Package mailer composes tracked emails and dispatches them through an
// asynchronous worker pool with retry logic.
package mailer

import (
	"context"

	"go.uber.org/zap"
)

// Message is one outbound email, fully rendered.
type Message struct {
	To       string
	From     string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers a rendered message. Implementations wrap whatever
// transport is configured (SMTP relay, provider API).
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// LogSender logs messages instead of delivering them. It is the default
// when no transport is configured, and what tests use.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, msg *Message) error {
	s.log.Info("email dispatched (log transport)",
		zap.String("to", msg.To),
		zap.String("from", msg.From),
		zap.String("subject", msg.Subject),
		zap.Int("html_bytes", len(msg.HTMLBody)),
	)
	return nil
}
