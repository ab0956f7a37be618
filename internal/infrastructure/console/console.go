// Package console provides development senders that write messages to the
// log instead of delivering them.
package console

import (
	"context"
	"log/slog"
)

type EmailSender struct {
	logger *slog.Logger
}

func NewEmailSender(logger *slog.Logger) *EmailSender {
	return &EmailSender{logger: logger}
}

func (s *EmailSender) SendEmail(ctx context.Context, to, subject, html string) error {
	s.logger.InfoContext(ctx, "email (console)", "to", to, "subject", subject, "body", html)
	return nil
}

type SMSSender struct {
	logger *slog.Logger
}

func NewSMSSender(logger *slog.Logger) *SMSSender {
	return &SMSSender{logger: logger}
}

func (s *SMSSender) SendSMS(ctx context.Context, to, message string) error {
	s.logger.InfoContext(ctx, "sms (console)", "to", to, "message", message)
	return nil
}
