// Package email delivers transactional and broadcast mail through Resend or
// SendGrid. Without an API key a LogSender stands in and only logs.
package email

import (
	"context"
	"errors"
	"strings"

	"github.com/linkedgrow/dashboard/internal/config"
	"github.com/linkedgrow/dashboard/internal/logger"
	"go.uber.org/zap"
)

var ErrNoRecipient = errors.New("email: recipient is required")

// Message is one outbound email. Text is optional when HTML is set.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
	// Provider names the backend, "log" for the mock sender.
	Provider() string
}

// NewSender picks the configured provider.
func NewSender(cfg config.EmailConfig, log *zap.Logger) Sender {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.APIKey == "" {
		log.Warn("EMAIL_API_KEY not set, emails will only be logged")
		return NewLogSender(log)
	}

	log.Info("email sender configured",
		zap.String("provider", cfg.Provider),
		zap.String("api_key", logger.Mask(cfg.APIKey)),
		zap.String("sender", cfg.Sender),
	)
	switch strings.ToLower(cfg.Provider) {
	case "sendgrid":
		return NewSendGridSender(cfg.APIKey, cfg.Sender)
	default:
		return NewResendSender(cfg.APIKey, cfg.Sender)
	}
}

// LogSender is the unconfigured fallback.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	s.log.Info("mock email (no provider configured)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}

func (s *LogSender) Provider() string { return "log" }
