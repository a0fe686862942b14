package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Message is a plain-text transactional email.
type Message struct {
	ToEmail string
	ToName  string
	Subject string
	Body    string
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type sendgridAPI interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGrid sends through the SendGrid v3 API.
type SendGrid struct {
	api  sendgridAPI
	from *mail.Email
	logg *logger.Logger
}

func NewSendGrid(cfg config.SendgridConfig, logg *logger.Logger) (*SendGrid, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errors.New("sendgrid api key is required")
	}
	if strings.TrimSpace(cfg.DefaultFrom) == "" {
		return nil, errors.New("sendgrid from address is required")
	}
	return &SendGrid{
		api:  sendgrid.NewSendClient(key),
		from: mail.NewEmail(cfg.FromName, cfg.DefaultFrom),
		logg: logg,
	}, nil
}

func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.ToEmail) == "" {
		return errors.New("recipient email is required")
	}
	to := mail.NewEmail(msg.ToName, msg.ToEmail)
	email := mail.NewSingleEmail(s.from, msg.Subject, to, msg.Body, "")
	resp, err := s.api.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	if s.logg != nil {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"subject":     msg.Subject,
			"status_code": resp.StatusCode,
		}), "email accepted by sendgrid")
	}
	return nil
}

// LogSender writes emails to the log instead of sending them. Used when no
// SendGrid key is configured.
type LogSender struct {
	logg *logger.Logger
}

func NewLogSender(logg *logger.Logger) *LogSender {
	return &LogSender{logg: logg}
}

func (l *LogSender) Send(ctx context.Context, msg Message) error {
	if l.logg == nil {
		return nil
	}
	l.logg.Info(l.logg.WithFields(ctx, map[string]any{
		"subject": msg.Subject,
		"to":      maskEmail(msg.ToEmail),
	}), "email suppressed: no provider configured")
	return nil
}

// New picks SendGrid when configured and falls back to LogSender.
func New(cfg config.SendgridConfig, logg *logger.Logger) Sender {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return NewLogSender(logg)
	}
	sg, err := NewSendGrid(cfg, logg)
	if err != nil {
		return NewLogSender(logg)
	}
	return sg
}

func maskEmail(addr string) string {
	at := strings.Index(addr, "@")
	if at <= 1 {
		return "***"
	}
	return addr[:1] + "***" + addr[at:]
}
