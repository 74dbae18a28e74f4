package mailer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/clinicore-health/clinicore-backend/pkg/config"
	"github.com/clinicore-health/clinicore-backend/pkg/logger"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Mailer delivers transactional auth mail (one-time codes, reset codes).
type Mailer interface {
	SendOTP(ctx context.Context, to, code string) error
	SendPasswordReset(ctx context.Context, to, code string) error
}

// SendgridMailer delivers mail through the SendGrid v3 API.
type SendgridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

// NewSendgrid builds a SendGrid-backed mailer from config.
func NewSendgrid(cfg config.SendgridConfig) (*SendgridMailer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("sendgrid api key is required")
	}
	if cfg.DefaultFrom == "" {
		return nil, fmt.Errorf("sendgrid from email is required")
	}
	return &SendgridMailer{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   mail.NewEmail(cfg.FromName, cfg.DefaultFrom),
	}, nil
}

func (m *SendgridMailer) SendOTP(ctx context.Context, to, code string) error {
	subject := "Your Clinicore verification code"
	body := fmt.Sprintf("Your verification code is %s. It expires in 10 minutes.", code)
	return m.send(ctx, to, subject, body)
}

func (m *SendgridMailer) SendPasswordReset(ctx context.Context, to, code string) error {
	subject := "Clinicore password reset"
	body := fmt.Sprintf("Use code %s to reset your password. If you did not request this, ignore this message.", code)
	return m.send(ctx, to, subject, body)
}

func (m *SendgridMailer) send(ctx context.Context, to, subject, body string) error {
	message := mail.NewSingleEmail(m.from, subject, mail.NewEmail("", to), body, body)
	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid send: status %d", resp.StatusCode)
	}
	return nil
}

// LogMailer logs codes instead of delivering them. Wired when OTPDryRun is
// enabled so local stacks work without SendGrid credentials.
type LogMailer struct {
	logg *logger.Logger
}

// NewLogMailer builds a mailer that only logs.
func NewLogMailer(logg *logger.Logger) *LogMailer {
	return &LogMailer{logg: logg}
}

func (m *LogMailer) SendOTP(ctx context.Context, to, code string) error {
	if m.logg != nil {
		ctx = m.logg.WithFields(ctx, map[string]any{"to": to, "code": code})
		m.logg.Info(ctx, "otp.dry_run")
	}
	return nil
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, to, code string) error {
	if m.logg != nil {
		ctx = m.logg.WithFields(ctx, map[string]any{"to": to, "code": code})
		m.logg.Info(ctx, "password_reset.dry_run")
	}
	return nil
}
