package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/notes-api/internal/metrics"
	"github.com/resend/resend-go/v2"
)

type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// OTPMessage renders the email carrying a one-time code.
func OTPMessage(to, code string, ttl time.Duration) Message {
	minutes := int(ttl.Minutes())
	return Message{
		To:      to,
		Subject: "Your OTP Code",
		HTML: fmt.Sprintf(
			`<p>Your OTP is <strong>%s</strong>.</p><p>It is valid for %d minutes.</p>`,
			code, minutes,
		),
		Text: fmt.Sprintf("Your OTP is %s. It is valid for %d minutes.", code, minutes),
	}
}

// LogSender logs emails instead of sending them. Used in ENV=local.
type LogSender struct {
	logger *slog.Logger
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "otp email (local dev)", "to", msg.To, "subject", msg.Subject, "body", msg.Text)
	metrics.EmailsSentTotal.WithLabelValues("logged").Inc()
	return nil
}

// ResendSender sends emails via the Resend API. Used in staging/production.
type ResendSender struct {
	client *resend.Client
	from   string
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}
	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		metrics.EmailsSentTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("send email: %w", err)
	}
	metrics.EmailsSentTotal.WithLabelValues("sent").Inc()
	return nil
}

// NewSender returns a LogSender for ENV=local, ResendSender otherwise.
func NewSender(env, apiKey, from string, logger *slog.Logger) Sender {
	if env == "local" {
		return &LogSender{logger: logger.With("component", "email")}
	}
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}
