package service

import (
	"context"
	"fmt"
	"time"

	sendgrid "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailSender dispatches one email through the external channel and
// returns the provider-assigned message id.
type EmailSender interface {
	Send(ctx context.Context, recipient, subject, body string) (providerMessageID string, err error)
}

// SendGridSender is the production transport. The provider call carries
// no timeout of its own, so one is applied here to keep a slow provider
// from stalling a whole pipeline cycle.
type SendGridSender struct {
	Client    *sendgrid.Client
	FromEmail string
	FromName  string
	Timeout   time.Duration
}

func NewSendGridSender(apiKey, fromEmail, fromName string, timeout time.Duration) *SendGridSender {
	return &SendGridSender{
		Client:    sendgrid.NewSendClient(apiKey),
		FromEmail: fromEmail,
		FromName:  fromName,
		Timeout:   timeout,
	}
}

func (s *SendGridSender) Send(ctx context.Context, recipient, subject, body string) (string, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	from := mail.NewEmail(s.FromName, s.FromEmail)
	to := mail.NewEmail("", recipient)
	message := mail.NewSingleEmail(from, subject, to, body, "")

	resp, err := s.Client.SendWithContext(ctx, message)
	if err != nil {
		return "", fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	ids := resp.Headers["X-Message-Id"]
	if len(ids) == 0 {
		return "", fmt.Errorf("sendgrid send: response missing X-Message-Id header")
	}
	return ids[0], nil
}
