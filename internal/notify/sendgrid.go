package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type SendGridMailer struct {
	FromName string
	FromMail string
	Timeout  time.Duration
	Client   *sendgrid.Client
}

func NewSendGridMailer(apiKey, fromName, fromMail string) *SendGridMailer {
	return &SendGridMailer{
		FromName: fromName,
		FromMail: fromMail,
		Timeout:  10 * time.Second,
		Client:   sendgrid.NewSendClient(apiKey),
	}
}

func (s *SendGridMailer) SendMail(ctx context.Context, to, subject, body string) error {
	from := mail.NewEmail(s.FromName, s.FromMail)
	msg := mail.NewSingleEmail(from, subject, mail.NewEmail("", to), body, "")

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resp, err := s.Client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid API error: %d %s", resp.StatusCode, resp.Body)
	}
	return nil
}
