package notify

import (
	"context"
	"fmt"

	"github.com/nyaruka/phonenumbers"
	"github.com/rs/zerolog"

	"github.com/chris44528/lux-aged-cases/internal/models"
)

// TextSender delivers SMS and WhatsApp messages.
type TextSender interface {
	SendText(ctx context.Context, to, body string) error
	SendWhatsApp(ctx context.Context, to, body string) error
}

// Mailer delivers email.
type Mailer interface {
	SendMail(ctx context.Context, to, subject, body string) error
}

// NormalizePhone validates and formats a number as E.164.
func NormalizePhone(num string) (string, error) {
	if num == "" {
		return "", fmt.Errorf("missing phone number")
	}
	parsed, err := phonenumbers.Parse(num, "GB")
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return "", fmt.Errorf("invalid phone number %q", num)
	}
	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

// Dispatcher routes a rendered message to the right provider for its
// channel. Phone is a manual channel: the attempt is recorded but nothing
// is dispatched.
type Dispatcher struct {
	Texts  TextSender
	Mail   Mailer
	Logger zerolog.Logger
}

type Message struct {
	Channel string
	Phone   string
	Email   string
	Subject string
	Body    string
}

func (d *Dispatcher) Dispatch(ctx context.Context, m Message) error {
	switch m.Channel {
	case models.ChannelSMS:
		to, err := NormalizePhone(m.Phone)
		if err != nil {
			return err
		}
		return d.Texts.SendText(ctx, to, m.Body)
	case models.ChannelWhatsApp:
		to, err := NormalizePhone(m.Phone)
		if err != nil {
			return err
		}
		return d.Texts.SendWhatsApp(ctx, to, m.Body)
	case models.ChannelEmail:
		if m.Email == "" {
			return fmt.Errorf("missing email address")
		}
		return d.Mail.SendMail(ctx, m.Email, m.Subject, m.Body)
	case models.ChannelPhone:
		d.Logger.Info().Str("phone", m.Phone).Msg("phone channel: call logged for manual follow-up")
		return nil
	default:
		return fmt.Errorf("unknown channel %q", m.Channel)
	}
}

// Noop backs tests and environments without provider credentials.
type Noop struct{}

func (Noop) SendText(ctx context.Context, to, body string) error     { return nil }
func (Noop) SendWhatsApp(ctx context.Context, to, body string) error { return nil }
func (Noop) SendMail(ctx context.Context, to, subject, body string) error {
	return nil
}
