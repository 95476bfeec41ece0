package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type TwilioSender struct {
	FromNumber string
	Timeout    time.Duration
	Client     *twilio.RestClient
}

func NewTwilioSender(accountSID, authToken, fromNumber string) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{
		FromNumber: fromNumber,
		Client:     client,
		Timeout:    10 * time.Second,
	}
}

func (t *TwilioSender) SendText(ctx context.Context, to, body string) error {
	return t.send(to, t.FromNumber, body)
}

// SendWhatsApp uses Twilio's whatsapp: address scheme on both ends.
func (t *TwilioSender) SendWhatsApp(ctx context.Context, to, body string) error {
	return t.send("whatsapp:"+to, "whatsapp:"+t.FromNumber, body)
}

func (t *TwilioSender) send(to, from, body string) error {
	params := &api.CreateMessageParams{}
	params.SetBody(body)
	params.SetFrom(from)
	params.SetTo(to)

	resp, err := t.Client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}
	if resp.ErrorMessage != nil && *resp.ErrorMessage != "" {
		return fmt.Errorf("twilio send: %s", *resp.ErrorMessage)
	}
	return nil
}
