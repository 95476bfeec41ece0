package notify

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/chris44528/lux-aged-cases/internal/models"
)

type recordingSender struct {
	texts     []string
	whatsapps []string
	mails     []string
}

func (r *recordingSender) SendText(ctx context.Context, to, body string) error {
	r.texts = append(r.texts, to)
	return nil
}

func (r *recordingSender) SendWhatsApp(ctx context.Context, to, body string) error {
	r.whatsapps = append(r.whatsapps, to)
	return nil
}

func (r *recordingSender) SendMail(ctx context.Context, to, subject, body string) error {
	r.mails = append(r.mails, to)
	return nil
}

func TestNormalizePhone(t *testing.T) {
	got, err := NormalizePhone("07700 900123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "+447700900123" {
		t.Fatalf("expected E.164 GB number, got %s", got)
	}

	if _, err := NormalizePhone(""); err == nil {
		t.Fatalf("expected error for empty number")
	}
	if _, err := NormalizePhone("12345"); err == nil {
		t.Fatalf("expected error for invalid number")
	}
}

func TestDispatchRoutesByChannel(t *testing.T) {
	rec := &recordingSender{}
	d := &Dispatcher{Texts: rec, Mail: rec, Logger: zerolog.Nop()}
	ctx := context.Background()

	if err := d.Dispatch(ctx, Message{Channel: models.ChannelSMS, Phone: "+447700900123", Body: "hi"}); err != nil {
		t.Fatalf("sms dispatch: %v", err)
	}
	if err := d.Dispatch(ctx, Message{Channel: models.ChannelWhatsApp, Phone: "+447700900123", Body: "hi"}); err != nil {
		t.Fatalf("whatsapp dispatch: %v", err)
	}
	if err := d.Dispatch(ctx, Message{Channel: models.ChannelEmail, Email: "a@b.c", Subject: "s", Body: "hi"}); err != nil {
		t.Fatalf("email dispatch: %v", err)
	}

	if len(rec.texts) != 1 || len(rec.whatsapps) != 1 || len(rec.mails) != 1 {
		t.Fatalf("expected one message per channel, got %+v", rec)
	}
}

func TestDispatchPhoneChannelIsManual(t *testing.T) {
	d := &Dispatcher{Texts: Noop{}, Mail: Noop{}, Logger: zerolog.Nop()}
	if err := d.Dispatch(context.Background(), Message{Channel: models.ChannelPhone, Phone: "+447700900123"}); err != nil {
		t.Fatalf("phone channel must succeed without dispatching: %v", err)
	}
}

func TestDispatchRejectsBadInput(t *testing.T) {
	d := &Dispatcher{Texts: Noop{}, Mail: Noop{}, Logger: zerolog.Nop()}
	ctx := context.Background()

	if err := d.Dispatch(ctx, Message{Channel: models.ChannelSMS, Phone: "bad"}); err == nil {
		t.Fatalf("expected error for invalid phone")
	}
	if err := d.Dispatch(ctx, Message{Channel: models.ChannelEmail}); err == nil {
		t.Fatalf("expected error for missing email")
	}
	if err := d.Dispatch(ctx, Message{Channel: "fax"}); err == nil {
		t.Fatalf("expected error for unknown channel")
	}
}
