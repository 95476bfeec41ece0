package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/chris44528/lux-aged-cases/internal/db"
	"github.com/chris44528/lux-aged-cases/internal/models"
	"github.com/chris44528/lux-aged-cases/internal/notify"
)

// Communicator owns the server side of send_communication: escalation
// check, template selection, rendering, dispatch, and the audit trail.
type Communicator struct {
	Store       *db.Store
	Dispatcher  *notify.Dispatcher
	Logger      zerolog.Logger
	CompanyName string
	Now         func() time.Time
}

func (s *Communicator) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// SendCommunication delivers the next rotation template to the case over
// the requested channel ("auto" delegates selection to tier policy).
// A due tier promotion is applied first so the message reflects the tier
// the case is actually in.
func (s *Communicator) SendCommunication(ctx context.Context, caseID int, channel string, user *string) (models.AgedCaseCommunication, error) {
	var co models.AgedCaseCommunication

	c, err := s.Store.GetCase(ctx, caseID)
	if err != nil {
		return co, err
	}
	if c.Terminal() {
		return co, db.ErrTerminalCase
	}

	settings, err := s.Store.ActiveSettings(ctx)
	if errors.Is(err, pgx.ErrNoRows) {
		settings = DefaultSettings()
	} else if err != nil {
		return co, err
	}

	now := s.now()
	if ShouldEscalate(c, settings, now) {
		from := c.EscalationTier
		to := from + 1
		err = s.Store.WithTx(ctx, func(tx pgx.Tx) error {
			return s.Store.EscalateCase(ctx, tx, c.ID, from, to)
		})
		if err != nil {
			return co, err
		}
		c.EscalationTier = to
		c.Status = models.StatusEscalated
		s.Logger.Info().Int("case_id", c.ID).Int("from_tier", from).Int("to_tier", to).Msg("case escalated")
	}

	if !CanContact(c, settings, now) {
		return co, ErrTooSoon
	}

	tier := c.EscalationTier
	templates, err := s.Store.ListTemplates(ctx, tier, "", true)
	if err != nil {
		return co, err
	}
	templates = FilterForCase(templates, c.CaseType)
	byChannel := map[string][]models.AgedCaseTemplate{}
	for _, t := range templates {
		byChannel[t.Channel] = append(byChannel[t.Channel], t)
	}

	if channel == models.ChannelAuto || channel == "" {
		channel, err = SelectChannel(c, byChannel)
		if err != nil {
			return co, err
		}
	}
	if !models.ValidChannel(channel) {
		return co, fmt.Errorf("unknown channel %q", channel)
	}
	if !Reachable(c, channel) {
		return co, ErrNoContact
	}

	tmpl, err := NextTemplate(byChannel[channel], settings.TierTemplates(tier))
	if err != nil {
		return co, err
	}

	vars := CaseVariables(c, s.CompanyName)
	body := Render(tmpl.Content, vars)
	subject := Render(tmpl.Subject, vars)

	dispatchErr := s.Dispatcher.Dispatch(ctx, notify.Message{
		Channel: channel,
		Phone:   c.CustomerPhone,
		Email:   c.CustomerEmail,
		Subject: subject,
		Body:    body,
	})
	if dispatchErr != nil {
		s.Logger.Warn().Err(dispatchErr).Int("case_id", c.ID).Str("channel", channel).Msg("dispatch failed")
		err = s.Store.WithTx(ctx, func(tx pgx.Tx) error {
			if err := s.Store.RecordContactAttempt(ctx, tx, c.ID, false); err != nil {
				return err
			}
			return s.Store.AppendHistory(ctx, tx, models.AgedCaseHistory{
				CaseID:  c.ID,
				Action:  models.HistorySendFailed,
				Channel: channel,
				Notes:   dispatchErr.Error(),
				User:    user,
			})
		})
		if err != nil {
			return co, err
		}
		return co, dispatchErr
	}

	co = models.AgedCaseCommunication{
		CaseID:         c.ID,
		Channel:        channel,
		TemplateID:     &tmpl.ID,
		TemplateName:   tmpl.Name,
		MessageContent: body,
		TrackingID:     uuid.NewString(),
	}
	err = s.Store.WithTx(ctx, func(tx pgx.Tx) error {
		id, createdAt, err := s.Store.InsertCommunication(ctx, tx, co)
		if err != nil {
			return err
		}
		co.ID = id
		co.CreatedAt = createdAt
		if err := s.Store.IncrementTemplateSendCount(ctx, tx, tmpl.ID); err != nil {
			return err
		}
		if err := s.Store.RecordContactAttempt(ctx, tx, c.ID, true); err != nil {
			return err
		}
		return s.Store.AppendHistory(ctx, tx, models.AgedCaseHistory{
			CaseID:  c.ID,
			Action:  models.HistoryCommunicationSent,
			Channel: channel,
			Notes:   tmpl.Name,
			User:    user,
		})
	})
	if err != nil {
		return co, err
	}
	return co, nil
}
