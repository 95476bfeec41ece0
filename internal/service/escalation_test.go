package service

import (
	"testing"
	"time"

	"github.com/chris44528/lux-aged-cases/internal/models"
)

func tmpl(name string, sendCount int) models.AgedCaseTemplate {
	return models.AgedCaseTemplate{Name: name, Channel: models.ChannelSMS, EscalationTier: 1, Content: "x", Active: true, SendCount: sendCount}
}

func TestRotationCountDefaultsForStaleKeys(t *testing.T) {
	rotation := map[string]int{"known": 3}
	if n := RotationCount(rotation, "known"); n != 3 {
		t.Fatalf("expected 3, got %d", n)
	}
	if n := RotationCount(rotation, "deleted-template"); n != DefaultRotationCount {
		t.Fatalf("expected default for stale key, got %d", n)
	}
	if n := RotationCount(map[string]int{"bad": 0}, "bad"); n != DefaultRotationCount {
		t.Fatalf("expected default for non-positive count, got %d", n)
	}
}

func TestNextTemplateWalksRotationInOrder(t *testing.T) {
	rotation := map[string]int{"a": 2, "b": 1}

	// a has capacity left in its first rotation.
	picked, err := NextTemplate([]models.AgedCaseTemplate{tmpl("a", 1), tmpl("b", 0)}, rotation)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if picked.Name != "a" {
		t.Fatalf("expected a, got %s", picked.Name)
	}

	// a exhausted its 2 sends, b has not sent at all.
	picked, err = NextTemplate([]models.AgedCaseTemplate{tmpl("a", 2), tmpl("b", 0)}, rotation)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if picked.Name != "b" {
		t.Fatalf("expected b after a exhausted, got %s", picked.Name)
	}

	// Both exhausted one rotation: wrap back to a.
	picked, err = NextTemplate([]models.AgedCaseTemplate{tmpl("a", 2), tmpl("b", 1)}, rotation)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if picked.Name != "a" {
		t.Fatalf("expected wrap to a, got %s", picked.Name)
	}
}

func TestNextTemplateEmptyList(t *testing.T) {
	if _, err := NextTemplate(nil, nil); err != ErrNoTemplate {
		t.Fatalf("expected ErrNoTemplate, got %v", err)
	}
}

func TestFilterForCase(t *testing.T) {
	zero := models.CaseTypeZeroGeneration
	templates := []models.AgedCaseTemplate{
		{Name: "any"},
		{Name: "zero-only", CaseType: &zero},
	}
	got := FilterForCase(templates, models.CaseTypeNoCommunication)
	if len(got) != 1 || got[0].Name != "any" {
		t.Fatalf("expected only the unfiltered template, got %+v", got)
	}
	got = FilterForCase(templates, models.CaseTypeZeroGeneration)
	if len(got) != 2 {
		t.Fatalf("expected both templates for zero_generation, got %d", len(got))
	}
}

func TestCanContactHonoursFrequency(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	settings := DefaultSettings()
	settings.Tier2Frequency = models.FreqTwiceDaily

	c := models.AgedCase{EscalationTier: 2, Status: models.StatusActive}
	if !CanContact(c, settings, now) {
		t.Fatalf("expected first contact to be allowed")
	}

	recent := now.Add(-6 * time.Hour)
	c.LastContactAttempt = &recent
	if CanContact(c, settings, now) {
		t.Fatalf("expected contact refused inside 12h window")
	}

	old := now.Add(-13 * time.Hour)
	c.LastContactAttempt = &old
	if !CanContact(c, settings, now) {
		t.Fatalf("expected contact allowed after 12h window")
	}
}

func TestShouldEscalate(t *testing.T) {
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	settings := DefaultSettings()
	settings.Tier1EscalationDays = 3

	c := models.AgedCase{
		EscalationTier: 1,
		Status:         models.StatusActive,
		CreatedAt:      now.AddDate(0, 0, -5),
	}
	if !ShouldEscalate(c, settings, now) {
		t.Fatalf("expected escalation after 5 days with no response")
	}

	c.CustomerResponded = true
	if ShouldEscalate(c, settings, now) {
		t.Fatalf("responded case must not escalate")
	}

	c.CustomerResponded = false
	engaged := now.AddDate(0, 0, -1)
	c.LastEngagement = &engaged
	if ShouldEscalate(c, settings, now) {
		t.Fatalf("clock must run from last engagement")
	}

	c.LastEngagement = nil
	c.EscalationTier = 4
	if ShouldEscalate(c, settings, now) {
		t.Fatalf("tier 4 is terminal, must not escalate")
	}

	resolved := now
	c.EscalationTier = 1
	c.Status = models.StatusResolved
	c.ResolvedAt = &resolved
	if ShouldEscalate(c, settings, now) {
		t.Fatalf("terminal case must not escalate")
	}
}

func TestSelectChannelPrefersTierOrder(t *testing.T) {
	byChannel := map[string][]models.AgedCaseTemplate{
		models.ChannelSMS:   {tmpl("s", 0)},
		models.ChannelEmail: {tmpl("e", 0)},
	}
	c := models.AgedCase{EscalationTier: 1, CustomerPhone: "+447700900123", CustomerEmail: "a@b.c"}
	ch, err := SelectChannel(c, byChannel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch != models.ChannelSMS {
		t.Fatalf("tier 1 should prefer sms, got %s", ch)
	}

	c.EscalationTier = 3
	ch, err = SelectChannel(c, byChannel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch != models.ChannelEmail {
		t.Fatalf("tier 3 should prefer email, got %s", ch)
	}

	// No phone on file: tier 1 falls through to email.
	c.EscalationTier = 1
	c.CustomerPhone = ""
	ch, err = SelectChannel(c, byChannel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch != models.ChannelEmail {
		t.Fatalf("expected fallback to email without a phone, got %s", ch)
	}
}

func TestSelectChannelNoUsableTemplates(t *testing.T) {
	c := models.AgedCase{EscalationTier: 2, CustomerPhone: "+447700900123"}
	if _, err := SelectChannel(c, map[string][]models.AgedCaseTemplate{}); err != ErrNoTemplate {
		t.Fatalf("expected ErrNoTemplate, got %v", err)
	}
}

func TestRenderSubstitutesVariables(t *testing.T) {
	c := models.AgedCase{
		SiteName:         "Hillside Farm",
		CustomerName:     "A Tenant",
		AgeDays:          21,
		TotalSavingsLoss: 54.5,
		EscalationTier:   2,
	}
	vars := CaseVariables(c, "Lux Solar")
	got := Render("Hi {{customer_name}}, {{site_name}} has been down {{days_open}} days ({{savings_loss}} lost). - {{company_name}}", vars)
	want := "Hi A Tenant, Hillside Farm has been down 21 days (£54.50 lost). - Lux Solar"
	if got != want {
		t.Fatalf("render mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestRenderUnknownTokenRendersEmpty(t *testing.T) {
	got := Render("a {{no_such_var}} b", map[string]string{})
	if got != "a  b" {
		t.Fatalf("expected unknown token to render empty, got %q", got)
	}
}

func TestRenderUnterminatedTokenLeftAlone(t *testing.T) {
	got := Render("a {{broken", map[string]string{"broken": "x"})
	if got != "a {{broken" {
		t.Fatalf("expected unterminated token untouched, got %q", got)
	}
}

func TestFrequencyInterval(t *testing.T) {
	cases := map[string]time.Duration{
		models.FreqDaily:            24 * time.Hour,
		models.FreqEvery2Days:       48 * time.Hour,
		models.FreqDailyAlternating: 24 * time.Hour,
		models.FreqTwiceDaily:       12 * time.Hour,
		models.FreqThreeTimesDaily:  8 * time.Hour,
	}
	for freq, want := range cases {
		if got := FrequencyInterval(freq); got != want {
			t.Fatalf("%s: expected %v, got %v", freq, want, got)
		}
	}
}
