package service

import (
	"reflect"
	"testing"

	"github.com/chris44528/lux-aged-cases/internal/models"
)

func TestTemplateEditorRejectsEmptyName(t *testing.T) {
	editor := NewTemplate()
	editor.SetContent("Hello")

	_, err := editor.Save()
	fieldErrs, ok := err.(FieldErrors)
	if !ok {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	if fieldErrs["name"] != "Template name is required" {
		t.Fatalf("expected name error, got %v", fieldErrs)
	}
}

func TestTemplateEditorEmailRequiresSubject(t *testing.T) {
	editor := NewTemplate()
	editor.SetName("payment reminder")
	editor.SetChannel(models.ChannelEmail)
	editor.SetContent("Dear {{customer_name}}")

	if _, err := editor.Save(); err == nil {
		t.Fatalf("expected subject validation error for email template")
	}

	editor.SetSubject("Your solar system needs attention")
	payload, err := editor.Save()
	if err != nil {
		t.Fatalf("unexpected error after setting subject: %v", err)
	}
	if payload.Subject == "" {
		t.Fatalf("subject lost on save")
	}
}

func TestTemplateEditorSubjectIgnoredForSMS(t *testing.T) {
	editor := NewTemplate()
	editor.SetName("nudge")
	editor.SetChannel(models.ChannelSMS)
	editor.SetContent("Hi")

	if _, err := editor.Save(); err != nil {
		t.Fatalf("sms template must not require subject: %v", err)
	}
}

func TestTemplateEditorCancelRestoresOriginal(t *testing.T) {
	orig := models.AgedCaseTemplate{ID: 7, Name: "keep", Channel: models.ChannelSMS, EscalationTier: 2, Content: "body", Active: true}
	editor := EditTemplate(orig)
	editor.SetName("changed")
	editor.SetContent("different")

	got := editor.Cancel()
	if !reflect.DeepEqual(got, orig) {
		t.Fatalf("cancel must restore original, got %+v", got)
	}
	if editor.Draft().Name != "keep" {
		t.Fatalf("draft not reset after cancel")
	}
}

func TestTemplateEditorInsertVariable(t *testing.T) {
	editor := NewTemplate()
	editor.SetContent("Hello , welcome")

	pos := editor.InsertVariable("customer_name", 6)
	if editor.Draft().Content != "Hello {{customer_name}}, welcome" {
		t.Fatalf("unexpected content %q", editor.Draft().Content)
	}
	if pos != 6+len("{{customer_name}}") {
		t.Fatalf("unexpected cursor %d", pos)
	}

	// Out-of-range cursor clamps to the end.
	editor.SetContent("ab")
	editor.InsertVariable("tier", 99)
	if editor.Draft().Content != "ab{{tier}}" {
		t.Fatalf("unexpected content %q", editor.Draft().Content)
	}
}

func testSettings() models.AgedCaseSettings {
	return models.AgedCaseSettings{
		ID:                  3,
		Name:                "summer",
		Tier1Frequency:      models.FreqDaily,
		Tier2Frequency:      models.FreqDaily,
		Tier3Frequency:      models.FreqTwiceDaily,
		Tier4Frequency:      models.FreqTwiceDaily,
		Tier1EscalationDays: 3,
		Tier2EscalationDays: 5,
		Tier3EscalationDays: 7,
		Tier1Templates:      map[string]int{"gentle": 2},
		Tier2Templates:      map[string]int{},
		Tier3Templates:      map[string]int{},
		Tier4Templates:      map[string]int{"final": 1},
	}
}

func TestSettingsEditorCancelRestoresFetchedState(t *testing.T) {
	orig := testSettings()
	editor := EditSettings(orig)

	editor.SetEscalationDays(1, 30)
	editor.SetFrequency(2, models.FreqThreeTimesDaily)
	editor.SetRotationCount(1, "gentle", 5)
	editor.SetRotationCount(4, "brand-new", 2)

	got := editor.Cancel()
	if !reflect.DeepEqual(got, orig) {
		t.Fatalf("cancel must restore fetched state exactly:\n got %+v\nwant %+v", got, orig)
	}
	if editor.RotationCount(1, "gentle") != 2 {
		t.Fatalf("buffer not reset after cancel")
	}
}

func TestSettingsEditorSaveRoundTripsUntouchedFields(t *testing.T) {
	orig := testSettings()
	editor := EditSettings(orig)
	editor.SetEscalationDays(1, 5)

	saved, err := editor.Save()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.Tier1EscalationDays != 5 {
		t.Fatalf("edited field not saved")
	}
	// Everything else round-trips from the fetch.
	saved.Tier1EscalationDays = orig.Tier1EscalationDays
	if !reflect.DeepEqual(saved, orig) {
		t.Fatalf("untouched fields changed on save:\n got %+v\nwant %+v", saved, orig)
	}
}

func TestSettingsEditorBufferDoesNotAliasOriginal(t *testing.T) {
	orig := testSettings()
	editor := EditSettings(orig)
	editor.SetRotationCount(1, "gentle", 5)
	if orig.Tier1Templates["gentle"] != 2 {
		t.Fatalf("editing the buffer mutated the original rotation map")
	}
}

func TestSettingsEditorRotationDisplayDefault(t *testing.T) {
	editor := EditSettings(testSettings())
	if n := editor.RotationCount(2, "never-configured"); n != 1 {
		t.Fatalf("expected display default 1, got %d", n)
	}
	// Display default is not persisted unless touched.
	saved, err := editor.Save()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := saved.Tier2Templates["never-configured"]; ok {
		t.Fatalf("display default must not be persisted")
	}
}

func TestSettingsEditorOutOfRangeDaysPassThrough(t *testing.T) {
	editor := EditSettings(testSettings())
	editor.SetEscalationDays(2, 365)
	saved, err := editor.Save()
	if err != nil {
		t.Fatalf("1-90 bounds are advisory only: %v", err)
	}
	if saved.Tier2EscalationDays != 365 {
		t.Fatalf("out-of-range value must pass through as typed")
	}
}

func TestValidateSettingsRejectsUnknownFrequency(t *testing.T) {
	s := testSettings()
	s.Tier3Frequency = "hourly"
	errs := ValidateSettings(s)
	if errs["tier_3_frequency"] == "" {
		t.Fatalf("expected tier_3_frequency error, got %v", errs)
	}
}
