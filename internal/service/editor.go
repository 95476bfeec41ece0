package service

import (
	"github.com/chris44528/lux-aged-cases/internal/models"
)

// FieldErrors carries per-field validation messages. A save that fails
// validation never reaches the store or the network.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	for _, msg := range e {
		return msg
	}
	return "validation failed"
}

// TemplateEditor is a buffered edit session over one template. The
// original is kept untouched until Save validates; Cancel throws the
// buffer away and hands the original back unchanged.
type TemplateEditor struct {
	original models.AgedCaseTemplate
	draft    models.AgedCaseTemplate
}

func EditTemplate(t models.AgedCaseTemplate) *TemplateEditor {
	return &TemplateEditor{original: t, draft: t}
}

// NewTemplate starts an editing session for a template that does not
// exist yet. New templates default to active.
func NewTemplate() *TemplateEditor {
	t := models.AgedCaseTemplate{EscalationTier: models.MinTier, Channel: models.ChannelSMS, Active: true}
	return &TemplateEditor{original: t, draft: t}
}

func (e *TemplateEditor) SetName(v string)    { e.draft.Name = v }
func (e *TemplateEditor) SetChannel(v string) { e.draft.Channel = v }
func (e *TemplateEditor) SetTier(v int)       { e.draft.EscalationTier = v }
func (e *TemplateEditor) SetSubject(v string) { e.draft.Subject = v }
func (e *TemplateEditor) SetContent(v string) { e.draft.Content = v }
func (e *TemplateEditor) SetCaseType(v *string) { e.draft.CaseType = v }

// Draft exposes the current buffer for preview rendering. Preview shows
// stored fields as-is; variable substitution happens only at send time.
func (e *TemplateEditor) Draft() models.AgedCaseTemplate { return e.draft }

// InsertVariable splices a {{token}} at the given cursor position in the
// content buffer and returns the new cursor position.
func (e *TemplateEditor) InsertVariable(name string, pos int) int {
	if pos < 0 {
		pos = 0
	}
	if pos > len(e.draft.Content) {
		pos = len(e.draft.Content)
	}
	token := "{{" + name + "}}"
	e.draft.Content = e.draft.Content[:pos] + token + e.draft.Content[pos:]
	return pos + len(token)
}

// Save validates the buffer and returns the payload to persist. On
// validation failure nothing is returned and the buffer is preserved so
// the caller can correct and retry.
func (e *TemplateEditor) Save() (models.AgedCaseTemplate, error) {
	if errs := ValidateTemplate(e.draft); len(errs) > 0 {
		return models.AgedCaseTemplate{}, errs
	}
	return e.draft, nil
}

// Cancel discards the buffer and returns the original field-for-field.
func (e *TemplateEditor) Cancel() models.AgedCaseTemplate {
	e.draft = e.original
	return e.original
}

func ValidateTemplate(t models.AgedCaseTemplate) FieldErrors {
	errs := FieldErrors{}
	if t.Name == "" {
		errs["name"] = "Template name is required"
	}
	if t.Content == "" {
		errs["content"] = "Template content is required"
	}
	if t.Channel == models.ChannelEmail && t.Subject == "" {
		errs["subject"] = "Subject is required for email templates"
	}
	if !models.ValidChannel(t.Channel) {
		errs["channel"] = "Unknown channel"
	}
	if !models.ValidTier(t.EscalationTier) {
		errs["escalation_tier"] = "Escalation tier must be between 1 and 4"
	}
	if t.CaseType != nil && !models.ValidCaseType(*t.CaseType) {
		errs["case_type"] = "Unknown case type"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// SettingsEditor buffers edits to the escalation configuration. Saving
// yields the complete merged object: the set_active endpoint replaces
// whole versions, so fields the caller never touched must round-trip from
// the original fetch to avoid silent loss.
type SettingsEditor struct {
	original models.AgedCaseSettings
	draft    models.AgedCaseSettings
}

func EditSettings(s models.AgedCaseSettings) *SettingsEditor {
	return &SettingsEditor{original: s, draft: copySettings(s)}
}

func copySettings(s models.AgedCaseSettings) models.AgedCaseSettings {
	out := s
	out.Tier1Templates = copyRotation(s.Tier1Templates)
	out.Tier2Templates = copyRotation(s.Tier2Templates)
	out.Tier3Templates = copyRotation(s.Tier3Templates)
	out.Tier4Templates = copyRotation(s.Tier4Templates)
	return out
}

func copyRotation(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (e *SettingsEditor) SetName(v string) { e.draft.Name = v }

func (e *SettingsEditor) SetFrequency(tier int, v string) {
	switch tier {
	case 1:
		e.draft.Tier1Frequency = v
	case 2:
		e.draft.Tier2Frequency = v
	case 3:
		e.draft.Tier3Frequency = v
	case 4:
		e.draft.Tier4Frequency = v
	}
}

func (e *SettingsEditor) SetEscalationDays(tier, days int) {
	switch tier {
	case 1:
		e.draft.Tier1EscalationDays = days
	case 2:
		e.draft.Tier2EscalationDays = days
	case 3:
		e.draft.Tier3EscalationDays = days
	}
}

// SetRotationCount records a times-to-send value for one template. A
// count is only persisted once explicitly touched; untouched templates
// display the default of 1 without it being written back.
func (e *SettingsEditor) SetRotationCount(tier int, templateName string, count int) {
	m := e.draft.TierTemplates(tier)
	if m == nil {
		return
	}
	m[templateName] = count
}

// RotationCount reads the display value for one template in the buffer.
func (e *SettingsEditor) RotationCount(tier int, templateName string) int {
	return RotationCount(e.draft.TierTemplates(tier), templateName)
}

func (e *SettingsEditor) Draft() models.AgedCaseSettings { return copySettings(e.draft) }

// Save validates the enum fields and returns the full merged object for
// set_active. Escalation days 1-90 are advisory UI bounds only;
// out-of-range values pass through as typed.
func (e *SettingsEditor) Save() (models.AgedCaseSettings, error) {
	if errs := ValidateSettings(e.draft); len(errs) > 0 {
		return models.AgedCaseSettings{}, errs
	}
	return copySettings(e.draft), nil
}

// Cancel discards all buffered changes and restores the last-fetched
// state exactly.
func (e *SettingsEditor) Cancel() models.AgedCaseSettings {
	e.draft = copySettings(e.original)
	return e.original
}

func ValidateSettings(s models.AgedCaseSettings) FieldErrors {
	errs := FieldErrors{}
	if s.Name == "" {
		errs["name"] = "Settings name is required"
	}
	for tier := models.MinTier; tier <= models.MaxTier; tier++ {
		if !models.ValidFrequency(s.TierFrequency(tier)) {
			errs[frequencyField(tier)] = "Unknown frequency"
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func frequencyField(tier int) string {
	switch tier {
	case 1:
		return "tier_1_frequency"
	case 2:
		return "tier_2_frequency"
	case 3:
		return "tier_3_frequency"
	default:
		return "tier_4_frequency"
	}
}
