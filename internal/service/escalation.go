package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chris44528/lux-aged-cases/internal/models"
)

var (
	ErrNoTemplate = errors.New("no active template for tier and channel")
	ErrTooSoon    = errors.New("tier frequency interval has not elapsed")
	ErrNoContact  = errors.New("case has no contact details for the channel")
)

// DefaultRotationCount applies when a rotation map references a template
// that has since been deleted or deactivated, or carries no entry at all.
const DefaultRotationCount = 1

// RotationCount reads a template's times-to-send from the rotation map,
// tolerating stale or missing keys.
func RotationCount(rotation map[string]int, name string) int {
	n, ok := rotation[name]
	if !ok || n < 1 {
		return DefaultRotationCount
	}
	return n
}

// NextTemplate picks the template to send next from a tier's active list.
// Templates are walked in list order; the first that has not exhausted its
// rotation count wins. Once every template has completed a full rotation
// the walk wraps, preferring whichever has completed the fewest rotations.
func NextTemplate(templates []models.AgedCaseTemplate, rotation map[string]int) (models.AgedCaseTemplate, error) {
	if len(templates) == 0 {
		return models.AgedCaseTemplate{}, ErrNoTemplate
	}
	best := -1
	bestRounds := 0
	for i, t := range templates {
		rounds := t.SendCount / RotationCount(rotation, t.Name)
		if best == -1 || rounds < bestRounds {
			best = i
			bestRounds = rounds
		}
	}
	return templates[best], nil
}

// FilterForCase drops templates whose case_type filter excludes the case.
// A nil case_type applies to every case type.
func FilterForCase(templates []models.AgedCaseTemplate, caseType string) []models.AgedCaseTemplate {
	out := make([]models.AgedCaseTemplate, 0, len(templates))
	for _, t := range templates {
		if t.CaseType == nil || *t.CaseType == caseType {
			out = append(out, t)
		}
	}
	return out
}

// FrequencyInterval maps a tier frequency to the minimum gap between
// contact attempts.
func FrequencyInterval(frequency string) time.Duration {
	switch frequency {
	case models.FreqTwiceDaily:
		return 12 * time.Hour
	case models.FreqThreeTimesDaily:
		return 8 * time.Hour
	case models.FreqEvery2Days:
		return 48 * time.Hour
	case models.FreqDaily, models.FreqDailyAlternating:
		return 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// CanContact reports whether the tier frequency allows another attempt now.
func CanContact(c models.AgedCase, settings models.AgedCaseSettings, now time.Time) bool {
	if c.LastContactAttempt == nil {
		return true
	}
	interval := FrequencyInterval(settings.TierFrequency(c.EscalationTier))
	return now.Sub(*c.LastContactAttempt) >= interval
}

// ShouldEscalate decides whether a case is due for promotion to the next
// tier: still open, below tier 4, no customer response, and past the
// tier's no-response threshold. The clock runs from the last engagement,
// or case creation when the customer has never engaged.
func ShouldEscalate(c models.AgedCase, settings models.AgedCaseSettings, now time.Time) bool {
	if c.Terminal() || c.CustomerResponded {
		return false
	}
	if c.EscalationTier >= models.MaxTier {
		return false
	}
	threshold := settings.EscalationDays(c.EscalationTier)
	if threshold <= 0 {
		return false
	}
	since := c.CreatedAt
	if c.LastEngagement != nil && c.LastEngagement.After(since) {
		since = *c.LastEngagement
	}
	return now.Sub(since) >= time.Duration(threshold)*24*time.Hour
}

// Channel preference per tier for channel == "auto". Earlier tiers lead
// with SMS; tier 3 shifts to email and tier 4 to WhatsApp.
var autoChannelOrder = map[int][]string{
	1: {models.ChannelSMS, models.ChannelEmail, models.ChannelWhatsApp},
	2: {models.ChannelSMS, models.ChannelEmail, models.ChannelWhatsApp},
	3: {models.ChannelEmail, models.ChannelSMS, models.ChannelWhatsApp},
	4: {models.ChannelWhatsApp, models.ChannelSMS, models.ChannelEmail},
}

// SelectChannel resolves "auto" to a concrete channel: the first in the
// tier's preference order that the case can receive and that has at least
// one usable template.
func SelectChannel(c models.AgedCase, byChannel map[string][]models.AgedCaseTemplate) (string, error) {
	order, ok := autoChannelOrder[c.EscalationTier]
	if !ok {
		return "", fmt.Errorf("no channel preference for tier %d", c.EscalationTier)
	}
	for _, ch := range order {
		if !Reachable(c, ch) {
			continue
		}
		if len(byChannel[ch]) > 0 {
			return ch, nil
		}
	}
	return "", ErrNoTemplate
}

// Reachable reports whether the case record carries the contact detail
// the channel needs.
func Reachable(c models.AgedCase, channel string) bool {
	switch channel {
	case models.ChannelSMS, models.ChannelWhatsApp, models.ChannelPhone:
		return c.CustomerPhone != ""
	case models.ChannelEmail:
		return c.CustomerEmail != ""
	}
	return false
}

// KnownVariables is the registry offered by the template editor's
// insert-variable control.
var KnownVariables = []string{
	"site_name",
	"customer_name",
	"days_open",
	"savings_loss",
	"daily_savings_loss",
	"tier",
	"company_name",
}

// CaseVariables builds the substitution values for one case.
func CaseVariables(c models.AgedCase, companyName string) map[string]string {
	return map[string]string{
		"site_name":          c.SiteName,
		"customer_name":      c.CustomerName,
		"days_open":          fmt.Sprintf("%d", c.AgeDays),
		"savings_loss":       fmt.Sprintf("£%.2f", c.TotalSavingsLoss),
		"daily_savings_loss": fmt.Sprintf("£%.2f", c.DailySavingsLoss),
		"tier":               fmt.Sprintf("%d", c.EscalationTier),
		"company_name":       companyName,
	}
}

// Render substitutes {{variable}} tokens. Unknown tokens render empty so a
// template referencing a retired variable degrades quietly rather than
// leaking raw braces to a customer.
func Render(content string, vars map[string]string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "{{")
		if start == -1 {
			b.WriteString(content)
			break
		}
		end := strings.Index(content[start:], "}}")
		if end == -1 {
			b.WriteString(content)
			break
		}
		b.WriteString(content[:start])
		token := strings.TrimSpace(content[start+2 : start+end])
		b.WriteString(vars[token])
		content = content[start+end+2:]
	}
	return b.String()
}

// DefaultSettings backs send flows when no settings version has been
// activated yet.
func DefaultSettings() models.AgedCaseSettings {
	return models.AgedCaseSettings{
		Name:                "default",
		Tier1Frequency:      models.FreqEvery2Days,
		Tier2Frequency:      models.FreqDaily,
		Tier3Frequency:      models.FreqDaily,
		Tier4Frequency:      models.FreqTwiceDaily,
		Tier1EscalationDays: 7,
		Tier2EscalationDays: 5,
		Tier3EscalationDays: 3,
		Tier1Templates:      map[string]int{},
		Tier2Templates:      map[string]int{},
		Tier3Templates:      map[string]int{},
		Tier4Templates:      map[string]int{},
	}
}
