package models

import "fmt"

// TierStyle is the fixed presentation scheme for one escalation tier.
// The dashboard renders exactly four schemes; there is no tier 5+ fallback.
type TierStyle struct {
	Tier  int    `json:"tier"`
	Label string `json:"label"`
	Color string `json:"color"`
}

var tierStyles = map[int]TierStyle{
	1: {Tier: 1, Label: "Gentle Reminder", Color: "#22c55e"},
	2: {Tier: 2, Label: "Follow Up", Color: "#eab308"},
	3: {Tier: 3, Label: "Urgent", Color: "#f97316"},
	4: {Tier: 4, Label: "Critical", Color: "#ef4444"},
}

// StyleForTier returns the presentation scheme for tiers 1..4 and an
// error for anything else.
func StyleForTier(tier int) (TierStyle, error) {
	s, ok := tierStyles[tier]
	if !ok {
		return TierStyle{}, fmt.Errorf("no style defined for tier %d", tier)
	}
	return s, nil
}

// Age severity thresholds for case rows.
const (
	SeverityDefault  = "default"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// AgeSeverity buckets a case age: over 30 days is critical, over 14 is
// warning, anything else default.
func AgeSeverity(ageDays int) string {
	switch {
	case ageDays > 30:
		return SeverityCritical
	case ageDays > 14:
		return SeverityWarning
	default:
		return SeverityDefault
	}
}
