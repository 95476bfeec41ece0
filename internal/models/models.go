package models

import "time"

// Case types recognised by server-side detection.
const (
	CaseTypeNoCommunication = "no_communication"
	CaseTypeZeroGeneration  = "zero_generation"
	CaseTypeLowPerformance  = "low_performance"
	CaseTypeConnectionIssue = "connection_issue"
)

// Case lifecycle states. Resolved and abandoned are terminal.
const (
	StatusActive    = "active"
	StatusResolved  = "resolved"
	StatusEscalated = "escalated"
	StatusAbandoned = "abandoned"
)

// Communication channels.
const (
	ChannelSMS      = "sms"
	ChannelEmail    = "email"
	ChannelWhatsApp = "whatsapp"
	ChannelPhone    = "phone"
	ChannelAuto     = "auto"
)

// Per-tier communication frequencies.
const (
	FreqDaily            = "daily"
	FreqEvery2Days       = "every_2_days"
	FreqDailyAlternating = "daily_alternating"
	FreqTwiceDaily       = "twice_daily"
	FreqThreeTimesDaily  = "three_times_daily"
)

const (
	MinTier = 1
	MaxTier = 4
)

type AgedCase struct {
	ID                      int        `json:"id"`
	SiteID                  int        `json:"site_id"`
	SiteName                string     `json:"site_name"`
	CustomerName            string     `json:"customer_name"`
	CustomerPhone           string     `json:"customer_phone,omitempty"`
	CustomerEmail           string     `json:"customer_email,omitempty"`
	JobID                   *int       `json:"job_id,omitempty"`
	CaseType                string     `json:"case_type"`
	EscalationTier          int        `json:"escalation_tier"`
	Status                  string     `json:"status"`
	AgeDays                 int        `json:"age_days"`
	DailySavingsLoss        float64    `json:"daily_savings_loss"`
	TotalSavingsLoss        float64    `json:"total_savings_loss"`
	ExpectedDailyGeneration float64    `json:"expected_daily_generation"`
	SuccessfulContacts      int        `json:"successful_contacts"`
	FailedContacts          int        `json:"failed_contacts"`
	CustomerResponded       bool       `json:"customer_responded"`
	LastContactAttempt      *time.Time `json:"last_contact_attempt"`
	LastEngagement          *time.Time `json:"last_engagement"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
	ResolvedAt              *time.Time `json:"resolved_at"`
}

// Terminal reports whether the case accepts no further transitions.
func (c AgedCase) Terminal() bool {
	return c.Status == StatusResolved || c.Status == StatusAbandoned
}

type AgedCaseCommunication struct {
	ID                 int        `json:"id"`
	CaseID             int        `json:"case_id"`
	Channel            string     `json:"channel"`
	TemplateID         *int       `json:"template_id"`
	TemplateName       string     `json:"template_name,omitempty"`
	MessageContent     string     `json:"message_content"`
	TrackingID         string     `json:"tracking_id"`
	Delivered          bool       `json:"delivered"`
	Opened             bool       `json:"opened"`
	Clicked            bool       `json:"clicked"`
	Responded          bool       `json:"responded"`
	ResponseContent    string     `json:"response_content,omitempty"`
	ResponseSentiment  string     `json:"response_sentiment,omitempty"`
	ResponseReceivedAt *time.Time `json:"response_received_at"`
	CreatedAt          time.Time  `json:"created_at"`
}

type AgedCaseTemplate struct {
	ID             int       `json:"id"`
	Name           string    `json:"name"`
	Channel        string    `json:"channel"`
	EscalationTier int       `json:"escalation_tier"`
	CaseType       *string   `json:"case_type"`
	Subject        string    `json:"subject"`
	Content        string    `json:"content"`
	Active         bool      `json:"active"`
	SendCount      int       `json:"send_count"`
	OpenRate       float64   `json:"open_rate"`
	ResponseRate   float64   `json:"response_rate"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AgedCaseSettings is one named version of the escalation configuration.
// Exactly one version is active at a time; activating a new version
// deactivates the previous one.
type AgedCaseSettings struct {
	ID                  int            `json:"id"`
	Name                string         `json:"name"`
	Tier1Frequency      string         `json:"tier_1_frequency"`
	Tier2Frequency      string         `json:"tier_2_frequency"`
	Tier3Frequency      string         `json:"tier_3_frequency"`
	Tier4Frequency      string         `json:"tier_4_frequency"`
	Tier1EscalationDays int            `json:"tier_1_escalation_days"`
	Tier2EscalationDays int            `json:"tier_2_escalation_days"`
	Tier3EscalationDays int            `json:"tier_3_escalation_days"`
	Tier1Templates      map[string]int `json:"tier_1_templates"`
	Tier2Templates      map[string]int `json:"tier_2_templates"`
	Tier3Templates      map[string]int `json:"tier_3_templates"`
	Tier4Templates      map[string]int `json:"tier_4_templates"`
	Active              bool           `json:"active"`
	CreatedAt           time.Time      `json:"created_at"`
}

// TierFrequency returns the configured frequency for tiers 1..4.
func (s AgedCaseSettings) TierFrequency(tier int) string {
	switch tier {
	case 1:
		return s.Tier1Frequency
	case 2:
		return s.Tier2Frequency
	case 3:
		return s.Tier3Frequency
	case 4:
		return s.Tier4Frequency
	}
	return ""
}

// EscalationDays returns the no-response threshold for tiers 1..3.
// Tier 4 is terminal and returns 0.
func (s AgedCaseSettings) EscalationDays(tier int) int {
	switch tier {
	case 1:
		return s.Tier1EscalationDays
	case 2:
		return s.Tier2EscalationDays
	case 3:
		return s.Tier3EscalationDays
	}
	return 0
}

// TierTemplates returns the rotation map for tiers 1..4.
func (s AgedCaseSettings) TierTemplates(tier int) map[string]int {
	switch tier {
	case 1:
		return s.Tier1Templates
	case 2:
		return s.Tier2Templates
	case 3:
		return s.Tier3Templates
	case 4:
		return s.Tier4Templates
	}
	return nil
}

type AgedCaseHistory struct {
	ID        int       `json:"id"`
	CaseID    int       `json:"case_id"`
	Action    string    `json:"action"`
	FromTier  *int      `json:"from_tier"`
	ToTier    *int      `json:"to_tier"`
	Channel   string    `json:"channel,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	User      *string   `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

// History actions.
const (
	HistoryCommunicationSent = "communication_sent"
	HistoryTierEscalated     = "tier_escalated"
	HistoryCaseResolved      = "case_resolved"
	HistoryCaseAbandoned     = "case_abandoned"
	HistorySendFailed        = "communication_failed"
)

// CaseFilters mirrors the query parameters accepted by the list endpoints.
type CaseFilters struct {
	Status        string
	Tier          int
	CaseType      string
	MinAgeDays    int
	MaxAgeDays    int
	HasResponded  *bool
	Search        string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

type TierMetrics struct {
	Count            int     `json:"count"`
	TotalSavingsLoss float64 `json:"total_savings_loss"`
	ResponseRate     float64 `json:"response_rate"`
}

type AgedCaseMetrics struct {
	TotalActive      int                 `json:"total_active"`
	TotalResolved    int                 `json:"total_resolved"`
	TotalSavingsLoss float64             `json:"total_savings_loss"`
	DailySavingsLoss float64             `json:"daily_savings_loss"`
	AvgAgeDays       float64             `json:"avg_age_days"`
	ByTier           map[int]TierMetrics `json:"by_tier"`
	ByCaseType       map[string]int      `json:"by_case_type"`
	GeneratedAt      time.Time           `json:"generated_at"`
}

func ValidCaseType(v string) bool {
	switch v {
	case CaseTypeNoCommunication, CaseTypeZeroGeneration, CaseTypeLowPerformance, CaseTypeConnectionIssue:
		return true
	}
	return false
}

func ValidStatus(v string) bool {
	switch v {
	case StatusActive, StatusResolved, StatusEscalated, StatusAbandoned:
		return true
	}
	return false
}

func ValidChannel(v string) bool {
	switch v {
	case ChannelSMS, ChannelEmail, ChannelWhatsApp, ChannelPhone:
		return true
	}
	return false
}

func ValidFrequency(v string) bool {
	switch v {
	case FreqDaily, FreqEvery2Days, FreqDailyAlternating, FreqTwiceDaily, FreqThreeTimesDaily:
		return true
	}
	return false
}

func ValidTier(t int) bool {
	return t >= MinTier && t <= MaxTier
}
