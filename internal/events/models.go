package events

import "time"

type Source string

const (
	SourceGitHub Source = "github"
	SourceJira   Source = "jira"
	SourceManual Source = "manual"
)

type UrgencyLevel string

const (
	UrgencyLow      UrgencyLevel = "low"
	UrgencyMedium   UrgencyLevel = "medium"
	UrgencyHigh     UrgencyLevel = "high"
	UrgencyCritical UrgencyLevel = "critical"
)

type RelevanceScore string

const (
	RelevanceNone   RelevanceScore = "none"
	RelevanceLow    RelevanceScore = "low"
	RelevanceMedium RelevanceScore = "medium"
	RelevanceHigh   RelevanceScore = "high"
	RelevanceDirect RelevanceScore = "direct"
)

type FilterAction string

const (
	ActionAllow     FilterAction = "allow"
	ActionBlock     FilterAction = "block"
	ActionDowngrade FilterAction = "downgrade"
	ActionBatch     FilterAction = "batch"
)

func (a FilterAction) Valid() bool {
	switch a {
	case ActionAllow, ActionBlock, ActionDowngrade, ActionBatch:
		return true
	}
	return false
}

// NotificationEvent is produced by the normalizer and is read-only to the engine.
type NotificationEvent struct {
	ID        string                 `json:"id"`
	Source    Source                 `json:"source"`
	EventType string                 `json:"event_type"`
	Payload   map[string]interface{} `json:"payload"`
	Metadata  map[string]interface{} `json:"metadata"`
	CreatedAt time.Time              `json:"created_at"`
	Urgency   UrgencyLevel           `json:"urgency,omitempty"`
}

// EventKey groups events for frequency tracking.
func (e NotificationEvent) EventKey() string {
	return string(e.Source) + ":" + e.EventType
}

type FilterContext struct {
	TeamID         string   `json:"team_id"`
	ChannelID      string   `json:"channel_id,omitempty"`
	UserID         string   `json:"user_id,omitempty"`
	TimeOfDay      string   `json:"time_of_day,omitempty"`
	DayOfWeek      string   `json:"day_of_week,omitempty"`
	RecentActivity []string `json:"recent_activity,omitempty"`
}

// ContextFromMetadata builds a FilterContext from the routing keys the
// normalizer stores in event metadata.
func ContextFromMetadata(e NotificationEvent) FilterContext {
	fc := FilterContext{
		TeamID:    String(e.Metadata, "team_id"),
		ChannelID: String(e.Metadata, "channel_id"),
		UserID:    String(e.Metadata, "user_id"),
	}
	if fc.TeamID == "" {
		fc.TeamID = "default"
	}
	return fc
}

type FilterDecision struct {
	ShouldProcess   bool                   `json:"should_process"`
	Action          FilterAction           `json:"action"`
	Reason          string                 `json:"reason"`
	Confidence      float64                `json:"confidence"`
	AppliedRules    []string               `json:"applied_rules"`
	UrgencyOverride *UrgencyLevel          `json:"urgency_override,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// NewDecision enforces that ShouldProcess is false exactly when the action blocks.
func NewDecision(action FilterAction, reason string, confidence float64, rules ...string) FilterDecision {
	applied := make([]string, len(rules))
	copy(applied, rules)
	return FilterDecision{
		ShouldProcess: action != ActionBlock,
		Action:        action,
		Reason:        reason,
		Confidence:    confidence,
		AppliedRules:  applied,
		Metadata:      make(map[string]interface{}),
	}
}

func (d FilterDecision) WithUrgency(level UrgencyLevel) FilterDecision {
	d.UrgencyOverride = &level
	return d
}

func (d FilterDecision) WithMetadata(key string, value interface{}) FilterDecision {
	md := make(map[string]interface{}, len(d.Metadata)+1)
	for k, v := range d.Metadata {
		md[k] = v
	}
	md[key] = value
	d.Metadata = md
	return d
}

// WithRules returns a copy with extra rule tags prepended ahead of the existing ones.
func (d FilterDecision) WithRules(rules ...string) FilterDecision {
	applied := make([]string, 0, len(rules)+len(d.AppliedRules))
	applied = append(applied, rules...)
	applied = append(applied, d.AppliedRules...)
	d.AppliedRules = applied
	return d
}
