package management

import (
	"notifilter/internal/events"
	"notifilter/internal/rules"
)

type CreateRuleRequest struct {
	ID        string              `json:"id"`
	Name      string              `json:"name" binding:"required"`
	Condition rules.Condition     `json:"condition"`
	Action    events.FilterAction `json:"action" binding:"required"`
	Priority  int                 `json:"priority"`
	TeamID    string              `json:"team_id"`
	ChannelID string              `json:"channel_id"`
	Active    *bool               `json:"active"`
}

func (r CreateRuleRequest) toRule() rules.FilterRule {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return rules.FilterRule{
		ID:        r.ID,
		Name:      r.Name,
		Condition: r.Condition,
		Action:    r.Action,
		Priority:  r.Priority,
		TeamID:    r.TeamID,
		ChannelID: r.ChannelID,
		Active:    active,
	}
}

// EvaluateRequest runs an event through the engine. Without an explicit
// context the routing keys are read from the event metadata.
type EvaluateRequest struct {
	Event   events.NotificationEvent `json:"event"`
	Context *events.FilterContext    `json:"context,omitempty"`
}

type ListRulesResponse struct {
	Rules []rules.FilterRule `json:"rules"`
	Total int                `json:"total"`
}
