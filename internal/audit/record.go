package audit

import (
	"time"

	"notifilter/internal/events"
)

// Record is the audit entry published for every decision.
type Record struct {
	EventID   string                `json:"event_id"`
	Source    events.Source         `json:"source"`
	EventType string                `json:"event_type"`
	TeamID    string                `json:"team_id"`
	ChannelID string                `json:"channel_id,omitempty"`
	UserID    string                `json:"user_id,omitempty"`
	Decision  events.FilterDecision `json:"decision"`
	DecidedAt time.Time             `json:"decided_at"`
}

func NewRecord(event events.NotificationEvent, fc events.FilterContext, decision events.FilterDecision, at time.Time) Record {
	return Record{
		EventID:   event.ID,
		Source:    event.Source,
		EventType: event.EventType,
		TeamID:    fc.TeamID,
		ChannelID: fc.ChannelID,
		UserID:    fc.UserID,
		Decision:  decision,
		DecidedAt: at,
	}
}
