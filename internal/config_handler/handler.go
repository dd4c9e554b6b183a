package config_handler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"notifilter/internal/broker"
	"notifilter/internal/logger"
	"notifilter/pkg/errors"
)

const EventTypeRulesUpdated = "filter_rules_updated"

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionReload = "reload"
)

// RuleUpdateEvent announces that the persisted rule set changed.
type RuleUpdateEvent struct {
	ID        string    `json:"id"`
	EventType string    `json:"event_type"`
	Action    string    `json:"action"`
	RuleID    string    `json:"rule_id,omitempty"`
	TeamID    string    `json:"team_id,omitempty"`
	ChangedBy string    `json:"changed_by,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Reloader interface {
	Reload(ctx context.Context) error
}

type ReloadFunc func(ctx context.Context) error

func (f ReloadFunc) Reload(ctx context.Context) error {
	return f(ctx)
}

// Handler reloads the rule set whenever a rule update event arrives.
type Handler struct {
	reloader Reloader
	logger   logger.Logger
}

func NewHandler(reloader Reloader, log logger.Logger) *Handler {
	return &Handler{reloader: reloader, logger: log}
}

// Handle is a broker.HandlerFunc. Events of other types are ignored.
func (h *Handler) Handle(ctx context.Context, msg broker.Message) error {
	var event RuleUpdateEvent
	if err := msg.Decode(&event); err != nil {
		return errors.Validationf("invalid rule update event: %v", err)
	}

	if event.EventType != EventTypeRulesUpdated {
		h.logger.DebugwCtx(ctx, "Ignoring config event", "event_type", event.EventType)
		return nil
	}

	h.logger.InfowCtx(ctx, "Received rule update event",
		"action", event.Action,
		"rule_id", event.RuleID,
		"team_id", event.TeamID,
		"changed_by", event.ChangedBy,
	)

	if err := h.reloader.Reload(ctx); err != nil {
		h.logger.ErrorwCtx(ctx, "Failed to reload rules after update event", "error", err)
		return err
	}
	return nil
}

// Publisher announces rule changes on the config update topic. A nil
// producer or empty topic turns it into a no-op.
type Publisher struct {
	producer broker.Producer
	topic    string
	now      func() time.Time
}

func NewPublisher(producer broker.Producer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic, now: time.Now}
}

func (p *Publisher) PublishRuleEvent(ctx context.Context, action, ruleID, teamID, changedBy string) error {
	if p == nil || p.producer == nil || p.topic == "" {
		return nil
	}

	event := RuleUpdateEvent{
		ID:        uuid.New().String(),
		EventType: EventTypeRulesUpdated,
		Action:    action,
		RuleID:    ruleID,
		TeamID:    teamID,
		ChangedBy: changedBy,
		Timestamp: p.now(),
	}
	return p.producer.Publish(ctx, p.topic, event.ID, event)
}
