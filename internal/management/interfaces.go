package management

import (
	"context"

	"notifilter/internal/engine"
	"notifilter/internal/events"
	"notifilter/internal/rules"
)

// RuleEngine is the part of the decision engine the admin API drives.
type RuleEngine interface {
	Evaluate(ctx context.Context, event events.NotificationEvent, fc events.FilterContext) events.FilterDecision
	AddRule(rule rules.FilterRule) (rules.FilterRule, error)
	RemoveRule(id, teamID string) bool
	GetRules(teamID, channelID string) []rules.FilterRule
	AllRules() map[string][]rules.FilterRule
	GetStats() engine.Stats
	ReloadRules(ctx context.Context, repo rules.Repository) error
}

// RulePublisher announces rule changes to the other replicas.
type RulePublisher interface {
	PublishRuleEvent(ctx context.Context, action, ruleID, teamID, changedBy string) error
}

type Service interface {
	ListRules(ctx context.Context, teamID, channelID string) []rules.FilterRule
	GetRule(ctx context.Context, id, teamID string) (rules.FilterRule, error)
	CreateRule(ctx context.Context, req CreateRuleRequest, changedBy string) (rules.FilterRule, error)
	UpdateRule(ctx context.Context, id string, req CreateRuleRequest, changedBy string) (rules.FilterRule, error)
	DeleteRule(ctx context.Context, id, teamID, changedBy string) error
	ReloadRules(ctx context.Context, changedBy string) error
	Stats(ctx context.Context) engine.Stats
	Evaluate(ctx context.Context, req EvaluateRequest) (events.FilterDecision, error)
}
