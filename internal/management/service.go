package management

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"notifilter/internal/config_handler"
	"notifilter/internal/engine"
	"notifilter/internal/events"
	"notifilter/internal/logger"
	"notifilter/internal/rules"
	pkgerrors "notifilter/pkg/errors"
)

type service struct {
	engine    RuleEngine
	validator *RuleValidator
	store     rules.Store
	publisher RulePublisher
	logger    logger.Logger
}

type ServiceOption func(*service)

// WithStore persists admin changes so they survive restarts and reach
// replicas on their next reload.
func WithStore(store rules.Store) ServiceOption {
	return func(s *service) {
		s.store = store
	}
}

func WithPublisher(publisher RulePublisher) ServiceOption {
	return func(s *service) {
		s.publisher = publisher
	}
}

func WithLogger(log logger.Logger) ServiceOption {
	return func(s *service) {
		s.logger = log
	}
}

func NewService(eng RuleEngine, validator *RuleValidator, opts ...ServiceOption) Service {
	s := &service{
		engine:    eng,
		validator: validator,
		logger:    logger.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListRules returns the rules that apply to teamID and channelID, or every
// registered rule grouped by team when teamID is empty.
func (s *service) ListRules(_ context.Context, teamID, channelID string) []rules.FilterRule {
	if teamID != "" {
		return s.engine.GetRules(teamID, channelID)
	}

	all := s.engine.AllRules()
	teams := lo.Keys(all)
	slices.Sort(teams)

	var out []rules.FilterRule
	for _, team := range teams {
		out = append(out, all[team]...)
	}
	return out
}

func (s *service) GetRule(_ context.Context, id, teamID string) (rules.FilterRule, error) {
	rule, ok := s.find(id, teamID)
	if !ok {
		return rules.FilterRule{}, pkgerrors.NotFoundf("rule %s not found for team %s", id, rules.ResolveTeam(teamID))
	}
	return rule, nil
}

func (s *service) CreateRule(ctx context.Context, req CreateRuleRequest, changedBy string) (rules.FilterRule, error) {
	rule := req.toRule()
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	return s.put(ctx, rule, config_handler.ActionCreate, changedBy)
}

// UpdateRule replaces an existing rule; its creation time is preserved.
func (s *service) UpdateRule(ctx context.Context, id string, req CreateRuleRequest, changedBy string) (rules.FilterRule, error) {
	existing, ok := s.find(id, req.TeamID)
	if !ok {
		return rules.FilterRule{}, pkgerrors.NotFoundf("rule %s not found for team %s", id, rules.ResolveTeam(req.TeamID))
	}

	rule := req.toRule()
	rule.ID = id
	rule.CreatedAt = existing.CreatedAt
	return s.put(ctx, rule, config_handler.ActionUpdate, changedBy)
}

func (s *service) put(ctx context.Context, rule rules.FilterRule, action, changedBy string) (rules.FilterRule, error) {
	if err := s.validator.Validate(rule); err != nil {
		return rules.FilterRule{}, pkgerrors.Validationf("invalid rule: %v", err)
	}

	now := time.Now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	if s.store != nil {
		if err := s.store.SaveRule(ctx, rule); err != nil {
			return rules.FilterRule{}, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
		}
	}

	stored, err := s.engine.AddRule(rule)
	if err != nil {
		return rules.FilterRule{}, err
	}

	s.logger.InfowCtx(ctx, "Rule saved",
		"rule_id", stored.ID,
		"team_id", stored.Bucket(),
		"action", action,
		"changed_by", changedBy,
	)
	s.publish(ctx, action, stored.ID, stored.TeamID, changedBy)
	return stored, nil
}

func (s *service) DeleteRule(ctx context.Context, id, teamID, changedBy string) error {
	if _, ok := s.find(id, teamID); !ok {
		return pkgerrors.NotFoundf("rule %s not found for team %s", id, rules.ResolveTeam(teamID))
	}

	if s.store != nil {
		if err := s.store.DeleteRule(ctx, id, teamID); err != nil {
			return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
		}
	}
	s.engine.RemoveRule(id, teamID)

	s.logger.InfowCtx(ctx, "Rule deleted",
		"rule_id", id,
		"team_id", rules.ResolveTeam(teamID),
		"changed_by", changedBy,
	)
	s.publish(ctx, config_handler.ActionDelete, id, teamID, changedBy)
	return nil
}

// ReloadRules reloads the persisted rule set and asks the other replicas to
// do the same.
func (s *service) ReloadRules(ctx context.Context, changedBy string) error {
	if s.store == nil {
		return pkgerrors.Validationf("no rule store configured")
	}
	if err := s.engine.ReloadRules(ctx, s.store); err != nil {
		if pkgerrors.IsValidation(err) {
			return err
		}
		return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	s.publish(ctx, config_handler.ActionReload, "", "", changedBy)
	return nil
}

func (s *service) Stats(_ context.Context) engine.Stats {
	return s.engine.GetStats()
}

func (s *service) Evaluate(ctx context.Context, req EvaluateRequest) (events.FilterDecision, error) {
	if req.Event.ID == "" {
		return events.FilterDecision{}, pkgerrors.Validationf("event.id is required")
	}
	if req.Event.Source == "" {
		return events.FilterDecision{}, pkgerrors.Validationf("event.source is required")
	}

	fc := events.ContextFromMetadata(req.Event)
	if req.Context != nil {
		fc = *req.Context
	}
	return s.engine.Evaluate(ctx, req.Event, fc), nil
}

func (s *service) find(id, teamID string) (rules.FilterRule, bool) {
	return lo.Find(s.engine.AllRules()[rules.ResolveTeam(teamID)], func(r rules.FilterRule) bool {
		return r.ID == id
	})
}

func (s *service) publish(ctx context.Context, action, ruleID, teamID, changedBy string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRuleEvent(ctx, action, ruleID, teamID, changedBy); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to publish rule update event",
			"error", err,
			"action", action,
			"rule_id", ruleID,
		)
	}
}
