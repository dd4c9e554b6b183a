package engine

import (
	"context"
	"time"

	"notifilter/internal/audit"
	"notifilter/internal/events"
	"notifilter/internal/logger"
	"notifilter/internal/noise"
	"notifilter/internal/rules"
	"notifilter/internal/scoring"
	"notifilter/pkg/cel"
	"notifilter/pkg/errors"
	"notifilter/pkg/logging"
	"notifilter/pkg/metrics"
	"notifilter/pkg/tracing"
)

// Terminal rule tags recorded in FilterDecision.AppliedRules.
const (
	TagCriticalOverride = "critical_blocker_override"
	TagErrorFallback    = "error_fallback"
	TagDefaultAllow     = "default_allow"
	TagNoUserContext    = "no_user_context"
	TagGenericRelevance = "generic_relevance"
)

// Sink receives every decision the engine produces.
type Sink interface {
	LogDecision(ctx context.Context, event events.NotificationEvent, fc events.FilterContext, decision events.FilterDecision)
}

type Option func(*Engine)

func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		e.logger = log
	}
}

// WithClock sets the time source of the noise window.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func WithNoiseOptions(opts ...noise.Option) Option {
	return func(e *Engine) {
		e.noiseOpts = append(e.noiseOpts, opts...)
	}
}

// WithSinks replaces the default logger sink.
func WithSinks(sinks ...Sink) Option {
	return func(e *Engine) {
		e.sinks = sinks
	}
}

func WithRegistry(registry *rules.Registry) Option {
	return func(e *Engine) {
		e.registry = registry
	}
}

// WithoutSeedRules starts the engine with an empty registry.
func WithoutSeedRules() Option {
	return func(e *Engine) {
		e.seedDefaults = false
	}
}

// Engine combines the rule registry, noise detector and scorers into one
// decision per event. All methods are safe for concurrent use.
type Engine struct {
	registry     *rules.Registry
	matcher      *rules.Matcher
	noise        *noise.Detector
	noiseOpts    []noise.Option
	sinks        []Sink
	logger       logger.Logger
	now          func() time.Time
	seedDefaults bool
}

func New(opts ...Option) (*Engine, error) {
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		matcher:      rules.NewMatcher(evaluator),
		logger:       logger.NopLogger(),
		now:          time.Now,
		seedDefaults: true,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.registry == nil {
		if e.seedDefaults {
			e.registry = rules.NewSeededRegistry()
		} else {
			e.registry = rules.NewRegistry()
		}
	}
	e.noise = noise.NewDetector(append([]noise.Option{noise.WithClock(e.now)}, e.noiseOpts...)...)
	if e.sinks == nil {
		e.sinks = []Sink{audit.NewLoggerSink(e.logger)}
	}

	e.updateRuleGauge()
	return e, nil
}

// Evaluate decides what to do with an event. It never fails: internal errors
// and panics produce an allowing error_fallback decision.
func (e *Engine) Evaluate(ctx context.Context, event events.NotificationEvent, fc events.FilterContext) events.FilterDecision {
	ctx, span := tracing.StartDecisionSpan(ctx, event, fc)
	ctx = logging.WithEvent(ctx, event.ID, fc.TeamID)

	start := time.Now()

	decision, err := e.safeEvaluate(ctx, event, fc)
	if err != nil {
		decision = e.fallback(ctx, event, err)
	}
	tracing.EndDecisionSpan(span, decision, err)

	rule := decidingRule(decision)
	metrics.IncFilterDecision(string(decision.Action), rule)
	metrics.ObserveDecisionDuration(time.Since(start), string(decision.Action))

	e.LogDecision(ctx, event, fc, decision)
	return decision
}

func (e *Engine) safeEvaluate(ctx context.Context, event events.NotificationEvent, fc events.FilterContext) (decision events.FilterDecision, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.RecoverPanic(r)
		}
	}()
	return e.evaluate(ctx, event, fc)
}

func (e *Engine) evaluate(ctx context.Context, event events.NotificationEvent, fc events.FilterContext) (events.FilterDecision, error) {
	if fc.TeamID == "" {
		return events.FilterDecision{}, errors.Validationf("filter context requires a team id")
	}

	if scoring.IsCriticalBlocker(event) {
		return events.NewDecision(events.ActionAllow, "critical blocker override", 1.0, TagCriticalOverride).
			WithUrgency(events.UrgencyCritical), nil
	}

	signal := e.noise.Observe(event)
	if signal.Action != events.ActionAllow {
		metrics.IncNoiseDetection(signal.Tag)
	}

	if rule, ok := e.matchRule(ctx, event, fc); ok {
		decision := ruleDecision(rule)
		// batch and downgrade rules give way to a frequency block
		if signal.Blocks() && isSoft(rule.Action) {
			return signal.Decision().WithMetadata("superseded_rule", rule.ID), nil
		}
		if signal.Downgrade() {
			decision = decision.WithMetadata("bot_activity", true)
		}
		return decision, nil
	}

	if signal.Blocks() {
		return signal.Decision(), nil
	}

	decision := e.sourceDecision(event, fc).WithMetadata("noise_count", signal.Count)
	if signal.Downgrade() && decision.Action != events.ActionBlock {
		decision = downgrade(decision, signal)
	}
	return decision, nil
}

func (e *Engine) matchRule(ctx context.Context, event events.NotificationEvent, fc events.FilterContext) (rules.FilterRule, bool) {
	for _, rule := range e.registry.GetRules(fc.TeamID, fc.ChannelID) {
		if !rule.Active {
			continue
		}

		ok, err := e.matcher.Match(ctx, rule.Condition, event, fc)
		if err != nil {
			metrics.IncRuleEvaluation(rule.ID, "error")
			e.logger.WarnwCtx(ctx, "Rule condition evaluation failed",
				"rule_id", rule.ID,
				"rule_name", rule.Name,
				"event_id", event.ID,
				"error", err,
			)
			continue
		}
		if !ok {
			metrics.IncRuleEvaluation(rule.ID, "no_match")
			continue
		}

		metrics.IncRuleEvaluation(rule.ID, "match")
		return rule, true
	}
	return rules.FilterRule{}, false
}

func ruleDecision(rule rules.FilterRule) events.FilterDecision {
	return events.NewDecision(rule.Action, "matched rule: "+rule.Name, 0.9, rule.ID).
		WithMetadata("rule_priority", rule.Priority)
}

func isSoft(action events.FilterAction) bool {
	return action == events.ActionBatch || action == events.ActionDowngrade
}

// downgrade folds a bot-activity signal into a processable decision.
func downgrade(d events.FilterDecision, signal noise.Signal) events.FilterDecision {
	out := d.WithRules(signal.Tag).WithMetadata("bot_activity", true)
	out.Action = events.ActionDowngrade
	out.ShouldProcess = true
	out.Reason = signal.Reason + " (" + d.Reason + ")"
	out.Confidence = signal.Confidence
	return out
}

func (e *Engine) sourceDecision(event events.NotificationEvent, fc events.FilterContext) events.FilterDecision {
	switch event.Source {
	case events.SourceGitHub:
		return githubDecision(event, fc)
	case events.SourceJira:
		return jiraDecision(event, fc)
	case events.SourceManual:
		return genericDecision(fc)
	default:
		return events.NewDecision(events.ActionAllow, "no filter applies", 0.5, TagDefaultAllow)
	}
}

func genericDecision(fc events.FilterContext) events.FilterDecision {
	if fc.UserID == "" {
		return events.NewDecision(events.ActionAllow, "no user context", 0.5, TagNoUserContext)
	}
	return events.NewDecision(events.ActionAllow, "generic relevance", 0.6, TagGenericRelevance)
}

func (e *Engine) fallback(ctx context.Context, event events.NotificationEvent, err error) events.FilterDecision {
	reason := "error"
	switch {
	case errors.IsValidation(err):
		reason = "invalid_context"
	case errors.IsPanic(err):
		reason = "panic"
	}
	metrics.IncFallback(reason)

	e.logger.ErrorwCtx(ctx, "Filter evaluation failed, allowing event",
		"event_id", event.ID,
		"source", event.Source,
		"event_type", event.EventType,
		"fallback_reason", reason,
		"error", err,
	)

	return events.NewDecision(events.ActionAllow, "evaluation error: "+err.Error(), 0, TagErrorFallback)
}

// LogDecision hands the decision to every configured sink.
func (e *Engine) LogDecision(ctx context.Context, event events.NotificationEvent, fc events.FilterContext, decision events.FilterDecision) {
	for _, sink := range e.sinks {
		e.deliver(ctx, sink, event, fc, decision)
	}
}

func (e *Engine) deliver(ctx context.Context, sink Sink, event events.NotificationEvent, fc events.FilterContext, decision events.FilterDecision) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorwCtx(ctx, "Decision sink panicked",
				"event_id", event.ID,
				"error", errors.RecoverPanic(r),
			)
		}
	}()
	sink.LogDecision(ctx, event, fc, decision)
}

func decidingRule(d events.FilterDecision) string {
	if len(d.AppliedRules) == 0 {
		return "none"
	}
	return d.AppliedRules[len(d.AppliedRules)-1]
}
