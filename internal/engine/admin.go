package engine

import (
	"context"
	"time"

	"github.com/hashicorp/go-set/v2"
	"github.com/samber/lo"

	"notifilter/internal/rules"
	"notifilter/pkg/errors"
	"notifilter/pkg/metrics"
)

type Stats struct {
	TotalRules            int            `json:"total_rules"`
	RulesByTeam           map[string]int `json:"rules_by_team"`
	NoisePatternsDetected int            `json:"noise_patterns_detected"`
	RecentActivity        int            `json:"recent_activity"`
}

// AddRule validates and registers a rule, replacing any rule with the same id
// in its team bucket.
func (e *Engine) AddRule(rule rules.FilterRule) (rules.FilterRule, error) {
	if err := rule.Validate(); err != nil {
		return rules.FilterRule{}, errors.Validationf("invalid rule: %v", err)
	}

	stored := e.registry.AddRule(rule)
	e.updateRuleGauge()
	return stored, nil
}

func (e *Engine) RemoveRule(id, teamID string) bool {
	removed := e.registry.RemoveRule(id, teamID)
	if removed {
		e.updateRuleGauge()
	}
	return removed
}

func (e *Engine) GetRules(teamID, channelID string) []rules.FilterRule {
	return e.registry.GetRules(teamID, channelID)
}

func (e *Engine) AllRules() map[string][]rules.FilterRule {
	return e.registry.All()
}

func (e *Engine) GetStats() Stats {
	total, byTeam := e.registry.Counts()
	noiseStats := e.noise.Stats()
	return Stats{
		TotalRules:            total,
		RulesByTeam:           byTeam,
		NoisePatternsDetected: noiseStats.PatternsDetected,
		RecentActivity:        noiseStats.RecentActivity,
	}
}

// ReloadRules replaces the registry contents with the rules held by repo.
// Seed rules are kept unless repo defines a rule with the same id and team.
// Rules that fail to decode or validate are logged and left out.
func (e *Engine) ReloadRules(ctx context.Context, repo rules.Repository) error {
	loaded, err := repo.LoadRules(ctx)
	skipped, partial := rules.SkippedRules(err)
	if err != nil && !partial {
		return err
	}
	for _, bad := range skipped {
		e.logger.WarnwCtx(ctx, "Skipping invalid rule",
			"rule_id", bad.ID,
			"index", bad.Index,
			"error", bad.Err,
		)
	}

	loaded = lo.Filter(loaded, func(rule rules.FilterRule, _ int) bool {
		if err := rule.Validate(); err != nil {
			e.logger.WarnwCtx(ctx, "Skipping invalid rule",
				"rule_id", rule.ID,
				"error", err,
			)
			skipped = append(skipped, rules.InvalidRule{ID: rule.ID, Err: err})
			return false
		}
		return true
	})

	next := loaded
	if e.seedDefaults {
		overridden := set.From(lo.Map(loaded, func(r rules.FilterRule, _ int) string { return ruleKey(r) }))
		seeds := lo.Filter(rules.DefaultRules(), func(r rules.FilterRule, _ int) bool {
			return !overridden.Contains(ruleKey(r))
		})
		next = append(seeds, loaded...)
	}

	e.registry.ReplaceRules(next)
	e.updateRuleGauge()

	e.logger.InfowCtx(ctx, "Successfully reloaded rules",
		"rules_count", len(next),
		"loaded_count", len(loaded),
		"skipped_count", len(skipped),
	)
	return nil
}

// StartReloader reloads rules from repo every interval until ctx is done.
func (e *Engine) StartReloader(ctx context.Context, repo rules.Repository, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := e.ReloadRules(ctx, repo); err != nil {
				e.logger.ErrorwCtx(ctx, "Failed to reload rules",
					"error", err,
				)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (e *Engine) updateRuleGauge() {
	total, _ := e.registry.Counts()
	metrics.SetActiveRules(total)
}

func ruleKey(r rules.FilterRule) string {
	return r.Bucket() + "/" + r.ID
}
