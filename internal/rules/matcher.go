package rules

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-set/v2"
	"github.com/samber/lo"

	"notifilter/internal/events"
	"notifilter/pkg/cel"
)

// Matcher evaluates rule conditions. It is safe for concurrent use.
type Matcher struct {
	evaluator *cel.Evaluator
}

func NewMatcher(evaluator *cel.Evaluator) *Matcher {
	return &Matcher{evaluator: evaluator}
}

// Match evaluates every set condition key; all of them must hold.
func (m *Matcher) Match(ctx context.Context, cond Condition, event events.NotificationEvent, fc events.FilterContext) (bool, error) {
	if len(cond.Source) > 0 && !lo.Contains(cond.Source, string(event.Source)) {
		return false, nil
	}

	if len(cond.EventType) > 0 && !lo.Contains(cond.EventType, event.EventType) {
		return false, nil
	}

	// without a channel in context the channel condition is ignored
	if len(cond.ChannelID) > 0 && fc.ChannelID != "" && !lo.Contains(cond.ChannelID, fc.ChannelID) {
		return false, nil
	}

	if cond.PRStatus == "draft" {
		if event.Source != events.SourceGitHub || !event.PullRequest().Draft() {
			return false, nil
		}
	}

	if len(cond.ChangedFields) > 0 {
		if event.Source != events.SourceJira {
			return false, nil
		}
		changed := set.From(event.Issue().ChangedFields())
		if !lo.SomeBy(cond.ChangedFields, changed.Contains) {
			return false, nil
		}
	}

	// every changed field must be listed; an update without changelog never matches
	if len(cond.OnlyChanged) > 0 {
		if event.Source != events.SourceJira {
			return false, nil
		}
		changed := event.Issue().ChangedFields()
		if len(changed) == 0 || !set.From(cond.OnlyChanged).ContainsSlice(changed) {
			return false, nil
		}
	}

	if len(cond.Severity) > 0 && !lo.Contains(cond.Severity, event.Severity()) {
		return false, nil
	}

	if cond.Expression != "" {
		if m.evaluator == nil {
			return false, fmt.Errorf("expression condition without evaluator")
		}
		ok, err := m.evaluator.EvaluateCondition(ctx, cond.Expression, event, fc)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}

	return true, nil
}
