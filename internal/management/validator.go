package management

import (
	"fmt"

	"notifilter/internal/rules"
	"notifilter/pkg/cel"
)

// RuleValidator checks a rule before it reaches the engine, including that
// its expression compiles to a boolean.
type RuleValidator struct {
	evaluator *cel.Evaluator
}

func NewRuleValidator() (*RuleValidator, error) {
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL evaluator: %w", err)
	}
	return &RuleValidator{evaluator: evaluator}, nil
}

func (v *RuleValidator) Validate(rule rules.FilterRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	if rule.Condition.Expression == "" {
		return nil
	}
	if err := v.evaluator.ValidateConditionExpression(rule.Condition.Expression); err != nil {
		return fmt.Errorf("invalid CEL expression: %w", err)
	}
	return nil
}
