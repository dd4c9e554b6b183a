package rules

import (
	"errors"
	"fmt"
	"strings"
)

// InvalidRule is a stored rule that could not be decoded or validated.
type InvalidRule struct {
	Index int
	ID    string
	Err   error
}

func (r InvalidRule) String() string {
	if r.ID == "" {
		return fmt.Sprintf("rules[%d]: %v", r.Index, r.Err)
	}
	return fmt.Sprintf("rules[%d] (%s): %v", r.Index, r.ID, r.Err)
}

// InvalidRulesError is returned alongside the rules that did load. Callers
// that can run on a partial set use SkippedRules to tell it apart from a
// failed load.
type InvalidRulesError struct {
	Source  string
	Invalid []InvalidRule
}

func (e *InvalidRulesError) Error() string {
	parts := make([]string, len(e.Invalid))
	for i, r := range e.Invalid {
		parts[i] = r.String()
	}
	return fmt.Sprintf("%s: skipped %d invalid rule(s): %s", e.Source, len(e.Invalid), strings.Join(parts, "; "))
}

func invalidRules(source string, invalid []InvalidRule) error {
	if len(invalid) == 0 {
		return nil
	}
	return &InvalidRulesError{Source: source, Invalid: invalid}
}

// SkippedRules reports the rules dropped by a partial load. ok is false when
// err is nil or a hard failure.
func SkippedRules(err error) ([]InvalidRule, bool) {
	var invalid *InvalidRulesError
	if !errors.As(err, &invalid) {
		return nil, false
	}
	return invalid.Invalid, true
}
