package rules

import (
	"context"

	"notifilter/internal/config"
	"notifilter/pkg/circuitbreaker"
)

// CircuitBreakerRepository guards a Store with a breaker named postgres-rules.
type CircuitBreakerRepository struct {
	repo Store
	cb   *circuitbreaker.Wrapper
}

func NewCircuitBreakerRepository(repo Store, cfg config.CircuitBreakerConfig) *CircuitBreakerRepository {
	return &CircuitBreakerRepository{
		repo: repo,
		cb:   circuitbreaker.FromConfig("postgres-rules", cfg),
	}
}

// LoadRules trips the breaker only on failed loads; skipped rows are passed
// through with the rules that loaded.
func (r *CircuitBreakerRepository) LoadRules(ctx context.Context) ([]FilterRule, error) {
	var partial error
	loaded, err := circuitbreaker.Do(ctx, r.cb, func() ([]FilterRule, error) {
		rules, err := r.repo.LoadRules(ctx)
		if _, ok := SkippedRules(err); ok {
			partial = err
			return rules, nil
		}
		return rules, err
	})
	if err != nil {
		return nil, err
	}
	return loaded, partial
}

func (r *CircuitBreakerRepository) SaveRule(ctx context.Context, rule FilterRule) error {
	_, err := circuitbreaker.Do(ctx, r.cb, func() (struct{}, error) {
		return struct{}{}, r.repo.SaveRule(ctx, rule)
	})
	return err
}

func (r *CircuitBreakerRepository) DeleteRule(ctx context.Context, id, teamID string) error {
	_, err := circuitbreaker.Do(ctx, r.cb, func() (struct{}, error) {
		return struct{}{}, r.repo.DeleteRule(ctx, id, teamID)
	})
	return err
}

func (r *CircuitBreakerRepository) State() string {
	return r.cb.State()
}
