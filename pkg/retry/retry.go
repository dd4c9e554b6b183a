package retry

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"

	"notifilter/internal/config"
)

// FatalError is implemented by errors that must not be retried. Application
// validation errors from pkg/errors satisfy it.
type FatalError interface {
	error
	IsFatal() bool
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }
func (e *permanentError) IsFatal() bool { return true }

// Permanent marks err so Do returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func isFatal(err error) bool {
	var fatalErr FatalError
	return errors.As(err, &fatalErr) && fatalErr.IsFatal()
}

type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  5 * time.Minute,
	}
}

// PolicyFromConfig fills unset fields of cfg from DefaultPolicy. The elapsed
// time limit stays off unless configured.
func PolicyFromConfig(cfg config.RetryConfig) Policy {
	policy := DefaultPolicy()
	policy.MaxElapsedTime = cfg.MaxElapsedTime

	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialInterval > 0 {
		policy.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		policy.MaxInterval = cfg.MaxInterval
	}
	if cfg.Multiplier > 0 {
		policy.Multiplier = cfg.Multiplier
	}
	return policy
}

// Delay is the wait after the given attempt, capped at MaxInterval.
func (p Policy) Delay(attempt int) time.Duration {
	d := float64(p.InitialInterval) * math.Pow(p.Multiplier, float64(attempt))
	if d > float64(p.MaxInterval) {
		return p.MaxInterval
	}
	return time.Duration(d)
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval
	exp.Multiplier = p.Multiplier
	exp.MaxElapsedTime = p.MaxElapsedTime

	return backoff.WithMaxRetries(backoff.WithContext(exp, ctx), uint64(p.MaxAttempts-1))
}

// NotifyFunc is called before each retry with the failed attempt number.
type NotifyFunc func(attempt int, err error, nextDelay time.Duration)

func Do(ctx context.Context, policy Policy, fn func() error) error {
	return DoNotify(ctx, policy, fn, nil)
}

// DoNotify runs fn until it succeeds, returns a fatal error, the attempts run
// out or ctx is done.
func DoNotify(ctx context.Context, policy Policy, fn func() error, notify NotifyFunc) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultPolicy().MaxAttempts
	}

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if isFatal(err) {
			return backoff.Permanent(err)
		}
		if notify != nil && attempt < policy.MaxAttempts {
			notify(attempt, err, policy.Delay(attempt))
		}
		return err
	}, policy.backOff(ctx))
}
