// Package providerretry implements the exponential-backoff retry loop that
// wraps every provider call, observable through ProviderOperationHooks. It
// mirrors the shape of the project's general-purpose internal/retry package
// but keys retryability off providererr.Error.Retryable and fires the
// provider-specific hook quadruple at each attempt boundary.
package providerretry

import (
	"context"
	"time"

	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
	"github.com/philo-groves/fiddlesticks/internal/providererr"
)

// Policy configures the backoff schedule.
type Policy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultPolicy matches the reference implementation's defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       3,
		InitialBackoff:    200 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 200 * time.Millisecond
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 5 * time.Second
	}
	if p.BackoffMultiplier <= 0 {
		p.BackoffMultiplier = 2.0
	}
	return p
}

// Backoff returns the delay before the given 1-indexed attempt number,
// capped at MaxBackoff.
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.normalized()
	if attempt <= 0 {
		attempt = 1
	}
	delay := float64(p.InitialBackoff)
	for i := 1; i < attempt; i++ {
		delay *= p.BackoffMultiplier
	}
	if delay > float64(p.MaxBackoff) {
		delay = float64(p.MaxBackoff)
	}
	return time.Duration(delay)
}

// Do executes op, retrying on retryable *providererr.Error failures per
// policy, firing hooks at every attempt boundary. op is called with an
// attempt counter starting at 1.
func Do[T any](ctx context.Context, provider fidprovider.ProviderID, policy Policy, hooks fidprovider.ProviderOperationHooks, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	if hooks == nil {
		hooks = fidprovider.NoopProviderOperationHooks{}
	}
	policy = policy.normalized()
	start := time.Now()

	var zero T
	for attempt := 1; ; attempt++ {
		hooks.OnAttemptStart(provider, attempt)

		if err := ctx.Err(); err != nil {
			return zero, err
		}

		value, err := op(ctx, attempt)
		if err == nil {
			hooks.OnSuccess(provider, attempt, time.Since(start))
			return value, nil
		}

		perr, ok := asProviderError(err)
		if !ok {
			perr = providererr.Transport(err.Error(), err)
		}

		if !perr.Retryable() || attempt >= policy.MaxAttempts {
			hooks.OnFailure(provider, attempt, time.Since(start), perr)
			return zero, perr
		}

		delay := policy.Backoff(attempt)
		hooks.OnRetryScheduled(provider, attempt, delay, perr)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func asProviderError(err error) (*providererr.Error, bool) {
	pe, ok := err.(*providererr.Error)
	return pe, ok
}
