package ai

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryPolicy bounds how often a request is attempted. MaxAttempts counts the
// first try, so 1 means no retries.
type retryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func newRetryPolicy(c RuntimeConfig, defBase, defMax time.Duration) retryPolicy {
	p := retryPolicy{MaxAttempts: c.RetryMax, BaseDelay: c.BaseDelay, MaxDelay: c.MaxDelay}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defBase
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defMax
	}
	return p
}

// run calls op until it succeeds, returns a backoff.Permanent error, the
// attempts are used up or ctx is done.
func (p retryPolicy) run(ctx context.Context, op backoff.Operation) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxInterval = p.MaxDelay
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = 0
	bo := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx)
	return backoff.Retry(op, bo)
}
