/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package redelivery

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy defines a backoff strategy for repeating failed handler calls.
type RetryPolicy interface {
	NewBackOff() backoff.BackOff
}

// RetryPolicyFunc is an adapter to allow the use of ordinary functions as RetryPolicy.
type RetryPolicyFunc func() backoff.BackOff

// NewBackOff implements RetryPolicy.
func (f RetryPolicyFunc) NewBackOff() backoff.BackOff {
	return f()
}

// ExponentialRetryPolicy repeats up to MaxAttempts times with exponentially growing delays.
// Zero MaxAttempts means retrying until the backoff's max elapsed time.
type ExponentialRetryPolicy struct {
	InitialInterval time.Duration
	MaxAttempts     int
}

// NewBackOff implements RetryPolicy.
func (p ExponentialRetryPolicy) NewBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	var bf backoff.BackOff = eb
	if p.MaxAttempts > 0 {
		bf = backoff.WithMaxRetries(eb, uint64(p.MaxAttempts))
	}
	bf.Reset()
	return bf
}

func doWithRetry(
	ctx context.Context,
	policy RetryPolicy,
	isRetryable func(error) bool,
	notify backoff.Notify,
	fn func(ctx context.Context) error,
) error {
	var bf backoff.BackOff = &backoff.StopBackOff{}
	if policy != nil {
		bf = policy.NewBackOff()
	}
	bctx := backoff.WithContext(bf, ctx)
	op := func() error {
		err := fn(bctx.Context())
		if err != nil && isRetryable != nil && !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.RetryNotify(op, bctx, notify)
}
