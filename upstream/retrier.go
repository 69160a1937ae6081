/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package upstream

import (
	"context"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/acronis/go-geogate/log"
	"github.com/acronis/go-geogate/retry"
)

// Retrier runs a bounded number of attempts through a Doer.
// Retryable outcomes wait for the Retry-After hint when present, otherwise for the policy's next backoff.
// Permanent outcomes are returned immediately.
type Retrier struct {
	doer        Doer
	maxAttempts int
	policy      retry.Policy
	logger      log.FieldLogger
}

// RetrierOpts provides options for NewRetrierWithOpts.
type RetrierOpts struct {
	// BackoffPolicy produces delays between attempts.
	// Exponential backoff min(1s*2^attempt, 10s) is used if nil.
	BackoffPolicy retry.Policy

	Logger log.FieldLogger
}

// NewRetrier creates a Retrier making at most maxAttempts attempts.
func NewRetrier(doer Doer, maxAttempts int) *Retrier {
	return NewRetrierWithOpts(doer, maxAttempts, RetrierOpts{})
}

// NewRetrierWithOpts creates a Retrier with the provided options.
func NewRetrierWithOpts(doer Doer, maxAttempts int, opts RetrierOpts) *Retrier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if opts.BackoffPolicy == nil {
		opts.BackoffPolicy = retry.NewExponentialBackoffPolicy(DefaultBackoffInitialInterval, DefaultBackoffMaxInterval, 0)
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	return &Retrier{doer: doer, maxAttempts: maxAttempts, policy: opts.BackoffPolicy, logger: opts.Logger}
}

// Call performs the request, retrying transient failures.
// When attempts are exhausted the last failure is returned flagged as retryable with its original status.
// Cancellation of ctx interrupts waiting between attempts.
func (r *Retrier) Call(ctx context.Context, endpoint string, params url.Values) Result {
	bf := r.policy.NewBackOff()
	var last Outcome
	attempt := 0
	for attempt < r.maxAttempts {
		last = r.doer.Do(ctx, endpoint, params)
		attempt++

		switch last.Kind {
		case KindSuccess:
			return Result{Data: last.Data, Status: last.Status, Attempts: attempt}
		case KindPermanent:
			return Result{Status: last.Status, Retryable: false, Attempts: attempt, Err: last.Err}
		}

		// Advance on every retryable outcome so the n-th wait is backoff(n) even after a Retry-After.
		delay := bf.NextBackOff()
		if last.HasRetryAfter {
			delay = last.RetryAfter
		}
		if attempt == r.maxAttempts || delay == backoff.Stop {
			break
		}

		r.logger.Warn("upstream attempt failed, retrying",
			log.String("endpoint", endpoint),
			log.Int("attempt", attempt),
			log.Int("status", last.Status),
			log.Duration("delay", delay),
			log.Error(last.Err),
		)
		if err := sleepContext(ctx, delay); err != nil {
			r.logger.Warn("upstream retry loop interrupted", log.String("endpoint", endpoint), log.Error(err))
			break
		}
	}
	r.logger.Error("upstream attempts exhausted",
		log.String("endpoint", endpoint),
		log.Int("attempts", attempt),
		log.Int("status", last.Status),
		log.Error(last.Err),
	)
	return Result{Status: last.Status, Retryable: true, Attempts: attempt, Err: last.Err}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
