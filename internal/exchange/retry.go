package exchange

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"gitlab.com/yelinaung/fx-calc/internal/logger"
)

// RetryPolicy configures Retry.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	// Jitter is the backoff randomization factor; 0 disables it.
	Jitter    float64
	Retryable func(error) bool
}

// DefaultRetryPolicy retries three times starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2,
		Jitter:      0.2,
		Retryable:   IsRetryable,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		p.Jitter = 0
	}
	if p.Retryable == nil {
		p.Retryable = IsRetryable
	}
	return p
}

// Retry runs op until it succeeds, fails with an error the policy does not
// consider retryable, or MaxAttempts is reached. After failed attempt n it
// sleeps roughly BaseDelay*Multiplier^(n-1). The last error is returned
// unwrapped.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(context.Context) (T, error)) (T, error) {
	p := policy.normalized()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = p.Jitter

	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		res, err := op(ctx)
		if err != nil && !p.Retryable(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Log.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_attempts", p.MaxAttempts).
				Dur("backoff", wait).
				Msg("Exchange provider call failed, retrying")
		}),
	)
}

// Executor paces and retries provider calls. Each retry attempt goes back
// through the throttle queue.
type Executor struct {
	throttler *Throttler
	policy    RetryPolicy
}

// NewExecutor builds an executor owning a new throttler.
func NewExecutor(requestsPerSecond float64, policy RetryPolicy) *Executor {
	return &Executor{
		throttler: NewThrottler(requestsPerSecond, defaultQueueSize),
		policy:    policy,
	}
}

// Close stops the executor's throttler.
func (e *Executor) Close() {
	if e != nil {
		e.throttler.Close()
	}
}

// Execute runs op with e's throttle and retry policy. A nil executor runs op
// directly.
func Execute[T any](ctx context.Context, e *Executor, op func(context.Context) (T, error)) (T, error) {
	if e == nil {
		return op(ctx)
	}
	return Retry(ctx, e.policy, func(ctx context.Context) (T, error) {
		return Throttle(ctx, e.throttler, op)
	})
}
