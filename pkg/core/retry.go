package core

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy configures Retry.
type RetryPolicy struct {
	// Attempts is the total number of calls, the first included (default: 5).
	Attempts int

	// InitialDelay is the wait before the second call (default: 200ms).
	InitialDelay time.Duration

	// MaxDelay caps the doubling delay (default: 5s).
	MaxDelay time.Duration
}

// DefaultRetryPolicy is used by Retry when the policy is zero.
var DefaultRetryPolicy = RetryPolicy{
	Attempts:     5,
	InitialDelay: 200 * time.Millisecond,
	MaxDelay:     5 * time.Second,
}

// Retry calls fn until it succeeds, fails with an error other than
// ErrStoreUnavailable, runs out of attempts or ctx is done.
//
// The engine never retries on its own; hosts use Retry around Open or
// individual calls when a store may come up late.
func Retry(ctx context.Context, policy RetryPolicy, fn func(context.Context) error) error {
	if policy.Attempts <= 0 {
		policy.Attempts = DefaultRetryPolicy.Attempts
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = DefaultRetryPolicy.InitialDelay
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = DefaultRetryPolicy.MaxDelay
	}

	delay := policy.InitialDelay
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil || !errors.Is(err, ErrStoreUnavailable) || attempt >= policy.Attempts {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}

		delay *= 2
		if delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}
}
