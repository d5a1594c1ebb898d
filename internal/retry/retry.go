// Package retry is the caller-side retry policy. Transports never retry on
// their own; scenarios opt in where "eventually" is the expected behaviour.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy bounds how often and how fast an operation is retried.
type Policy struct {
	MaxAttempts uint          `env:"ED_RETRY_MAX_ATTEMPTS" envDefault:"3" yaml:"max_attempts"`
	Delay       time.Duration `env:"ED_RETRY_DELAY" envDefault:"1s" yaml:"delay"`
}

// Window builds a policy that polls every delay until the window closes.
func Window(window, delay time.Duration) Policy {
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	n := uint(window/delay) + 1
	return Policy{MaxAttempts: n, Delay: delay}
}

// ErrNotSatisfied is returned by Until when every attempt reported false.
var ErrNotSatisfied = errors.New("retry: condition not satisfied")

// Stop wraps err so that Do returns it immediately without further attempts.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Notify is called before each retry with the failed attempt's error.
type Notify func(attempt int, err error)

// Do runs op until it succeeds, returns a Stop error, or the policy is
// exhausted. The last error is returned unchanged.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error), notify Notify) (T, error) {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = 1
	}
	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		return op(ctx)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Delay)),
		backoff.WithMaxTries(p.MaxAttempts),
		backoff.WithNotify(func(err error, _ time.Duration) {
			if notify != nil {
				notify(attempt, err)
			}
		}),
	)
}

// Until polls cond until it reports true. An error from cond ends polling
// at once and is returned as is.
func Until(ctx context.Context, p Policy, cond func(ctx context.Context) (bool, error), notify Notify) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		ok, err := cond(ctx)
		if err != nil {
			return struct{}{}, Stop(err)
		}
		if !ok {
			return struct{}{}, ErrNotSatisfied
		}
		return struct{}{}, nil
	}, notify)
	if errors.Is(err, ErrNotSatisfied) {
		return fmt.Errorf("after %d attempt(s): %w", p.MaxAttempts, err)
	}
	return err
}
