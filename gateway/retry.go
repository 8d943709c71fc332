package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

type RetryPolicy struct {
	// Attempts counts the first call, so 3 means up to two retries.
	Attempts int
	Delay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Delay: 2 * time.Second}
}

// Options builds the backoff options for a fixed delay and a bounded number
// of attempts. Elapsed time is not limited.
func (p RetryPolicy) Options() []backoff.RetryOption {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	return []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Delay)),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
	}
}

// Retry runs op under the policy. Errors marked with backoff.Permanent stop
// immediately. The error of the last attempt is returned, also when ctx ends
// between attempts.
func Retry(ctx context.Context, p RetryPolicy, op func() error, notify backoff.Notify) error {
	var last error
	opts := p.Options()
	if notify != nil {
		opts = append(opts, backoff.WithNotify(notify))
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		last = op()
		return struct{}{}, last
	}, opts...)
	if err == nil {
		return nil
	}
	if last == nil {
		return err
	}
	var perm *backoff.PermanentError
	if errors.As(last, &perm) {
		return perm.Unwrap()
	}
	return last
}

// RetryingCaller retries timeouts and connection failures with a fixed delay.
type RetryingCaller struct {
	next   Caller
	policy RetryPolicy
	logger *slog.Logger
}

func NewRetryingCaller(next Caller, policy RetryPolicy, logger *slog.Logger) *RetryingCaller {
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}
	return &RetryingCaller{
		next:   next,
		policy: policy,
		logger: logger,
	}
}

func (r *RetryingCaller) Call(ctx context.Context, endpoint, tool string, args any, out any) error {
	attempt := 0
	return Retry(ctx, r.policy, func() error {
		attempt++
		err := r.next.Call(ctx, endpoint, tool, args, out)
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, func(err error, next time.Duration) {
		r.logger.Warn("retrying remote call",
			slog.String("tool", tool),
			slog.String("endpoint", endpoint),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", r.policy.Attempts),
			slog.Duration("delay", next),
			slog.Any("error", err),
		)
	})
}
