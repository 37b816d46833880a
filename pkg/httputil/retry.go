package httputil

import (
	"context"
	"errors"
	"time"
)

// Default retry policy used by [RetryWithBackoff].
const (
	DefaultAttempts = 3
	DefaultDelay    = time.Second
	DefaultMaxDelay = 8 * time.Second
)

// RetryableError wraps an error to indicate it should trigger a retry.
// Wrap transient failures (network timeouts, 5xx responses) with this type
// so that [Retry] knows to attempt the operation again.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable marks err as transient. Retryable(nil) is nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err, or any error it wraps, is a [RetryableError].
func IsRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}

// Policy bounds a retry loop.
type Policy struct {
	Attempts int           // total attempts, at least 1
	Delay    time.Duration // delay before the second attempt
	MaxDelay time.Duration // cap for the doubled delay; 0 means uncapped
}

// Retry executes fn until it succeeds, fails with a non-retryable error, or
// the policy's attempts are exhausted. The delay doubles after each failed
// attempt. It returns the last error, or ctx.Err() if ctx ends while waiting.
func Retry(ctx context.Context, p Policy, fn func() error) error {
	attempts := max(p.Attempts, 1)
	delay := p.Delay
	var lastErr error

	for i := range attempts {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !IsRetryable(err) {
			return err
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
				if p.MaxDelay > 0 && delay > p.MaxDelay {
					delay = p.MaxDelay
				}
			}
		}
	}
	return lastErr
}

// RetryWithBackoff runs [Retry] with the default policy: 3 attempts starting
// at a 1 second delay.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return Retry(ctx, Policy{Attempts: DefaultAttempts, Delay: DefaultDelay, MaxDelay: DefaultMaxDelay}, fn)
}
