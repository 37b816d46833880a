package httputil

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

var errTransient = errors.New("connection reset")

func fastPolicy(attempts int) Policy {
	return Policy{Attempts: attempts, Delay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestRetryableError(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should return nil")
	}

	err := Retryable(errTransient)
	if !IsRetryable(err) {
		t.Error("IsRetryable should return true for wrapped error")
	}
	if !IsRetryable(fmt.Errorf("fetch: %w", err)) {
		t.Error("IsRetryable should see through wrapping")
	}
	if err.Error() != errTransient.Error() {
		t.Errorf("Error message should be preserved: %s", err.Error())
	}
	if !errors.Is(err, errTransient) {
		t.Error("Unwrap should expose the cause")
	}
	if IsRetryable(errTransient) {
		t.Error("IsRetryable should return false for unwrapped error")
	}
}

func TestRetry(t *testing.T) {
	permanent := errors.New("not found")

	tests := []struct {
		name      string
		attempts  int
		failures  int
		err       error
		wantCalls int
		wantErr   error
	}{
		{"success first try", 3, 0, nil, 1, nil},
		{"recovers after transient", 3, 2, Retryable(errTransient), 3, nil},
		{"exhausts attempts", 3, 5, Retryable(errTransient), 3, errTransient},
		{"permanent stops immediately", 3, 5, permanent, 1, permanent},
		{"zero attempts means one", 0, 5, Retryable(errTransient), 1, errTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(context.Background(), fastPolicy(tt.attempts), func() error {
				calls++
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRetryContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, func() error {
		return Retryable(errTransient)
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Should return context error: %v", err)
	}
}
