package process

import (
	"context"
	"time"
)

// RetryPolicy bounds how often an operation is attempted and how long each attempt may take
type RetryPolicy struct {
	MaxAttempts int
	// Timeouts holds the per-attempt budget; the last value repeats for later attempts
	Timeouts []time.Duration
}

// Timeout returns the budget for the given zero-based attempt
func (p RetryPolicy) Timeout(attempt int) time.Duration {
	if len(p.Timeouts) == 0 {
		return 0
	}
	if attempt >= len(p.Timeouts) {
		return p.Timeouts[len(p.Timeouts)-1]
	}
	return p.Timeouts[attempt]
}

// Result is either a successful value or the last error after all attempts were spent
type Result[T any] struct {
	Value    T
	Attempts int
	Err      error
}

// Exhausted reports whether every attempt failed
func (r Result[T]) Exhausted() bool {
	return r.Err != nil
}

// Retry calls fn until it succeeds, the policy's attempts run out, or ctx is done.
// fn receives the zero-based attempt number and that attempt's timeout.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context, attempt int, timeout time.Duration) (T, error)) Result[T] {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var result Result[T]
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if result.Err == nil {
				result.Err = err
			}
			return result
		}

		result.Attempts = attempt + 1
		value, err := fn(ctx, attempt, policy.Timeout(attempt))
		if err == nil {
			return Result[T]{Value: value, Attempts: attempt + 1}
		}
		result.Err = err
	}

	return result
}
