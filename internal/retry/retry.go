// Package retry provides a bounded retry combinator for fallible operations.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is wrapped by the error returned once every attempt failed.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Policy bounds how often and how patiently an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first one.
	// Values below 1 are treated as 1.
	MaxAttempts int
	// Delay is the wait before the second attempt.
	Delay time.Duration
	// Multiplier scales Delay after every failed attempt. Values below 1
	// give a fixed delay.
	Multiplier float64
}

// DefaultPolicy returns five attempts with a fixed five second delay.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 5, Delay: 5 * time.Second, Multiplier: 1}
}

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that Do stops retrying and returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls fn until it succeeds, returns a Permanent error, the context is
// done, or the policy's attempts are used up.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) error {
	_, err := Value(ctx, p, func(ctx context.Context, attempt int) (struct{}, error) {
		return struct{}{}, fn(ctx, attempt)
	})
	return err
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	attempts := max(p.MaxAttempts, 1)
	delay := p.Delay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, fmt.Errorf("retry: context cancelled after %d attempts: %w", attempt-1, errors.Join(ctx.Err(), lastErr))
			case <-timer.C:
			}
			if p.Multiplier > 1 {
				delay = time.Duration(float64(delay) * p.Multiplier)
			}
		}

		v, err := fn(ctx, attempt)
		if err == nil {
			return v, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		lastErr = err
	}

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}
