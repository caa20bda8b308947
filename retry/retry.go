// Package retry provides the bounded retry-with-backoff policy used by the
// data-completeness poll and the kline gather loop.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned once MaxAttempts have failed; it wraps the last
// attempt's error.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Policy is an explicit bounded-retry policy: at most MaxAttempts calls,
// sleeping Backoff between failures.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Do calls fn until it succeeds, the policy is exhausted, or ctx is done.
// The attempt number passed to fn starts at 1.
func (p Policy) Do(ctx context.Context, fn func(attempt int) error) error {
	if p.MaxAttempts <= 0 {
		return fmt.Errorf("retry: MaxAttempts must be positive, got %d", p.MaxAttempts)
	}

	var last error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if last = fn(attempt); last == nil {
			return nil
		}

		if attempt == p.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Backoff):
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, p.MaxAttempts, last)
}
