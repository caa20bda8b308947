package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDoSucceedsAfterFailures(t *testing.T) {
	t.Parallel()

	calls := 0
	p := Policy{MaxAttempts: 5, Backoff: time.Millisecond}
	err := p.Do(context.Background(), func(attempt int) error {
		calls++
		assert.Equal(t, calls, attempt)
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhausts(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	p := Policy{MaxAttempts: 3, Backoff: time.Millisecond}
	err := p.Do(context.Background(), func(int) error { return boom })

	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, boom)
}

func TestDoRespectsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := Policy{MaxAttempts: 10, Backoff: time.Hour}
	err := p.Do(ctx, func(int) error { return errors.New("boom") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoRejectsZeroAttempts(t *testing.T) {
	t.Parallel()

	err := Policy{}.Do(context.Background(), func(int) error { return nil })
	assert.Error(t, err)
}
