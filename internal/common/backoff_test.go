package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffPolicy_Delay(t *testing.T) {
	p := BackoffPolicy{Base: time.Second, Factor: 2.0, Cap: 30 * time.Second}

	t.Run("grows exponentially", func(t *testing.T) {
		// Jitter is +/-20%, so check against widened bounds
		for attempt, base := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
			d := p.Delay(attempt)
			assert.GreaterOrEqual(t, d, time.Duration(float64(base)*0.79))
			assert.LessOrEqual(t, d, time.Duration(float64(base)*1.21))
		}
	})

	t.Run("caps at maximum", func(t *testing.T) {
		d := p.Delay(20)
		assert.LessOrEqual(t, d, time.Duration(float64(30*time.Second)*1.21))
	})
}

func TestBackoffPolicy_Retry(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		p := BackoffPolicy{MaxRetries: 3, Base: time.Millisecond, Factor: 2.0, Cap: 10 * time.Millisecond}

		calls := 0
		err := p.Retry(context.Background(), func() error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		p := BackoffPolicy{MaxRetries: 2, Base: time.Millisecond, Factor: 2.0, Cap: 10 * time.Millisecond}

		calls := 0
		err := p.Retry(context.Background(), func() error {
			calls++
			return errors.New("persistent")
		})

		require.Error(t, err)
		assert.Equal(t, 3, calls) // 1 initial + 2 retries
	})

	t.Run("non-retryable errors short-circuit", func(t *testing.T) {
		fatal := errors.New("fatal")
		p := BackoffPolicy{
			MaxRetries: 5,
			Base:       time.Millisecond,
			Factor:     2.0,
			Cap:        10 * time.Millisecond,
			Retryable:  func(err error) bool { return !errors.Is(err, fatal) },
		}

		calls := 0
		err := p.Retry(context.Background(), func() error {
			calls++
			return fatal
		})

		require.ErrorIs(t, err, fatal)
		assert.Equal(t, 1, calls)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		p := BackoffPolicy{MaxRetries: 10, Base: time.Second, Factor: 2.0, Cap: 30 * time.Second}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		err := p.Retry(ctx, func() error { return errors.New("transient") })
		require.ErrorIs(t, err, context.Canceled)
	})
}
