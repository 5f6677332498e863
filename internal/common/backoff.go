package common

import (
	"context"
	"math/rand"
	"time"
)

// BackoffPolicy is a stateless retry policy applied around idempotent
// operations. Delays grow exponentially from Base by Factor up to Cap,
// with +/-20% jitter on each sleep.
type BackoffPolicy struct {
	MaxRetries int
	Base       time.Duration
	Factor     float64
	Cap        time.Duration
	// Retryable decides whether the error is worth another attempt.
	// Nil means retry everything.
	Retryable func(error) bool
}

// DefaultBackoffPolicy matches the fetch-stage retry contract
func DefaultBackoffPolicy(maxRetries int) BackoffPolicy {
	return BackoffPolicy{
		MaxRetries: maxRetries,
		Base:       1 * time.Second,
		Factor:     2.0,
		Cap:        30 * time.Second,
	}
}

// Delay computes the sleep before attempt n (0-based retry count)
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	d := float64(p.Base)
	for i := 0; i < attempt; i++ {
		d *= p.Factor
	}
	if capped := float64(p.Cap); d > capped {
		d = capped
	}
	// Jitter spreads retries from concurrent workers
	jitter := 1.0 + (rand.Float64()*0.4 - 0.2)
	return time.Duration(d * jitter)
}

// Retry runs fn up to 1+MaxRetries times, sleeping between attempts.
// Non-retryable errors and context cancellation short-circuit.
func (p BackoffPolicy) Retry(ctx context.Context, fn func() error) error {
	attempts := 1 + p.MaxRetries
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts-1 {
			break
		}

		select {
		case <-time.After(p.Delay(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
