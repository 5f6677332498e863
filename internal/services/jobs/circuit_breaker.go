package jobs

import (
	"sync"
	"time"
)

// BreakerState is one of the three circuit breaker states
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// CircuitBreaker guards the store boundary. It is a pure state machine:
// closed counts failures, open fails fast until the recovery window
// elapses, half-open lets a single probe through and closes on success.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            BreakerState
	failureCount     int
	failureThreshold int
	recoveryTimeout  time.Duration
	openedAt         time.Time
}

// NewCircuitBreaker creates a closed breaker
func NewCircuitBreaker(failureThreshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		state:            BreakerClosed,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
	}
}

// Allow reports whether a call may proceed. An open breaker whose
// recovery window has elapsed moves to half-open and admits one probe.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed, BreakerHalfOpen:
		return true
	case BreakerOpen:
		if time.Since(cb.openedAt) >= cb.recoveryTimeout {
			cb.state = BreakerHalfOpen
			return true
		}
		return false
	}
	return false
}

// RecordSuccess resets the breaker to closed
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = BreakerClosed
	cb.failureCount = 0
}

// RecordFailure counts a failure; at the threshold, or on any half-open
// probe failure, the breaker opens
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == BreakerHalfOpen {
		cb.open()
		return
	}

	cb.failureCount++
	if cb.failureCount >= cb.failureThreshold {
		cb.open()
	}
}

func (cb *CircuitBreaker) open() {
	cb.state = BreakerOpen
	cb.openedAt = time.Now()
	cb.failureCount = 0
}

// State returns the current state, applying the open-to-half-open
// transition when the recovery window has elapsed
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == BreakerOpen && time.Since(cb.openedAt) >= cb.recoveryTimeout {
		cb.state = BreakerHalfOpen
	}
	return cb.state
}
