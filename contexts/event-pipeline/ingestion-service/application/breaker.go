package application

import (
	"sync"
	"time"

	"pulse/contexts/event-pipeline/ingestion-service/ports"
)

// BreakerState is the circuit breaker state for the broker dependency.
type BreakerState string

const (
	BreakerClosed   BreakerState = "CLOSED"
	BreakerOpen     BreakerState = "OPEN"
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)

// CircuitBreaker guards broker publishes. One instance is constructed at
// process start and shared by reference across all intake call sites: it
// tracks the health of a single shared downstream dependency, not of any one
// request.
//
// CLOSED turns OPEN after FailureThreshold consecutive failures. While OPEN,
// Allow rejects immediately until Cooldown elapses, then the breaker admits
// up to HalfOpenProbes trial calls (HALF_OPEN). A trial success closes the
// breaker; a trial failure reopens it and restarts the cooldown.
type CircuitBreaker struct {
	FailureThreshold int
	Cooldown         time.Duration
	HalfOpenProbes   int
	Clock            ports.Clock

	mu          sync.Mutex
	state       BreakerState
	failures    int
	openedAt    time.Time
	probesInUse int
}

// NewCircuitBreaker returns a closed breaker with defaulted thresholds.
func NewCircuitBreaker(failureThreshold int, cooldown time.Duration, halfOpenProbes int, clock ports.Clock) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	if halfOpenProbes <= 0 {
		halfOpenProbes = 2
	}
	return &CircuitBreaker{
		FailureThreshold: failureThreshold,
		Cooldown:         cooldown,
		HalfOpenProbes:   halfOpenProbes,
		Clock:            clock,
		state:            BreakerClosed,
	}
}

// Allow reports whether a call may attempt the broker right now.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.Cooldown {
			return false
		}
		b.state = BreakerHalfOpen
		b.probesInUse = 0
		fallthrough
	case BreakerHalfOpen:
		if b.probesInUse >= b.HalfOpenProbes {
			return false
		}
		b.probesInUse++
		return true
	default:
		return true
	}
}

// RecordSuccess reports a successful broker call.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerHalfOpen:
		b.state = BreakerClosed
		b.failures = 0
	case BreakerClosed:
		b.failures = 0
	}
}

// RecordFailure reports a failed broker call. In HALF_OPEN a single failed
// trial reopens the breaker.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerHalfOpen:
		b.open()
	case BreakerClosed:
		b.failures++
		if b.failures >= b.FailureThreshold {
			b.open()
		}
	}
}

// State returns the current breaker state.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// RetryAfter returns the remaining cooldown as a whole-second hint for
// callers rejected while the breaker is open. Never less than one second.
func (b *CircuitBreaker) RetryAfter() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != BreakerOpen {
		return 1
	}
	remaining := b.Cooldown - b.now().Sub(b.openedAt)
	seconds := int(remaining.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

func (b *CircuitBreaker) open() {
	b.state = BreakerOpen
	b.openedAt = b.now()
	b.failures = 0
}

func (b *CircuitBreaker) now() time.Time {
	if b.Clock != nil {
		return b.Clock.Now()
	}
	return time.Now()
}
