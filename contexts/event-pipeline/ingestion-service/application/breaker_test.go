package application

import (
	"testing"
	"time"
)

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time { return c.now }

func (c *stepClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestBreaker(clock *stepClock) *CircuitBreaker {
	return NewCircuitBreaker(3, 30*time.Second, 2, clock)
}

func TestBreakerStartsClosed(t *testing.T) {
	breaker := newTestBreaker(&stepClock{now: time.Unix(1771156800, 0)})
	if breaker.State() != BreakerClosed {
		t.Fatalf("expected CLOSED, got %s", breaker.State())
	}
	if !breaker.Allow() {
		t.Fatal("expected closed breaker to allow calls")
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	breaker := newTestBreaker(&stepClock{now: time.Unix(1771156800, 0)})

	breaker.RecordFailure()
	breaker.RecordFailure()
	if breaker.State() != BreakerClosed {
		t.Fatalf("expected CLOSED below threshold, got %s", breaker.State())
	}
	breaker.RecordFailure()
	if breaker.State() != BreakerOpen {
		t.Fatalf("expected OPEN at threshold, got %s", breaker.State())
	}
	if breaker.Allow() {
		t.Fatal("expected open breaker to reject calls")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	breaker := newTestBreaker(&stepClock{now: time.Unix(1771156800, 0)})

	breaker.RecordFailure()
	breaker.RecordFailure()
	breaker.RecordSuccess()
	breaker.RecordFailure()
	breaker.RecordFailure()
	if breaker.State() != BreakerClosed {
		t.Fatalf("expected interleaved success to reset the streak, got %s", breaker.State())
	}
}

func TestBreakerHalfOpensAfterCooldown(t *testing.T) {
	clock := &stepClock{now: time.Unix(1771156800, 0)}
	breaker := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		breaker.RecordFailure()
	}
	clock.Advance(29 * time.Second)
	if breaker.Allow() {
		t.Fatal("expected rejection before cooldown elapses")
	}

	clock.Advance(2 * time.Second)
	if !breaker.Allow() {
		t.Fatal("expected a trial call after cooldown")
	}
	if breaker.State() != BreakerHalfOpen {
		t.Fatalf("expected HALF_OPEN, got %s", breaker.State())
	}
}

func TestBreakerHalfOpenLimitsProbes(t *testing.T) {
	clock := &stepClock{now: time.Unix(1771156800, 0)}
	breaker := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		breaker.RecordFailure()
	}
	clock.Advance(31 * time.Second)

	if !breaker.Allow() {
		t.Fatal("expected first probe to pass")
	}
	if !breaker.Allow() {
		t.Fatal("expected second probe to pass")
	}
	if breaker.Allow() {
		t.Fatal("expected third call to be rejected while probes are outstanding")
	}
}

func TestBreakerTrialSuccessCloses(t *testing.T) {
	clock := &stepClock{now: time.Unix(1771156800, 0)}
	breaker := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		breaker.RecordFailure()
	}
	clock.Advance(31 * time.Second)
	if !breaker.Allow() {
		t.Fatal("expected a trial call after cooldown")
	}

	breaker.RecordSuccess()
	if breaker.State() != BreakerClosed {
		t.Fatalf("expected trial success to close the breaker, got %s", breaker.State())
	}
	if !breaker.Allow() {
		t.Fatal("expected closed breaker to allow calls again")
	}
}

func TestBreakerTrialFailureReopens(t *testing.T) {
	clock := &stepClock{now: time.Unix(1771156800, 0)}
	breaker := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		breaker.RecordFailure()
	}
	clock.Advance(31 * time.Second)
	if !breaker.Allow() {
		t.Fatal("expected a trial call after cooldown")
	}

	breaker.RecordFailure()
	if breaker.State() != BreakerOpen {
		t.Fatalf("expected trial failure to reopen, got %s", breaker.State())
	}
	if breaker.Allow() {
		t.Fatal("expected rejection right after reopening")
	}

	clock.Advance(31 * time.Second)
	if !breaker.Allow() {
		t.Fatal("expected cooldown to restart after reopening")
	}
}

func TestBreakerRetryAfterTracksRemainingCooldown(t *testing.T) {
	clock := &stepClock{now: time.Unix(1771156800, 0)}
	breaker := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		breaker.RecordFailure()
	}
	if got := breaker.RetryAfter(); got != 30 {
		t.Fatalf("expected 30s hint right after opening, got %d", got)
	}

	clock.Advance(20 * time.Second)
	if got := breaker.RetryAfter(); got != 10 {
		t.Fatalf("expected 10s hint mid-cooldown, got %d", got)
	}

	clock.Advance(15 * time.Second)
	if got := breaker.RetryAfter(); got != 1 {
		t.Fatalf("expected hint to floor at 1s, got %d", got)
	}
}
