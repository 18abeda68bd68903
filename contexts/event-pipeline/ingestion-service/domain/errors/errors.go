package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidEvent             = errors.New("invalid event payload")
	ErrEmptyBatch               = errors.New("bulk request must contain at least one event")
	ErrBatchTooLarge            = errors.New("bulk request exceeds maximum batch size")
	ErrCircuitOpen              = errors.New("broker circuit breaker is open")
	ErrRepositoryInvariantBroke = errors.New("repository invariant violated")
)

// ServiceUnavailableError is returned when the broker cannot accept events
// (circuit breaker open, publish timeout, retries exhausted). RetryAfterSeconds
// is the caller-facing backpressure hint surfaced as a Retry-After header.
type ServiceUnavailableError struct {
	Message           string
	RetryAfterSeconds int
	Cause             error
}

func (e *ServiceUnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ServiceUnavailableError) Unwrap() error { return e.Cause }

// AsServiceUnavailable reports whether err carries a ServiceUnavailableError
// anywhere in its chain.
func AsServiceUnavailable(err error) (*ServiceUnavailableError, bool) {
	var target *ServiceUnavailableError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
