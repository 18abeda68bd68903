package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	domainerrors "pulse/contexts/event-pipeline/ingestion-service/domain/errors"
	"pulse/contexts/event-pipeline/ingestion-service/ports"

	"golang.org/x/sync/errgroup"
)

// RetryPolicy bounds retry loops with exponential backoff.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	BackoffFactor  float64
	MaxElapsed     time.Duration
}

func (p RetryPolicy) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return 3
	}
	return p.MaxAttempts
}

func (p RetryPolicy) initialBackoff() time.Duration {
	if p.InitialBackoff <= 0 {
		return 200 * time.Millisecond
	}
	return p.InitialBackoff
}

func (p RetryPolicy) backoffFactor() float64 {
	if p.BackoffFactor < 1 {
		return 2.0
	}
	return p.BackoffFactor
}

// Backoff returns the wait before retry attempt. attempt is zero-based: the
// wait after the first failure is Backoff(0).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	wait := p.initialBackoff()
	for i := 0; i < attempt; i++ {
		wait = time.Duration(float64(wait) * p.backoffFactor())
	}
	return wait
}

// Producer publishes validated events to the ingestion topic, partitioned by
// user id so all events for one user stay ordered on one partition. Send is
// wrapped in bounded retry plus the shared circuit breaker; SendBatch in the
// breaker only, to bound batch latency. Broker unavailability surfaces as
// ServiceUnavailableError backpressure, never silent loss.
type Producer struct {
	Publisher       ports.BrokerPublisher
	Breaker         *CircuitBreaker
	IDs             ports.IDGenerator
	Topic           string
	AckTimeout      time.Duration
	BatchAckTimeout time.Duration
	Retry           RetryPolicy
	Logger          *slog.Logger
}

const retryAfterHintSeconds = 30

// Send publishes one event synchronously, waiting for the broker ack up to
// AckTimeout per attempt.
func (p Producer) Send(ctx context.Context, msg ports.EventMessage) error {
	logger := ResolveLogger(p.Logger)

	if !p.Breaker.Allow() {
		logger.Error("circuit breaker is open, rejecting event",
			"event", "producer_breaker_open",
			"module", "event-pipeline/ingestion-service",
			"layer", "application",
			"user_id", msg.UserID,
		)
		return p.circuitOpenError()
	}

	value, headers, err := p.encode(ctx, msg)
	if err != nil {
		return err
	}

	var lastErr error
	attempts := p.Retry.maxAttempts()
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Retry.Backoff(attempt - 1)):
			}
		}

		if err := p.publish(ctx, p.ackTimeout(), msg.UserID, value, headers); err != nil {
			lastErr = err
			p.Breaker.RecordFailure()
			logger.Warn("event publish attempt failed",
				"event", "producer_publish_attempt_failed",
				"module", "event-pipeline/ingestion-service",
				"layer", "application",
				"user_id", msg.UserID,
				"attempt", attempt+1,
				"error", err.Error(),
			)
			continue
		}
		p.Breaker.RecordSuccess()
		return nil
	}

	logger.Error("event publish failed after all retries",
		"event", "producer_publish_exhausted",
		"module", "event-pipeline/ingestion-service",
		"layer", "application",
		"user_id", msg.UserID,
		"attempts", attempts,
		"error", lastErr.Error(),
	)
	return &domainerrors.ServiceUnavailableError{
		Message:           "event ingestion is temporarily unavailable",
		RetryAfterSeconds: retryAfterHintSeconds,
		Cause:             lastErr,
	}
}

// SendBatch publishes all events in parallel and waits for every ack together
// up to BatchAckTimeout. It either publishes the whole batch or fails with
// ServiceUnavailableError; there is no per-item retry.
func (p Producer) SendBatch(ctx context.Context, msgs []ports.EventMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	logger := ResolveLogger(p.Logger)

	if !p.Breaker.Allow() {
		logger.Error("circuit breaker is open, rejecting batch",
			"event", "producer_breaker_open_batch",
			"module", "event-pipeline/ingestion-service",
			"layer", "application",
			"batch_size", len(msgs),
		)
		return p.circuitOpenError()
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.batchAckTimeout())
	defer cancel()

	group, groupCtx := errgroup.WithContext(sendCtx)
	for _, msg := range msgs {
		value, headers, err := p.encode(ctx, msg)
		if err != nil {
			cancel()
			return err
		}
		key := msg.UserID
		group.Go(func() error {
			return p.Publisher.Publish(groupCtx, p.Topic, key, value, headers)
		})
	}

	if err := group.Wait(); err != nil {
		p.Breaker.RecordFailure()
		logger.Error("batch publish failed",
			"event", "producer_batch_publish_failed",
			"module", "event-pipeline/ingestion-service",
			"layer", "application",
			"batch_size", len(msgs),
			"error", err.Error(),
		)
		return &domainerrors.ServiceUnavailableError{
			Message:           "event ingestion is temporarily unavailable",
			RetryAfterSeconds: retryAfterHintSeconds,
			Cause:             err,
		}
	}

	p.Breaker.RecordSuccess()
	return nil
}

func (p Producer) encode(ctx context.Context, msg ports.EventMessage) ([]byte, []ports.RecordHeader, error) {
	if msg.UserID == "" {
		return nil, nil, fmt.Errorf("%w: user_id is required as partition key", domainerrors.ErrInvalidEvent)
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return nil, nil, fmt.Errorf("encode event message: %w", err)
	}

	var headers []ports.RecordHeader
	if p.IDs != nil {
		if id, err := p.IDs.NewID(ctx); err == nil {
			headers = append(headers, ports.RecordHeader{Key: ports.HeaderRecordID, Value: []byte(id)})
		}
	}
	return value, headers, nil
}

func (p Producer) publish(ctx context.Context, timeout time.Duration, key string, value []byte, headers []ports.RecordHeader) error {
	publishCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Publisher.Publish(publishCtx, p.Topic, key, value, headers)
}

func (p Producer) circuitOpenError() error {
	return &domainerrors.ServiceUnavailableError{
		Message:           "event ingestion is temporarily unavailable: circuit breaker is open",
		RetryAfterSeconds: p.Breaker.RetryAfter(),
		Cause:             domainerrors.ErrCircuitOpen,
	}
}

func (p Producer) ackTimeout() time.Duration {
	if p.AckTimeout <= 0 {
		return time.Second
	}
	return p.AckTimeout
}

func (p Producer) batchAckTimeout() time.Duration {
	if p.BatchAckTimeout <= 0 {
		return 10 * time.Second
	}
	return p.BatchAckTimeout
}
