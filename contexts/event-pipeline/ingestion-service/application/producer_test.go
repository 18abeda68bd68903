package application

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	domainerrors "pulse/contexts/event-pipeline/ingestion-service/domain/errors"
	"pulse/contexts/event-pipeline/ingestion-service/ports"
)

type publishedRecord struct {
	Topic   string
	Key     string
	Value   []byte
	Headers []ports.RecordHeader
}

type fakePublisher struct {
	mu        sync.Mutex
	records   []publishedRecord
	failures  int
	permanent bool
}

func (p *fakePublisher) Publish(_ context.Context, topic, key string, value []byte, headers []ports.RecordHeader) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.permanent || p.failures > 0 {
		if !p.permanent {
			p.failures--
		}
		return errors.New("broker unavailable")
	}
	p.records = append(p.records, publishedRecord{Topic: topic, Key: key, Value: value, Headers: headers})
	return nil
}

func (p *fakePublisher) published() []publishedRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedRecord(nil), p.records...)
}

type staticIDs struct {
	id string
}

func (g staticIDs) NewID(context.Context) (string, error) { return g.id, nil }

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, BackoffFactor: 2.0}
}

func testMessage() ports.EventMessage {
	return ports.EventMessage{
		EventName: "product_view",
		UserID:    "user_123",
		Timestamp: 1771156800,
	}
}

func newTestProducer(publisher *fakePublisher) Producer {
	return Producer{
		Publisher: publisher,
		Breaker:   NewCircuitBreaker(5, 30*time.Second, 2, nil),
		IDs:       staticIDs{id: "rec-1"},
		Topic:     "events-ingestion",
		Retry:     fastRetry(),
	}
}

func TestSendPublishesKeyedByUser(t *testing.T) {
	publisher := &fakePublisher{}
	producer := newTestProducer(publisher)

	if err := producer.Send(context.Background(), testMessage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records := publisher.published()
	if len(records) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(records))
	}
	record := records[0]
	if record.Topic != "events-ingestion" {
		t.Fatalf("unexpected topic %q", record.Topic)
	}
	if record.Key != "user_123" {
		t.Fatalf("expected user id as partition key, got %q", record.Key)
	}

	var decoded ports.EventMessage
	if err := json.Unmarshal(record.Value, &decoded); err != nil {
		t.Fatalf("decode published value: %v", err)
	}
	if decoded.EventName != "product_view" || decoded.Timestamp != 1771156800 {
		t.Fatalf("unexpected payload %+v", decoded)
	}

	found := false
	for _, header := range record.Headers {
		if header.Key == ports.HeaderRecordID && string(header.Value) == "rec-1" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected record_id header on published record")
	}
}

func TestSendRejectsMissingUserID(t *testing.T) {
	publisher := &fakePublisher{}
	producer := newTestProducer(publisher)

	msg := testMessage()
	msg.UserID = ""
	err := producer.Send(context.Background(), msg)
	if !errors.Is(err, domainerrors.ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
	if len(publisher.published()) != 0 {
		t.Fatal("expected no publish for an unkeyed message")
	}
}

func TestSendRetriesTransientFailure(t *testing.T) {
	publisher := &fakePublisher{failures: 2}
	producer := newTestProducer(publisher)

	if err := producer.Send(context.Background(), testMessage()); err != nil {
		t.Fatalf("expected retries to absorb transient failures, got %v", err)
	}
	if len(publisher.published()) != 1 {
		t.Fatalf("expected exactly 1 successful publish, got %d", len(publisher.published()))
	}
	if producer.Breaker.State() != BreakerClosed {
		t.Fatalf("expected breaker closed after eventual success, got %s", producer.Breaker.State())
	}
}

func TestSendExhaustedRetriesReturnServiceUnavailable(t *testing.T) {
	publisher := &fakePublisher{permanent: true}
	producer := newTestProducer(publisher)

	err := producer.Send(context.Background(), testMessage())
	unavailable, ok := domainerrors.AsServiceUnavailable(err)
	if !ok {
		t.Fatalf("expected ServiceUnavailableError, got %v", err)
	}
	if unavailable.RetryAfterSeconds != retryAfterHintSeconds {
		t.Fatalf("expected %ds retry hint, got %d", retryAfterHintSeconds, unavailable.RetryAfterSeconds)
	}
}

func TestSendFailsFastWhileBreakerOpen(t *testing.T) {
	publisher := &fakePublisher{}
	producer := newTestProducer(publisher)
	for i := 0; i < producer.Breaker.FailureThreshold; i++ {
		producer.Breaker.RecordFailure()
	}

	err := producer.Send(context.Background(), testMessage())
	unavailable, ok := domainerrors.AsServiceUnavailable(err)
	if !ok {
		t.Fatalf("expected ServiceUnavailableError, got %v", err)
	}
	if !errors.Is(err, domainerrors.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen cause, got %v", err)
	}
	if unavailable.RetryAfterSeconds < 1 {
		t.Fatalf("expected positive retry hint, got %d", unavailable.RetryAfterSeconds)
	}
	if len(publisher.published()) != 0 {
		t.Fatal("expected no broker call while the breaker is open")
	}
}

func TestSendOpensBreakerAfterRepeatedFailures(t *testing.T) {
	publisher := &fakePublisher{permanent: true}
	producer := newTestProducer(publisher)
	producer.Breaker = NewCircuitBreaker(3, 30*time.Second, 2, nil)

	// Each Send makes 3 attempts; one call is enough to cross the threshold.
	_ = producer.Send(context.Background(), testMessage())
	if producer.Breaker.State() != BreakerOpen {
		t.Fatalf("expected breaker open after repeated failures, got %s", producer.Breaker.State())
	}
}

func TestSendBatchPublishesAll(t *testing.T) {
	publisher := &fakePublisher{}
	producer := newTestProducer(publisher)

	msgs := []ports.EventMessage{testMessage(), testMessage(), testMessage()}
	msgs[1].UserID = "user_456"
	msgs[2].UserID = "user_789"

	if err := producer.SendBatch(context.Background(), msgs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(publisher.published()) != 3 {
		t.Fatalf("expected 3 publishes, got %d", len(publisher.published()))
	}
}

func TestSendBatchFailsAsAWhole(t *testing.T) {
	publisher := &fakePublisher{failures: 1}
	producer := newTestProducer(publisher)

	err := producer.SendBatch(context.Background(), []ports.EventMessage{testMessage(), testMessage()})
	if _, ok := domainerrors.AsServiceUnavailable(err); !ok {
		t.Fatalf("expected ServiceUnavailableError, got %v", err)
	}
}

func TestSendBatchEmptyIsNoop(t *testing.T) {
	publisher := &fakePublisher{}
	producer := newTestProducer(publisher)

	if err := producer.SendBatch(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(publisher.published()) != 0 {
		t.Fatal("expected no publishes for an empty batch")
	}
}

func TestBackoffGrowsExponentially(t *testing.T) {
	policy := RetryPolicy{InitialBackoff: 100 * time.Millisecond, BackoffFactor: 2.0}
	if got := policy.Backoff(0); got != 100*time.Millisecond {
		t.Fatalf("expected 100ms, got %v", got)
	}
	if got := policy.Backoff(1); got != 200*time.Millisecond {
		t.Fatalf("expected 200ms, got %v", got)
	}
	if got := policy.Backoff(2); got != 400*time.Millisecond {
		t.Fatalf("expected 400ms, got %v", got)
	}
}
