package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"pulse/contexts/event-pipeline/ingestion-service/domain/entities"
)

func storedEvent(key string, date time.Time) entities.Event {
	return entities.Event{
		Name:           "product_view",
		UserID:         "u1",
		Timestamp:      date.Unix(),
		EventDate:      date,
		IdempotencyKey: key,
	}
}

func TestInsertBatchSkipsExistingRows(t *testing.T) {
	store := NewStore(nil)
	date := time.Date(2026, time.February, 15, 0, 0, 0, 0, time.UTC)
	received := time.Date(2026, time.February, 15, 10, 0, 0, 0, time.UTC)

	err := store.InsertBatch(context.Background(),
		[]entities.InboxEntry{{IdempotencyKey: "k1", ReceivedAt: received}},
		[]entities.Event{storedEvent("k1", date)},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	laterReceived := received.Add(time.Hour)
	err = store.InsertBatch(context.Background(),
		[]entities.InboxEntry{{IdempotencyKey: "k1", ReceivedAt: laterReceived}},
		[]entities.Event{storedEvent("k1", date)},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.InboxCount() != 1 || store.EventCount() != 1 {
		t.Fatalf("expected conflicting rows skipped, got inbox=%d events=%d", store.InboxCount(), store.EventCount())
	}

	deleted, err := store.DeleteInboxOlderThan(context.Background(), received.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected original received_at kept on conflict, deleted=%d", deleted)
	}
}

func TestFindExistingKeys(t *testing.T) {
	store := NewStore(nil)
	date := time.Date(2026, time.February, 15, 0, 0, 0, 0, time.UTC)

	if err := store.InsertBatch(context.Background(),
		[]entities.InboxEntry{{IdempotencyKey: "k1", ReceivedAt: date}},
		[]entities.Event{storedEvent("k1", date)},
	); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	existing, err := store.FindExistingKeys(context.Background(), []string{"k1", "k2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := existing["k1"]; !ok {
		t.Fatal("expected k1 reported as existing")
	}
	if _, ok := existing["k2"]; ok {
		t.Fatal("expected k2 absent")
	}
}

func TestInsertErrLeavesStoreUntouched(t *testing.T) {
	store := NewStore(nil)
	store.InsertErr = errors.New("injected")
	date := time.Date(2026, time.February, 15, 0, 0, 0, 0, time.UTC)

	err := store.InsertBatch(context.Background(),
		[]entities.InboxEntry{{IdempotencyKey: "k1", ReceivedAt: date}},
		[]entities.Event{storedEvent("k1", date)},
	)
	if err == nil {
		t.Fatal("expected injected error")
	}
	if store.InboxCount() != 0 || store.EventCount() != 0 {
		t.Fatal("expected no rows written on failure")
	}
}

func TestDeleteInboxOlderThan(t *testing.T) {
	store := NewStore(nil)
	date := time.Date(2026, time.February, 15, 0, 0, 0, 0, time.UTC)

	if err := store.InsertBatch(context.Background(),
		[]entities.InboxEntry{
			{IdempotencyKey: "old", ReceivedAt: date.AddDate(0, 0, -10)},
			{IdempotencyKey: "fresh", ReceivedAt: date},
		},
		nil,
	); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deleted, err := store.DeleteInboxOlderThan(context.Background(), date.AddDate(0, 0, -7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}

	has, err := store.HasInboxKey(context.Background(), "old")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if has {
		t.Fatal("expected pruned key gone")
	}
	has, err = store.HasInboxKey(context.Background(), "fresh")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !has {
		t.Fatal("expected fresh key retained")
	}
}

func TestCallsCounters(t *testing.T) {
	store := NewStore(nil)

	if _, err := store.FindExistingKeys(context.Background(), []string{"k1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.InsertBatch(context.Background(), nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.RefreshEventMetrics(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	finds, inserts, refreshes := store.Calls()
	if finds != 1 || inserts != 1 || refreshes != 1 {
		t.Fatalf("unexpected counters find=%d insert=%d refresh=%d", finds, inserts, refreshes)
	}
}
