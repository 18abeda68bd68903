package application

import (
	"context"
	"log/slog"
	"time"

	"pulse/contexts/event-pipeline/ingestion-service/domain/entities"
	"pulse/contexts/event-pipeline/ingestion-service/domain/services"
	"pulse/contexts/event-pipeline/ingestion-service/ports"
)

// IngestionPipeline is the consumer-side write path: dedup against the inbox,
// then one atomic dual-write of inbox entries and event rows. It is the only
// component that writes either table.
type IngestionPipeline struct {
	Store  ports.IngestionStore
	Clock  ports.Clock
	Logger *slog.Logger
}

// ProcessBatch deduplicates and persists a batch in a single transaction,
// returning the number of newly inserted events.
//
// Within one batch, events colliding on idempotency key keep the last
// occurrence at the first occurrence's position. Keys already present in the
// inbox are skipped. The inbox pre-check is advisory; the unique-constraint
// no-op insert is the safety net for cross-partition races on the same key.
func (p IngestionPipeline) ProcessBatch(ctx context.Context, events []entities.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	logger := ResolveLogger(p.Logger)

	keyed := make(map[string]entities.Event, len(events))
	order := make([]string, 0, len(events))
	for _, event := range events {
		key := services.DeriveKey(event.Name, event.UserID, event.Timestamp, event.CampaignID)
		if _, seen := keyed[key]; !seen {
			order = append(order, key)
		}
		event.IdempotencyKey = key
		event.EventDate = entities.DeriveEventDate(event.Timestamp)
		keyed[key] = event
	}

	existing, err := p.Store.FindExistingKeys(ctx, order)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		logger.Debug("deduplicating events against inbox",
			"event", "ingestion_batch_dedup",
			"module", "event-pipeline/ingestion-service",
			"layer", "application",
			"duplicate_count", len(existing),
			"batch_size", len(events),
		)
	}

	now := time.Now().UTC()
	if p.Clock != nil {
		now = p.Clock.Now().UTC()
	}

	newEntries := make([]entities.InboxEntry, 0, len(order))
	newEvents := make([]entities.Event, 0, len(order))
	for _, key := range order {
		if _, dup := existing[key]; dup {
			continue
		}
		event := keyed[key]
		event.CreatedAt = now
		newEntries = append(newEntries, entities.InboxEntry{
			IdempotencyKey: key,
			ReceivedAt:     now,
		})
		newEvents = append(newEvents, event)
	}

	if len(newEvents) == 0 {
		logger.Debug("all events in batch were duplicates",
			"event", "ingestion_batch_all_duplicates",
			"module", "event-pipeline/ingestion-service",
			"layer", "application",
			"batch_size", len(events),
		)
		return 0, nil
	}

	if err := p.Store.InsertBatch(ctx, newEntries, newEvents); err != nil {
		logger.Error("ingestion batch insert failed",
			"event", "ingestion_batch_insert_failed",
			"module", "event-pipeline/ingestion-service",
			"layer", "application",
			"new_count", len(newEvents),
			"error", err.Error(),
		)
		return 0, err
	}

	logger.Info("ingestion batch processed",
		"event", "ingestion_batch_processed",
		"module", "event-pipeline/ingestion-service",
		"layer", "application",
		"inserted_count", len(newEvents),
		"duplicate_count", len(existing),
	)
	return len(newEvents), nil
}

// ProcessSingle routes one event through the batch pipeline and reports
// whether it was newly inserted.
func (p IngestionPipeline) ProcessSingle(ctx context.Context, event entities.Event) (bool, error) {
	inserted, err := p.ProcessBatch(ctx, []entities.Event{event})
	if err != nil {
		return false, err
	}
	return inserted > 0, nil
}
