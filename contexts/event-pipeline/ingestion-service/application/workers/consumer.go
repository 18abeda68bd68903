package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "pulse/contexts/event-pipeline/ingestion-service/application"
	"pulse/contexts/event-pipeline/ingestion-service/domain/entities"
	"pulse/contexts/event-pipeline/ingestion-service/ports"
)

const (
	// DeadLetterSuffix is appended to the ingestion topic to form its DLT.
	DeadLetterSuffix = ".DLT"

	defaultBatchSize    = 500
	defaultIdleInterval = 250 * time.Millisecond
)

// EventConsumer pulls batches from the ingestion topic, isolates per-record
// deserialization failures onto the dead-letter topic, and forwards the
// well-formed remainder to the pipeline in one call. The batch offset is
// acknowledged exactly once, whether or not the pipeline call succeeded:
// the pipeline is idempotent, so crash-replay is safe, and acking keeps a
// poisoned batch from blocking its partition.
type EventConsumer struct {
	Broker      ports.BrokerConsumer
	DeadLetters ports.BrokerPublisher
	Pipeline    application.IngestionPipeline
	Topic       string
	Group       string
	BatchSize   int
	Retry       application.RetryPolicy
	Logger      *slog.Logger
}

// Start runs the polling loop until ctx is done. Within the loop batch N+1 is
// not polled until batch N is acknowledged.
func (c EventConsumer) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		processed, err := c.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if processed == 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(defaultIdleInterval):
			}
		}
	}
}

// RunOnce polls and processes one batch. It returns the number of records
// polled (zero when the topic is idle).
func (c EventConsumer) RunOnce(ctx context.Context) (int, error) {
	logger := application.ResolveLogger(c.Logger)

	batchSize := c.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	records, err := c.Broker.Poll(ctx, c.Topic, c.Group, batchSize)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	events := make([]entities.Event, 0, len(records))
	eventRecords := make([]ports.Record, 0, len(records))
	dltCount := 0

	for _, record := range records {
		// Transport-level failure marker set upstream: the value is not
		// parseable and must go straight to the DLT.
		if _, marked := record.Header(ports.HeaderDeserializationError); marked {
			logger.Error("transport deserialization failure marker on record",
				"event", "consumer_transport_deserialize_failed",
				"module", "event-pipeline/ingestion-service",
				"layer", "worker",
				"partition", record.Partition,
				"offset", record.Offset,
			)
			c.publishToDeadLetter(ctx, record, "transport-level deserialization failure")
			dltCount++
			continue
		}

		var msg ports.EventMessage
		if err := json.Unmarshal(record.Value, &msg); err != nil {
			logger.Error("record value decode failed",
				"event", "consumer_decode_failed",
				"module", "event-pipeline/ingestion-service",
				"layer", "worker",
				"partition", record.Partition,
				"offset", record.Offset,
				"error", err.Error(),
			)
			c.publishToDeadLetter(ctx, record, err.Error())
			dltCount++
			continue
		}

		event, err := application.EventFromMessage(msg)
		if err != nil {
			logger.Error("record conversion to event failed",
				"event", "consumer_convert_failed",
				"module", "event-pipeline/ingestion-service",
				"layer", "worker",
				"partition", record.Partition,
				"offset", record.Offset,
				"error", err.Error(),
			)
			c.publishToDeadLetter(ctx, record, err.Error())
			dltCount++
			continue
		}

		events = append(events, event)
		eventRecords = append(eventRecords, record)
	}

	if len(events) > 0 {
		inserted, err := c.processWithRetry(ctx, events)
		if err != nil {
			logger.Error("pipeline failed after bounded retry, dead-lettering batch",
				"event", "consumer_batch_dead_lettered",
				"module", "event-pipeline/ingestion-service",
				"layer", "worker",
				"batch_size", len(events),
				"error", err.Error(),
			)
			for _, record := range eventRecords {
				c.publishToDeadLetter(ctx, record, "pipeline failure: "+err.Error())
			}
			dltCount += len(eventRecords)
		} else {
			logger.Info("batch processed",
				"event", "consumer_batch_processed",
				"module", "event-pipeline/ingestion-service",
				"layer", "worker",
				"received_count", len(records),
				"event_count", len(events),
				"inserted_count", inserted,
				"dlt_count", dltCount,
			)
		}
	} else if dltCount > 0 {
		logger.Warn("all records in batch failed deserialization",
			"event", "consumer_batch_all_dead_lettered",
			"module", "event-pipeline/ingestion-service",
			"layer", "worker",
			"received_count", len(records),
			"dlt_count", dltCount,
		)
	}

	// Ack after processing, success or failure, exactly once. Poll returns a
	// single partition's records, so the last offset covers the batch.
	last := records[len(records)-1]
	if err := c.Broker.Ack(ctx, c.Topic, c.Group, last.Partition, last.Offset); err != nil {
		logger.Error("batch acknowledgment failed",
			"event", "consumer_ack_failed",
			"module", "event-pipeline/ingestion-service",
			"layer", "worker",
			"partition", last.Partition,
			"offset", last.Offset,
			"error", err.Error(),
		)
		return len(records), err
	}
	return len(records), nil
}

// processWithRetry retries transient pipeline failures with bounded
// exponential backoff before giving up on the batch.
func (c EventConsumer) processWithRetry(ctx context.Context, events []entities.Event) (int, error) {
	policy := c.Retry
	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = time.Second
	}
	if policy.BackoffFactor < 1 {
		policy.BackoffFactor = 2.0
	}
	if policy.MaxElapsed <= 0 {
		policy.MaxElapsed = 4 * time.Second
	}

	var elapsed time.Duration
	attempt := 0
	for {
		inserted, err := c.Pipeline.ProcessBatch(ctx, events)
		if err == nil {
			return inserted, nil
		}

		wait := policy.Backoff(attempt)
		if elapsed+wait > policy.MaxElapsed {
			return 0, err
		}
		select {
		case <-ctx.Done():
			return 0, err
		case <-time.After(wait):
		}
		elapsed += wait
		attempt++
	}
}

// publishToDeadLetter routes a failed record to the dead-letter topic tagged
// with the failure reason. DLT publish failures are logged and swallowed so
// they never block batch progress.
func (c EventConsumer) publishToDeadLetter(ctx context.Context, record ports.Record, reason string) {
	logger := application.ResolveLogger(c.Logger)
	topic := c.Topic + DeadLetterSuffix

	headers := append([]ports.RecordHeader(nil), record.Headers...)
	headers = append(headers, ports.RecordHeader{Key: ports.HeaderFailureReason, Value: []byte(reason)})

	if err := c.DeadLetters.Publish(ctx, topic, record.Key, record.Value, headers); err != nil {
		logger.Error("dead-letter publish failed, dropping record",
			"event", "consumer_dlt_publish_failed",
			"module", "event-pipeline/ingestion-service",
			"layer", "worker",
			"topic", topic,
			"partition", record.Partition,
			"offset", record.Offset,
			"error", err.Error(),
		)
		return
	}

	logger.Warn("record sent to dead-letter topic",
		"event", "consumer_record_dead_lettered",
		"module", "event-pipeline/ingestion-service",
		"layer", "worker",
		"topic", topic,
		"partition", record.Partition,
		"offset", record.Offset,
		"reason", reason,
	)
}
