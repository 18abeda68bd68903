package ports

import (
	"context"
	"time"

	"pulse/contexts/event-pipeline/ingestion-service/domain/entities"
)

// Broker record header keys shared by producer and consumer.
const (
	// HeaderRecordID carries a correlation id assigned at publish time.
	HeaderRecordID = "record_id"
	// HeaderDeserializationError marks a record whose value already failed
	// transport-level deserialization upstream; the value must not be parsed.
	HeaderDeserializationError = "deserialization-error"
	// HeaderFailureReason tags dead-lettered records with the failure cause.
	HeaderFailureReason = "failure-reason"
)

// EventMessage is the wire payload published to the ingestion topic. The JSON
// shape matches the HTTP intake contract.
type EventMessage struct {
	EventName  string         `json:"event_name"`
	Channel    string         `json:"channel,omitempty"`
	CampaignID string         `json:"campaign_id,omitempty"`
	UserID     string         `json:"user_id"`
	Timestamp  int64          `json:"timestamp"`
	Tags       []string       `json:"tags,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// RecordHeader is a broker record header (failure markers, correlation ids).
type RecordHeader struct {
	Key   string
	Value []byte
}

// Record is one broker record as seen by a consumer poll.
type Record struct {
	Topic     string
	Partition int
	Offset    int64
	Key       string
	Value     []byte
	Headers   []RecordHeader
}

// Header returns the last header value for key and whether it was present.
func (r Record) Header(key string) ([]byte, bool) {
	for i := len(r.Headers) - 1; i >= 0; i-- {
		if r.Headers[i].Key == key {
			return r.Headers[i].Value, true
		}
	}
	return nil, false
}

// BrokerPublisher publishes one record keyed for partitioning. All events for
// one key land on the same partition, preserving per-key ordering. Publish
// must respect ctx cancellation; the producer bounds ack waits with it.
type BrokerPublisher interface {
	Publish(ctx context.Context, topic string, key string, value []byte, headers []RecordHeader) error
}

// BrokerConsumer is the batch pull side. Poll returns the next unacknowledged
// batch for the group from a single partition; records from that partition are
// not re-polled until Ack commits the batch's last offset.
type BrokerConsumer interface {
	Poll(ctx context.Context, topic string, group string, maxRecords int) ([]Record, error)
	Ack(ctx context.Context, topic string, group string, partition int, offset int64) error
}

// IngestionStore is the only write path for events and inbox rows.
type IngestionStore interface {
	// FindExistingKeys returns the subset of keys already present in the
	// inbox as one set-membership query.
	FindExistingKeys(ctx context.Context, keys []string) (map[string]struct{}, error)
	// InsertBatch atomically inserts inbox entries then events. Both writes
	// commit or roll back together. Rows hitting their unique constraint are
	// skipped silently.
	InsertBatch(ctx context.Context, entries []entities.InboxEntry, events []entities.Event) error
}

// InboxMaintenance supports the retention sweep and diagnostics lookups.
type InboxMaintenance interface {
	DeleteInboxOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	// HasInboxKey is a single-key existence check used outside the hot batch
	// path (diagnostics only).
	HasInboxKey(ctx context.Context, key string) (bool, error)
}

// MetricsViewRefresher refreshes the precomputed event_metrics aggregate.
type MetricsViewRefresher interface {
	RefreshEventMetrics(ctx context.Context) error
}

// Clock allows deterministic testing of retention and ingestion timestamps.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts record correlation id generation.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
