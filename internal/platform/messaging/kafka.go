package messaging

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"

	"pulse/contexts/event-pipeline/ingestion-service/ports"
)

// Kafka is the broker adapter used by the intake producer and the worker
// consumer loops. Current implementation is an in-process partitioned log
// while runtime wiring is finalized for external brokers: each topic carries
// a fixed partition count, records are placed by key hash so one key always
// lands on one partition, and consumer groups commit offsets per partition.
type Kafka struct {
	mu         sync.Mutex
	partitions int
	topics     map[string]*topicLog
	logger     *slog.Logger
}

type topicLog struct {
	partitions [][]ports.Record
	groups     map[string]*groupState
}

type groupState struct {
	// committed holds the next offset to deliver per partition.
	committed []int64
	// leased marks partitions handed out by Poll and not yet acknowledged;
	// a leased partition is never re-polled, which keeps per-partition
	// ordering strict within a group.
	leased []bool
	cursor int
}

func NewKafka(_ []string, partitions int, logger *slog.Logger) (*Kafka, error) {
	if partitions <= 0 {
		partitions = 4
	}
	return &Kafka{
		partitions: partitions,
		topics:     make(map[string]*topicLog),
		logger:     logger,
	}, nil
}

// Publish appends one record to the partition owned by key.
func (k *Kafka) Publish(ctx context.Context, topic string, key string, value []byte, headers []ports.RecordHeader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	k.mu.Lock()
	log := k.topic(topic)
	partition := k.partitionFor(key)
	offset := int64(len(log.partitions[partition]))
	log.partitions[partition] = append(log.partitions[partition], ports.Record{
		Topic:     topic,
		Partition: partition,
		Offset:    offset,
		Key:       key,
		Value:     value,
		Headers:   headers,
	})
	k.mu.Unlock()

	if k.logger != nil {
		k.logger.Debug("record published",
			"event", "kafka_publish",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"topic", topic,
			"partition", partition,
			"offset", offset,
		)
	}
	return nil
}

// Poll returns the next unacknowledged batch for the group from a single
// partition, up to maxRecords. The partition stays leased to the group until
// Ack commits the batch, so batch N+1 of a partition is never delivered
// before batch N is acknowledged.
func (k *Kafka) Poll(ctx context.Context, topic string, group string, maxRecords int) ([]ports.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if maxRecords <= 0 {
		maxRecords = 1
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	log := k.topic(topic)
	state := log.group(group, k.partitions)

	for i := 0; i < k.partitions; i++ {
		partition := (state.cursor + i) % k.partitions
		if state.leased[partition] {
			continue
		}
		from := state.committed[partition]
		records := log.partitions[partition]
		if from >= int64(len(records)) {
			continue
		}

		to := from + int64(maxRecords)
		if to > int64(len(records)) {
			to = int64(len(records))
		}
		state.leased[partition] = true
		state.cursor = (partition + 1) % k.partitions

		batch := make([]ports.Record, to-from)
		copy(batch, records[from:to])
		return batch, nil
	}
	return nil, nil
}

// Ack commits the group's offset on the partition through offset and releases
// the lease.
func (k *Kafka) Ack(ctx context.Context, topic string, group string, partition int, offset int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	log := k.topic(topic)
	state := log.group(group, k.partitions)
	if partition < 0 || partition >= k.partitions {
		return nil
	}
	if offset+1 > state.committed[partition] {
		state.committed[partition] = offset + 1
	}
	state.leased[partition] = false
	return nil
}

// Depth reports unconsumed records for a group across all partitions of a
// topic. Diagnostics only.
func (k *Kafka) Depth(topic string, group string) int64 {
	k.mu.Lock()
	defer k.mu.Unlock()

	log := k.topic(topic)
	state := log.group(group, k.partitions)
	var depth int64
	for partition, records := range log.partitions {
		depth += int64(len(records)) - state.committed[partition]
	}
	return depth
}

func (k *Kafka) topic(name string) *topicLog {
	log, ok := k.topics[name]
	if !ok {
		log = &topicLog{
			partitions: make([][]ports.Record, k.partitions),
			groups:     make(map[string]*groupState),
		}
		k.topics[name] = log
	}
	return log
}

func (t *topicLog) group(name string, partitions int) *groupState {
	state, ok := t.groups[name]
	if !ok {
		state = &groupState{
			committed: make([]int64, partitions),
			leased:    make([]bool, partitions),
		}
		t.groups[name] = state
	}
	return state
}

func (k *Kafka) partitionFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(k.partitions))
}
