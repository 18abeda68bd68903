package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	application "pulse/contexts/event-pipeline/ingestion-service/application"
	"pulse/contexts/event-pipeline/ingestion-service/domain/entities"
)

// Store is an in-memory adapter implementing the ingestion persistence ports
// for local runtime and tests. It is not intended as production persistence.
type Store struct {
	mu sync.RWMutex

	inbox  map[string]time.Time
	events map[string]entities.Event // keyed by idempotency_key + "|" + event_date

	findCalls    int
	insertCalls  int
	refreshCalls int

	// InsertErr, when set, is returned by InsertBatch before any mutation,
	// leaving both tables untouched. Used to exercise transactional rollback
	// behavior in tests.
	InsertErr error

	logger *slog.Logger
}

func NewStore(logger *slog.Logger) *Store {
	return &Store{
		inbox:  make(map[string]time.Time),
		events: make(map[string]entities.Event),
		logger: application.ResolveLogger(logger),
	}
}

func (s *Store) FindExistingKeys(_ context.Context, keys []string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.findCalls++
	existing := make(map[string]struct{})
	for _, key := range keys {
		if _, ok := s.inbox[key]; ok {
			existing[key] = struct{}{}
		}
	}
	return existing, nil
}

func (s *Store) InsertBatch(_ context.Context, entries []entities.InboxEntry, events []entities.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.insertCalls++
	if s.InsertErr != nil {
		return s.InsertErr
	}

	for _, entry := range entries {
		if _, ok := s.inbox[entry.IdempotencyKey]; ok {
			continue
		}
		s.inbox[entry.IdempotencyKey] = entry.ReceivedAt
	}
	for _, event := range events {
		key := eventRowKey(event)
		if _, ok := s.events[key]; ok {
			continue
		}
		s.events[key] = event
	}
	return nil
}

func (s *Store) DeleteInboxOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for key, receivedAt := range s.inbox {
		if receivedAt.Before(cutoff) {
			delete(s.inbox, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) HasInboxKey(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.inbox[key]
	return ok, nil
}

func (s *Store) RefreshEventMetrics(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refreshCalls++
	return nil
}

// EventCount reports stored event rows.
func (s *Store) EventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// InboxCount reports stored inbox rows.
func (s *Store) InboxCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.inbox)
}

// Events returns stored events in no particular order.
func (s *Store) Events() []entities.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Event, 0, len(s.events))
	for _, event := range s.events {
		items = append(items, event)
	}
	return items
}

// Calls reports how many times the find/insert/refresh paths ran.
func (s *Store) Calls() (findCalls int, insertCalls int, refreshCalls int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findCalls, s.insertCalls, s.refreshCalls
}

func eventRowKey(event entities.Event) string {
	return event.IdempotencyKey + "|" + event.EventDate.Format("2006-01-02")
}
