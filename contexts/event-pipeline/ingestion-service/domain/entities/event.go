package entities

import "time"

// Event is one accepted occurrence, keyed for storage by the pair
// (IdempotencyKey, EventDate). A duplicate pair is a silent no-op on insert,
// never an overwrite.
type Event struct {
	ID             int64
	Name           string
	Channel        string
	CampaignID     string
	UserID         string
	Timestamp      int64
	EventDate      time.Time
	Tags           []string
	Metadata       map[string]any
	IdempotencyKey string
	CreatedAt      time.Time
}

// DeriveEventDate computes the UTC calendar date bucket from the epoch
// timestamp. Used as the partition dimension alongside the idempotency key.
func DeriveEventDate(timestamp int64) time.Time {
	ts := time.Unix(timestamp, 0).UTC()
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}

// InboxEntry records that an idempotency key has been accepted. Created in
// the same transaction as the Event row; pruned by retention after a
// configurable age.
type InboxEntry struct {
	IdempotencyKey string
	ReceivedAt     time.Time
}
