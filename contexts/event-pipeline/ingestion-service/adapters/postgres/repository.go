package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pulse/contexts/event-pipeline/ingestion-service/domain/entities"
	domainerrors "pulse/contexts/event-pipeline/ingestion-service/domain/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository implements the ingestion persistence ports on Postgres. The
// events and inbox tables are owned exclusively by this module.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

type eventModel struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement"`
	EventName      string    `gorm:"column:event_name"`
	Channel        *string   `gorm:"column:channel"`
	CampaignID     *string   `gorm:"column:campaign_id"`
	UserID         string    `gorm:"column:user_id"`
	EventTimestamp int64     `gorm:"column:event_timestamp"`
	EventDate      time.Time `gorm:"column:event_date"`
	Tags           []byte    `gorm:"column:tags;type:jsonb"`
	Metadata       []byte    `gorm:"column:metadata;type:jsonb"`
	IdempotencyKey string    `gorm:"column:idempotency_key"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (eventModel) TableName() string { return "events" }

type inboxModel struct {
	IdempotencyKey string    `gorm:"column:idempotency_key;primaryKey"`
	ReceivedAt     time.Time `gorm:"column:received_at"`
}

func (inboxModel) TableName() string { return "inbox" }

func (r *Repository) FindExistingKeys(ctx context.Context, keys []string) (map[string]struct{}, error) {
	if len(keys) == 0 {
		return map[string]struct{}{}, nil
	}

	var found []string
	err := r.db.WithContext(ctx).
		Model(&inboxModel{}).
		Where("idempotency_key IN ?", keys).
		Pluck("idempotency_key", &found).
		Error
	if err != nil {
		return nil, fmt.Errorf("query existing inbox keys: %w", err)
	}

	existing := make(map[string]struct{}, len(found))
	for _, key := range found {
		existing[key] = struct{}{}
	}
	return existing, nil
}

// InsertBatch writes inbox entries then event rows inside one transaction.
// Both tables use ON CONFLICT DO NOTHING on their unique constraints, so a
// race with another consumer on the same key degrades to a no-op rather than
// an error; that is what makes the dual-write safe to retry.
func (r *Repository) InsertBatch(ctx context.Context, entries []entities.InboxEntry, events []entities.Event) error {
	if len(events) == 0 {
		return nil
	}

	inboxRows := make([]inboxModel, 0, len(entries))
	for _, entry := range entries {
		inboxRows = append(inboxRows, inboxModel{
			IdempotencyKey: entry.IdempotencyKey,
			ReceivedAt:     entry.ReceivedAt.UTC(),
		})
	}

	eventRows := make([]eventModel, 0, len(events))
	for _, event := range events {
		row, err := eventModelFromEntity(event)
		if err != nil {
			return err
		}
		eventRows = append(eventRows, row)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "idempotency_key"}},
				DoNothing: true,
			}).
			Create(&inboxRows).
			Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrRepositoryInvariantBroke
			}
			return fmt.Errorf("insert inbox entries: %w", err)
		}

		if err := tx.
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "idempotency_key"}, {Name: "event_date"}},
				DoNothing: true,
			}).
			Create(&eventRows).
			Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrRepositoryInvariantBroke
			}
			return fmt.Errorf("insert events: %w", err)
		}
		return nil
	})
}

func (r *Repository) DeleteInboxOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("received_at < ?", cutoff.UTC()).
		Delete(&inboxModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete expired inbox entries: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *Repository) HasInboxKey(ctx context.Context, key string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&inboxModel{}).
		Where("idempotency_key = ?", key).
		Count(&count).
		Error
	if err != nil {
		return false, fmt.Errorf("check inbox key: %w", err)
	}
	return count > 0, nil
}

func (r *Repository) RefreshEventMetrics(ctx context.Context) error {
	err := r.db.WithContext(ctx).
		Exec("REFRESH MATERIALIZED VIEW CONCURRENTLY event_metrics").
		Error
	if err != nil {
		return fmt.Errorf("refresh event_metrics: %w", err)
	}
	return nil
}

func eventModelFromEntity(event entities.Event) (eventModel, error) {
	row := eventModel{
		EventName:      event.Name,
		UserID:         event.UserID,
		EventTimestamp: event.Timestamp,
		EventDate:      event.EventDate,
		IdempotencyKey: event.IdempotencyKey,
		CreatedAt:      event.CreatedAt.UTC(),
	}
	if event.Channel != "" {
		channel := event.Channel
		row.Channel = &channel
	}
	if event.CampaignID != "" {
		campaignID := event.CampaignID
		row.CampaignID = &campaignID
	}
	if event.Tags != nil {
		tags, err := json.Marshal(event.Tags)
		if err != nil {
			return eventModel{}, fmt.Errorf("encode event tags: %w", err)
		}
		row.Tags = tags
	}
	if event.Metadata != nil {
		metadata, err := json.Marshal(event.Metadata)
		if err != nil {
			return eventModel{}, fmt.Errorf("encode event metadata: %w", err)
		}
		row.Metadata = metadata
	}
	return row, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
