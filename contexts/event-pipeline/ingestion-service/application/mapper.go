package application

import (
	"fmt"
	"strings"

	"pulse/contexts/event-pipeline/ingestion-service/domain/entities"
	"pulse/contexts/event-pipeline/ingestion-service/ports"
)

// EventFromMessage converts a consumed wire message into the domain event
// shape. Failures here are application-level deserialization failures and
// route the record to the dead-letter topic.
func EventFromMessage(msg ports.EventMessage) (entities.Event, error) {
	if strings.TrimSpace(msg.EventName) == "" {
		return entities.Event{}, fmt.Errorf("event message missing event_name")
	}
	if strings.TrimSpace(msg.UserID) == "" {
		return entities.Event{}, fmt.Errorf("event message missing user_id")
	}
	if msg.Timestamp <= 0 {
		return entities.Event{}, fmt.Errorf("event message timestamp must be positive, got %d", msg.Timestamp)
	}

	return entities.Event{
		Name:       msg.EventName,
		Channel:    msg.Channel,
		CampaignID: msg.CampaignID,
		UserID:     msg.UserID,
		Timestamp:  msg.Timestamp,
		EventDate:  entities.DeriveEventDate(msg.Timestamp),
		Tags:       msg.Tags,
		Metadata:   msg.Metadata,
	}, nil
}
