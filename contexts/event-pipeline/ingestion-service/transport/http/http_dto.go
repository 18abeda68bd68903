package httptransport

import (
	"fmt"
	"strings"

	"pulse/contexts/event-pipeline/ingestion-service/ports"
)

// Validation caps. Keep in sync with the published API contract.
const (
	MaxEventNameLen  = 128
	MaxUserIDLen     = 128
	MaxChannelLen    = 64
	MaxCampaignIDLen = 64
	MaxTagLen        = 64
	MaxTagsCount     = 50
	MaxBulkEvents    = 1000
)

// FieldError is one field-level validation failure in a 400 response.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type EventRequest struct {
	EventName  string         `json:"event_name"`
	Channel    string         `json:"channel,omitempty"`
	CampaignID string         `json:"campaign_id,omitempty"`
	UserID     string         `json:"user_id"`
	Timestamp  int64          `json:"timestamp"`
	Tags       []string       `json:"tags,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type BulkEventRequest struct {
	Events []EventRequest `json:"events"`
}

type EventResponse struct {
	Status        string `json:"status"`
	AcceptedCount int    `json:"acceptedCount"`
	Message       string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Status  int          `json:"status"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// Validate checks the intake contract: required non-blank event_name and
// user_id, positive epoch timestamp, length caps on optional fields.
func (r EventRequest) Validate() []FieldError {
	var errs []FieldError

	if strings.TrimSpace(r.EventName) == "" {
		errs = append(errs, FieldError{"event_name", "is required"})
	} else if len(r.EventName) > MaxEventNameLen {
		errs = append(errs, FieldError{"event_name", fmt.Sprintf("max length %d", MaxEventNameLen)})
	}

	if strings.TrimSpace(r.UserID) == "" {
		errs = append(errs, FieldError{"user_id", "is required"})
	} else if len(r.UserID) > MaxUserIDLen {
		errs = append(errs, FieldError{"user_id", fmt.Sprintf("max length %d", MaxUserIDLen)})
	}

	if r.Timestamp <= 0 {
		errs = append(errs, FieldError{"timestamp", "must be a positive Unix epoch value"})
	}

	if r.Channel != "" && len(r.Channel) > MaxChannelLen {
		errs = append(errs, FieldError{"channel", fmt.Sprintf("max length %d", MaxChannelLen)})
	}
	if r.CampaignID != "" && len(r.CampaignID) > MaxCampaignIDLen {
		errs = append(errs, FieldError{"campaign_id", fmt.Sprintf("max length %d", MaxCampaignIDLen)})
	}

	if len(r.Tags) > MaxTagsCount {
		errs = append(errs, FieldError{"tags", fmt.Sprintf("max %d items", MaxTagsCount)})
	} else {
		for i, tag := range r.Tags {
			if tag == "" {
				errs = append(errs, FieldError{fmt.Sprintf("tags[%d]", i), "must be non-empty"})
				continue
			}
			if len(tag) > MaxTagLen {
				errs = append(errs, FieldError{fmt.Sprintf("tags[%d]", i), fmt.Sprintf("max length %d", MaxTagLen)})
			}
		}
	}

	return errs
}

// Validate checks the bulk envelope (1..MaxBulkEvents items) and every item.
// Item errors are prefixed with their index.
func (r BulkEventRequest) Validate() []FieldError {
	if len(r.Events) == 0 {
		return []FieldError{{"events", "must contain at least one event"}}
	}
	if len(r.Events) > MaxBulkEvents {
		return []FieldError{{"events", fmt.Sprintf("max %d items", MaxBulkEvents)}}
	}

	var errs []FieldError
	for i, event := range r.Events {
		for _, fieldErr := range event.Validate() {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("events[%d].%s", i, fieldErr.Field),
				Message: fieldErr.Message,
			})
		}
	}
	return errs
}

// ToMessage converts the validated request into the broker wire payload.
func (r EventRequest) ToMessage() ports.EventMessage {
	return ports.EventMessage{
		EventName:  r.EventName,
		Channel:    r.Channel,
		CampaignID: r.CampaignID,
		UserID:     r.UserID,
		Timestamp:  r.Timestamp,
		Tags:       r.Tags,
		Metadata:   r.Metadata,
	}
}
