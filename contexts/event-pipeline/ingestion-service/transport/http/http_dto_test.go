package httptransport

import (
	"strings"
	"testing"
)

func validRequest() EventRequest {
	return EventRequest{
		EventName:  "product_view",
		Channel:    "web",
		CampaignID: "cmp_987",
		UserID:     "user_123",
		Timestamp:  1771156800,
		Tags:       []string{"featured"},
	}
}

func hasFieldError(errs []FieldError, field string) bool {
	for _, fieldErr := range errs {
		if fieldErr.Field == field {
			return true
		}
	}
	return false
}

func TestValidateAcceptsWellFormedRequest(t *testing.T) {
	if errs := validRequest().Validate(); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidateRequiredFields(t *testing.T) {
	req := validRequest()
	req.EventName = ""
	req.UserID = ""
	req.Timestamp = 0

	errs := req.Validate()
	if !hasFieldError(errs, "event_name") {
		t.Fatal("expected event_name error")
	}
	if !hasFieldError(errs, "user_id") {
		t.Fatal("expected user_id error")
	}
	if !hasFieldError(errs, "timestamp") {
		t.Fatal("expected timestamp error")
	}
}

func TestValidateRejectsBlankRequiredFields(t *testing.T) {
	// Whitespace-only values must fail at the intake boundary; downstream
	// conversion trims them too, and a payload passing here but failing there
	// would be silently dead-lettered instead of answered with a 400.
	req := validRequest()
	req.EventName = "   "
	req.UserID = "\t\n"

	errs := req.Validate()
	if !hasFieldError(errs, "event_name") {
		t.Fatal("expected event_name error for whitespace-only value")
	}
	if !hasFieldError(errs, "user_id") {
		t.Fatal("expected user_id error for whitespace-only value")
	}
}

func TestValidateRejectsNegativeTimestamp(t *testing.T) {
	req := validRequest()
	req.Timestamp = -5
	if errs := req.Validate(); !hasFieldError(errs, "timestamp") {
		t.Fatal("expected timestamp error for negative value")
	}
}

func TestValidateLengthCaps(t *testing.T) {
	req := validRequest()
	req.EventName = strings.Repeat("a", MaxEventNameLen+1)
	req.UserID = strings.Repeat("b", MaxUserIDLen+1)
	req.Channel = strings.Repeat("c", MaxChannelLen+1)
	req.CampaignID = strings.Repeat("d", MaxCampaignIDLen+1)

	errs := req.Validate()
	for _, field := range []string{"event_name", "user_id", "channel", "campaign_id"} {
		if !hasFieldError(errs, field) {
			t.Fatalf("expected %s length error", field)
		}
	}
}

func TestValidateOptionalFieldsMayBeEmpty(t *testing.T) {
	req := validRequest()
	req.Channel = ""
	req.CampaignID = ""
	req.Tags = nil
	req.Metadata = nil

	if errs := req.Validate(); len(errs) != 0 {
		t.Fatalf("expected optional fields to be omittable, got %v", errs)
	}
}

func TestValidateTags(t *testing.T) {
	req := validRequest()
	req.Tags = []string{"", strings.Repeat("t", MaxTagLen+1)}

	errs := req.Validate()
	if !hasFieldError(errs, "tags[0]") {
		t.Fatal("expected empty tag error")
	}
	if !hasFieldError(errs, "tags[1]") {
		t.Fatal("expected overlong tag error")
	}

	req.Tags = make([]string, MaxTagsCount+1)
	for i := range req.Tags {
		req.Tags[i] = "tag"
	}
	if errs := req.Validate(); !hasFieldError(errs, "tags") {
		t.Fatal("expected tag count error")
	}
}

func TestBulkValidateEnvelope(t *testing.T) {
	empty := BulkEventRequest{}
	if errs := empty.Validate(); !hasFieldError(errs, "events") {
		t.Fatal("expected error for empty bulk request")
	}

	tooLarge := BulkEventRequest{Events: make([]EventRequest, MaxBulkEvents+1)}
	for i := range tooLarge.Events {
		tooLarge.Events[i] = validRequest()
	}
	if errs := tooLarge.Validate(); !hasFieldError(errs, "events") {
		t.Fatal("expected error for oversized bulk request")
	}

	atCap := BulkEventRequest{Events: make([]EventRequest, MaxBulkEvents)}
	for i := range atCap.Events {
		atCap.Events[i] = validRequest()
	}
	if errs := atCap.Validate(); len(errs) != 0 {
		t.Fatalf("expected bulk request at cap to pass, got %d errors", len(errs))
	}
}

func TestBulkValidatePrefixesItemErrors(t *testing.T) {
	bad := validRequest()
	bad.UserID = ""
	req := BulkEventRequest{Events: []EventRequest{validRequest(), bad}}

	errs := req.Validate()
	if !hasFieldError(errs, "events[1].user_id") {
		t.Fatalf("expected indexed field error, got %v", errs)
	}
	if hasFieldError(errs, "events[0].user_id") {
		t.Fatal("did not expect errors for the valid item")
	}
}

func TestToMessageCarriesAllFields(t *testing.T) {
	req := validRequest()
	req.Metadata = map[string]any{"page": "/checkout"}

	msg := req.ToMessage()
	if msg.EventName != req.EventName || msg.UserID != req.UserID || msg.Timestamp != req.Timestamp {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.Channel != "web" || msg.CampaignID != "cmp_987" {
		t.Fatalf("expected optional fields carried, got %+v", msg)
	}
	if len(msg.Tags) != 1 || msg.Tags[0] != "featured" {
		t.Fatalf("expected tags carried, got %v", msg.Tags)
	}
	if msg.Metadata["page"] != "/checkout" {
		t.Fatalf("expected metadata carried, got %v", msg.Metadata)
	}
}
