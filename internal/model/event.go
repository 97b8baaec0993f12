package model

import (
	"encoding/json"
	"time"
)

// Provider event types. The provider may re-deliver or reorder
// notifications, so any of the post-sent events can arrive any number of
// times and in any order.
const (
	EventProcessed  = "processed"
	EventDelivered  = "delivered"
	EventOpen       = "open"
	EventClick      = "click"
	EventBounce     = "bounce"
	EventDropped    = "dropped"
	EventDeferred   = "deferred"
	EventSpamReport = "spamreport"
	EventUnknown    = "unknown"
)

// ProviderEvent is one normalized delivery/engagement notification.
// Events with an unrecognized eventType are kept as EventUnknown with the
// raw payload intact; they are logged to the message's audit trail but do
// not advance its status.
type ProviderEvent struct {
	Type              string
	Recipient         string
	Timestamp         time.Time
	ProviderMessageID string

	// click events
	URL string
	// bounce events
	Reason     string
	StatusCode string

	// Raw is the payload exactly as the provider sent it.
	Raw json.RawMessage
}

type eventPayload struct {
	Recipient         string `json:"recipient"`
	EventTimestamp    int64  `json:"eventTimestamp"`
	EventType         string `json:"eventType"`
	ProviderMessageID string `json:"providerMessageId"`
	URL               string `json:"url"`
	Reason            string `json:"reason"`
	StatusCode        string `json:"statusCode"`
}

func knownEventType(t string) bool {
	switch t {
	case EventProcessed, EventDelivered, EventOpen, EventClick,
		EventBounce, EventDropped, EventDeferred, EventSpamReport:
		return true
	}
	return false
}

// ParseProviderEvent decodes a single provider callback payload into a
// ProviderEvent, preserving the raw payload verbatim.
func ParseProviderEvent(raw json.RawMessage) (*ProviderEvent, error) {
	var p eventPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	ev := &ProviderEvent{
		Type:              p.EventType,
		Recipient:         p.Recipient,
		Timestamp:         time.Unix(p.EventTimestamp, 0).UTC(),
		ProviderMessageID: p.ProviderMessageID,
		URL:               p.URL,
		Reason:            p.Reason,
		StatusCode:        p.StatusCode,
		Raw:               raw,
	}
	if !knownEventType(ev.Type) {
		ev.Type = EventUnknown
	}
	return ev, nil
}
