package model

import (
	"encoding/json"
	"time"
)

// Email message statuses. A message is created queued, becomes sent or
// failed when the transport call returns, and is afterwards mutated only
// by provider callbacks. The status field holds the most recently applied
// event name; callbacks are last-write-wins, not monotonic.
const (
	MessageStatusQueued = "queued"
	MessageStatusSent   = "sent"
	MessageStatusFailed = "failed"
)

// EmailMessage is one row per dispatch attempt. RawEvents is an
// append-only audit log of every provider callback payload, verbatim,
// including replays.
type EmailMessage struct {
	ID                string            `db:"id" json:"id"`
	AgentID           string            `db:"agent_id" json:"agent_id"`
	LeadID            string            `db:"lead_id" json:"lead_id"`
	FollowUpID        string            `db:"follow_up_id" json:"follow_up_id"`
	Recipient         string            `db:"recipient" json:"recipient"`
	Subject           string            `db:"subject" json:"subject"`
	Body              string            `db:"body" json:"body"`
	Status            string            `db:"status" json:"status"`
	ProviderMessageID string            `db:"provider_message_id" json:"provider_message_id,omitempty"`
	LastError         string            `db:"last_error" json:"last_error,omitempty"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
	SentAt            *time.Time        `db:"sent_at" json:"sent_at,omitempty"`
	FirstOpenedAt     *time.Time        `db:"first_opened_at" json:"first_opened_at,omitempty"`
	FirstClickedAt    *time.Time        `db:"first_clicked_at" json:"first_clicked_at,omitempty"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updated_at"`
	RawEvents         []json.RawMessage `db:"raw_events" json:"raw_events,omitempty"`
}
