package model

import "time"

// Follow-up statuses. A follow-up moves pending -> processing -> completed
// through the send pipeline; processing rows that fail or are skipped are
// released back to pending. Skipped and cancelled are set only by explicit
// external action while the follow-up is still pending.
const (
	FollowUpStatusPending    = "pending"
	FollowUpStatusProcessing = "processing"
	FollowUpStatusCompleted  = "completed"
	FollowUpStatusSkipped    = "skipped"
	FollowUpStatusCancelled  = "cancelled"
)

const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// FollowUp is one scheduled follow-up action for a lead.
// EmailMessageID is a denormalized back-reference set only on completion;
// the authoritative link runs the other way (EmailMessage.FollowUpID).
type FollowUp struct {
	ID             string     `db:"id" json:"id"`
	AgentID        string     `db:"agent_id" json:"agent_id"`
	LeadID         string     `db:"lead_id" json:"lead_id"`
	Label          string     `db:"label" json:"label"`
	DueAt          time.Time  `db:"due_at" json:"due_at"`
	Status         string     `db:"status" json:"status"`
	Priority       string     `db:"priority" json:"priority"`
	EmailMessageID *string    `db:"email_message_id" json:"email_message_id,omitempty"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// FollowUpOffset is one row of the fixed scheduling table applied when a
// lead is created.
type FollowUpOffset struct {
	Label       string
	Days        int
	Priority    string
	Description string
}

const FollowUpLabelCustom = "custom"
