package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	apperrors "github.com/YanwenWang1125/RealtorOS-sub000/internal/errors"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/model"
)

const emailMessageColumns = `id, agent_id, lead_id, follow_up_id, recipient, subject, body, status,
	provider_message_id, last_error, created_at, sent_at, first_opened_at, first_clicked_at, updated_at, raw_events`

type EmailMessageRepositoryInterface interface {
	Create(m *model.EmailMessage) error
	GetByID(id string) (*model.EmailMessage, error)
	GetByProviderMessageID(providerID string) (*model.EmailMessage, error)
	MarkSent(id, providerMessageID string, at time.Time) error
	MarkFailed(id, errText string) error
	ApplyEvent(id string, ev *model.ProviderEvent) error
}

type EmailMessageRepository struct {
	DB *sql.DB
}

// Create inserts a new message row in status queued. One row is created
// per dispatch attempt.
func (r *EmailMessageRepository) Create(m *model.EmailMessage) error {
	if m.ID == "" {
		m.ID = model.GenerateID(model.PrefixMessage)
	}
	if m.Status == "" {
		m.Status = model.MessageStatusQueued
	}
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now

	query := `
		INSERT INTO email_messages
		(id, agent_id, lead_id, follow_up_id, recipient, subject, body, status, created_at, updated_at, raw_events)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, '[]'::jsonb)
	`
	_, err := r.DB.Exec(query,
		m.ID, m.AgentID, m.LeadID, m.FollowUpID,
		m.Recipient, m.Subject, m.Body, m.Status,
		m.CreatedAt, m.UpdatedAt,
	)
	return err
}

func (r *EmailMessageRepository) GetByID(id string) (*model.EmailMessage, error) {
	query := `SELECT ` + emailMessageColumns + ` FROM email_messages WHERE id=$1`
	m, err := r.scanOne(r.DB.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewMessageNotFound(id)
	}
	return m, err
}

// GetByProviderMessageID resolves inbound callbacks to a message row.
func (r *EmailMessageRepository) GetByProviderMessageID(providerID string) (*model.EmailMessage, error) {
	query := `SELECT ` + emailMessageColumns + ` FROM email_messages WHERE provider_message_id=$1`
	m, err := r.scanOne(r.DB.QueryRow(query, providerID))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewMessageNotFound(providerID)
	}
	return m, err
}

// MarkSent records a successful transport call. The status flip is
// conditional on the row still being queued: a callback that raced ahead
// of this update must not be overwritten, but the provider message id and
// sent timestamp are recorded either way.
func (r *EmailMessageRepository) MarkSent(id, providerMessageID string, at time.Time) error {
	query := `
		UPDATE email_messages
		SET status = CASE WHEN status=$1 THEN $2 ELSE status END,
		    provider_message_id=$3, sent_at=$4, updated_at=$4
		WHERE id=$5
	`
	_, err := r.DB.Exec(query, model.MessageStatusQueued, model.MessageStatusSent, providerMessageID, at, id)
	return err
}

func (r *EmailMessageRepository) MarkFailed(id, errText string) error {
	query := `UPDATE email_messages SET status=$1, last_error=$2, updated_at=$3 WHERE id=$4`
	_, err := r.DB.Exec(query, model.MessageStatusFailed, errText, time.Now(), id)
	return err
}

// ApplyEvent applies one provider callback in a single atomic update:
// status is overwritten with the event name (last write wins), the
// first-opened/first-clicked timestamps are set only once, and the raw
// payload is appended to the audit log unconditionally. Unknown event
// types leave status untouched but are still logged.
func (r *EmailMessageRepository) ApplyEvent(id string, ev *model.ProviderEvent) error {
	rawEntry, err := json.Marshal([]json.RawMessage{ev.Raw})
	if err != nil {
		return err
	}
	status := ev.Type
	if status == model.EventUnknown {
		status = ""
	}
	query := `
		UPDATE email_messages
		SET status = CASE WHEN $2 <> '' THEN $2 ELSE status END,
		    first_opened_at = CASE WHEN $3 THEN COALESCE(first_opened_at, $5) ELSE first_opened_at END,
		    first_clicked_at = CASE WHEN $4 THEN COALESCE(first_clicked_at, $5) ELSE first_clicked_at END,
		    raw_events = raw_events || $6::jsonb,
		    updated_at = $7
		WHERE id=$1
	`
	res, err := r.DB.Exec(query,
		id,
		status,
		ev.Type == model.EventOpen,
		ev.Type == model.EventClick,
		ev.Timestamp,
		string(rawEntry),
		time.Now(),
	)
	if err != nil {
		return err
	}
	return requireRow(res, apperrors.NewMessageNotFound(id))
}

func (r *EmailMessageRepository) scanOne(row *sql.Row) (*model.EmailMessage, error) {
	var m model.EmailMessage
	var providerID, lastError sql.NullString
	var sentAt, firstOpenedAt, firstClickedAt sql.NullTime
	var rawEvents []byte
	err := row.Scan(
		&m.ID, &m.AgentID, &m.LeadID, &m.FollowUpID,
		&m.Recipient, &m.Subject, &m.Body, &m.Status,
		&providerID, &lastError,
		&m.CreatedAt, &sentAt, &firstOpenedAt, &firstClickedAt, &m.UpdatedAt,
		&rawEvents,
	)
	if err != nil {
		return nil, err
	}
	m.ProviderMessageID = providerID.String
	m.LastError = lastError.String
	if sentAt.Valid {
		m.SentAt = &sentAt.Time
	}
	if firstOpenedAt.Valid {
		m.FirstOpenedAt = &firstOpenedAt.Time
	}
	if firstClickedAt.Valid {
		m.FirstClickedAt = &firstClickedAt.Time
	}
	if len(rawEvents) > 0 {
		if err := json.Unmarshal(rawEvents, &m.RawEvents); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

var _ EmailMessageRepositoryInterface = (*EmailMessageRepository)(nil)
