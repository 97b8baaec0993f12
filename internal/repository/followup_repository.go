package repository

import (
	"database/sql"
	"sort"
	"time"

	apperrors "github.com/YanwenWang1125/RealtorOS-sub000/internal/errors"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/model"
)

const followUpColumns = `id, agent_id, lead_id, label, due_at, status, priority, email_message_id, completed_at, created_at`

type FollowUpRepositoryInterface interface {
	Create(f *model.FollowUp) error
	BulkCreate(fs []*model.FollowUp) error
	GetByID(id string) (*model.FollowUp, error)
	ListByLead(leadID string) ([]*model.FollowUp, error)
	ListDue(now time.Time) ([]*model.FollowUp, error)
	ClaimDue(now time.Time) ([]*model.FollowUp, error)
	Release(id string) error
	MarkCompleted(id, messageID string, at time.Time) error
	UpdateStatus(id, status string) error
	Reschedule(id string, dueAt time.Time) error
}

type FollowUpRepository struct {
	DB *sql.DB
}

func (r *FollowUpRepository) Create(f *model.FollowUp) error {
	if f.ID == "" {
		f.ID = model.GenerateID(model.PrefixFollowUp)
	}
	if f.Status == "" {
		f.Status = model.FollowUpStatusPending
	}
	f.CreatedAt = time.Now()

	query := `
		INSERT INTO follow_ups (id, agent_id, lead_id, label, due_at, status, priority, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.DB.Exec(query, f.ID, f.AgentID, f.LeadID, f.Label, f.DueAt, f.Status, f.Priority, f.CreatedAt)
	return err
}

// BulkCreate inserts the fixed follow-up set for a new lead in one
// transaction; either all rows exist afterwards or none do.
func (r *FollowUpRepository) BulkCreate(fs []*model.FollowUp) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return err
	}
	query := `
		INSERT INTO follow_ups (id, agent_id, lead_id, label, due_at, status, priority, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	now := time.Now()
	for _, f := range fs {
		if f.ID == "" {
			f.ID = model.GenerateID(model.PrefixFollowUp)
		}
		if f.Status == "" {
			f.Status = model.FollowUpStatusPending
		}
		f.CreatedAt = now
		if _, err := tx.Exec(query, f.ID, f.AgentID, f.LeadID, f.Label, f.DueAt, f.Status, f.Priority, f.CreatedAt); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (r *FollowUpRepository) GetByID(id string) (*model.FollowUp, error) {
	query := `SELECT ` + followUpColumns + ` FROM follow_ups WHERE id=$1`
	f, err := scanFollowUp(r.DB.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewFollowUpNotFound(id)
	}
	return f, err
}

func (r *FollowUpRepository) ListByLead(leadID string) ([]*model.FollowUp, error) {
	query := `SELECT ` + followUpColumns + ` FROM follow_ups WHERE lead_id=$1 ORDER BY due_at`
	rows, err := r.DB.Query(query, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFollowUps(rows)
}

// ListDue is the diagnostic read: pending follow-ups whose due time has
// passed, without claiming them.
func (r *FollowUpRepository) ListDue(now time.Time) ([]*model.FollowUp, error) {
	query := `
		SELECT ` + followUpColumns + `
		FROM follow_ups
		WHERE status=$1 AND due_at<=$2
		ORDER BY due_at
	`
	rows, err := r.DB.Query(query, model.FollowUpStatusPending, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFollowUps(rows)
}

// ClaimDue atomically flips due pending follow-ups to processing and
// returns them. The conditional update is what keeps two concurrent
// pipeline instances from double-sending the same follow-up.
func (r *FollowUpRepository) ClaimDue(now time.Time) ([]*model.FollowUp, error) {
	query := `
		UPDATE follow_ups
		SET status=$1
		WHERE status=$2 AND due_at<=$3
		RETURNING ` + followUpColumns + `
	`
	rows, err := r.DB.Query(query, model.FollowUpStatusProcessing, model.FollowUpStatusPending, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	claimed, err := collectFollowUps(rows)
	if err != nil {
		return nil, err
	}
	sortByDueAt(claimed)
	return claimed, nil
}

// Release returns a claimed follow-up to pending so the next cycle picks
// it up again.
func (r *FollowUpRepository) Release(id string) error {
	query := `UPDATE follow_ups SET status=$1 WHERE id=$2 AND status=$3`
	_, err := r.DB.Exec(query, model.FollowUpStatusPending, id, model.FollowUpStatusProcessing)
	return err
}

// MarkCompleted finishes the pipeline for one follow-up: status completed,
// back-reference to the message it produced, completion timestamp.
func (r *FollowUpRepository) MarkCompleted(id, messageID string, at time.Time) error {
	query := `
		UPDATE follow_ups
		SET status=$1, email_message_id=$2, completed_at=$3
		WHERE id=$4 AND status=$5
	`
	res, err := r.DB.Exec(query, model.FollowUpStatusCompleted, messageID, at, id, model.FollowUpStatusProcessing)
	if err != nil {
		return err
	}
	return requireRow(res, apperrors.NewInvalidTransition("follow-up", id, "complete"))
}

// UpdateStatus applies an external skip or cancel. Only pending follow-ups
// can be skipped or cancelled.
func (r *FollowUpRepository) UpdateStatus(id, status string) error {
	query := `UPDATE follow_ups SET status=$1 WHERE id=$2 AND status=$3`
	res, err := r.DB.Exec(query, status, id, model.FollowUpStatusPending)
	if err != nil {
		return err
	}
	return requireRow(res, apperrors.NewInvalidTransition("follow-up", id, status))
}

// Reschedule rewrites the due time; allowed only while pending.
func (r *FollowUpRepository) Reschedule(id string, dueAt time.Time) error {
	query := `UPDATE follow_ups SET due_at=$1 WHERE id=$2 AND status=$3`
	res, err := r.DB.Exec(query, dueAt, id, model.FollowUpStatusPending)
	if err != nil {
		return err
	}
	return requireRow(res, apperrors.NewInvalidTransition("follow-up", id, "reschedule"))
}

func scanFollowUp(row *sql.Row) (*model.FollowUp, error) {
	var f model.FollowUp
	var msgID sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(&f.ID, &f.AgentID, &f.LeadID, &f.Label, &f.DueAt, &f.Status, &f.Priority, &msgID, &completedAt, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	if msgID.Valid {
		f.EmailMessageID = &msgID.String
	}
	if completedAt.Valid {
		f.CompletedAt = &completedAt.Time
	}
	return &f, nil
}

func collectFollowUps(rows *sql.Rows) ([]*model.FollowUp, error) {
	followUps := []*model.FollowUp{}
	for rows.Next() {
		var f model.FollowUp
		var msgID sql.NullString
		var completedAt sql.NullTime
		if err := rows.Scan(&f.ID, &f.AgentID, &f.LeadID, &f.Label, &f.DueAt, &f.Status, &f.Priority, &msgID, &completedAt, &f.CreatedAt); err != nil {
			return nil, err
		}
		if msgID.Valid {
			f.EmailMessageID = &msgID.String
		}
		if completedAt.Valid {
			f.CompletedAt = &completedAt.Time
		}
		followUps = append(followUps, &f)
	}
	return followUps, rows.Err()
}

// Postgres does not guarantee UPDATE ... RETURNING order, so claimed rows
// are ordered here.
func sortByDueAt(fs []*model.FollowUp) {
	sort.Slice(fs, func(i, j int) bool { return fs[i].DueAt.Before(fs[j].DueAt) })
}

func requireRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}

var _ FollowUpRepositoryInterface = (*FollowUpRepository)(nil)
