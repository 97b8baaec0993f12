package repository

import (
	"database/sql"
	"fmt"
	"time"

	apperrors "github.com/YanwenWang1125/RealtorOS-sub000/internal/errors"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/model"
)

type LeadRepositoryInterface interface {
	Create(l *model.Lead) error
	GetByID(id string) (*model.Lead, error)
	DeleteCascade(id string) error
}

type LeadRepository struct {
	DB *sql.DB
}

func (r *LeadRepository) Create(l *model.Lead) error {
	if l.ID == "" {
		l.ID = model.GenerateID(model.PrefixLead)
	}
	l.CreatedAt = time.Now()
	query := `
		INSERT INTO leads (id, agent_id, first_name, last_name, email, phone, source, deleted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8)
	`
	_, err := r.DB.Exec(query, l.ID, l.AgentID, l.FirstName, l.LastName, l.Email, l.Phone, l.Source, l.CreatedAt)
	return err
}

// GetByID returns the lead unless it has been soft-deleted.
func (r *LeadRepository) GetByID(id string) (*model.Lead, error) {
	query := `
		SELECT id, agent_id, first_name, last_name, email, phone, source, deleted, created_at, updated_at
		FROM leads WHERE id=$1 AND deleted=false
	`
	var l model.Lead
	var updatedAt sql.NullTime
	err := r.DB.QueryRow(query, id).Scan(
		&l.ID, &l.AgentID, &l.FirstName, &l.LastName, &l.Email, &l.Phone, &l.Source, &l.Deleted, &l.CreatedAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewLeadNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	if updatedAt.Valid {
		l.UpdatedAt = &updatedAt.Time
	}
	return &l, nil
}

// DeleteCascade removes everything hanging off a lead in one transaction.
// Follow-ups and the messages they produced reference each other, so the
// back-reference is nulled first, then messages go, then follow-ups, and
// finally the lead is soft-deleted. Any failure rolls the whole cascade
// back.
func (r *LeadRepository) DeleteCascade(id string) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return err
	}

	steps := []struct {
		name  string
		query string
	}{
		{"clear follow-up message refs", `UPDATE follow_ups SET email_message_id=NULL WHERE lead_id=$1 AND email_message_id IS NOT NULL`},
		{"delete email messages", `DELETE FROM email_messages WHERE lead_id=$1`},
		{"delete follow-ups", `DELETE FROM follow_ups WHERE lead_id=$1`},
		{"soft-delete lead", `UPDATE leads SET deleted=true, updated_at=NOW() WHERE id=$1`},
	}
	for _, step := range steps {
		if _, err := tx.Exec(step.query, id); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("delete lead %s: %s: %w", id, step.name, err)
		}
	}
	return tx.Commit()
}

var _ LeadRepositoryInterface = (*LeadRepository)(nil)
