package repository

import (
	"database/sql"

	apperrors "github.com/YanwenWang1125/RealtorOS-sub000/internal/errors"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/model"
)

type AgentRepositoryInterface interface {
	GetByID(id string) (*model.Agent, error)
}

type AgentRepository struct {
	DB *sql.DB
}

func (r *AgentRepository) GetByID(id string) (*model.Agent, error) {
	query := `
		SELECT id, first_name, last_name, email, phone, brokerage, created_at
		FROM agents WHERE id=$1
	`
	var a model.Agent
	err := r.DB.QueryRow(query, id).Scan(&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.Phone, &a.Brokerage, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewAgentNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

var _ AgentRepositoryInterface = (*AgentRepository)(nil)
