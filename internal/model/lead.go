package model

import "time"

// Lead is the prospect a follow-up is about. The engine only reads
// leads; creation and edits happen on the CRUD surface.
type Lead struct {
	ID        string     `db:"id" json:"id"`
	AgentID   string     `db:"agent_id" json:"agent_id"`
	FirstName string     `db:"first_name" json:"first_name"`
	LastName  string     `db:"last_name" json:"last_name"`
	Email     string     `db:"email" json:"email"`
	Phone     string     `db:"phone" json:"phone"`
	Source    string     `db:"source" json:"source"`
	Deleted   bool       `db:"deleted" json:"-"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

func (l *Lead) FullName() string {
	if l.LastName == "" {
		return l.FirstName
	}
	return l.FirstName + " " + l.LastName
}
