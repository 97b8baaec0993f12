package model

import "time"

// Agent is the tenant identity. Every lead and follow-up belongs to
// exactly one agent.
type Agent struct {
	ID        string    `db:"id" json:"id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	Brokerage string    `db:"brokerage" json:"brokerage"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// FullName is used when signing generated emails.
func (a *Agent) FullName() string {
	if a.FirstName == "" && a.LastName == "" {
		return ""
	}
	if a.LastName == "" {
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}
