package model

import "github.com/google/uuid"

// GenerateID returns a new identifier with a module prefix,
// e.g. "fup_9f2c..." for follow-ups.
func GenerateID(prefix string) string {
	return prefix + "_" + uuid.New().String()
}

const (
	PrefixAgent    = "agt"
	PrefixLead     = "lead"
	PrefixFollowUp = "fup"
	PrefixMessage  = "msg"
)
