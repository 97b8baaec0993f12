package apperrors

import (
	"errors"
	"fmt"
)

// NotFoundError is the sentinel for lookups that matched no row.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func NewLeadNotFound(id string) error {
	return &NotFoundError{Resource: "lead", ID: id}
}

func NewAgentNotFound(id string) error {
	return &NotFoundError{Resource: "agent", ID: id}
}

func NewFollowUpNotFound(id string) error {
	return &NotFoundError{Resource: "follow-up", ID: id}
}

func NewMessageNotFound(id string) error {
	return &NotFoundError{Resource: "email message", ID: id}
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// InvalidTransitionError is returned when a status change is attempted
// from a state that does not allow it, e.g. rescheduling a completed
// follow-up.
type InvalidTransitionError struct {
	Resource string
	ID       string
	Action   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s %s in its current status", e.Action, e.Resource, e.ID)
}

func NewInvalidTransition(resource, id, action string) error {
	return &InvalidTransitionError{Resource: resource, ID: id, Action: action}
}

func IsInvalidTransition(err error) bool {
	var it *InvalidTransitionError
	return errors.As(err, &it)
}
