package bookings

import (
	"time"

	"github.com/google/uuid"
)

// Status enumerates trip booking lifecycle statuses.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusPlanning   Status = "planning"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is a known booking status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPlanning, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// transitions is the allowed-edges table for booking statuses. completed is
// terminal; a cancelled booking can only be reopened to draft.
var transitions = map[Status][]Status{
	StatusDraft:      {StatusPlanning, StatusCancelled},
	StatusPlanning:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {},
	StatusCancelled:  {StatusDraft},
}

// IsValidTransition reports whether current may change to target. The
// identity transition is always legal.
func IsValidTransition(current, target Status) bool {
	if current == target {
		return true
	}
	for _, next := range transitions[current] {
		if next == target {
			return true
		}
	}
	return false
}

// AllowedNext returns the statuses directly reachable from current.
func AllowedNext(current Status) []Status {
	return append([]Status(nil), transitions[current]...)
}

// Booking is a trip booking record.
type Booking struct {
	ID          uuid.UUID
	Reference   string
	Destination string
	Status      Status
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
