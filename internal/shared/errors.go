package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates the referenced entity does not exist or is
	// already tombstoned where an active record was expected.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied indicates the actor lacks the required capability.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrConcurrentModification indicates the entity changed since the
	// caller last read it. The caller must refetch before retrying.
	ErrConcurrentModification = errors.New("entity was modified by another actor")
	// ErrActiveLinkConflict indicates the voucher already has an active
	// statement of payment.
	ErrActiveLinkConflict = errors.New("voucher already has an active statement of payment")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("invalid input")
)

// InvalidTransitionError rejects a status change that is not a reachable
// edge of the entity's workflow. It carries the allowed set so callers can
// render it directly.
type InvalidTransitionError struct {
	Entity  string
	From    string
	To      string
	Allowed []string
}

func (e *InvalidTransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("%s status %s is terminal, cannot change to %s", e.Entity, e.From, e.To)
	}
	return fmt.Sprintf("%s cannot change status from %s to %s; allowed transitions: %s",
		e.Entity, e.From, e.To, strings.Join(e.Allowed, ", "))
}

// ReferentialIntegrityError blocks deletion of an entity that is still
// referenced by an active record.
type ReferentialIntegrityError struct {
	BlockingDocumentNumber string
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("referenced by Statement of Payment %s; delete the statement first", e.BlockingDocumentNumber)
}
