package documents

import (
	"time"

	"github.com/google/uuid"
)

// Type enumerates the financial document kinds.
type Type string

const (
	TypeInvoice            Type = "invoice"
	TypeReceipt            Type = "receipt"
	TypePaymentVoucher     Type = "payment_voucher"
	TypeStatementOfPayment Type = "statement_of_payment"
)

// Valid reports whether t is a known document type.
func (t Type) Valid() bool {
	switch t {
	case TypeInvoice, TypeReceipt, TypePaymentVoucher, TypeStatementOfPayment:
		return true
	}
	return false
}

// Status enumerates document lifecycle statuses.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusIssued    Status = "issued"
	StatusPaid      Status = "paid"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known document status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusIssued, StatusPaid, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// transitions is the allowed-edges table for document statuses. completed
// is terminal; cancelled can only be reopened to draft.
var transitions = map[Status][]Status{
	StatusDraft:     {StatusIssued, StatusCancelled},
	StatusIssued:    {StatusPaid, StatusCancelled},
	StatusPaid:      {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {StatusDraft},
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

// Document is a financial document record. DeletedAt marks a soft-deleted
// (tombstoned) row; tombstones are never physically removed and keep their
// LinkedVoucherID for audit.
type Document struct {
	ID              uuid.UUID
	Number          string
	Type            Type
	Status          Status
	Amount          float64
	Currency        string
	Notes           string
	LinkedVoucherID *uuid.UUID
	DeletedAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Deleted reports whether the document is tombstoned.
func (d Document) Deleted() bool {
	return d.DeletedAt != nil
}
