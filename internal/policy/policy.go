// Package policy implements the static role/status gate for documents and
// bookings. Every check is a total function over its inputs: a nil actor or
// malformed role simply has no capabilities.
package policy

import (
	"github.com/voyagedesk/voyagedesk/internal/documents"
	"github.com/voyagedesk/voyagedesk/internal/shared"
)

// HasPermission reports whether the actor's role grants the capability.
func HasPermission(actor *Actor, permission string) bool {
	if actor == nil || permission == "" {
		return false
	}
	for _, granted := range actor.Role.Permissions() {
		if granted == permission {
			return true
		}
	}
	return false
}

// CanEditDocument decides whether the actor may edit the document.
//
// Ordering matters and must stay aligned with EditRestriction:
// permission gate, operations type scope, admin bypass, terminal freeze,
// accountant draft-only, default allow.
func CanEditDocument(actor *Actor, doc documents.Document) bool {
	if !HasPermission(actor, shared.PermDocumentsEdit) {
		return false
	}
	if actor.Role == RoleOperations && doc.Type != documents.TypePaymentVoucher {
		return false
	}
	if actor.Role == RoleAdmin {
		return true
	}
	if doc.Status == documents.StatusCompleted || doc.Status == documents.StatusCancelled {
		return false
	}
	if actor.Role == RoleAccountant {
		return doc.Status == documents.StatusDraft
	}
	return true
}

// CanDeleteDocument decides whether the actor may soft-delete the document.
// Operations never deletes, regardless of document type. Admin always may.
// Everyone else is blocked on completed documents.
func CanDeleteDocument(actor *Actor, doc documents.Document) bool {
	if !HasPermission(actor, shared.PermDocumentsDelete) {
		return false
	}
	if actor.Role == RoleOperations {
		return false
	}
	if actor.Role == RoleAdmin {
		return true
	}
	return doc.Status != documents.StatusCompleted
}
