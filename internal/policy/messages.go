package policy

import (
	"fmt"

	"github.com/voyagedesk/voyagedesk/internal/documents"
	"github.com/voyagedesk/voyagedesk/internal/shared"
)

// EditRestriction returns the human-readable reason an edit is blocked, or
// the empty string when editing is allowed. The predicate ordering mirrors
// CanEditDocument exactly; divergence between the two is a defect.
func EditRestriction(actor *Actor, doc documents.Document) string {
	if !HasPermission(actor, shared.PermDocumentsEdit) {
		return "your role does not allow editing documents"
	}
	if actor.Role == RoleOperations && doc.Type != documents.TypePaymentVoucher {
		return "operations staff may only edit payment vouchers"
	}
	if actor.Role == RoleAdmin {
		return ""
	}
	if doc.Status == documents.StatusCompleted || doc.Status == documents.StatusCancelled {
		return fmt.Sprintf("%s documents are locked and can no longer be edited", doc.Status)
	}
	if actor.Role == RoleAccountant && doc.Status != documents.StatusDraft {
		return "accountants may only edit documents still in draft"
	}
	return ""
}
