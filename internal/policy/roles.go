package policy

import "github.com/voyagedesk/voyagedesk/internal/shared"

// Role is the closed set of actor roles. Roles are immutable inputs to every
// check; the engine never mutates them.
type Role string

const (
	RoleViewer     Role = "viewer"
	RoleAccountant Role = "accountant"
	RoleManager    Role = "manager"
	RoleAdmin      Role = "admin"
	RoleOperations Role = "operations"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleViewer, RoleAccountant, RoleManager, RoleAdmin, RoleOperations:
		return true
	}
	return false
}

// Permissions returns the fixed capability set for a role. The switch is
// exhaustive over the Role constants; an unknown or malformed role gets the
// empty set rather than a silent lookup miss.
func (r Role) Permissions() []string {
	switch r {
	case RoleViewer:
		return []string{
			shared.PermDocumentsView,
			shared.PermBookingsView,
		}
	case RoleAccountant:
		return []string{
			shared.PermDocumentsView,
			shared.PermDocumentsEdit,
			shared.PermDocumentsDelete,
			shared.PermBookingsView,
		}
	case RoleManager:
		return []string{
			shared.PermDocumentsView,
			shared.PermDocumentsEdit,
			shared.PermDocumentsDelete,
			shared.PermBookingsView,
			shared.PermBookingsEdit,
			shared.PermBookingsDelete,
		}
	case RoleAdmin:
		return append(shared.DocumentScopes(), shared.BookingScopes()...)
	case RoleOperations:
		return []string{
			shared.PermDocumentsView,
			shared.PermDocumentsEdit,
			shared.PermBookingsView,
			shared.PermBookingsEdit,
		}
	default:
		return nil
	}
}
