package shared

// Capability tokens checked by the policy engine.
const (
	PermDocumentsView   = "documents.view"
	PermDocumentsEdit   = "documents.edit"
	PermDocumentsDelete = "documents.delete"

	PermBookingsView   = "bookings.view"
	PermBookingsEdit   = "bookings.edit"
	PermBookingsDelete = "bookings.delete"
)

// DocumentScopes lists all permissions related to financial documents.
func DocumentScopes() []string {
	return []string{
		PermDocumentsView,
		PermDocumentsEdit,
		PermDocumentsDelete,
	}
}

// BookingScopes lists all permissions related to trip bookings.
func BookingScopes() []string {
	return []string{
		PermBookingsView,
		PermBookingsEdit,
		PermBookingsDelete,
	}
}
