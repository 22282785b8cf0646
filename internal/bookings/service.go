package bookings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voyagedesk/voyagedesk/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id uuid.UUID) (Booking, error)
	List(ctx context.Context, filter ListFilter) ([]Booking, error)
	GuardedUpdate(ctx context.Context, id uuid.UUID, expectedUpdatedAt *time.Time, changes UpdateChanges) (Booking, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	Insert(ctx context.Context, booking Booking) error
	Get(ctx context.Context, id uuid.UUID) (Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
}

// ActivityPort reused from shared.
type ActivityPort interface {
	Record(ctx context.Context, log shared.ActivityLog) error
}

// ListFilter narrows List results.
type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}

// UpdateChanges carries the mutable fields of a guarded update. Nil fields
// are left untouched.
type UpdateChanges struct {
	Destination *string
	Notes       *string
}

// CreateInput describes a booking creation payload.
type CreateInput struct {
	Reference   string
	Destination string
	Notes       string
}

// Service governs the booking lifecycle.
type Service struct {
	repo     RepositoryPort
	activity ActivityPort
}

// NewService constructs the booking service.
func NewService(repo RepositoryPort, activity ActivityPort) *Service {
	return &Service{repo: repo, activity: activity}
}

// Create persists a new booking in draft status.
func (s *Service) Create(ctx context.Context, actorID string, input CreateInput) (Booking, error) {
	if input.Destination == "" {
		return Booking{}, fmt.Errorf("%w: destination required", shared.ErrValidation)
	}
	now := time.Now().UTC()
	booking := Booking{
		ID:          uuid.New(),
		Reference:   input.Reference,
		Destination: input.Destination,
		Status:      StatusDraft,
		Notes:       input.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if booking.Reference == "" {
		booking.Reference = fmt.Sprintf("TRIP-%d", now.UnixNano())
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Insert(ctx, booking)
	})
	if err != nil {
		return Booking{}, err
	}
	s.recordActivity(ctx, actorID, "BOOKING_CREATE", booking.ID, map[string]any{"reference": booking.Reference})
	return booking, nil
}

// Get returns a booking by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Booking, error) {
	return s.repo.Get(ctx, id)
}

// List returns bookings matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Booking, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.repo.List(ctx, filter)
}

// GuardedUpdate applies field changes under optimistic concurrency control.
// A stale expectedUpdatedAt yields ErrConcurrentModification; the caller must
// refetch and retry, nothing is retried automatically.
func (s *Service) GuardedUpdate(ctx context.Context, actorID string, id uuid.UUID, expectedUpdatedAt *time.Time, changes UpdateChanges) (Booking, error) {
	updated, err := s.repo.GuardedUpdate(ctx, id, expectedUpdatedAt, changes)
	if err != nil {
		return Booking{}, err
	}
	s.recordActivity(ctx, actorID, "BOOKING_UPDATE", id, map[string]any{"reference": updated.Reference})
	return updated, nil
}

// UpdateStatus transitions the booking to target. Invalid transitions are an
// expected, recoverable outcome: the typed error carries the rejected edge
// and the allowed set so the caller can render it directly. skipValidation
// is the admin override escape hatch.
func (s *Service) UpdateStatus(ctx context.Context, actorID string, id uuid.UUID, target Status, skipValidation bool) (Booking, error) {
	if !target.Valid() {
		return Booking{}, fmt.Errorf("%w: unknown booking status %q", shared.ErrValidation, target)
	}
	var previous Status
	var updated Booking
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		booking, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		previous = booking.Status
		if !skipValidation && !IsValidTransition(booking.Status, target) {
			return &shared.InvalidTransitionError{
				Entity:  "booking",
				From:    string(booking.Status),
				To:      string(target),
				Allowed: statusStrings(AllowedNext(booking.Status)),
			}
		}
		if err := tx.UpdateStatus(ctx, id, target); err != nil {
			return err
		}
		booking.Status = target
		updated = booking
		return nil
	})
	if err != nil {
		return Booking{}, err
	}
	s.recordActivity(ctx, actorID, "BOOKING_STATUS", id, map[string]any{
		"previous_status": string(previous),
		"new_status":      string(target),
	})
	return updated, nil
}

func (s *Service) recordActivity(ctx context.Context, actorID, action string, entityID uuid.UUID, meta map[string]any) {
	if s.activity == nil {
		return
	}
	_ = s.activity.Record(ctx, shared.ActivityLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "booking",
		EntityID: entityID.String(),
		Meta:     meta,
	})
}

func statusStrings(statuses []Status) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}
