package bookings

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/voyagedesk/voyagedesk/internal/shared"
)

type memoryRepo struct {
	bookings map[uuid.UUID]Booking
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{bookings: make(map[uuid.UUID]Booking)}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) Get(_ context.Context, id uuid.UUID) (Booking, error) {
	booking, ok := m.bookings[id]
	if !ok {
		return Booking{}, shared.ErrNotFound
	}
	return booking, nil
}

func (m *memoryRepo) List(_ context.Context, filter ListFilter) ([]Booking, error) {
	var out []Booking
	for _, booking := range m.bookings {
		if filter.Status != "" && booking.Status != filter.Status {
			continue
		}
		out = append(out, booking)
	}
	return out, nil
}

func (m *memoryRepo) GuardedUpdate(ctx context.Context, id uuid.UUID, expectedUpdatedAt *time.Time, changes UpdateChanges) (Booking, error) {
	booking, err := m.Get(ctx, id)
	if err != nil {
		return Booking{}, err
	}
	if expectedUpdatedAt != nil && !booking.UpdatedAt.Equal(*expectedUpdatedAt) {
		return Booking{}, shared.ErrConcurrentModification
	}
	if changes.Destination != nil {
		booking.Destination = *changes.Destination
	}
	if changes.Notes != nil {
		booking.Notes = *changes.Notes
	}
	booking.UpdatedAt = booking.UpdatedAt.Add(time.Millisecond)
	m.bookings[id] = booking
	return booking, nil
}

func (m *memoryRepo) Insert(_ context.Context, booking Booking) error {
	m.bookings[booking.ID] = booking
	return nil
}

func (m *memoryRepo) UpdateStatus(_ context.Context, id uuid.UUID, status Status) error {
	booking, ok := m.bookings[id]
	if !ok {
		return shared.ErrNotFound
	}
	booking.Status = status
	booking.UpdatedAt = booking.UpdatedAt.Add(time.Millisecond)
	m.bookings[id] = booking
	return nil
}

type activityRecorder struct {
	logs []shared.ActivityLog
}

func (a *activityRecorder) Record(_ context.Context, log shared.ActivityLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func newTestService() (*Service, *memoryRepo, *activityRecorder) {
	repo := newMemoryRepo()
	activity := &activityRecorder{}
	return NewService(repo, activity), repo, activity
}

func TestCreate(t *testing.T) {
	svc, _, activity := newTestService()

	booking, err := svc.Create(context.Background(), "ops-1", CreateInput{Destination: "Kyoto"})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, booking.Status)
	require.Contains(t, booking.Reference, "TRIP-")
	require.Len(t, activity.logs, 1)
	require.Equal(t, "BOOKING_CREATE", activity.logs[0].Action)
}

func TestCreateRequiresDestination(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Create(context.Background(), "ops-1", CreateInput{})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestGuardedUpdate(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	booking, err := svc.Create(ctx, "ops-1", CreateInput{Destination: "Kyoto"})
	require.NoError(t, err)
	t0 := booking.UpdatedAt

	dest := "Osaka"
	updated, err := svc.GuardedUpdate(ctx, "ops-1", booking.ID, &t0, UpdateChanges{Destination: &dest})
	require.NoError(t, err)
	require.Equal(t, "Osaka", updated.Destination)

	// Second writer still holding the stale timestamp loses.
	dest = "Nara"
	_, err = svc.GuardedUpdate(ctx, "ops-1", booking.ID, &t0, UpdateChanges{Destination: &dest})
	require.ErrorIs(t, err, shared.ErrConcurrentModification)

	fresh, err := svc.Get(ctx, booking.ID)
	require.NoError(t, err)
	t1 := fresh.UpdatedAt
	updated, err = svc.GuardedUpdate(ctx, "ops-1", booking.ID, &t1, UpdateChanges{Destination: &dest})
	require.NoError(t, err)
	require.Equal(t, "Nara", updated.Destination)
}

func TestUpdateStatusHappyPath(t *testing.T) {
	svc, _, activity := newTestService()
	ctx := context.Background()

	booking, err := svc.Create(ctx, "ops-1", CreateInput{Destination: "Kyoto"})
	require.NoError(t, err)

	for _, target := range []Status{StatusPlanning, StatusConfirmed, StatusInProgress, StatusCompleted} {
		booking, err = svc.UpdateStatus(ctx, "ops-1", booking.ID, target, false)
		require.NoError(t, err)
		require.Equal(t, target, booking.Status)
	}

	last := activity.logs[len(activity.logs)-1]
	require.Equal(t, "BOOKING_STATUS", last.Action)
	require.Equal(t, "in_progress", last.Meta["previous_status"])
	require.Equal(t, "completed", last.Meta["new_status"])
}

func TestUpdateStatusRejectsInvalidTransition(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	booking, err := svc.Create(ctx, "ops-1", CreateInput{Destination: "Kyoto"})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, "ops-1", booking.ID, StatusCompleted, false)
	var invalid *shared.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "booking", invalid.Entity)
	require.ElementsMatch(t, []string{"planning", "cancelled"}, invalid.Allowed)

	got, err := svc.Get(ctx, booking.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, got.Status)
}

func TestUpdateStatusTerminal(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	booking, err := svc.Create(ctx, "ops-1", CreateInput{Destination: "Kyoto"})
	require.NoError(t, err)
	for _, target := range []Status{StatusPlanning, StatusConfirmed, StatusInProgress, StatusCompleted} {
		booking, err = svc.UpdateStatus(ctx, "ops-1", booking.ID, target, false)
		require.NoError(t, err)
	}

	_, err = svc.UpdateStatus(ctx, "ops-1", booking.ID, StatusCancelled, false)
	var invalid *shared.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	require.Empty(t, invalid.Allowed)
	require.Contains(t, invalid.Error(), "terminal")
}

func TestUpdateStatusReopenCancelled(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	booking, err := svc.Create(ctx, "ops-1", CreateInput{Destination: "Kyoto"})
	require.NoError(t, err)
	booking, err = svc.UpdateStatus(ctx, "ops-1", booking.ID, StatusCancelled, false)
	require.NoError(t, err)

	booking, err = svc.UpdateStatus(ctx, "ops-1", booking.ID, StatusDraft, false)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, booking.Status)
}

func TestUpdateStatusSkipValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	booking, err := svc.Create(ctx, "admin-1", CreateInput{Destination: "Kyoto"})
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(ctx, "admin-1", booking.ID, StatusCompleted, true)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, updated.Status)
}

func TestUpdateStatusUnknownStatus(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.UpdateStatus(context.Background(), "ops-1", uuid.New(), Status("booked"), false)
	require.ErrorIs(t, err, shared.ErrValidation)
}
