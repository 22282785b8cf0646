package bookings

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voyagedesk/voyagedesk/internal/platform/db"
	"github.com/voyagedesk/voyagedesk/internal/shared"
)

const bookingColumns = `id, reference, destination, status, notes, created_at, updated_at`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.Reference, &b.Destination, &b.Status, &b.Notes, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Booking{}, shared.ErrNotFound
		}
		return Booking{}, err
	}
	return b, nil
}

// Get returns a booking by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Booking, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id)
	return scanBooking(row)
}

// List returns bookings matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+bookingColumns+` FROM bookings
WHERE ($1::text = '' OR status=$1) ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		string(filter.Status), filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var bookings []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// GuardedUpdate applies field changes as a single conditional UPDATE so the
// version comparison happens atomically at the storage layer. Zero rows are
// disambiguated with a follow-up existence read.
func (r *Repository) GuardedUpdate(ctx context.Context, id uuid.UUID, expectedUpdatedAt *time.Time, changes UpdateChanges) (Booking, error) {
	row := r.pool.QueryRow(ctx, `UPDATE bookings
SET destination=COALESCE($3, destination), notes=COALESCE($4, notes), updated_at=NOW()
WHERE id=$1 AND ($2::timestamptz IS NULL OR updated_at=$2)
RETURNING `+bookingColumns, id, expectedUpdatedAt, changes.Destination, changes.Notes)
	booking, err := scanBooking(row)
	if err == nil {
		return booking, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Booking{}, err
	}
	var exists bool
	if scanErr := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id=$1)`, id).Scan(&exists); scanErr != nil {
		return Booking{}, scanErr
	}
	if exists {
		return Booking{}, shared.ErrConcurrentModification
	}
	return Booking{}, shared.ErrNotFound
}

// Transactional operations.

func (t *txRepo) Insert(ctx context.Context, booking Booking) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO bookings (`+bookingColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		booking.ID, booking.Reference, booking.Destination, string(booking.Status), booking.Notes,
		booking.CreatedAt, booking.UpdatedAt)
	return err
}

func (t *txRepo) Get(ctx context.Context, id uuid.UUID) (Booking, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id)
	return scanBooking(row)
}

func (t *txRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := t.tx.Exec(ctx, `UPDATE bookings SET status=$2, updated_at=NOW() WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
