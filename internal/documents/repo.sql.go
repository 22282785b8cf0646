package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voyagedesk/voyagedesk/internal/platform/db"
	"github.com/voyagedesk/voyagedesk/internal/shared"
)

// activeLinkConstraint is the partial unique index over active voucher
// links. It is the authoritative enforcement of the one-active-statement
// invariant; the application pre-check only exists for friendlier errors.
const activeLinkConstraint = "uq_documents_active_voucher_link"

const documentColumns = `id, number, document_type, status, amount, currency, notes, linked_voucher_id, deleted_at, created_at, updated_at`

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

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	err := row.Scan(
		&doc.ID,
		&doc.Number,
		&doc.Type,
		&doc.Status,
		&doc.Amount,
		&doc.Currency,
		&doc.Notes,
		&doc.LinkedVoucherID,
		&doc.DeletedAt,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, shared.ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

func mapInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if pgErr.ConstraintName == activeLinkConstraint {
			return shared.ErrActiveLinkConflict
		}
		return fmt.Errorf("%w: duplicate document number", shared.ErrValidation)
	}
	return err
}

// Get returns a document by id, including tombstones.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Document, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=$1`, id)
	return scanDocument(row)
}

// GetActive returns a document by id, excluding tombstones.
func (r *Repository) GetActive(ctx context.Context, id uuid.UUID) (Document, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=$1 AND deleted_at IS NULL`, id)
	return scanDocument(row)
}

// List returns documents matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE ($1::text = '' OR document_type=$1)
AND ($2::text = '' OR status=$2)
AND ($3::boolean OR deleted_at IS NULL)
ORDER BY created_at DESC LIMIT $4 OFFSET $5`
	rows, err := r.pool.Query(ctx, query, string(filter.Type), string(filter.Status), filter.IncludeDeleted, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// ActiveStatementForVoucher returns the single active statement of payment
// referencing the voucher, or ErrNotFound.
func (r *Repository) ActiveStatementForVoucher(ctx context.Context, voucherID uuid.UUID) (Document, error) {
	return activeStatementForVoucher(ctx, r.pool, voucherID)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func activeStatementForVoucher(ctx context.Context, q queryRower, voucherID uuid.UUID) (Document, error) {
	row := q.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents
WHERE document_type=$1 AND linked_voucher_id=$2 AND deleted_at IS NULL LIMIT 1`, string(TypeStatementOfPayment), voucherID)
	return scanDocument(row)
}

// GuardedUpdate applies field changes as a single conditional UPDATE. The
// version comparison runs inside the statement itself, so there is no window
// between check and write. A zero-row result is disambiguated with a
// follow-up existence read.
func (r *Repository) GuardedUpdate(ctx context.Context, id uuid.UUID, expectedUpdatedAt *time.Time, changes UpdateChanges) (Document, error) {
	row := r.pool.QueryRow(ctx, `UPDATE documents
SET amount=COALESCE($3, amount), notes=COALESCE($4, notes), updated_at=NOW()
WHERE id=$1 AND deleted_at IS NULL AND ($2::timestamptz IS NULL OR updated_at=$2)
RETURNING `+documentColumns, id, expectedUpdatedAt, changes.Amount, changes.Notes)
	doc, err := scanDocument(row)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Document{}, err
	}
	var exists bool
	if scanErr := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id=$1 AND deleted_at IS NULL)`, id).Scan(&exists); scanErr != nil {
		return Document{}, scanErr
	}
	if exists {
		return Document{}, shared.ErrConcurrentModification
	}
	return Document{}, shared.ErrNotFound
}

// Transactional operations.

func (t *txRepo) Insert(ctx context.Context, doc Document) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO documents (`+documentColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		doc.ID, doc.Number, string(doc.Type), string(doc.Status), doc.Amount, doc.Currency,
		doc.Notes, doc.LinkedVoucherID, doc.DeletedAt, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return mapInsertError(err)
	}
	return nil
}

func (t *txRepo) Get(ctx context.Context, id uuid.UUID) (Document, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=$1`, id)
	return scanDocument(row)
}

func (t *txRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := t.tx.Exec(ctx, `UPDATE documents SET status=$2, updated_at=NOW() WHERE id=$1 AND deleted_at IS NULL`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `UPDATE documents SET deleted_at=NOW(), updated_at=NOW() WHERE id=$1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepo) ActiveStatementForVoucher(ctx context.Context, voucherID uuid.UUID) (Document, error) {
	return activeStatementForVoucher(ctx, t.tx, voucherID)
}
