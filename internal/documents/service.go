package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voyagedesk/voyagedesk/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id uuid.UUID) (Document, error)
	GetActive(ctx context.Context, id uuid.UUID) (Document, error)
	List(ctx context.Context, filter ListFilter) ([]Document, error)
	ActiveStatementForVoucher(ctx context.Context, voucherID uuid.UUID) (Document, error)
	GuardedUpdate(ctx context.Context, id uuid.UUID, expectedUpdatedAt *time.Time, changes UpdateChanges) (Document, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	Insert(ctx context.Context, doc Document) error
	Get(ctx context.Context, id uuid.UUID) (Document, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	ActiveStatementForVoucher(ctx context.Context, voucherID uuid.UUID) (Document, error)
}

// ActivityPort reused from shared.
type ActivityPort interface {
	Record(ctx context.Context, log shared.ActivityLog) error
}

// ListFilter narrows List results.
type ListFilter struct {
	Type           Type
	Status         Status
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// UpdateChanges carries the mutable fields of a guarded update. Nil fields
// are left untouched.
type UpdateChanges struct {
	Amount *float64
	Notes  *string
}

// CreateInput describes a document creation payload.
type CreateInput struct {
	Number   string
	Type     Type
	Amount   float64
	Currency string
	Notes    string
}

// DeletionCheck is the result of the voucher deletion pre-check.
type DeletionCheck struct {
	CanDelete              bool
	Reason                 string
	BlockingDocumentNumber string
}

// Service governs the document lifecycle: creation, guarded updates, status
// transitions, soft deletion, and the voucher/statement link invariant.
type Service struct {
	repo     RepositoryPort
	activity ActivityPort
}

// NewService constructs the document service.
func NewService(repo RepositoryPort, activity ActivityPort) *Service {
	return &Service{repo: repo, activity: activity}
}

// Create persists a new document in draft status. Statements of payment must
// be created through CreateStatementForVoucher so the link invariant applies.
func (s *Service) Create(ctx context.Context, actorID string, input CreateInput) (Document, error) {
	if !input.Type.Valid() {
		return Document{}, fmt.Errorf("%w: unknown document type %q", shared.ErrValidation, input.Type)
	}
	if input.Type == TypeStatementOfPayment {
		return Document{}, fmt.Errorf("%w: statements of payment must reference a voucher", shared.ErrValidation)
	}
	doc := s.newDocument(input, nil)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Insert(ctx, doc)
	})
	if err != nil {
		return Document{}, err
	}
	s.recordActivity(ctx, actorID, "DOC_CREATE", doc.ID, map[string]any{"number": doc.Number, "type": string(doc.Type)})
	return doc, nil
}

// CanCreateActiveLink reports whether the voucher currently has no active
// statement of payment. This is the fast, friendly pre-check; the partial
// unique index on active voucher links is the authoritative guarantee.
func (s *Service) CanCreateActiveLink(ctx context.Context, voucherID uuid.UUID) (bool, error) {
	_, err := s.repo.ActiveStatementForVoucher(ctx, voucherID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

// CreateStatementForVoucher creates a statement of payment linked to the
// voucher. The active-link pre-check runs immediately before the insert; a
// storage-level unique violation surfaces as the same ActiveLinkConflict.
func (s *Service) CreateStatementForVoucher(ctx context.Context, actorID string, voucherID uuid.UUID, input CreateInput) (Document, error) {
	if input.Type != "" && input.Type != TypeStatementOfPayment {
		return Document{}, fmt.Errorf("%w: linked documents must be statements of payment", shared.ErrValidation)
	}
	voucher, err := s.repo.GetActive(ctx, voucherID)
	if err != nil {
		return Document{}, err
	}
	if voucher.Type != TypePaymentVoucher {
		return Document{}, fmt.Errorf("%w: document %s is not a payment voucher", shared.ErrValidation, voucher.Number)
	}

	input.Type = TypeStatementOfPayment
	doc := s.newDocument(input, &voucherID)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.ActiveStatementForVoucher(ctx, voucherID); err == nil {
			return shared.ErrActiveLinkConflict
		} else if !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		return tx.Insert(ctx, doc)
	})
	if err != nil {
		return Document{}, err
	}
	s.recordActivity(ctx, actorID, "SOP_CREATE", doc.ID, map[string]any{"number": doc.Number, "voucher_id": voucherID.String()})
	return doc, nil
}

// Get returns an active document by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Document, error) {
	return s.repo.GetActive(ctx, id)
}

// Lookup returns a document by id, tombstones included. Callers that need to
// distinguish "never existed" from "already deleted" use this instead of Get.
func (s *Service) Lookup(ctx context.Context, id uuid.UUID) (Document, error) {
	return s.repo.Get(ctx, id)
}

// List returns documents matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Document, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.repo.List(ctx, filter)
}

// GuardedUpdate applies field changes under optimistic concurrency control.
// When expectedUpdatedAt is supplied the write only happens if the stored
// version still matches; a losing writer gets ErrConcurrentModification and
// must refetch. There is no automatic retry.
func (s *Service) GuardedUpdate(ctx context.Context, actorID string, id uuid.UUID, expectedUpdatedAt *time.Time, changes UpdateChanges) (Document, error) {
	updated, err := s.repo.GuardedUpdate(ctx, id, expectedUpdatedAt, changes)
	if err != nil {
		return Document{}, err
	}
	s.recordActivity(ctx, actorID, "DOC_UPDATE", id, map[string]any{"number": updated.Number})
	return updated, nil
}

// UpdateStatus transitions the document to target, validating the edge
// against the workflow table unless skipValidation is set (admin override).
// The override skips the edge check only; the target must still be a member
// of the status enumeration. The activity event carries the previous and new
// status.
func (s *Service) UpdateStatus(ctx context.Context, actorID string, id uuid.UUID, target Status, skipValidation bool) (Document, error) {
	if !target.Valid() {
		return Document{}, fmt.Errorf("%w: unknown document status %q", shared.ErrValidation, target)
	}
	var previous Status
	var updated Document
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if doc.Deleted() {
			return shared.ErrNotFound
		}
		previous = doc.Status
		if !skipValidation && !IsValidTransition(doc.Status, target) {
			return &shared.InvalidTransitionError{
				Entity:  "document",
				From:    string(doc.Status),
				To:      string(target),
				Allowed: statusStrings(AllowedNext(doc.Status)),
			}
		}
		if err := tx.UpdateStatus(ctx, id, target); err != nil {
			return err
		}
		doc.Status = target
		updated = doc
		return nil
	})
	if err != nil {
		return Document{}, err
	}
	s.recordActivity(ctx, actorID, "DOC_STATUS", id, map[string]any{
		"previous_status": string(previous),
		"new_status":      string(target),
	})
	return updated, nil
}

// CheckCanDeleteVoucher reports whether the voucher may be soft-deleted. A
// voucher referenced by an active statement of payment is blocked until the
// statement is deleted first.
func (s *Service) CheckCanDeleteVoucher(ctx context.Context, voucherID uuid.UUID) (DeletionCheck, error) {
	blocking, err := s.repo.ActiveStatementForVoucher(ctx, voucherID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return DeletionCheck{CanDelete: true}, nil
		}
		return DeletionCheck{}, err
	}
	return DeletionCheck{
		CanDelete:              false,
		Reason:                 fmt.Sprintf("referenced by Statement of Payment %s; delete the statement first", blocking.Number),
		BlockingDocumentNumber: blocking.Number,
	}, nil
}

// SoftDelete tombstones a document. Deleting an already-deleted document is
// a no-op success. For payment vouchers the referential check and the delete
// run in the same transaction.
func (s *Service) SoftDelete(ctx context.Context, actorID string, id uuid.UUID) error {
	deleted := false
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if doc.Deleted() {
			return nil
		}
		if doc.Type == TypePaymentVoucher {
			blocking, err := tx.ActiveStatementForVoucher(ctx, id)
			if err == nil {
				return &shared.ReferentialIntegrityError{BlockingDocumentNumber: blocking.Number}
			}
			if !errors.Is(err, shared.ErrNotFound) {
				return err
			}
		}
		if err := tx.SoftDelete(ctx, id); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return err
	}
	if deleted {
		s.recordActivity(ctx, actorID, "DOC_DELETE", id, nil)
	}
	return nil
}

func (s *Service) newDocument(input CreateInput, voucherID *uuid.UUID) Document {
	now := time.Now().UTC()
	doc := Document{
		ID:              uuid.New(),
		Number:          input.Number,
		Type:            input.Type,
		Status:          StatusDraft,
		Amount:          input.Amount,
		Currency:        defaultString(input.Currency, "USD"),
		Notes:           input.Notes,
		LinkedVoucherID: voucherID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if doc.Number == "" {
		doc.Number = generateNumber(numberPrefix(input.Type))
	}
	return doc
}

func (s *Service) recordActivity(ctx context.Context, actorID, action string, entityID uuid.UUID, meta map[string]any) {
	if s.activity == nil {
		return
	}
	_ = s.activity.Record(ctx, shared.ActivityLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "document",
		EntityID: entityID.String(),
		Meta:     meta,
	})
}

func numberPrefix(t Type) string {
	switch t {
	case TypeInvoice:
		return "INV"
	case TypeReceipt:
		return "RCP"
	case TypePaymentVoucher:
		return "PV"
	case TypeStatementOfPayment:
		return "SOP"
	default:
		return "DOC"
	}
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func statusStrings(statuses []Status) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}
