package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/voyagedesk/voyagedesk/internal/documents"
	"github.com/voyagedesk/voyagedesk/internal/pdfexport"
	"github.com/voyagedesk/voyagedesk/internal/policy"
	"github.com/voyagedesk/voyagedesk/internal/shared"
)

type fakeRepo struct {
	docs map[uuid.UUID]documents.Document
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{docs: make(map[uuid.UUID]documents.Document)}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, documents.TxRepository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) Get(_ context.Context, id uuid.UUID) (documents.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return documents.Document{}, shared.ErrNotFound
	}
	return doc, nil
}

func (f *fakeRepo) GetActive(ctx context.Context, id uuid.UUID) (documents.Document, error) {
	doc, err := f.Get(ctx, id)
	if err != nil || doc.Deleted() {
		return documents.Document{}, shared.ErrNotFound
	}
	return doc, nil
}

func (f *fakeRepo) List(_ context.Context, filter documents.ListFilter) ([]documents.Document, error) {
	var out []documents.Document
	for _, doc := range f.docs {
		if doc.Deleted() && !filter.IncludeDeleted {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

func (f *fakeRepo) ActiveStatementForVoucher(_ context.Context, voucherID uuid.UUID) (documents.Document, error) {
	for _, doc := range f.docs {
		if doc.Type == documents.TypeStatementOfPayment && !doc.Deleted() &&
			doc.LinkedVoucherID != nil && *doc.LinkedVoucherID == voucherID {
			return doc, nil
		}
	}
	return documents.Document{}, shared.ErrNotFound
}

func (f *fakeRepo) GuardedUpdate(ctx context.Context, id uuid.UUID, expectedUpdatedAt *time.Time, changes documents.UpdateChanges) (documents.Document, error) {
	doc, err := f.GetActive(ctx, id)
	if err != nil {
		return documents.Document{}, err
	}
	if expectedUpdatedAt != nil && !doc.UpdatedAt.Equal(*expectedUpdatedAt) {
		return documents.Document{}, shared.ErrConcurrentModification
	}
	if changes.Amount != nil {
		doc.Amount = *changes.Amount
	}
	if changes.Notes != nil {
		doc.Notes = *changes.Notes
	}
	doc.UpdatedAt = doc.UpdatedAt.Add(time.Millisecond)
	f.docs[id] = doc
	return doc, nil
}

func (f *fakeRepo) Insert(_ context.Context, doc documents.Document) error {
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id uuid.UUID, status documents.Status) error {
	doc := f.docs[id]
	doc.Status = status
	doc.UpdatedAt = doc.UpdatedAt.Add(time.Millisecond)
	f.docs[id] = doc
	return nil
}

func (f *fakeRepo) SoftDelete(_ context.Context, id uuid.UUID) error {
	doc := f.docs[id]
	now := time.Now().UTC()
	doc.DeletedAt = &now
	f.docs[id] = doc
	return nil
}

type staticRenderer struct{}

func (staticRenderer) RenderDocument(context.Context, documents.Document) ([]byte, error) {
	return []byte("%PDF-1.7 test"), nil
}

func newTestRouter(repo *fakeRepo) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := documents.NewService(repo, nil)
	exporter := pdfexport.NewExporter(staticRenderer{}, pdfexport.NewCache(nil, 0))
	handler := NewHandler(logger, service, exporter, nil, policy.Middleware{})

	r := chi.NewRouter()
	r.Route("/documents", handler.MountRoutes)
	return r
}

func doRequest(t *testing.T, router http.Handler, role policy.Role, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, target, reader)
	if role != "" {
		req = req.WithContext(policy.ContextWithActor(req.Context(), &policy.Actor{ID: "user-1", Role: role}))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func seedDocument(repo *fakeRepo, typ documents.Type, status documents.Status) documents.Document {
	doc := documents.Document{
		ID:        uuid.New(),
		Number:    fmt.Sprintf("%s-%d", typ, len(repo.docs)+1),
		Type:      typ,
		Status:    status,
		Currency:  "USD",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	repo.docs[doc.ID] = doc
	return doc
}

func TestRoutesRequirePermission(t *testing.T) {
	router := newTestRouter(newFakeRepo())

	// No actor at all. Denials are RFC7807 problems, not plain text.
	rec := doRequest(t, router, "", http.MethodGet, "/documents", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "Permission Denied")

	// Viewer can read but not write or delete.
	rec = doRequest(t, router, policy.RoleViewer, http.MethodGet, "/documents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(t, router, policy.RoleViewer, http.MethodPost, "/documents", map[string]any{"type": "invoice"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Operations holds edit but not delete.
	rec = doRequest(t, router, policy.RoleOperations, http.MethodDelete, "/documents/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateDocument(t *testing.T) {
	router := newTestRouter(newFakeRepo())

	rec := doRequest(t, router, policy.RoleAccountant, http.MethodPost, "/documents", map[string]any{
		"type":   "invoice",
		"amount": 99.5,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "invoice", resp["type"])
	require.Equal(t, "draft", resp["status"])
	require.Equal(t, "USD", resp["currency"])
}

func TestCreateStatementRequiresVoucher(t *testing.T) {
	repo := newFakeRepo()
	router := newTestRouter(repo)

	rec := doRequest(t, router, policy.RoleAccountant, http.MethodPost, "/documents", map[string]any{
		"type": "statement_of_payment",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	voucher := seedDocument(repo, documents.TypePaymentVoucher, documents.StatusDraft)
	rec = doRequest(t, router, policy.RoleAccountant, http.MethodPost, "/documents", map[string]any{
		"type":              "statement_of_payment",
		"linked_voucher_id": voucher.ID.String(),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestUpdateConcurrencyConflict(t *testing.T) {
	repo := newFakeRepo()
	router := newTestRouter(repo)
	doc := seedDocument(repo, documents.TypeInvoice, documents.StatusDraft)

	stale := doc.UpdatedAt.Add(-time.Minute)
	rec := doRequest(t, router, policy.RoleManager, http.MethodPatch, "/documents/"+doc.ID.String(), map[string]any{
		"amount":              150.0,
		"expected_updated_at": stale.Format(time.RFC3339Nano),
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, router, policy.RoleManager, http.MethodPatch, "/documents/"+doc.ID.String(), map[string]any{
		"amount":              150.0,
		"expected_updated_at": doc.UpdatedAt.Format(time.RFC3339Nano),
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateHonorsEditPolicy(t *testing.T) {
	repo := newFakeRepo()
	router := newTestRouter(repo)
	doc := seedDocument(repo, documents.TypeInvoice, documents.StatusIssued)

	// Accountants may only edit drafts; the body carries the reason.
	rec := doRequest(t, router, policy.RoleAccountant, http.MethodPatch, "/documents/"+doc.ID.String(), map[string]any{
		"notes": "late fee",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "draft")

	rec = doRequest(t, router, policy.RoleManager, http.MethodPatch, "/documents/"+doc.ID.String(), map[string]any{
		"notes": "late fee",
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateStatusTransitionRejected(t *testing.T) {
	repo := newFakeRepo()
	router := newTestRouter(repo)
	doc := seedDocument(repo, documents.TypeInvoice, documents.StatusDraft)

	rec := doRequest(t, router, policy.RoleManager, http.MethodPost, "/documents/"+doc.ID.String()+"/status", map[string]any{
		"status": "completed",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "allowed transitions")
}

func TestSkipValidationAdminOnly(t *testing.T) {
	repo := newFakeRepo()
	router := newTestRouter(repo)
	doc := seedDocument(repo, documents.TypeInvoice, documents.StatusDraft)

	rec := doRequest(t, router, policy.RoleManager, http.MethodPost, "/documents/"+doc.ID.String()+"/status", map[string]any{
		"status":          "completed",
		"skip_validation": true,
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, router, policy.RoleAdmin, http.MethodPost, "/documents/"+doc.ID.String()+"/status", map[string]any{
		"status":          "completed",
		"skip_validation": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteVoucherBlockedByStatement(t *testing.T) {
	repo := newFakeRepo()
	router := newTestRouter(repo)
	voucher := seedDocument(repo, documents.TypePaymentVoucher, documents.StatusDraft)
	statement := seedDocument(repo, documents.TypeStatementOfPayment, documents.StatusDraft)
	statement.LinkedVoucherID = &voucher.ID
	repo.docs[statement.ID] = statement

	rec := doRequest(t, router, policy.RoleManager, http.MethodGet, "/documents/"+voucher.ID.String()+"/can-delete", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var check map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &check))
	require.Equal(t, false, check["can_delete"])
	require.Equal(t, statement.Number, check["blocking_document_number"])

	rec = doRequest(t, router, policy.RoleManager, http.MethodDelete, "/documents/"+voucher.ID.String(), nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), statement.Number)

	// Delete the statement, then the voucher.
	rec = doRequest(t, router, policy.RoleManager, http.MethodDelete, "/documents/"+statement.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = doRequest(t, router, policy.RoleManager, http.MethodDelete, "/documents/"+voucher.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Deleting again is a no-op success.
	rec = doRequest(t, router, policy.RoleManager, http.MethodDelete, "/documents/"+voucher.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestDeleteUnknownDocumentNotFound(t *testing.T) {
	repo := newFakeRepo()
	router := newTestRouter(repo)

	// Unknown ids are 404; only tombstoned documents get the no-op 204.
	rec := doRequest(t, router, policy.RoleManager, http.MethodDelete, "/documents/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	doc := seedDocument(repo, documents.TypeInvoice, documents.StatusDraft)
	rec = doRequest(t, router, policy.RoleManager, http.MethodDelete, "/documents/"+doc.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = doRequest(t, router, policy.RoleManager, http.MethodDelete, "/documents/"+doc.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUpdateStatusUnknownStatusRejected(t *testing.T) {
	repo := newFakeRepo()
	router := newTestRouter(repo)
	doc := seedDocument(repo, documents.TypeInvoice, documents.StatusDraft)

	rec := doRequest(t, router, policy.RoleAdmin, http.MethodPost, "/documents/"+doc.ID.String()+"/status", map[string]any{
		"status":          "frozen",
		"skip_validation": true,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "unknown document status")
}

func TestDeleteCompletedDocumentDenied(t *testing.T) {
	repo := newFakeRepo()
	router := newTestRouter(repo)
	doc := seedDocument(repo, documents.TypeInvoice, documents.StatusCompleted)

	rec := doRequest(t, router, policy.RoleManager, http.MethodDelete, "/documents/"+doc.ID.String(), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, router, policy.RoleAdmin, http.MethodDelete, "/documents/"+doc.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestExportPDF(t *testing.T) {
	repo := newFakeRepo()
	router := newTestRouter(repo)
	doc := seedDocument(repo, documents.TypeInvoice, documents.StatusIssued)

	rec := doRequest(t, router, policy.RoleViewer, http.MethodGet, "/documents/"+doc.ID.String()+"/pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	require.Equal(t, []byte("%PDF-1.7 test"), rec.Body.Bytes())
}
