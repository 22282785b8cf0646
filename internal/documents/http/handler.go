// Package http exposes the document REST surface. Handlers compose the
// lifecycle checks in fixed order: policy, transition validation,
// concurrency guard, then link/referential integrity right before the write.
package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/voyagedesk/voyagedesk/internal/documents"
	"github.com/voyagedesk/voyagedesk/internal/pdfexport"
	"github.com/voyagedesk/voyagedesk/internal/platform/httpx"
	"github.com/voyagedesk/voyagedesk/internal/policy"
	"github.com/voyagedesk/voyagedesk/internal/shared"
	"github.com/voyagedesk/voyagedesk/jobs"
)

// Handler manages document endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *documents.Service
	exporter *pdfexport.Exporter
	queue    *asynq.Client
	policy   policy.Middleware
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *documents.Service, exporter *pdfexport.Exporter, queue *asynq.Client, policyMW policy.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		exporter: exporter,
		queue:    queue,
		policy:   policyMW,
		validate: validator.New(),
	}
}

// MountRoutes registers document routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.policy.Require(shared.PermDocumentsView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/pdf", h.exportPDF)
		r.Get("/{id}/can-delete", h.canDelete)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.policy.Require(shared.PermDocumentsEdit))
		r.Post("/", h.create)
		r.Patch("/{id}", h.update)
		r.Post("/{id}/status", h.updateStatus)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.policy.Require(shared.PermDocumentsDelete))
		r.Delete("/{id}", h.softDelete)
	})
}

type createRequest struct {
	Number          string  `json:"number"`
	Type            string  `json:"type" validate:"required,oneof=invoice receipt payment_voucher statement_of_payment"`
	Amount          float64 `json:"amount" validate:"gte=0"`
	Currency        string  `json:"currency" validate:"omitempty,len=3"`
	Notes           string  `json:"notes"`
	LinkedVoucherID string  `json:"linked_voucher_id" validate:"omitempty,uuid"`
}

type updateRequest struct {
	Amount            *float64   `json:"amount" validate:"omitempty,gte=0"`
	Notes             *string    `json:"notes"`
	ExpectedUpdatedAt *time.Time `json:"expected_updated_at"`
}

type statusRequest struct {
	Status         string `json:"status" validate:"required"`
	SkipValidation bool   `json:"skip_validation"`
}

type documentResponse struct {
	ID              string     `json:"id"`
	Number          string     `json:"number"`
	Type            string     `json:"type"`
	Status          string     `json:"status"`
	Amount          float64    `json:"amount"`
	Currency        string     `json:"currency"`
	Notes           string     `json:"notes,omitempty"`
	LinkedVoucherID string     `json:"linked_voucher_id,omitempty"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func toResponse(doc documents.Document) documentResponse {
	resp := documentResponse{
		ID:        doc.ID.String(),
		Number:    doc.Number,
		Type:      string(doc.Type),
		Status:    string(doc.Status),
		Amount:    doc.Amount,
		Currency:  doc.Currency,
		Notes:     doc.Notes,
		DeletedAt: doc.DeletedAt,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	if doc.LinkedVoucherID != nil {
		resp.LinkedVoucherID = doc.LinkedVoucherID.String()
	}
	return resp
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := documents.ListFilter{
		Type:   documents.Type(r.URL.Query().Get("type")),
		Status: documents.Status(r.URL.Query().Get("status")),
	}
	docs, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list documents", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		items = append(items, toResponse(doc))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid document id")
		return
	}
	doc, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(doc))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor := policy.ActorFromContext(r.Context())
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := documents.CreateInput{
		Number:   req.Number,
		Type:     documents.Type(req.Type),
		Amount:   req.Amount,
		Currency: req.Currency,
		Notes:    req.Notes,
	}

	var doc documents.Document
	var err error
	if input.Type == documents.TypeStatementOfPayment {
		if req.LinkedVoucherID == "" {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "statement of payment requires linked_voucher_id")
			return
		}
		voucherID, parseErr := uuid.Parse(req.LinkedVoucherID)
		if parseErr != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid linked_voucher_id")
			return
		}
		doc, err = h.service.CreateStatementForVoucher(r.Context(), actor.ID, voucherID, input)
	} else {
		doc, err = h.service.Create(r.Context(), actor.ID, input)
	}
	if err != nil {
		h.logger.Error("create document", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(doc))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor := policy.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid document id")
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	doc, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if !policy.CanEditDocument(actor, doc) {
		httpx.RespondError(w, fmt.Errorf("%w: %s", shared.ErrPermissionDenied, policy.EditRestriction(actor, doc)))
		return
	}

	updated, err := h.service.GuardedUpdate(r.Context(), actor.ID, id, req.ExpectedUpdatedAt, documents.UpdateChanges{
		Amount: req.Amount,
		Notes:  req.Notes,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(updated))
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	actor := policy.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid document id")
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if req.SkipValidation && actor.Role != policy.RoleAdmin {
		httpx.RespondError(w, fmt.Errorf("%w: only admins may skip transition validation", shared.ErrPermissionDenied))
		return
	}

	doc, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if !policy.CanEditDocument(actor, doc) {
		httpx.RespondError(w, fmt.Errorf("%w: %s", shared.ErrPermissionDenied, policy.EditRestriction(actor, doc)))
		return
	}

	updated, err := h.service.UpdateStatus(r.Context(), actor.ID, id, documents.Status(req.Status), req.SkipValidation)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.enqueuePrerender(updated)
	httpx.JSON(w, http.StatusOK, toResponse(updated))
}

func (h *Handler) softDelete(w http.ResponseWriter, r *http.Request) {
	actor := policy.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid document id")
		return
	}

	doc, err := h.service.Lookup(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if doc.Deleted() {
		// Deleting an already-deleted document is a no-op success; an
		// unknown id stays a 404 via the lookup above.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if !policy.CanDeleteDocument(actor, doc) {
		httpx.RespondError(w, fmt.Errorf("%w: your role may not delete this document", shared.ErrPermissionDenied))
		return
	}

	if err := h.service.SoftDelete(r.Context(), actor.ID, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) canDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid document id")
		return
	}
	check, err := h.service.CheckCanDeleteVoucher(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"can_delete":               check.CanDelete,
		"reason":                   check.Reason,
		"blocking_document_number": check.BlockingDocumentNumber,
	})
}

func (h *Handler) exportPDF(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid document id")
		return
	}
	doc, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	data, err := h.exporter.Export(r.Context(), doc)
	if err != nil {
		h.logger.Error("export pdf", slog.String("document", doc.Number), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "PDF Service Unavailable", "")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Number+`.pdf"`)
	_, _ = w.Write(data)
}

func (h *Handler) enqueuePrerender(doc documents.Document) {
	if h.queue == nil {
		return
	}
	task, err := jobs.NewRenderDocumentTask(jobs.RenderDocumentPayload{
		DocumentID: doc.ID.String(),
		UpdatedAt:  doc.UpdatedAt.UnixNano(),
	})
	if err != nil {
		h.logger.Warn("build prerender task", slog.Any("error", err))
		return
	}
	if _, err := h.queue.Enqueue(task); err != nil {
		h.logger.Warn("enqueue prerender task", slog.Any("error", err))
	}
}
