// Package http exposes the trip booking REST surface.
package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/voyagedesk/voyagedesk/internal/bookings"
	"github.com/voyagedesk/voyagedesk/internal/platform/httpx"
	"github.com/voyagedesk/voyagedesk/internal/policy"
	"github.com/voyagedesk/voyagedesk/internal/shared"
)

// Handler manages booking endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *bookings.Service
	policy   policy.Middleware
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *bookings.Service, policyMW policy.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		policy:   policyMW,
		validate: validator.New(),
	}
}

// MountRoutes registers booking routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.policy.Require(shared.PermBookingsView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/transitions", h.allowedTransitions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.policy.Require(shared.PermBookingsEdit))
		r.Post("/", h.create)
		r.Patch("/{id}", h.update)
		r.Post("/{id}/status", h.updateStatus)
	})
}

type createRequest struct {
	Reference   string `json:"reference"`
	Destination string `json:"destination" validate:"required"`
	Notes       string `json:"notes"`
}

type updateRequest struct {
	Destination       *string    `json:"destination" validate:"omitempty,min=1"`
	Notes             *string    `json:"notes"`
	ExpectedUpdatedAt *time.Time `json:"expected_updated_at"`
}

type statusRequest struct {
	Status         string `json:"status" validate:"required"`
	SkipValidation bool   `json:"skip_validation"`
}

type bookingResponse struct {
	ID          string    `json:"id"`
	Reference   string    `json:"reference"`
	Destination string    `json:"destination"`
	Status      string    `json:"status"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toResponse(b bookings.Booking) bookingResponse {
	return bookingResponse{
		ID:          b.ID.String(),
		Reference:   b.Reference,
		Destination: b.Destination,
		Status:      string(b.Status),
		Notes:       b.Notes,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := bookings.ListFilter{Status: bookings.Status(r.URL.Query().Get("status"))}
	items, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list bookings", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]bookingResponse, 0, len(items))
	for _, b := range items {
		out = append(out, toResponse(b))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid booking id")
		return
	}
	booking, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(booking))
}

// allowedTransitions lets clients build status pickers without hardcoding
// the workflow table.
func (h *Handler) allowedTransitions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid booking id")
		return
	}
	booking, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	next := bookings.AllowedNext(booking.Status)
	out := make([]string, 0, len(next))
	for _, s := range next {
		out = append(out, string(s))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":  string(booking.Status),
		"allowed": out,
	})
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
	booking, err := h.service.Create(r.Context(), actor.ID, bookings.CreateInput{
		Reference:   req.Reference,
		Destination: req.Destination,
		Notes:       req.Notes,
	})
	if err != nil {
		h.logger.Error("create booking", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(booking))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor := policy.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid booking id")
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
	updated, err := h.service.GuardedUpdate(r.Context(), actor.ID, id, req.ExpectedUpdatedAt, bookings.UpdateChanges{
		Destination: req.Destination,
		Notes:       req.Notes,
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
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid booking id")
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
	updated, err := h.service.UpdateStatus(r.Context(), actor.ID, id, bookings.Status(req.Status), req.SkipValidation)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(updated))
}
