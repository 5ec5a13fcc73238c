package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/automart/settlement/internal/api"
	"github.com/automart/settlement/internal/catalog"
	"github.com/automart/settlement/internal/middleware"
	"github.com/automart/settlement/internal/storage"
	"github.com/automart/settlement/internal/types/order"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/confirm", h.Confirm)
	r.Post("/{id}/ship", h.Ship)
	r.Post("/{id}/deliver", h.Deliver)
	r.Post("/{id}/cancel", h.Cancel)
	return r
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidation, "malformed request body")
		return
	}

	o, err := h.svc.Create(r.Context(), actor.UserID, req)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, o)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())
	orders, err := h.svc.List(r.Context(), actor.UserID)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, api.CodeInternal, "failed to list orders")
		return
	}
	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	api.WriteJSON(w, http.StatusOK, orders)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidation, "invalid order id")
		return
	}
	o, err := h.svc.Get(r.Context(), actor, id)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.svc.Confirm)
}

func (h *Handler) Deliver(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.svc.Deliver)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.svc.Cancel)
}

func (h *Handler) Ship(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidation, "invalid order id")
		return
	}

	var req ShipRequest
	if r.Body != nil {
		// Tracking info is optional; an empty body ships without it.
		json.NewDecoder(r.Body).Decode(&req)
	}

	o, err := h.svc.Ship(r.Context(), actor, id, req)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, actor middleware.Actor, id uuid.UUID) (*order.Order, error)) {
	actor := middleware.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidation, "invalid order id")
		return
	}
	o, err := fn(r.Context(), actor, id)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, o)
}

func writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, catalog.ErrListingNotFound):
		api.WriteError(w, http.StatusNotFound, api.CodeOrderNotFound, err.Error())
	case errors.Is(err, order.ErrInvalidStateTransition):
		api.WriteError(w, http.StatusConflict, api.CodeInvalidTransition, err.Error())
	case errors.Is(err, ErrPermissionDenied):
		api.WriteError(w, http.StatusForbidden, api.CodePermissionDenied, err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidAmount),
		errors.Is(err, order.ErrUnknownItemKind):
		api.WriteError(w, http.StatusBadRequest, api.CodeValidation, err.Error())
	case errors.Is(err, storage.ErrConflict):
		api.WriteError(w, http.StatusConflict, api.CodeConflict, "concurrent modification, retry")
	default:
		api.WriteError(w, http.StatusInternalServerError, api.CodeInternal, "internal error")
	}
}
