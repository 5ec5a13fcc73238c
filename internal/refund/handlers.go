package refund

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/automart/settlement/internal/api"
	"github.com/automart/settlement/internal/middleware"
	"github.com/automart/settlement/internal/storage"
	"github.com/automart/settlement/internal/types/order"
	"github.com/automart/settlement/internal/types/payment"
	"github.com/automart/settlement/internal/types/refund"
	"github.com/automart/settlement/internal/types/wallet"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Request)
	r.Post("/{id}/approve", h.Approve)
	r.Post("/{id}/reject", h.Reject)
	r.Post("/{id}/complete", h.Complete)
	return r
}

func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidation, "malformed request body")
		return
	}

	ref, err := h.svc.Request(r.Context(), actor, req)
	if err != nil {
		writeRefundError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, ref)
}

type notesRequest struct {
	Notes string `json:"notes"`
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.handleNotesTransition(w, r, h.svc.Approve)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.handleNotesTransition(w, r, h.svc.Reject)
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidation, "invalid refund id")
		return
	}
	ref, err := h.svc.Complete(r.Context(), actor, id)
	if err != nil {
		writeRefundError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, ref)
}

func (h *Handler) handleNotesTransition(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, actor middleware.Actor, id uuid.UUID, notes string) (*refund.Refund, error)) {
	actor := middleware.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidation, "invalid refund id")
		return
	}

	var req notesRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	ref, err := fn(r.Context(), actor, id, req.Notes)
	if err != nil {
		writeRefundError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, ref)
}

func writeRefundError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRefundNotFound):
		api.WriteError(w, http.StatusNotFound, api.CodeRefundNotFound, err.Error())
	case errors.Is(err, ErrOrderNotFound):
		api.WriteError(w, http.StatusNotFound, api.CodeOrderNotFound, err.Error())
	case errors.Is(err, ErrPermissionDenied):
		api.WriteError(w, http.StatusForbidden, api.CodePermissionDenied, err.Error())
	case errors.Is(err, ErrExceedsOrderTotal):
		api.WriteError(w, http.StatusUnprocessableEntity, api.CodeExceedsOrderTotal, err.Error())
	case errors.Is(err, wallet.ErrInsufficientBalance):
		api.WriteError(w, http.StatusConflict, api.CodeInsufficientBalance,
			"seller wallet cannot cover the refund; manual intervention required")
	case errors.Is(err, ErrOrderNotRefundable), errors.Is(err, ErrPaymentNotSettled),
		errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidReason):
		api.WriteError(w, http.StatusBadRequest, api.CodeValidation, err.Error())
	case errors.Is(err, refund.ErrInvalidStateTransition),
		errors.Is(err, order.ErrInvalidStateTransition),
		errors.Is(err, payment.ErrInvalidStateTransition):
		api.WriteError(w, http.StatusConflict, api.CodeInvalidTransition, err.Error())
	case errors.Is(err, storage.ErrConflict):
		api.WriteError(w, http.StatusConflict, api.CodeConflict, "concurrent modification, retry")
	default:
		api.WriteError(w, http.StatusInternalServerError, api.CodeInternal, "internal error")
	}
}
