package discount

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/automart/settlement/internal/api"
	"github.com/automart/settlement/internal/middleware"
	"github.com/automart/settlement/internal/money"
)

type Handler struct {
	svc      *Service
	currency string
}

func NewHandler(svc *Service, currency string) *Handler {
	return &Handler{svc: svc, currency: currency}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/validate", h.Validate)
	r.Post("/apply", h.Apply)
	return r
}

type evaluateRequest struct {
	Code        string `json:"code"`
	OrderAmount string `json:"order_amount"`
	Currency    string `json:"currency,omitempty"`
}

func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	code, amount, ok := h.parseRequest(w, r)
	if !ok {
		return
	}
	ev, err := h.svc.Evaluate(r.Context(), code, amount)
	if err != nil {
		writeDiscountError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, ev)
}

func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())

	code, amount, ok := h.parseRequest(w, r)
	if !ok {
		return
	}
	ev, err := h.svc.Apply(r.Context(), actor.UserID, code, amount)
	if err != nil {
		writeDiscountError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, ev)
}

func (h *Handler) parseRequest(w http.ResponseWriter, r *http.Request) (string, money.Money, bool) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidation, "malformed request body")
		return "", money.Money{}, false
	}
	if req.Code == "" {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidation, "code is required")
		return "", money.Money{}, false
	}
	currency := req.Currency
	if currency == "" {
		currency = h.currency
	}
	amount, err := money.FromString(req.OrderAmount, currency)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidation, "invalid order_amount")
		return "", money.Money{}, false
	}
	return req.Code, amount, true
}

func writeDiscountError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrCodeNotFound):
		api.WriteError(w, http.StatusNotFound, api.CodeDiscountNotFound, "discount code not found")
	case errors.Is(err, ErrCodeNotValid):
		api.WriteError(w, http.StatusUnprocessableEntity, api.CodeValidation, "discount code is not valid")
	case errors.Is(err, ErrBelowMinimum):
		api.WriteError(w, http.StatusUnprocessableEntity, api.CodeValidation, "order amount below discount minimum")
	case errors.Is(err, ErrUsageExceeded):
		api.WriteError(w, http.StatusConflict, api.CodeConflict, "discount usage limit reached")
	case errors.Is(err, ErrInvalidAmount):
		api.WriteError(w, http.StatusBadRequest, api.CodeValidation, "invalid order amount")
	default:
		api.WriteError(w, http.StatusInternalServerError, api.CodeInternal, "internal error")
	}
}
