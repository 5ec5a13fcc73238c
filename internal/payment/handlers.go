package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/automart/settlement/internal/api"
	"github.com/automart/settlement/internal/gateway"
	"github.com/automart/settlement/internal/middleware"
	"github.com/automart/settlement/internal/storage"
	"github.com/automart/settlement/internal/types/payment"
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
	r.Post("/{id}/retry", h.Retry)
	r.Post("/gateway/initiate", h.Initiate)
	return r
}

// CallbackRoutes are mounted outside the authenticated group: the caller is
// the external gateway, which has no session. Spoofing is defended by the
// server-to-server validation step, not by auth on these endpoints.
func (h *Handler) CallbackRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/success", h.GatewaySuccess)
	r.Post("/fail", h.GatewayFail)
	r.Post("/cancel", h.GatewayCancel)
	return r
}

type createRequest struct {
	OrderID uuid.UUID `json:"order_id"`
	Method  string    `json:"method"`
}

type initiateRequest struct {
	OrderID uuid.UUID `json:"order_id"`
	Contact Contact   `json:"contact"`
}

type sessionResponse struct {
	GatewayURL string           `json:"gateway_url"`
	SessionID  string           `json:"session_id"`
	Payment    *payment.Payment `json:"payment"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidation, "malformed request body")
		return
	}
	if req.Method == "" {
		req.Method = "gateway"
	}

	p, err := h.svc.Create(r.Context(), actor, req.OrderID, req.Method)
	if err != nil {
		writePaymentError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())

	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidation, "malformed request body")
		return
	}

	session, p, err := h.svc.InitiateSession(r.Context(), actor, req.OrderID, req.Contact)
	if err != nil {
		writePaymentError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, sessionResponse{
		GatewayURL: session.GatewayURL,
		SessionID:  session.SessionID,
		Payment:    p,
	})
}

func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidation, "invalid payment id")
		return
	}

	var contact Contact
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&contact)
	}

	session, p, err := h.svc.Retry(r.Context(), actor, id, contact)
	if err != nil {
		writePaymentError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, sessionResponse{
		GatewayURL: session.GatewayURL,
		SessionID:  session.SessionID,
		Payment:    p,
	})
}

func (h *Handler) GatewaySuccess(w http.ResponseWriter, r *http.Request) {
	cb, err := parseCallback(r)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidation, "malformed callback payload")
		return
	}
	p, err := h.svc.HandleSuccess(r.Context(), cb)
	if err != nil {
		writePaymentError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) GatewayFail(w http.ResponseWriter, r *http.Request) {
	h.handleResolveCallback(w, r, h.svc.HandleFail)
}

func (h *Handler) GatewayCancel(w http.ResponseWriter, r *http.Request) {
	h.handleResolveCallback(w, r, h.svc.HandleCancel)
}

func (h *Handler) handleResolveCallback(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, cb Callback) (*payment.Payment, error)) {
	cb, err := parseCallback(r)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidation, "malformed callback payload")
		return
	}
	p, err := fn(r.Context(), cb)
	if err != nil {
		writePaymentError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, p)
}

// parseCallback decodes the gateway's form post and keeps the whole payload
// for audit storage.
func parseCallback(r *http.Request) (Callback, error) {
	if err := r.ParseForm(); err != nil {
		return Callback{}, err
	}
	flat := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		flat[k] = r.PostForm.Get(k)
	}
	raw, err := json.Marshal(flat)
	if err != nil {
		return Callback{}, err
	}
	return Callback{
		TranID:           flat["tran_id"],
		ValID:            flat["val_id"],
		Status:           flat["status"],
		ErrorDescription: flat["error_description"],
		Raw:              raw,
	}, nil
}

func writePaymentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrOrderNotFound):
		api.WriteError(w, http.StatusNotFound, api.CodeOrderNotFound, err.Error())
	case errors.Is(err, ErrPaymentNotFound):
		api.WriteError(w, http.StatusNotFound, api.CodePaymentNotFound, err.Error())
	case errors.Is(err, ErrDuplicatePayment):
		api.WriteError(w, http.StatusConflict, api.CodeDuplicatePayment, err.Error())
	case errors.Is(err, ErrPermissionDenied):
		api.WriteError(w, http.StatusForbidden, api.CodePermissionDenied, err.Error())
	case errors.Is(err, ErrOrderNotPayable), errors.Is(err, ErrNotRetryable):
		api.WriteError(w, http.StatusBadRequest, api.CodeValidation, err.Error())
	case errors.Is(err, ErrValidationFailed):
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationFailed, err.Error())
	case errors.Is(err, gateway.ErrTimeout):
		api.WriteRetryableError(w, http.StatusGatewayTimeout, api.CodeGatewayTimeout, err.Error())
	case errors.Is(err, gateway.ErrUnreachable):
		api.WriteRetryableError(w, http.StatusBadGateway, api.CodeGatewayUnreachable, err.Error())
	case errors.Is(err, gateway.ErrRejected):
		api.WriteError(w, http.StatusBadGateway, api.CodeGatewayRejected, err.Error())
	case errors.Is(err, payment.ErrInvalidStateTransition):
		api.WriteError(w, http.StatusConflict, api.CodeInvalidTransition, err.Error())
	case errors.Is(err, storage.ErrConflict):
		api.WriteError(w, http.StatusConflict, api.CodeConflict, "concurrent modification, retry")
	default:
		api.WriteError(w, http.StatusInternalServerError, api.CodeInternal, "internal error")
	}
}
