package wallet

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/automart/settlement/internal/api"
	"github.com/automart/settlement/internal/middleware"
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
	r.Get("/me", h.GetMine)
	return r
}

func (h *Handler) GetMine(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())

	dto, err := h.svc.GetMine(r.Context(), actor.UserID, h.currency)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, api.CodeInternal, "failed to load wallet")
		return
	}
	api.WriteJSON(w, http.StatusOK, dto)
}
