package payment

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/google/uuid"

	apperrors "github.com/frahmantamala/rentpay/internal"
	"github.com/frahmantamala/rentpay/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(logger *slog.Logger, svc ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger),
		Service:     svc,
	}
}

// Initiate accepts a payment request under a client supplied
// idempotency key. Accepted work answers 202 whether the payment was
// just created or the request replayed an earlier one.
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req InitiatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Warn("invalid initiate payload", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	h.Logger.Info("payment initiation requested",
		"request_id", req.RequestID,
		"caller_id", apperrors.UserIDFromContext(r.Context()))

	resp, err := h.Service.Initiate(r.Context(), &req)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusAccepted, resp)
}

// GetStatus is the polling endpoint for payment state.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.HandleError(w, apperrors.NewValidationError("payment id must be a valid UUID", apperrors.ErrCodeValidationFailed))
		return
	}

	resp, err := h.Service.GetStatus(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, resp)
}
