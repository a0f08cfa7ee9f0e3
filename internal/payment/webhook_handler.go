package payment

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	apperrors "github.com/frahmantamala/rentpay/internal"
	"github.com/frahmantamala/rentpay/internal/gateway"
	"github.com/frahmantamala/rentpay/internal/transport"
)

const signatureHeader = "X-Gateway-Signature"

// WebhookHandler processes asynchronous outcome callbacks from the
// payment gateway. Callers are authenticated by an HMAC signature over
// the raw request body, never by session tokens.
type WebhookHandler struct {
	*transport.BaseHandler
	Service  ServiceAPI
	Verifier *gateway.WebhookVerifier
}

func NewWebhookHandler(logger *slog.Logger, svc ServiceAPI, verifier *gateway.WebhookVerifier) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler: transport.NewBaseHandler(logger),
		Service:     svc,
		Verifier:    verifier,
	}
}

// HandleGatewayWebhook verifies, decodes and applies a gateway
// callback. Replayed deliveries for an already terminal payment are
// absorbed with 200 so the gateway stops retrying.
func (h *WebhookHandler) HandleGatewayWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.Logger.Error("failed to read webhook body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "unable to read request body")
		return
	}

	signature := r.Header.Get(signatureHeader)
	if signature == "" || !h.Verifier.Verify(body, signature) {
		h.Logger.Warn("webhook signature rejected",
			"signature_present", signature != "",
			"remote_addr", r.RemoteAddr)
		h.HandleError(w, apperrors.ErrInvalidSignature)
		return
	}

	var event GatewayWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.Logger.Warn("malformed webhook payload", "error", err)
		h.HandleError(w, apperrors.NewValidationError("malformed webhook payload", apperrors.ErrCodeMalformedWebhook))
		return
	}

	if event.Data.TxRef == "" || event.Data.Status == "" {
		h.HandleError(w, apperrors.NewValidationError("webhook payload missing tx_ref or status", apperrors.ErrCodeMalformedWebhook))
		return
	}

	outcome, ok := normalizeOutcome(event.Data.Status)
	if !ok {
		h.HandleError(w, apperrors.NewValidationError("unrecognized webhook status", apperrors.ErrCodeMalformedWebhook))
		return
	}

	var failureReason *string
	if outcome == OutcomeFailed {
		reason := event.Data.FailureReason
		if reason == "" {
			reason = "payment failed at gateway"
		}
		failureReason = &reason
	}

	_, transitioned, err := h.Service.ApplyGatewayOutcome(r.Context(), event.Data.TxRef, outcome, failureReason)
	if err != nil {
		if errors.Is(err, apperrors.ErrPaymentNotFound) {
			h.Logger.Warn("webhook for unknown transaction", "tx_ref", event.Data.TxRef)
			h.HandleError(w, apperrors.ErrPaymentNotFound)
			return
		}
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"transitioned": transitioned,
	})
}

// normalizeOutcome maps gateway status vocabulary onto the two terminal
// outcomes. The gateway reports "success" or "failed"; anything else is
// rejected upstream.
func normalizeOutcome(status string) (string, bool) {
	switch status {
	case "success":
		return OutcomeSuccess, true
	case "failed":
		return OutcomeFailed, true
	default:
		return "", false
	}
}
