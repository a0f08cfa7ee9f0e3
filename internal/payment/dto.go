package payment

import (
	"time"

	"github.com/google/uuid"

	errors "github.com/frahmantamala/rentpay/internal"
	"github.com/frahmantamala/rentpay/internal/core/common/validation"
)

// InitiatePaymentRequest is the client payload for starting a payment.
// RequestID is the client-supplied idempotency key.
type InitiatePaymentRequest struct {
	RequestID   string `json:"request_id"`
	PropertyID  string `json:"property_id"`
	UserID      string `json:"user_id"`
	AmountCents int64  `json:"amount_cents"`
}

func (r *InitiatePaymentRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("request_id", r.RequestID).Required().ValidUUID()
	validator.Field("property_id", r.PropertyID).Required().ValidUUID()
	validator.Field("user_id", r.UserID).Required().ValidUUID()
	validator.Field("amount_cents", r.AmountCents).Required().MinInt(1, errors.ErrCodeInvalidAmount)

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// Parsed returns the UUID forms of the identifier fields. Call only
// after Validate.
func (r *InitiatePaymentRequest) Parsed() (requestID, propertyID, userID uuid.UUID) {
	requestID = uuid.MustParse(r.RequestID)
	propertyID = uuid.MustParse(r.PropertyID)
	userID = uuid.MustParse(r.UserID)
	return
}

type InitiatePaymentResponse struct {
	PaymentID   string `json:"payment_id"`
	CheckoutURL string `json:"checkout_url"`
	Status      string `json:"status"`
}

type PaymentStatusResponse struct {
	Status     string     `json:"status"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
}

// GatewayWebhookEvent is the parsed shape of an inbound gateway
// callback. Signature verification happens on the raw body before this
// is decoded.
type GatewayWebhookEvent struct {
	Event string              `json:"event"`
	Data  GatewayWebhookData  `json:"data"`
}

type GatewayWebhookData struct {
	TxRef         string `json:"tx_ref"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
}
