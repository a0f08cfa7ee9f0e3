package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePaymentInitiated = "payment.initiated"
	EventTypePaymentSucceeded = "payment.succeeded"
	EventTypePaymentFailed    = "payment.failed"
)

type PaymentInitiatedEvent struct {
	BaseEvent
	PaymentID   string `json:"payment_id"`
	RequestID   string `json:"request_id"`
	PropertyID  string `json:"property_id"`
	UserID      string `json:"user_id"`
	AmountCents int64  `json:"amount_cents"`
	CheckoutURL string `json:"checkout_url"`
	Locale      string `json:"locale"`
}

func NewPaymentInitiatedEvent(paymentID, requestID, propertyID, userID string, amountCents int64, checkoutURL, locale string) *PaymentInitiatedEvent {
	return &PaymentInitiatedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentInitiated,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":   paymentID,
				"request_id":   requestID,
				"property_id":  propertyID,
				"user_id":      userID,
				"amount_cents": amountCents,
				"checkout_url": checkoutURL,
				"locale":       locale,
			},
		},
		PaymentID:   paymentID,
		RequestID:   requestID,
		PropertyID:  propertyID,
		UserID:      userID,
		AmountCents: amountCents,
		CheckoutURL: checkoutURL,
		Locale:      locale,
	}
}

type PaymentSucceededEvent struct {
	BaseEvent
	PaymentID    string `json:"payment_id"`
	PropertyID   string `json:"property_id"`
	UserID       string `json:"user_id"`
	AmountCents  int64  `json:"amount_cents"`
	GatewayTxRef string `json:"gateway_tx_ref"`
	Locale       string `json:"locale"`
}

func NewPaymentSucceededEvent(paymentID, propertyID, userID string, amountCents int64, gatewayTxRef, locale string) *PaymentSucceededEvent {
	return &PaymentSucceededEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentSucceeded,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":     paymentID,
				"property_id":    propertyID,
				"user_id":        userID,
				"amount_cents":   amountCents,
				"gateway_tx_ref": gatewayTxRef,
				"locale":         locale,
			},
		},
		PaymentID:    paymentID,
		PropertyID:   propertyID,
		UserID:       userID,
		AmountCents:  amountCents,
		GatewayTxRef: gatewayTxRef,
		Locale:       locale,
	}
}

type PaymentFailedEvent struct {
	BaseEvent
	PaymentID     string `json:"payment_id"`
	PropertyID    string `json:"property_id"`
	UserID        string `json:"user_id"`
	AmountCents   int64  `json:"amount_cents"`
	GatewayTxRef  string `json:"gateway_tx_ref"`
	FailureReason string `json:"failure_reason"`
	Locale        string `json:"locale"`
}

func NewPaymentFailedEvent(paymentID, propertyID, userID string, amountCents int64, gatewayTxRef, failureReason, locale string) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":     paymentID,
				"property_id":    propertyID,
				"user_id":        userID,
				"amount_cents":   amountCents,
				"gateway_tx_ref": gatewayTxRef,
				"failure_reason": failureReason,
				"locale":         locale,
			},
		},
		PaymentID:     paymentID,
		PropertyID:    propertyID,
		UserID:        userID,
		AmountCents:   amountCents,
		GatewayTxRef:  gatewayTxRef,
		FailureReason: failureReason,
		Locale:        locale,
	}
}
