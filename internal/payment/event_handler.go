package payment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/rentpay/internal/core/events"
	"github.com/frahmantamala/rentpay/internal/notification"
)

const timedOutReason = "payment timed out"

// EventHandler reacts to terminal payment transitions. Everything here
// is best effort: a failed notification or listing approval is logged
// and retried by its client, it never rolls back the payment state.
type EventHandler struct {
	notifier      *notification.Client
	listings      *notification.ListingClient
	logger        *slog.Logger
	defaultLocale string
}

func NewEventHandler(notifier *notification.Client, listings *notification.ListingClient, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		notifier:      notifier,
		listings:      listings,
		logger:        logger,
		defaultLocale: "en",
	}
}

// RegisterHandlers subscribes to the payment lifecycle events.
func (h *EventHandler) RegisterHandlers(bus *events.EventBus) {
	bus.Subscribe(events.EventTypePaymentInitiated, h.handlePaymentInitiated)
	bus.Subscribe(events.EventTypePaymentSucceeded, h.handlePaymentSucceeded)
	bus.Subscribe(events.EventTypePaymentFailed, h.handlePaymentFailed)
}

func (h *EventHandler) handlePaymentInitiated(ctx context.Context, event events.Event) error {
	data, err := eventData(event)
	if err != nil {
		return err
	}

	vars := map[string]string{
		"property_id":  stringField(data, "property_id"),
		"payment_link": stringField(data, "checkout_url"),
	}
	if err := h.notifier.Send(ctx, stringField(data, "user_id"), h.locale(data), notification.TemplatePaymentInitiated, vars); err != nil {
		h.logger.Error("initiation notification failed",
			"payment_id", stringField(data, "payment_id"),
			"error", err)
	}
	return nil
}

func (h *EventHandler) handlePaymentSucceeded(ctx context.Context, event events.Event) error {
	data, err := eventData(event)
	if err != nil {
		return err
	}

	paymentID := stringField(data, "payment_id")
	propertyID := stringField(data, "property_id")

	if err := h.listings.ApproveListing(ctx, propertyID); err != nil {
		h.logger.Error("listing approval failed after successful payment",
			"payment_id", paymentID,
			"property_id", propertyID,
			"error", err)
	} else {
		h.logger.Info("listing approved",
			"payment_id", paymentID,
			"property_id", propertyID)
	}

	vars := map[string]string{"property_id": propertyID}
	if err := h.notifier.Send(ctx, stringField(data, "user_id"), h.locale(data), notification.TemplatePaymentSuccess, vars); err != nil {
		h.logger.Error("success notification failed",
			"payment_id", paymentID,
			"error", err)
	}
	return nil
}

func (h *EventHandler) handlePaymentFailed(ctx context.Context, event events.Event) error {
	data, err := eventData(event)
	if err != nil {
		return err
	}

	template := notification.TemplatePaymentFailed
	if stringField(data, "failure_reason") == timedOutReason {
		template = notification.TemplatePaymentTimedOut
	}

	vars := map[string]string{"property_id": stringField(data, "property_id")}
	if err := h.notifier.Send(ctx, stringField(data, "user_id"), h.locale(data), template, vars); err != nil {
		h.logger.Error("failure notification failed",
			"payment_id", stringField(data, "payment_id"),
			"error", err)
	}
	return nil
}

// locale picks the language recorded on the payment at initiation,
// falling back to English for events that predate the locale field.
func (h *EventHandler) locale(data map[string]interface{}) string {
	if locale := stringField(data, "locale"); locale != "" {
		return locale
	}
	return h.defaultLocale
}

func eventData(event events.Event) (map[string]interface{}, error) {
	data, ok := event.Payload().(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected payload type for event %s", event.EventType())
	}
	return data, nil
}

func stringField(data map[string]interface{}, key string) string {
	v, _ := data[key].(string)
	return v
}
