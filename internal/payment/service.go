package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	apperrors "github.com/frahmantamala/rentpay/internal"
	paymentmodel "github.com/frahmantamala/rentpay/internal/core/datamodel/payment"
	"github.com/frahmantamala/rentpay/internal/core/events"
	"github.com/frahmantamala/rentpay/internal/gateway"
	"gorm.io/gorm"
)

type PaymentService struct {
	repo           RepositoryAPI
	gateway        GatewayAPI
	eventBus       *events.EventBus
	logger         *slog.Logger
	currency       string
	gatewayTimeout time.Duration
}

func NewPaymentService(repo RepositoryAPI, gw GatewayAPI, eventBus *events.EventBus, logger *slog.Logger, gatewayTimeout time.Duration) *PaymentService {
	if gatewayTimeout <= 0 {
		gatewayTimeout = 10 * time.Second
	}
	return &PaymentService{
		repo:           repo,
		gateway:        gw,
		eventBus:       eventBus,
		logger:         logger,
		currency:       "ETB",
		gatewayTimeout: gatewayTimeout,
	}
}

// Initiate resolves the idempotency key and drives a new payment to
// PENDING. Exactly one gateway checkout is created per unique
// request_id: replays return the stored payment unchanged, and a key
// reused with different parameters is rejected as a conflict.
func (s *PaymentService) Initiate(ctx context.Context, req *InitiatePaymentRequest) (*InitiatePaymentResponse, error) {
	if err := req.Validate(); err != nil {
		s.logger.Warn("initiate request validation failed", "error", err)
		return nil, err
	}

	requestID, propertyID, userID := req.Parsed()

	// Cheap replay check before touching the gateway. The unique
	// constraint below still catches the race where two callers pass
	// this check concurrently.
	if existing, err := s.repo.GetByRequestID(requestID); err == nil {
		return s.replayResponse(existing, propertyID, userID, req.AmountCents)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewInternalError("failed to resolve idempotency key", err)
	}

	txRef := NewTxRef()

	gwCtx, cancel := apperrors.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	session, err := s.gateway.CreateCheckout(gwCtx, gateway.CheckoutRequest{
		TxRef:       txRef,
		AmountCents: req.AmountCents,
		Currency:    s.currency,
		Meta: map[string]string{
			"request_id":  requestID.String(),
			"property_id": propertyID.String(),
			"user_id":     userID.String(),
		},
	})
	if err != nil {
		// No row was persisted: the caller may retry with the same
		// request_id.
		switch {
		case errors.Is(err, gateway.ErrRejected):
			s.logger.Error("gateway rejected checkout", "request_id", requestID, "error", err)
			return nil, apperrors.NewGatewayRejectedError(err)
		default:
			s.logger.Error("gateway unavailable during checkout", "request_id", requestID, "error", err)
			return nil, apperrors.NewGatewayUnavailableError(err)
		}
	}

	p := &paymentmodel.Payment{
		RequestID:    requestID,
		PropertyID:   propertyID,
		UserID:       userID,
		AmountCents:  req.AmountCents,
		Currency:     s.currency,
		Locale:       callerLocale(ctx),
		Status:       paymentmodel.StatusPending,
		GatewayTxRef: session.GatewayTxRef,
		CheckoutURL:  session.CheckoutURL,
	}

	stored, created, err := s.getOrCreateWithRetry(ctx, p)
	if err != nil {
		s.logger.Error("failed to persist payment", "request_id", requestID, "error", err)
		return nil, apperrors.NewInternalError("failed to persist payment", err)
	}

	if !created {
		// Lost the creation race: another caller with the same
		// request_id won. Its checkout session is the canonical one;
		// ours is never used.
		s.logger.Info("initiate lost creation race, returning winner",
			"request_id", requestID,
			"payment_id", stored.ID,
			"orphaned_tx_ref", txRef)
		return s.replayResponse(stored, propertyID, userID, req.AmountCents)
	}

	s.logger.Info("payment initiated",
		"payment_id", stored.ID,
		"request_id", requestID,
		"property_id", propertyID,
		"amount_cents", stored.AmountCents,
		"gateway_tx_ref", stored.GatewayTxRef)

	s.eventBus.Publish(ctx, events.NewPaymentInitiatedEvent(
		stored.ID.String(),
		requestID.String(),
		propertyID.String(),
		userID.String(),
		stored.AmountCents,
		stored.CheckoutURL,
		stored.Locale,
	))

	return &InitiatePaymentResponse{
		PaymentID:   stored.ID.String(),
		CheckoutURL: stored.CheckoutURL,
		Status:      stored.Status,
	}, nil
}

// callerLocale resolves the notification language of the
// authenticated caller. Tokens without a preferred language fall back
// to English.
func callerLocale(ctx context.Context) string {
	if locale := apperrors.LocaleFromContext(ctx); locale != "" {
		return locale
	}
	return "en"
}

// replayResponse answers a request whose idempotency key already has a
// row. Identical parameters get the stored payment back; different
// parameters are a key-reuse conflict, never a silent merge.
func (s *PaymentService) replayResponse(existing *paymentmodel.Payment, propertyID, userID uuid.UUID, amountCents int64) (*InitiatePaymentResponse, error) {
	if !existing.SameParameters(propertyID, userID, amountCents) {
		s.logger.Warn("request_id reused with different parameters",
			"request_id", existing.RequestID,
			"payment_id", existing.ID)
		return nil, apperrors.ErrRequestIDReused
	}

	s.logger.Info("idempotent replay, returning existing payment",
		"request_id", existing.RequestID,
		"payment_id", existing.ID)

	return &InitiatePaymentResponse{
		PaymentID:   existing.ID.String(),
		CheckoutURL: existing.CheckoutURL,
		Status:      existing.Status,
	}, nil
}

// getOrCreateWithRetry retries transient store failures a bounded
// number of times. Duplicate-key resolution is not an error and is
// never retried.
func (s *PaymentService) getOrCreateWithRetry(ctx context.Context, p *paymentmodel.Payment) (*paymentmodel.Payment, bool, error) {
	var stored *paymentmodel.Payment
	var created bool

	backoff := retry.WithMaxRetries(2, retry.NewConstant(100*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var storeErr error
		stored, created, storeErr = s.repo.GetOrCreate(p)
		if storeErr != nil {
			return retry.RetryableError(storeErr)
		}
		return nil
	})
	return stored, created, err
}

// GetStatus is the read path for client polling. No side effects.
func (s *PaymentService) GetStatus(ctx context.Context, id uuid.UUID) (*PaymentStatusResponse, error) {
	p, err := s.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, apperrors.NewInternalError("failed to load payment", err)
	}

	return &PaymentStatusResponse{
		Status:     p.Status,
		UpdatedAt:  p.UpdatedAt,
		ApprovedAt: p.ApprovedAt,
	}, nil
}

// ApplyGatewayOutcome drives a payment to its terminal state. It is
// shared by the webhook processor and the reconciler; whichever
// reaches the store first with status still PENDING wins, the other
// observes transitioned=false and triggers nothing downstream.
func (s *PaymentService) ApplyGatewayOutcome(ctx context.Context, txRef, outcome string, failureReason *string) (*paymentmodel.Payment, bool, error) {
	p, err := s.repo.GetByGatewayTxRef(txRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, apperrors.ErrPaymentNotFound
		}
		return nil, false, apperrors.NewInternalError("failed to locate payment for transaction", err)
	}

	var toStatus string
	switch outcome {
	case OutcomeSuccess:
		toStatus = paymentmodel.StatusSuccess
	case OutcomeFailed:
		toStatus = paymentmodel.StatusFailed
	default:
		return nil, false, apperrors.NewValidationError(
			fmt.Sprintf("unknown gateway outcome %q", outcome), apperrors.ErrCodeMalformedWebhook)
	}

	updated, transitioned, err := s.repo.TransitionTerminal(p.ID, toStatus, failureReason)
	if err != nil {
		return nil, false, apperrors.NewInternalError("failed to transition payment", err)
	}

	if !transitioned {
		s.logger.Info("outcome absorbed, payment already terminal",
			"payment_id", updated.ID,
			"gateway_tx_ref", txRef,
			"status", updated.Status,
			"reported_outcome", outcome)
		return updated, false, nil
	}

	s.logger.Info("payment transitioned",
		"payment_id", updated.ID,
		"gateway_tx_ref", txRef,
		"status", updated.Status)

	switch updated.Status {
	case paymentmodel.StatusSuccess:
		s.eventBus.Publish(ctx, events.NewPaymentSucceededEvent(
			updated.ID.String(),
			updated.PropertyID.String(),
			updated.UserID.String(),
			updated.AmountCents,
			updated.GatewayTxRef,
			updated.Locale,
		))
	case paymentmodel.StatusFailed:
		reason := ""
		if updated.FailureReason != nil {
			reason = *updated.FailureReason
		}
		s.eventBus.Publish(ctx, events.NewPaymentFailedEvent(
			updated.ID.String(),
			updated.PropertyID.String(),
			updated.UserID.String(),
			updated.AmountCents,
			updated.GatewayTxRef,
			reason,
			updated.Locale,
		))
	}

	return updated, true, nil
}
