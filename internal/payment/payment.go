// Package payment implements the payment lifecycle: idempotent
// initiation against the gateway, the PENDING -> terminal state
// machine, webhook application and the reconciliation fallback.
package payment

import (
	"context"
	"time"

	"github.com/google/uuid"

	paymentmodel "github.com/frahmantamala/rentpay/internal/core/datamodel/payment"
	"github.com/frahmantamala/rentpay/internal/gateway"
)

// RepositoryAPI is the payment store contract. The store is the only
// synchronization point in the system: GetOrCreate resolves races on
// request_id through the unique constraint, TransitionTerminal
// resolves races on terminal state through a conditional update.
type RepositoryAPI interface {
	GetOrCreate(p *paymentmodel.Payment) (stored *paymentmodel.Payment, created bool, err error)
	GetByID(id uuid.UUID) (*paymentmodel.Payment, error)
	GetByRequestID(requestID uuid.UUID) (*paymentmodel.Payment, error)
	GetByGatewayTxRef(txRef string) (*paymentmodel.Payment, error)
	TransitionTerminal(id uuid.UUID, toStatus string, failureReason *string) (stored *paymentmodel.Payment, transitioned bool, err error)
	ListStalePending(olderThan time.Time, limit int) ([]*paymentmodel.Payment, error)
}

// GatewayAPI abstracts the external payment provider.
type GatewayAPI interface {
	CreateCheckout(ctx context.Context, req gateway.CheckoutRequest) (*gateway.CheckoutSession, error)
	VerifyTransaction(ctx context.Context, txRef string) (*gateway.VerifyResult, error)
}

// ServiceAPI is what the HTTP handlers and the reconciler consume.
type ServiceAPI interface {
	Initiate(ctx context.Context, req *InitiatePaymentRequest) (*InitiatePaymentResponse, error)
	GetStatus(ctx context.Context, id uuid.UUID) (*PaymentStatusResponse, error)
	ApplyGatewayOutcome(ctx context.Context, txRef, outcome string, failureReason *string) (*paymentmodel.Payment, bool, error)
}

// Gateway-reported outcomes accepted by the webhook processor and the
// reconciler.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// NewTxRef mints the transaction reference sent to the gateway at
// checkout creation.
func NewTxRef() string {
	return "tx-" + uuid.NewString()
}
