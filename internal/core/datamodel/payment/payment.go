package payment

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	StatusPending = "PENDING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// Payment is the single financial record of this service. Rows are
// append-only: status moves PENDING -> SUCCESS or PENDING -> FAILED
// exactly once and is never reverted or deleted.
type Payment struct {
	ID            uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	RequestID     uuid.UUID  `json:"request_id" gorm:"column:request_id;type:uuid;not null;uniqueIndex"`
	PropertyID    uuid.UUID  `json:"property_id" gorm:"column:property_id;type:uuid;not null"`
	UserID        uuid.UUID  `json:"user_id" gorm:"column:user_id;type:uuid;not null"`
	AmountCents   int64      `json:"amount_cents" gorm:"column:amount_cents;not null"`
	Currency      string     `json:"currency" gorm:"column:currency;not null;default:ETB"`
	Locale        string     `json:"locale" gorm:"column:locale;not null;default:en"`
	Status        string     `json:"status" gorm:"column:status;not null;default:PENDING"`
	GatewayTxRef  string     `json:"gateway_tx_ref" gorm:"column:gateway_tx_ref;not null;uniqueIndex"`
	CheckoutURL   string     `json:"checkout_url" gorm:"column:checkout_url;not null"`
	FailureReason *string    `json:"failure_reason,omitempty" gorm:"column:failure_reason"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty" gorm:"column:approved_at"`
	CreatedAt     time.Time  `json:"created_at" gorm:"column:created_at"`
	UpdatedAt     time.Time  `json:"updated_at" gorm:"column:updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	return nil
}

func (p *Payment) IsTerminal() bool {
	return p.Status == StatusSuccess || p.Status == StatusFailed
}

// SameParameters reports whether an initiation request carries the
// same parameters as this row. A request_id hit with different
// parameters is a key-reuse conflict, not a replay.
func (p *Payment) SameParameters(propertyID, userID uuid.UUID, amountCents int64) bool {
	return p.PropertyID == propertyID && p.UserID == userID && p.AmountCents == amountCents
}
