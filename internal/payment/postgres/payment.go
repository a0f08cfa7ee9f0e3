package postgres

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	paymentmodel "github.com/frahmantamala/rentpay/internal/core/datamodel/payment"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// GetOrCreate inserts the payment, relying on the unique request_id
// index to arbitrate concurrent inserts for the same key. On a
// duplicate it re-reads and returns the winner's row. The returned
// bool reports whether this call created the row.
func (r *PaymentRepository) GetOrCreate(p *paymentmodel.Payment) (*paymentmodel.Payment, bool, error) {
	err := r.db.Create(p).Error
	if err == nil {
		return p, true, nil
	}

	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, false, err
	}

	existing, getErr := r.GetByRequestID(p.RequestID)
	if getErr != nil {
		return nil, false, getErr
	}
	return existing, false, nil
}

func (r *PaymentRepository) GetByID(id uuid.UUID) (*paymentmodel.Payment, error) {
	var p paymentmodel.Payment
	if err := r.db.Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByRequestID(requestID uuid.UUID) (*paymentmodel.Payment, error) {
	var p paymentmodel.Payment
	if err := r.db.Where("request_id = ?", requestID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByGatewayTxRef(txRef string) (*paymentmodel.Payment, error) {
	var p paymentmodel.Payment
	if err := r.db.Where("gateway_tx_ref = ?", txRef).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// TransitionTerminal moves a payment out of PENDING with a conditional
// update. The WHERE clause on the current status makes the transition
// atomic: of any number of concurrent callers exactly one sees
// RowsAffected == 1, every other caller gets the stored row back with
// transitioned == false.
func (r *PaymentRepository) TransitionTerminal(id uuid.UUID, toStatus string, failureReason *string) (*paymentmodel.Payment, bool, error) {
	if toStatus != paymentmodel.StatusSuccess && toStatus != paymentmodel.StatusFailed {
		return nil, false, errors.New("transition target must be a terminal status")
	}

	updates := map[string]interface{}{
		"status":     toStatus,
		"updated_at": time.Now(),
	}
	if toStatus == paymentmodel.StatusSuccess {
		updates["approved_at"] = time.Now()
	}
	// failure_reason is only meaningful on FAILED rows.
	if toStatus == paymentmodel.StatusFailed && failureReason != nil {
		updates["failure_reason"] = *failureReason
	}

	res := r.db.Model(&paymentmodel.Payment{}).
		Where("id = ? AND status = ?", id, paymentmodel.StatusPending).
		Updates(updates)
	if res.Error != nil {
		return nil, false, res.Error
	}

	stored, err := r.GetByID(id)
	if err != nil {
		return nil, false, err
	}
	return stored, res.RowsAffected == 1, nil
}

// ListStalePending returns payments still PENDING that were created
// before the cutoff, oldest first.
func (r *PaymentRepository) ListStalePending(olderThan time.Time, limit int) ([]*paymentmodel.Payment, error) {
	var payments []*paymentmodel.Payment
	err := r.db.
		Where("status = ? AND created_at < ?", paymentmodel.StatusPending, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}
