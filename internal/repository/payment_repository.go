package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/sefazor/resumeforge-backend/internal/models"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{
		db: db,
	}
}

func (r *PaymentRepository) WithTx(tx *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: tx}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *models.PendingPayment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *PaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*models.PendingPayment, error) {
	var payment models.PendingPayment
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Take(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// MarkPaid moves an unpaid order to paid. A failed order still accepts a late
// payment. It reports false when the order was already paid, which is how a
// replayed confirmation is detected.
func (r *PaymentRepository) MarkPaid(ctx context.Context, orderID, paymentID, signature string, paidAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PendingPayment{}).
		Where("order_id = ? AND status IN ?", orderID, []models.PaymentStatus{models.PaymentStatusCreated, models.PaymentStatusFailed}).
		Updates(map[string]interface{}{
			"status":     models.PaymentStatusPaid,
			"payment_id": paymentID,
			"signature":  signature,
			"paid_at":    paidAt,
			"updated_at": paidAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *PaymentRepository) MarkFailed(ctx context.Context, orderID string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PendingPayment{}).
		Where("order_id = ? AND status = ?", orderID, models.PaymentStatusCreated).
		Updates(map[string]interface{}{
			"status":     models.PaymentStatusFailed,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *PaymentRepository) GetPaymentHistory(ctx context.Context, identityKey string) ([]models.PendingPayment, error) {
	var payments []models.PendingPayment
	err := r.db.WithContext(ctx).
		Where("identity_key = ?", identityKey).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}

// ListStale returns created orders older than before, oldest first.
func (r *PaymentRepository) ListStale(ctx context.Context, before time.Time, limit int) ([]models.PendingPayment, error) {
	var payments []models.PendingPayment
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.PaymentStatusCreated, before).
		Order("created_at ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}
