package repository

import (
	"context"
	"time"

	"course-enrollment-service/internal/model"

	"gorm.io/gorm"
)

type PaymentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error
	FindByID(ctx context.Context, tx *gorm.DB, paymentID string) (*model.Payment, error)
	FindByOrderID(ctx context.Context, tx *gorm.DB, orderID string) (*model.Payment, error)
	FindLatestPending(ctx context.Context, enrollmentID string) (*model.Payment, error)
	SupersedePending(ctx context.Context, tx *gorm.DB, enrollmentID string) (int64, error)
	MarkSuccess(ctx context.Context, tx *gorm.DB, paymentID, gatewayPaymentID string, paidAt time.Time) error
	MarkFailed(ctx context.Context, tx *gorm.DB, paymentID string) (bool, error)
	HasOtherSuccess(ctx context.Context, tx *gorm.DB, enrollmentID, paymentID string) (bool, error)
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]*model.Payment, error)
}

type paymentRepoImpl struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepoImpl{
		db: db,
	}
}

func (r *paymentRepoImpl) Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
	if payment.ID == "" {
		payment.ID = newID()
	}
	return conn(r.db, tx).WithContext(ctx).Create(payment).Error
}

func (r *paymentRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, paymentID string) (*model.Payment, error) {
	var payment model.Payment
	err := conn(r.db, tx).WithContext(ctx).
		Where("id = ?", paymentID).
		First(&payment).Error

	if err != nil {
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepoImpl) FindByOrderID(ctx context.Context, tx *gorm.DB, orderID string) (*model.Payment, error) {
	var payment model.Payment
	err := conn(r.db, tx).WithContext(ctx).
		Where("razorpay_order_id = ?", orderID).
		First(&payment).Error

	if err != nil {
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepoImpl) FindLatestPending(ctx context.Context, enrollmentID string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Where("enrollment_id = ? AND status = ?", enrollmentID, model.PaymentStatusPending).
		Order("created_at DESC").
		First(&payment).Error

	if err != nil {
		return nil, err
	}

	return &payment, nil
}

// SupersedePending fails every pending payment of the enrollment.
func (r *paymentRepoImpl) SupersedePending(ctx context.Context, tx *gorm.DB, enrollmentID string) (int64, error) {
	result := conn(r.db, tx).WithContext(ctx).
		Model(&model.Payment{}).
		Where("enrollment_id = ? AND status = ?", enrollmentID, model.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":     model.PaymentStatusFailed,
			"updated_at": time.Now(),
		})

	return result.RowsAffected, result.Error
}

// MarkSuccess transitions a payment that is not yet successful. It returns
// ErrStaleState when another caller already recorded the success.
func (r *paymentRepoImpl) MarkSuccess(ctx context.Context, tx *gorm.DB, paymentID, gatewayPaymentID string, paidAt time.Time) error {
	result := conn(r.db, tx).WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ? AND status <> ?", paymentID, model.PaymentStatusSuccess).
		Updates(map[string]interface{}{
			"status":              model.PaymentStatusSuccess,
			"razorpay_payment_id": gatewayPaymentID,
			"paid_at":             paidAt,
			"updated_at":          time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleState
	}

	return nil
}

// MarkFailed only touches pending payments and reports whether it did.
func (r *paymentRepoImpl) MarkFailed(ctx context.Context, tx *gorm.DB, paymentID string) (bool, error) {
	result := conn(r.db, tx).WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ? AND status = ?", paymentID, model.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":     model.PaymentStatusFailed,
			"updated_at": time.Now(),
		})

	return result.RowsAffected > 0, result.Error
}

func (r *paymentRepoImpl) HasOtherSuccess(ctx context.Context, tx *gorm.DB, enrollmentID, paymentID string) (bool, error) {
	var count int64
	err := conn(r.db, tx).WithContext(ctx).
		Model(&model.Payment{}).
		Where("enrollment_id = ? AND id <> ? AND status = ?", enrollmentID, paymentID, model.PaymentStatusSuccess).
		Count(&count).Error

	return count > 0, err
}

func (r *paymentRepoImpl) ListByEnrollment(ctx context.Context, enrollmentID string) ([]*model.Payment, error) {
	var payments []*model.Payment
	err := r.db.WithContext(ctx).
		Where("enrollment_id = ?", enrollmentID).
		Order("created_at ASC").
		Find(&payments).Error

	if err != nil {
		return nil, err
	}

	return payments, nil
}
