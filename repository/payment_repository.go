package repository

import (
	"context"

	"checkout-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
	// FindOpenByOrderAndMethod returns the newest non-terminal payment
	// attempt for the order and rail, or gorm.ErrRecordNotFound.
	FindOpenByOrderAndMethod(ctx context.Context, orderID uuid.UUID, method string) (*models.Payment, error)
	FindLatestByOrderAndMethod(ctx context.Context, orderID uuid.UUID, method string) (*models.Payment, error)
	FindByPayPalOrderID(ctx context.Context, paypalOrderID string) (*models.Payment, error)
	UpdateFields(ctx context.Context, paymentID uuid.UUID, updates map[string]interface{}) error
	// AdvanceFromNonTerminal applies updates only while the payment is in a
	// non-terminal state. Simultaneous webhook and poll reconciliation both
	// race through here; the second writer loses and reports false.
	AdvanceFromNonTerminal(ctx context.Context, paymentID uuid.UUID, updates map[string]interface{}) (bool, error)
}

type gormPaymentRepo struct {
	db *gorm.DB
}

func NewGormPaymentRepo(db *gorm.DB) PaymentRepository {
	return &gormPaymentRepo{db: db}
}

func (r *gormPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *gormPaymentRepo) FindByID(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", paymentID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormPaymentRepo) FindOpenByOrderAndMethod(ctx context.Context, orderID uuid.UUID, method string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND method = ? AND status NOT IN ?", orderID, method, terminalStatusList()).
		Order("created_at DESC").
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormPaymentRepo) FindLatestByOrderAndMethod(ctx context.Context, orderID uuid.UUID, method string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND method = ?", orderID, method).
		Order("created_at DESC").
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormPaymentRepo) FindByPayPalOrderID(ctx context.Context, paypalOrderID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("pay_pal_order_id = ?", paypalOrderID).
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormPaymentRepo) UpdateFields(ctx context.Context, paymentID uuid.UUID, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", paymentID).
		Updates(updates).Error
}

func (r *gormPaymentRepo) AdvanceFromNonTerminal(ctx context.Context, paymentID uuid.UUID, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status NOT IN ?", paymentID, terminalStatusList()).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func terminalStatusList() []string {
	statuses := make([]string, 0, len(models.TerminalStatuses))
	for s := range models.TerminalStatuses {
		statuses = append(statuses, s)
	}
	return statuses
}
