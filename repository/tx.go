package repository

import (
	"context"

	"gorm.io/gorm"
)

// TxRepos exposes repositories rebound to a single transaction.
type TxRepos interface {
	Orders() OrderRepository
	Payments() PaymentRepository
}

// TxManager hides transaction begin/commit/rollback from the service layer.
// A non-nil error from fn rolls back every write made through TxRepos.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}

type txRepos struct {
	orders   OrderRepository
	payments PaymentRepository
}

func (r *txRepos) Orders() OrderRepository     { return r.orders }
func (r *txRepos) Payments() PaymentRepository { return r.payments }

type GormTxManager struct {
	db *gorm.DB
}

func NewGormTxManager(db *gorm.DB) *GormTxManager {
	return &GormTxManager{db: db}
}

func (tm *GormTxManager) WithinTx(ctx context.Context, fn func(r TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := &txRepos{
			orders:   NewGormOrderRepository(tx),
			payments: NewGormPaymentRepo(tx),
		}
		return fn(r)
	})
}
