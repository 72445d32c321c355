package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"checkout-service/models"
	"checkout-service/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RefundRequest is the body of a refund call against a payment.
type RefundRequest struct {
	Amount string `json:"amount" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

// RefundResult reports the order's refund position after a refund.
type RefundResult struct {
	OrderID             string          `json:"order_id"`
	PaymentID           string          `json:"payment_id"`
	RefundedAmount      decimal.Decimal `json:"refunded_amount"`
	TotalRefundedAmount decimal.Decimal `json:"total_refunded_amount"`
	PaymentStatus       string          `json:"payment_status"`
	Reason              string          `json:"reason"`
}

// RefundEligibility is the pure eligibility check: a paid order with
// refundable headroom left.
func RefundEligibility(order *models.Order) (eligible bool, reason string) {
	switch order.PaymentStatus {
	case models.PayStatusCompleted, models.PayStatusPartiallyRefunded, models.PayStatusFullyRefunded:
	default:
		return false, "Order has no completed payment"
	}
	if !order.MaxRefundable().IsPositive() {
		return false, "Order is already fully refunded"
	}
	return true, ""
}

// ValidateRefundAmount checks a requested amount against the refundable
// headroom. Pure; returns the rejection as a ServiceError.
func ValidateRefundAmount(requested, maxRefundable decimal.Decimal) *ServiceError {
	if !requested.IsPositive() {
		return RefundAmountInvalid
	}
	if requested.GreaterThan(maxRefundable) {
		return RefundAmountError(requested, maxRefundable)
	}
	return nil
}

// RefundService validates and applies partial/full refunds. Concurrent
// refunds against the same order serialize on the order row, so refund
// increments are never lost.
type RefundService struct {
	tx       repository.TxManager
	payments repository.PaymentRepository
	producer EventPublisher
	logger   *zap.Logger
}

func NewRefundService(tx repository.TxManager, payments repository.PaymentRepository, producer EventPublisher, logger *zap.Logger) *RefundService {
	return &RefundService{
		tx:       tx,
		payments: payments,
		producer: producer,
		logger:   logger,
	}
}

// Refund applies a refund of the requested amount against the payment's
// order. totalRefundedAmount never exceeds totalAmount.
func (s *RefundService) Refund(ctx context.Context, userID, paymentID string, req *RefundRequest) (*RefundResult, *ServiceError) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, &ServiceError{StatusCode: 401, Message: "Invalid user identity"}
	}
	pid, err := uuid.Parse(paymentID)
	if err != nil {
		return nil, ErrPaymentNotFound
	}

	if strings.TrimSpace(req.Reason) == "" {
		return nil, ErrRefundReasonRequired
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return nil, RefundAmountInvalid
	}

	payment, err := s.payments.FindByID(ctx, pid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		s.logger.Error("Failed to load payment", zap.String("payment_id", paymentID), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to load payment"}
	}
	if payment.UserID != uid {
		return nil, ErrUnauthorizedOrderAccess
	}

	var result *RefundResult
	var serr *ServiceError

	txErr := s.tx.WithinTx(ctx, func(tr repository.TxRepos) error {
		// Row lock: simultaneous refunds queue here and each one re-reads
		// the refunded total the previous writer committed.
		order, err := tr.Orders().LockByID(ctx, payment.OrderID)
		if err != nil {
			return err
		}

		if eligible, why := RefundEligibility(order); !eligible {
			serr = &ServiceError{StatusCode: 400, Message: why}
			return nil
		}
		if verr := ValidateRefundAmount(amount, order.MaxRefundable()); verr != nil {
			serr = verr
			return nil
		}

		total, paymentStatus := order.ApplyRefund(amount)
		if err := tr.Orders().UpdateFields(ctx, order.ID, map[string]interface{}{
			"total_refunded_amount": total,
			"payment_status":        paymentStatus,
		}); err != nil {
			return err
		}
		if err := tr.Payments().UpdateFields(ctx, payment.ID, map[string]interface{}{
			"refund_amount": payment.RefundAmount.Add(amount),
		}); err != nil {
			return err
		}

		result = &RefundResult{
			OrderID:             order.ID.String(),
			PaymentID:           payment.ID.String(),
			RefundedAmount:      amount,
			TotalRefundedAmount: total,
			PaymentStatus:       paymentStatus,
			Reason:              strings.TrimSpace(req.Reason),
		}
		return nil
	})
	if txErr != nil {
		s.logger.Error("Refund transaction failed", zap.String("payment_id", paymentID), zap.Error(txErr))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to process refund"}
	}
	if serr != nil {
		return nil, serr
	}

	event := models.PaymentEvent{
		Type:      "payment_refunded",
		OrderID:   result.OrderID,
		UserID:    userID,
		PaymentID: result.PaymentID,
		Method:    payment.Method,
		Amount:    amount.StringFixed(2),
		Currency:  payment.Currency,
		Timestamp: time.Now().UTC(),
	}
	if err := s.producer.SendPaymentEvent(event); err != nil {
		s.logger.Error("Failed to publish refund event", zap.String("order_id", result.OrderID), zap.Error(err))
	}

	return result, nil
}
