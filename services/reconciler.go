package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkout-service/gateways"
	"checkout-service/models"
	"checkout-service/repository"

	"go.uber.org/zap"
)

// EventPublisher publishes payment lifecycle events.
type EventPublisher interface {
	SendPaymentEvent(event models.PaymentEvent) error
}

// Reconciler idempotently applies external status events (webhook payloads
// or poll results) to a payment/order pair. Every event is appended to the
// payment's webhook log before any state mutation; replaying an
// already-applied event is a no-op. Terminal-state writes are
// compare-and-set, so simultaneous webhook and poll delivery are safe.
type Reconciler struct {
	tx       repository.TxManager
	payments repository.PaymentRepository
	carts    repository.CartRepository
	producer EventPublisher
	logger   *zap.Logger
}

func NewReconciler(tx repository.TxManager, payments repository.PaymentRepository, carts repository.CartRepository, producer EventPublisher, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		tx:       tx,
		payments: payments,
		carts:    carts,
		producer: producer,
		logger:   logger,
	}
}

// Apply folds one external event into the payment's rail state machine.
// On a terminal-success transition the order update and payment update
// commit as one transaction; cart clearing and event publishing follow the
// commit. Returns the post-application payment and, for an amount
// mismatch, the surfaced validation error (the payment is failed, the
// order untouched).
func (r *Reconciler) Apply(ctx context.Context, gw gateways.PaymentGateway, payment *models.Payment, event gateways.ExternalEvent) (*models.Payment, *ServiceError) {
	externalID := event.ExternalID
	if externalID == "" {
		// Some gateway events carry no transaction id; derive a stable one
		// so redelivery still dedupes.
		externalID = fmt.Sprintf("%s:%s:%s", event.Kind, event.Status, event.GrossAmount)
	}

	if payment.HasEvent(externalID) {
		r.logger.Info("Skipping already-applied payment event",
			zap.String("payment_id", payment.ID.String()),
			zap.String("external_id", externalID),
		)
		return payment, nil
	}

	now := time.Now()
	next, transitionErr := gw.Reconcile(payment, event, now)
	if transitionErr != nil && !errors.Is(transitionErr, gateways.ErrAmountMismatch) {
		r.logger.Error("Gateway reconciliation failed",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(transitionErr),
		)
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to reconcile payment"}
	}

	success := isTerminalSuccess(next)
	var cleared bool
	var applied bool

	err := r.tx.WithinTx(ctx, func(tr repository.TxRepos) error {
		fresh, err := tr.Payments().FindByID(ctx, payment.ID)
		if err != nil {
			return err
		}
		// Re-check under the transaction; a racing delivery may have won.
		if fresh.HasEvent(externalID) {
			return nil
		}

		updates := map[string]interface{}{
			"webhook_data": fresh.AppendEvent(models.WebhookEvent{
				ExternalID:     externalID,
				Kind:           event.Kind,
				Status:         next,
				Confirmations:  event.Confirmations,
				AmountReceived: event.AmountReceived,
				ReceivedAt:     now,
			}),
			"status": next,
		}

		switch fresh.Method {
		case models.MethodBitcoin, models.MethodMonero:
			// High-water marks: a lagging poll never regresses either.
			if event.Confirmations > fresh.Confirmations {
				updates["confirmations"] = event.Confirmations
			}
			if event.AmountReceived.GreaterThan(fresh.AmountReceived) {
				updates["amount_received"] = event.AmountReceived
			}
		case models.MethodPayPal:
			if event.TransactionID != "" {
				updates["transaction_id"] = event.TransactionID
			}
			if event.PayerID != "" {
				updates["payer_id"] = event.PayerID
			}
			if event.PayerEmail != "" {
				updates["payer_email"] = event.PayerEmail
			}
		}

		if success {
			updates["succeeded_at"] = &now
		}
		if next == models.PayPalFailed {
			updates["failed_at"] = &now
		}

		won, err := tr.Payments().AdvanceFromNonTerminal(ctx, fresh.ID, updates)
		if err != nil {
			return err
		}
		if !won {
			return nil
		}
		applied = true
		if !success {
			return nil
		}

		// Terminal success: the order transition commits with the payment
		// update or not at all.
		if err := tr.Orders().UpdateFields(ctx, fresh.OrderID, map[string]interface{}{
			"payment_status": models.PayStatusCompleted,
			"status":         models.OrderStatusProcessing,
			"payment_method": fresh.Method,
			"completed_at":   &now,
		}); err != nil {
			return err
		}
		cleared = true
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to apply payment event",
			zap.String("payment_id", payment.ID.String()),
			zap.String("external_id", externalID),
			zap.Error(err),
		)
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to apply payment update"}
	}

	if cleared {
		if err := r.carts.DeleteCart(ctx, payment.UserID.String()); err != nil {
			// The poller retries; an uncleared cart never corrupts the order.
			r.logger.Error("Failed to clear cart after payment",
				zap.String("user_id", payment.UserID.String()),
				zap.Error(err),
			)
		}
		r.publish("payment_succeeded", payment, now)
	} else if applied && next == models.PayPalFailed {
		// Only the delivery that actually wrote the failure publishes it.
		r.publish("payment_failed", payment, now)
	}

	updated, ferr := r.payments.FindByID(ctx, payment.ID)
	if ferr != nil {
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to load payment"}
	}

	if transitionErr != nil {
		return updated, ErrAmountMismatch
	}
	return updated, nil
}

func (r *Reconciler) publish(eventType string, payment *models.Payment, ts time.Time) {
	event := models.PaymentEvent{
		Type:      eventType,
		OrderID:   payment.OrderID.String(),
		UserID:    payment.UserID.String(),
		PaymentID: payment.ID.String(),
		Method:    payment.Method,
		Amount:    payment.Amount.StringFixed(2),
		Currency:  payment.Currency,
		Timestamp: ts.UTC(),
	}
	if err := r.producer.SendPaymentEvent(event); err != nil {
		r.logger.Error("Failed to publish payment event",
			zap.String("event_type", eventType),
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
	}
}

// isTerminalSuccess reports whether a status is the success terminal for
// its rail (paypal/bitcoin "completed", monero "confirmed").
func isTerminalSuccess(status string) bool {
	return status == models.PayPalCompleted || status == models.MoneroConfirmed
}
