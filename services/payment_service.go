package services

import (
	"context"
	"errors"

	"checkout-service/gateways"
	"checkout-service/models"
	"checkout-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// InitiatePaymentRequest starts a checkout on one rail. OrderID is "new"
// (or empty) for a fresh cart checkout, or an existing order id for
// retry/resume flows.
type InitiatePaymentRequest struct {
	OrderID          string         `json:"order_id"`
	ShippingAddress  models.Address `json:"shipping_address"`
	ShippingMethodID string         `json:"shipping_method_id"`
}

// CheckoutResult is the order/payment pair produced by initiation.
type CheckoutResult struct {
	Order   *models.Order   `json:"order"`
	Payment *models.Payment `json:"payment"`
}

// PaymentMethodInfo describes one rail for capability discovery.
type PaymentMethodInfo struct {
	Method                string `json:"method"`
	Enabled               bool   `json:"enabled"`
	RequiredConfirmations int    `json:"required_confirmations,omitempty"`
	PaymentWindowHours    int    `json:"payment_window_hours,omitempty"`
}

// PaymentService orchestrates cart-to-order conversion and drives orders
// through the three payment rails.
type PaymentService struct {
	tx         repository.TxManager
	orders     repository.OrderRepository
	payments   repository.PaymentRepository
	checkout   *CheckoutService
	reconciler *Reconciler

	// Rails; nil when not configured.
	paypal  *gateways.PayPalGateway
	bitcoin *gateways.BitcoinGateway
	monero  *gateways.MoneroGateway

	logger *zap.Logger
}

func NewPaymentService(
	tx repository.TxManager,
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	checkout *CheckoutService,
	reconciler *Reconciler,
	paypal *gateways.PayPalGateway,
	bitcoin *gateways.BitcoinGateway,
	monero *gateways.MoneroGateway,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		tx:         tx,
		orders:     orders,
		payments:   payments,
		checkout:   checkout,
		reconciler: reconciler,
		paypal:     paypal,
		bitcoin:    bitcoin,
		monero:     monero,
		logger:     logger,
	}
}

// gateway resolves a rail by method name, nil when disabled.
func (s *PaymentService) gateway(method string) gateways.PaymentGateway {
	switch method {
	case models.MethodPayPal:
		if s.paypal != nil {
			return s.paypal
		}
	case models.MethodBitcoin:
		if s.bitcoin != nil {
			return s.bitcoin
		}
	case models.MethodMonero:
		if s.monero != nil {
			return s.monero
		}
	}
	return nil
}

// InitiatePayment converts the cart into an order (or resumes an existing
// unpaid order) and opens a payment attempt on the chosen rail. Order
// creation, gateway initiation and payment creation run in one
// transaction: a failure at any step leaves no order and no payment
// behind. Calling it again while an attempt is still open returns that
// attempt instead of charging twice.
func (s *PaymentService) InitiatePayment(ctx context.Context, userID, method string, req *InitiatePaymentRequest) (*CheckoutResult, *ServiceError) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, &ServiceError{StatusCode: 401, Message: "Invalid user identity"}
	}

	gw := s.gateway(method)
	if gw == nil {
		return nil, ErrMethodNotAvailable
	}

	var order *models.Order
	resume := req.OrderID != "" && req.OrderID != "new"

	if resume {
		oid, err := uuid.Parse(req.OrderID)
		if err != nil {
			return nil, ErrOrderNotFound
		}
		order, err = s.orders.FindByID(ctx, oid)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrOrderNotFound
			}
			s.logger.Error("Failed to load order", zap.String("order_id", req.OrderID), zap.Error(err))
			return nil, &ServiceError{StatusCode: 500, Message: "Failed to load order"}
		}
		if order.UserID != uid {
			return nil, ErrUnauthorizedOrderAccess
		}
		if order.PaymentStatus != models.PayStatusUnpaid {
			return nil, ErrOrderAlreadyPaid
		}

		// At-least-once safety: an open attempt on this rail is returned
		// as-is rather than charged again.
		if existing, err := s.payments.FindOpenByOrderAndMethod(ctx, order.ID, method); err == nil {
			return &CheckoutResult{Order: order, Payment: existing}, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("Failed to check open payments", zap.String("order_id", req.OrderID), zap.Error(err))
			return nil, &ServiceError{StatusCode: 500, Message: "Failed to check payments"}
		}
	} else {
		snapshot, serr := s.checkout.ResolveCartSnapshot(ctx, userID)
		if serr != nil {
			return nil, serr
		}
		order, serr = s.checkout.MaterializeOrder(ctx, uid, snapshot, req.ShippingAddress, req.ShippingMethodID)
		if serr != nil {
			return nil, serr
		}
	}

	var payment *models.Payment
	txErr := s.tx.WithinTx(ctx, func(tr repository.TxRepos) error {
		if !resume {
			if err := tr.Orders().Create(ctx, order); err != nil {
				return err
			}
		}

		result, err := gw.Initiate(ctx, order)
		if err != nil {
			return err
		}

		payment = buildPayment(order, uid, method, result)
		return tr.Payments().Create(ctx, payment)
	})
	if txErr != nil {
		// Full rollback happened: no order, no payment. The upstream error
		// stays in the logs only.
		s.logger.Error("Payment initiation failed",
			zap.String("user_id", userID),
			zap.String("method", method),
			zap.Error(txErr),
		)
		if errors.Is(txErr, gateways.ErrRateConsistency) {
			return nil, ErrRateInconsistent
		}
		return nil, ErrGatewayUnavailable
	}

	return &CheckoutResult{Order: order, Payment: payment}, nil
}

// CapturePayPal is the reconciliation step for the approval redirect. The
// capture totals must match the local order total before the payment may
// complete; replaying the redirect is a no-op.
func (s *PaymentService) CapturePayPal(ctx context.Context, userID, paypalOrderID, payerID string) (*models.Payment, *ServiceError) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, &ServiceError{StatusCode: 401, Message: "Invalid user identity"}
	}
	if s.paypal == nil {
		return nil, ErrMethodNotAvailable
	}

	payment, err := s.payments.FindByPayPalOrderID(ctx, paypalOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		s.logger.Error("Failed to load payment", zap.String("paypal_order_id", paypalOrderID), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to load payment"}
	}
	if payment.UserID != uid {
		return nil, ErrUnauthorizedOrderAccess
	}
	if models.TerminalStatuses[payment.Status] {
		return payment, nil
	}

	event, err := s.paypal.Capture(ctx, paypalOrderID, payerID)
	if err != nil {
		s.logger.Error("PayPal capture failed",
			zap.String("paypal_order_id", paypalOrderID),
			zap.Error(err),
		)
		return nil, ErrGatewayUnavailable
	}

	return s.reconciler.Apply(ctx, s.paypal, payment, event)
}

// PayPalWebhookPayload is the inbound webhook body. The endpoint is
// unauthenticated, so only the gateway order reference is used; the state
// applied is re-fetched from the gateway, never taken from the payload.
type PayPalWebhookPayload struct {
	EventType     string `json:"event_type" binding:"required"`
	PayPalOrderID string `json:"paypal_order_id" binding:"required"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	GrossAmount   string `json:"gross_amount"`
	Currency      string `json:"currency"`
	PayerID       string `json:"payer_id"`
	PayerEmail    string `json:"payer_email"`
}

// HandlePayPalWebhook verifies a gateway-pushed event against the gateway
// and applies the verified state. Unknown payments are logged and
// acknowledged; webhook retries must not error forever.
func (s *PaymentService) HandlePayPalWebhook(ctx context.Context, payload *PayPalWebhookPayload) {
	if s.paypal == nil {
		s.logger.Warn("Webhook received with paypal rail disabled",
			zap.String("paypal_order_id", payload.PayPalOrderID),
		)
		return
	}

	payment, err := s.payments.FindByPayPalOrderID(ctx, payload.PayPalOrderID)
	if err != nil {
		s.logger.Warn("Webhook for unknown payment",
			zap.String("paypal_order_id", payload.PayPalOrderID),
			zap.String("event_type", payload.EventType),
		)
		return
	}

	event, err := s.paypal.VerifyWebhook(ctx, payload.PayPalOrderID)
	if err != nil {
		s.logger.Error("Webhook verification failed",
			zap.String("paypal_order_id", payload.PayPalOrderID),
			zap.Error(err),
		)
		return
	}

	if _, serr := s.reconciler.Apply(ctx, s.paypal, payment, event); serr != nil && serr != ErrAmountMismatch {
		s.logger.Error("Webhook reconciliation failed",
			zap.String("paypal_order_id", payload.PayPalOrderID),
			zap.String("message", serr.Message),
		)
	}
}

// CheckPaymentStatus polls the rail for the order's newest payment attempt
// and reconciles the result. Expiry is evaluated lazily here; no request
// ever blocks on confirmations.
func (s *PaymentService) CheckPaymentStatus(ctx context.Context, userID, orderID, method string) (*models.Payment, *ServiceError) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, &ServiceError{StatusCode: 401, Message: "Invalid user identity"}
	}
	oid, err := uuid.Parse(orderID)
	if err != nil {
		return nil, ErrOrderNotFound
	}

	gw := s.gateway(method)
	if gw == nil {
		return nil, ErrMethodNotAvailable
	}

	order, err := s.orders.FindByID(ctx, oid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		s.logger.Error("Failed to load order", zap.String("order_id", orderID), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to load order"}
	}
	if order.UserID != uid {
		return nil, ErrUnauthorizedOrderAccess
	}

	payment, err := s.payments.FindLatestByOrderAndMethod(ctx, oid, method)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		s.logger.Error("Failed to load payment", zap.String("order_id", orderID), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to load payment"}
	}
	if models.TerminalStatuses[payment.Status] {
		return payment, nil
	}

	poller, ok := gw.(gateways.Poller)
	if !ok {
		return payment, nil
	}

	event, err := poller.Poll(ctx, payment)
	if err != nil {
		// Logged and retried on the next status check; the payment stays
		// in its last consistent state.
		s.logger.Error("Payment poll failed",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err),
		)
		return payment, nil
	}

	return s.reconciler.Apply(ctx, gw, payment, event)
}

// Methods reports per-rail availability for capability discovery.
func (s *PaymentService) Methods() []PaymentMethodInfo {
	return []PaymentMethodInfo{
		{
			Method:  models.MethodPayPal,
			Enabled: s.paypal != nil,
		},
		{
			Method:                models.MethodBitcoin,
			Enabled:               s.bitcoin != nil,
			RequiredConfirmations: gateways.BitcoinRequiredConfirmations,
			PaymentWindowHours:    int(gateways.BitcoinPaymentWindow.Hours()),
		},
		{
			Method:                models.MethodMonero,
			Enabled:               s.monero != nil,
			RequiredConfirmations: gateways.MoneroRequiredConfirmations,
			PaymentWindowHours:    int(gateways.MoneroPaymentWindow.Hours()),
		},
	}
}

func buildPayment(order *models.Order, userID uuid.UUID, method string, result *gateways.InitiationResult) *models.Payment {
	payment := &models.Payment{
		OrderID:  order.ID,
		UserID:   userID,
		Method:   method,
		Amount:   order.TotalAmount,
		Currency: order.Currency,
		Status:   result.Status,
	}

	switch method {
	case models.MethodPayPal:
		payment.PayPalOrderID = result.PayPalOrderID
		payment.ApprovalURL = result.ApprovalURL
	case models.MethodBitcoin:
		payment.BitcoinAddress = result.Address
		if result.QRCode != "" {
			qr := result.QRCode
			payment.QRCode = &qr
		}
		payment.BTCAmount = result.CryptoAmount
		payment.ExchangeRate = result.ExchangeRate
		payment.RateValidUntil = result.RateValidUntil
		payment.PaymentExpiry = result.PaymentExpiry
	case models.MethodMonero:
		payment.MoneroAddress = result.Address
		payment.XMRAmount = result.CryptoAmount
		payment.ExchangeRate = result.ExchangeRate
		payment.RateValidUntil = result.RateValidUntil
		payment.PaymentExpiry = result.PaymentExpiry
	}

	return payment
}
