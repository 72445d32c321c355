package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"checkout-service/models"
	"checkout-service/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CheckoutService resolves cart snapshots and materializes orders from
// them. Snapshots are immutable copies; later cart edits never change an
// in-flight checkout.
type CheckoutService struct {
	carts    repository.CartRepository
	shipping ShippingRateClient
	taxRate  decimal.Decimal
	currency string
	logger   *zap.Logger
}

func NewCheckoutService(carts repository.CartRepository, shipping ShippingRateClient, taxRate decimal.Decimal, currency string, logger *zap.Logger) *CheckoutService {
	return &CheckoutService{
		carts:    carts,
		shipping: shipping,
		taxRate:  taxRate,
		currency: currency,
		logger:   logger,
	}
}

// ResolveCartSnapshot loads the user's cart and freezes prices and
// quantities into a line-item snapshot.
func (s *CheckoutService) ResolveCartSnapshot(ctx context.Context, userID string) (*models.CartSnapshot, *ServiceError) {
	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to load cart", zap.String("user_id", userID), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to load cart"}
	}
	if cart == nil || len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	snapshot := &models.CartSnapshot{
		Items:    make([]models.CartItem, len(cart.Items)),
		Subtotal: decimal.Zero,
	}
	copy(snapshot.Items, cart.Items)
	for _, item := range snapshot.Items {
		snapshot.Subtotal = snapshot.Subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	return snapshot, nil
}

// MaterializeOrder builds an unpaid pending order from a snapshot, a
// validated shipping address and a shipping method. The shipping rate
// engine is an external collaborator.
func (s *CheckoutService) MaterializeOrder(ctx context.Context, userID uuid.UUID, snapshot *models.CartSnapshot, address models.Address, shippingMethodID string) (*models.Order, *ServiceError) {
	if !address.Complete() {
		return nil, ErrIncompleteAddress
	}

	shippingCost, err := s.shipping.GetRate(ctx, shippingMethodID, address)
	if err != nil {
		s.logger.Error("Shipping rate lookup failed",
			zap.String("shipping_method_id", shippingMethodID),
			zap.Error(err),
		)
		return nil, ErrGatewayUnavailable
	}

	taxAmount := snapshot.Subtotal.Mul(s.taxRate).Round(2)
	subtotal := snapshot.Subtotal.Round(2)
	total := subtotal.Add(shippingCost).Add(taxAmount)

	order := &models.Order{
		OrderNumber:      newOrderNumber(),
		UserID:           userID,
		Subtotal:         subtotal,
		ShippingCost:     shippingCost,
		TaxAmount:        taxAmount,
		TotalAmount:      total,
		Currency:         s.currency,
		Status:           models.OrderStatusPending,
		PaymentStatus:    models.PayStatusUnpaid,
		ShippingMethodID: shippingMethodID,
		OrderItems:       make([]models.OrderItem, 0, len(snapshot.Items)),
	}

	addrJSON, _ := json.Marshal(address)
	order.ShippingAddress = string(addrJSON)

	for _, item := range snapshot.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, &ServiceError{StatusCode: 400, Message: "Invalid product ID in cart"}
		}
		lineSubtotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		order.OrderItems = append(order.OrderItems, models.OrderItem{
			ProductID: productID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Subtotal:  lineSubtotal,
		})
	}

	return order, nil
}

func newOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", time.Now().UTC().Format("20060102"), suffix)
}
