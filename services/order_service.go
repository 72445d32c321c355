package services

import (
	"context"
	"errors"
	"time"

	"checkout-service/models"
	"checkout-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type OrderResponse struct {
	Orders []models.Order `json:"orders"`
	Meta   MetaData       `json:"meta"`
}

type MetaData struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalOrders int64 `json:"total_orders"`
	TotalPages  int64 `json:"total_pages"`
	HasMore     bool  `json:"has_more"`
}

type OrderService struct {
	orders   repository.OrderRepository
	producer EventPublisher
	logger   *zap.Logger
}

func NewOrderService(orders repository.OrderRepository, producer EventPublisher, logger *zap.Logger) *OrderService {
	return &OrderService{
		orders:   orders,
		producer: producer,
		logger:   logger,
	}
}

// GetUserOrders retrieves paginated orders for a specific user
func (s *OrderService) GetUserOrders(ctx context.Context, userID string, page, limit int) (*OrderResponse, *ServiceError) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, &ServiceError{StatusCode: 400, Message: "Invalid user ID format"}
	}

	orders, total, err := s.orders.FindByUserID(ctx, uid, page, limit)
	if err != nil {
		s.logger.Error("Failed to fetch orders", zap.String("user_id", userID), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to fetch orders"}
	}

	return &OrderResponse{
		Orders: orders,
		Meta: MetaData{
			Page:        page,
			Limit:       limit,
			TotalOrders: total,
			TotalPages:  calculateTotalPages(total, limit),
			HasMore:     total > int64(page*limit),
		},
	}, nil
}

// GetOrderByID retrieves a specific order for a user
func (s *OrderService) GetOrderByID(ctx context.Context, userID string, orderID uuid.UUID) (*models.Order, *ServiceError) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, &ServiceError{StatusCode: 400, Message: "Invalid user ID format"}
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		s.logger.Error("Failed to fetch order", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to fetch order"}
	}
	if order.UserID != uid {
		return nil, ErrUnauthorizedOrderAccess
	}

	return order, nil
}

// CancelOrder cancels a pending unpaid order. The status write is a
// compare-and-set, so of any number of concurrent cancel calls exactly
// one succeeds and the rest see the already-cancelled error.
func (s *OrderService) CancelOrder(ctx context.Context, userID string, orderID uuid.UUID) (*models.Order, *ServiceError) {
	order, serr := s.GetOrderByID(ctx, userID, orderID)
	if serr != nil {
		return nil, serr
	}

	now := time.Now()
	won, err := s.orders.CompareAndSetStatus(ctx, order.ID, models.OrderStatusPending, map[string]interface{}{
		"status":       models.OrderStatusCancelled,
		"cancelled_at": &now,
	})
	if err != nil {
		s.logger.Error("Failed to cancel order", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to cancel order"}
	}
	if !won {
		current, err := s.orders.FindByID(ctx, order.ID)
		if err == nil && current.Status == models.OrderStatusCancelled {
			return nil, ErrOrderAlreadyCancelled
		}
		return nil, &ServiceError{StatusCode: 400, Message: "Order can no longer be cancelled"}
	}

	event := models.PaymentEvent{
		Type:      "order_cancelled",
		OrderID:   order.ID.String(),
		UserID:    userID,
		Amount:    order.TotalAmount.StringFixed(2),
		Currency:  order.Currency,
		Timestamp: now.UTC(),
	}
	if perr := s.producer.SendPaymentEvent(event); perr != nil {
		s.logger.Error("Failed to publish cancellation event", zap.String("order_id", order.ID.String()), zap.Error(perr))
	}

	order.Status = models.OrderStatusCancelled
	order.CancelledAt = &now
	return order, nil
}

func calculateTotalPages(total int64, limit int) int64 {
	if limit == 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}
