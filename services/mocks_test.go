package services_test

import (
	"context"
	"sync"
	"time"

	"checkout-service/gateways"
	"checkout-service/models"
	"checkout-service/repository"
	"checkout-service/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ---- in-memory store shared by the fake repositories ----

type memStore struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]models.Order
	payments map[uuid.UUID]models.Payment
}

func newMemStore() *memStore {
	return &memStore{
		orders:   make(map[uuid.UUID]models.Order),
		payments: make(map[uuid.UUID]models.Payment),
	}
}

func (s *memStore) snapshot() (map[uuid.UUID]models.Order, map[uuid.UUID]models.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orders := make(map[uuid.UUID]models.Order, len(s.orders))
	for k, v := range s.orders {
		orders[k] = v
	}
	payments := make(map[uuid.UUID]models.Payment, len(s.payments))
	for k, v := range s.payments {
		payments[k] = v
	}
	return orders, payments
}

func (s *memStore) restore(orders map[uuid.UUID]models.Order, payments map[uuid.UUID]models.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = orders
	s.payments = payments
}

// ---- fake order repository ----

type memOrderRepo struct {
	store *memStore
}

func (r *memOrderRepo) Create(_ context.Context, order *models.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for i := range order.OrderItems {
		if order.OrderItems[i].ID == uuid.Nil {
			order.OrderItems[i].ID = uuid.New()
		}
		order.OrderItems[i].OrderID = order.ID
	}
	order.CreatedAt = time.Now()
	r.store.orders[order.ID] = *order
	return nil
}

func (r *memOrderRepo) FindByID(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	order, ok := r.store.orders[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := order
	return &out, nil
}

func (r *memOrderRepo) FindByUserID(_ context.Context, userID uuid.UUID, page, limit int) ([]models.Order, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var orders []models.Order
	for _, o := range r.store.orders {
		if o.UserID == userID {
			orders = append(orders, o)
		}
	}
	return orders, int64(len(orders)), nil
}

func (r *memOrderRepo) LockByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return r.FindByID(ctx, orderID)
}

func (r *memOrderRepo) UpdateFields(_ context.Context, orderID uuid.UUID, updates map[string]interface{}) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	order, ok := r.store.orders[orderID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	applyOrderUpdates(&order, updates)
	r.store.orders[orderID] = order
	return nil
}

func (r *memOrderRepo) CompareAndSetStatus(_ context.Context, orderID uuid.UUID, fromStatus string, updates map[string]interface{}) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	order, ok := r.store.orders[orderID]
	if !ok || order.Status != fromStatus {
		return false, nil
	}
	applyOrderUpdates(&order, updates)
	r.store.orders[orderID] = order
	return true, nil
}

func (r *memOrderRepo) CountByUserID(_ context.Context, userID uuid.UUID) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var total int64
	for _, o := range r.store.orders {
		if o.UserID == userID {
			total++
		}
	}
	return total, nil
}

func applyOrderUpdates(order *models.Order, updates map[string]interface{}) {
	for key, val := range updates {
		switch key {
		case "status":
			order.Status = val.(string)
		case "payment_status":
			order.PaymentStatus = val.(string)
		case "payment_method":
			order.PaymentMethod = val.(string)
		case "total_refunded_amount":
			order.TotalRefundedAmount = val.(decimal.Decimal)
		case "cancelled_at":
			order.CancelledAt = val.(*time.Time)
		case "completed_at":
			order.CompletedAt = val.(*time.Time)
		}
	}
}

// ---- fake payment repository ----

type memPaymentRepo struct {
	store *memStore
}

func (r *memPaymentRepo) Create(_ context.Context, payment *models.Payment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if payment.WebhookData == "" {
		payment.WebhookData = "[]"
	}
	payment.CreatedAt = time.Now()
	r.store.payments[payment.ID] = *payment
	return nil
}

func (r *memPaymentRepo) FindByID(_ context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	payment, ok := r.store.payments[paymentID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := payment
	return &out, nil
}

func (r *memPaymentRepo) FindOpenByOrderAndMethod(_ context.Context, orderID uuid.UUID, method string) (*models.Payment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var newest *models.Payment
	for _, p := range r.store.payments {
		p := p
		if p.OrderID == orderID && p.Method == method && !models.TerminalStatuses[p.Status] {
			if newest == nil || p.CreatedAt.After(newest.CreatedAt) {
				newest = &p
			}
		}
	}
	if newest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return newest, nil
}

func (r *memPaymentRepo) FindLatestByOrderAndMethod(_ context.Context, orderID uuid.UUID, method string) (*models.Payment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var newest *models.Payment
	for _, p := range r.store.payments {
		p := p
		if p.OrderID == orderID && p.Method == method {
			if newest == nil || p.CreatedAt.After(newest.CreatedAt) {
				newest = &p
			}
		}
	}
	if newest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return newest, nil
}

func (r *memPaymentRepo) FindByPayPalOrderID(_ context.Context, paypalOrderID string) (*models.Payment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, p := range r.store.payments {
		if p.PayPalOrderID != nil && *p.PayPalOrderID == paypalOrderID {
			out := p
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memPaymentRepo) UpdateFields(_ context.Context, paymentID uuid.UUID, updates map[string]interface{}) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	payment, ok := r.store.payments[paymentID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	applyPaymentUpdates(&payment, updates)
	r.store.payments[paymentID] = payment
	return nil
}

func (r *memPaymentRepo) AdvanceFromNonTerminal(_ context.Context, paymentID uuid.UUID, updates map[string]interface{}) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	payment, ok := r.store.payments[paymentID]
	if !ok || models.TerminalStatuses[payment.Status] {
		return false, nil
	}
	applyPaymentUpdates(&payment, updates)
	r.store.payments[paymentID] = payment
	return true, nil
}

func applyPaymentUpdates(payment *models.Payment, updates map[string]interface{}) {
	for key, val := range updates {
		switch key {
		case "status":
			payment.Status = val.(string)
		case "webhook_data":
			payment.WebhookData = val.(string)
		case "confirmations":
			payment.Confirmations = val.(int)
		case "amount_received":
			payment.AmountReceived = val.(decimal.Decimal)
		case "refund_amount":
			payment.RefundAmount = val.(decimal.Decimal)
		case "transaction_id":
			v := val.(string)
			payment.TransactionID = &v
		case "payer_id":
			v := val.(string)
			payment.PayerID = &v
		case "payer_email":
			v := val.(string)
			payment.PayerEmail = &v
		case "succeeded_at":
			payment.SucceededAt = val.(*time.Time)
		case "failed_at":
			payment.FailedAt = val.(*time.Time)
		}
	}
}

// ---- fake transaction manager ----

// memTxManager snapshots the store before running fn and restores it when
// fn fails, mimicking an all-or-nothing transaction.
type memTxManager struct {
	store *memStore
}

type memTxRepos struct {
	orders   repository.OrderRepository
	payments repository.PaymentRepository
}

func (r *memTxRepos) Orders() repository.OrderRepository     { return r.orders }
func (r *memTxRepos) Payments() repository.PaymentRepository { return r.payments }

func (m *memTxManager) WithinTx(_ context.Context, fn func(r repository.TxRepos) error) error {
	orders, payments := m.store.snapshot()
	err := fn(&memTxRepos{
		orders:   &memOrderRepo{store: m.store},
		payments: &memPaymentRepo{store: m.store},
	})
	if err != nil {
		m.store.restore(orders, payments)
	}
	return err
}

// ---- fake cart repository ----

type memCartRepo struct {
	mu    sync.Mutex
	carts map[string]models.Cart
}

func newMemCartRepo() *memCartRepo {
	return &memCartRepo{carts: make(map[string]models.Cart)}
}

func (r *memCartRepo) GetCart(_ context.Context, userID string) (*models.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cart, ok := r.carts[userID]
	if !ok {
		return nil, nil
	}
	out := cart
	return &out, nil
}

func (r *memCartRepo) SaveCart(_ context.Context, cart *models.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts[cart.UserID] = *cart
	return nil
}

func (r *memCartRepo) DeleteCart(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, userID)
	return nil
}

// ---- fake event publisher ----

type mockPublisher struct {
	mu     sync.Mutex
	events []models.PaymentEvent
}

func (p *mockPublisher) SendPaymentEvent(event models.PaymentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// ---- fake shipping rate client ----

type stubShippingClient struct {
	rate decimal.Decimal
	err  error
}

func (c *stubShippingClient) GetRate(_ context.Context, _ string, _ models.Address) (decimal.Decimal, error) {
	if c.err != nil {
		return decimal.Zero, c.err
	}
	return c.rate, nil
}

// ---- test environment ----

type testEnv struct {
	store     *memStore
	orders    *memOrderRepo
	payments  *memPaymentRepo
	carts     *memCartRepo
	tx        *memTxManager
	publisher *mockPublisher
	logger    *zap.Logger
}

func newTestEnv() *testEnv {
	store := newMemStore()
	return &testEnv{
		store:     store,
		orders:    &memOrderRepo{store: store},
		payments:  &memPaymentRepo{store: store},
		carts:     newMemCartRepo(),
		tx:        &memTxManager{store: store},
		publisher: &mockPublisher{},
		logger:    zap.NewNop(),
	}
}

func (e *testEnv) reconciler() *services.Reconciler {
	return services.NewReconciler(e.tx, e.payments, e.carts, e.publisher, e.logger)
}

func (e *testEnv) checkoutService(shipping services.ShippingRateClient, taxRate string) *services.CheckoutService {
	return services.NewCheckoutService(e.carts, shipping, decimal.RequireFromString(taxRate), "GBP", e.logger)
}

func (e *testEnv) paymentService(
	checkout *services.CheckoutService,
	paypal *gateways.PayPalGateway,
	bitcoin *gateways.BitcoinGateway,
	monero *gateways.MoneroGateway,
) *services.PaymentService {
	return services.NewPaymentService(
		e.tx, e.orders, e.payments, checkout, e.reconciler(),
		paypal, bitcoin, monero, e.logger,
	)
}

func (e *testEnv) seedCart(userID string, items ...models.CartItem) {
	_ = e.carts.SaveCart(context.Background(), &models.Cart{
		UserID: userID,
		Items:  items,
	})
}

func completeAddress() models.Address {
	return models.Address{
		FullName:     "Ada Lovelace",
		AddressLine1: "12 Analytical Way",
		City:         "London",
		PostalCode:   "EC1A 1BB",
		Country:      "GB",
	}
}

// ---- stub gateway clients ----

type stubPayPalClient struct {
	order      *gateways.PayPalOrder
	createErr  error
	capture    *gateways.PayPalCapture
	captureErr error
	detail     *gateways.PayPalCapture // gateway-side order view for GetOrder
	detailErr  error
}

func (c *stubPayPalClient) CreateOrder(_ context.Context, _ decimal.Decimal, _ string) (*gateways.PayPalOrder, error) {
	return c.order, c.createErr
}

func (c *stubPayPalClient) CaptureOrder(_ context.Context, _, _ string) (*gateways.PayPalCapture, error) {
	return c.capture, c.captureErr
}

func (c *stubPayPalClient) GetOrder(_ context.Context, _ string) (*gateways.PayPalCapture, error) {
	return c.detail, c.detailErr
}

type stubBitcoinClient struct {
	address   *gateways.AddressInfo
	addrErr   error
	quote     *gateways.RateQuote
	quoteErr  error
	status    *gateways.AddressStatus
	statusErr error
}

func (c *stubBitcoinClient) GenerateAddress(_ context.Context) (*gateways.AddressInfo, error) {
	return c.address, c.addrErr
}

func (c *stubBitcoinClient) GetExchangeRate(_ context.Context) (*gateways.RateQuote, error) {
	return c.quote, c.quoteErr
}

func (c *stubBitcoinClient) GetAddressStatus(_ context.Context, _ string) (*gateways.AddressStatus, error) {
	return c.status, c.statusErr
}

type stubMoneroClient struct {
	quote     *gateways.RateQuote
	quoteErr  error
	slot      *gateways.MoneroPaymentInfo
	slotErr   error
	status    *gateways.AddressStatus
	statusErr error
}

func (c *stubMoneroClient) GetExchangeRate(_ context.Context) (*gateways.RateQuote, error) {
	return c.quote, c.quoteErr
}

func (c *stubMoneroClient) CreatePayment(_ context.Context, _ decimal.Decimal, _ string) (*gateways.MoneroPaymentInfo, error) {
	return c.slot, c.slotErr
}

func (c *stubMoneroClient) GetPaymentStatus(_ context.Context, _ string) (*gateways.AddressStatus, error) {
	return c.status, c.statusErr
}
