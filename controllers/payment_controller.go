package controllers

import (
	"net/http"

	"checkout-service/middleware"
	"checkout-service/models"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PaymentController struct {
	Payments *services.PaymentService
	Refunds  *services.RefundService
	Logger   *zap.Logger
}

// CreatePayPalOrder converts the cart into an order and opens a PayPal
// payment attempt, returning the approval URL for the redirect.
func (pc *PaymentController) CreatePayPalOrder(c *gin.Context) {
	pc.initiate(c, models.MethodPayPal)
}

// InitiateBitcoin opens a bitcoin payment attempt with a fresh receiving
// address and a locked BTC amount.
func (pc *PaymentController) InitiateBitcoin(c *gin.Context) {
	pc.initiate(c, models.MethodBitcoin)
}

// CreateMonero opens a monero payment attempt with a rate-locked XMR
// amount.
func (pc *PaymentController) CreateMonero(c *gin.Context) {
	pc.initiate(c, models.MethodMonero)
}

func (pc *PaymentController) initiate(c *gin.Context, method string) {
	userID := middleware.GetUserID(c)

	var req services.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	result, serr := pc.Payments.InitiatePayment(c.Request.Context(), userID, method, &req)
	if serr != nil {
		c.JSON(serr.StatusCode, gin.H{"error": serr.Message})
		return
	}

	c.JSON(http.StatusCreated, result)
}

// CapturePayPal is invoked by the approval-redirect success handler.
func (pc *PaymentController) CapturePayPal(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req struct {
		PayPalOrderID string `json:"paypal_order_id" binding:"required"`
		PayerID       string `json:"payer_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	payment, serr := pc.Payments.CapturePayPal(c.Request.Context(), userID, req.PayPalOrderID, req.PayerID)
	if serr != nil {
		c.JSON(serr.StatusCode, gin.H{"error": serr.Message})
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// PayPalWebhook receives gateway-pushed payment events. Always
// acknowledged unless the payload is malformed; reconciliation failures
// are retried by redelivery.
func (pc *PaymentController) PayPalWebhook(c *gin.Context) {
	var payload services.PayPalWebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		pc.Logger.Warn("Invalid webhook payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook"})
		return
	}

	pc.Logger.Info("Processing payment webhook",
		zap.String("event_type", payload.EventType),
		zap.String("paypal_order_id", payload.PayPalOrderID),
	)

	pc.Payments.HandlePayPalWebhook(c.Request.Context(), &payload)
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// BitcoinStatus polls the chain view for the order's bitcoin payment.
func (pc *PaymentController) BitcoinStatus(c *gin.Context) {
	pc.status(c, models.MethodBitcoin)
}

// MoneroStatus polls the wallet service for the order's monero payment.
func (pc *PaymentController) MoneroStatus(c *gin.Context) {
	pc.status(c, models.MethodMonero)
}

func (pc *PaymentController) status(c *gin.Context, method string) {
	userID := middleware.GetUserID(c)
	orderID := c.Param("orderId")

	payment, serr := pc.Payments.CheckPaymentStatus(c.Request.Context(), userID, orderID, method)
	if serr != nil {
		c.JSON(serr.StatusCode, gin.H{"error": serr.Message})
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// Methods reports which rails are available.
func (pc *PaymentController) Methods(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"methods": pc.Payments.Methods()})
}

// Refund applies a partial or full refund against a payment.
func (pc *PaymentController) Refund(c *gin.Context) {
	userID := middleware.GetUserID(c)
	paymentID := c.Param("id")

	var req services.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	result, serr := pc.Refunds.Refund(c.Request.Context(), userID, paymentID, &req)
	if serr != nil {
		c.JSON(serr.StatusCode, gin.H{"error": serr.Message})
		return
	}

	c.JSON(http.StatusOK, gin.H{"refund": result})
}
