package routes

import (
	"checkout-service/controllers"
	"checkout-service/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, pc *controllers.PaymentController, oc *controllers.OrderController) {
	payments := r.Group("/payments")
	payments.Use(middleware.AuthMiddleware())
	payments.GET("/methods", pc.Methods)
	payments.POST("/paypal/order", pc.CreatePayPalOrder)
	payments.POST("/paypal/capture", pc.CapturePayPal)
	payments.POST("/bitcoin/init", pc.InitiateBitcoin)
	payments.GET("/bitcoin/status/:orderId", pc.BitcoinStatus)
	payments.POST("/monero/create", pc.CreateMonero)
	payments.GET("/monero/status/:orderId", pc.MoneroStatus)
	payments.POST("/:id/refund", pc.Refund)

	orders := r.Group("/orders")
	orders.Use(middleware.AuthMiddleware())
	orders.GET("", oc.GetOrders)
	orders.GET("/:id", oc.GetOrderByID)
	orders.DELETE("/:id", oc.CancelOrder)

	// Gateway webhook (no auth)
	r.POST("/payments/paypal/webhook", pc.PayPalWebhook)
}
