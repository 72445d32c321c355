package main

import (
	"log"
	"strings"
	"time"

	"checkout-service/config"
	"checkout-service/controllers"
	"checkout-service/database"
	"checkout-service/gateways"
	"checkout-service/kafka"
	"checkout-service/models"
	"checkout-service/repository"
	"checkout-service/routes"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const cartTTL = 7 * 24 * time.Hour

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("[CheckoutService] Failed to load config:", err)
	}

	if err := database.Connect(cfg); err != nil {
		log.Fatal("[CheckoutService] Failed to connect to DB:", err)
	}
	if err := database.DB.AutoMigrate(&models.Order{}, &models.OrderItem{}, &models.Payment{}); err != nil {
		log.Fatal("[CheckoutService] Failed to migrate models:", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("[CheckoutService] Failed to initialize logger:", err)
	}
	defer logger.Sync()

	redisClient := database.NewRedisClient(cfg.RedisURL)

	taxRate, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil {
		log.Fatal("[CheckoutService] Invalid TAX_RATE:", err)
	}

	orderRepo := repository.NewGormOrderRepository(database.DB)
	paymentRepo := repository.NewGormPaymentRepo(database.DB)
	cartRepo := repository.NewRedisCartRepo(redisClient, cartTTL)
	txManager := repository.NewGormTxManager(database.DB)

	producer := kafka.NewPaymentEventProducer(strings.Split(cfg.KafkaBrokers, ","), cfg.PaymentTopic)
	defer producer.Close()

	// Rails are enabled by configuration; a missing credential disables
	// the rail rather than the whole service.
	var paypalGW *gateways.PayPalGateway
	if cfg.PayPalClientID != "" && cfg.PayPalSecret != "" {
		paypalGW = gateways.NewPayPalGateway(gateways.NewHTTPPayPalClient(cfg.PayPalBaseURL, cfg.PayPalClientID, cfg.PayPalSecret))
	}
	var bitcoinGW *gateways.BitcoinGateway
	if cfg.BitcoinServiceURL != "" {
		bitcoinGW = gateways.NewBitcoinGateway(gateways.NewHTTPBitcoinClient(cfg.BitcoinServiceURL))
	}
	var moneroGW *gateways.MoneroGateway
	if cfg.MoneroServiceURL != "" {
		moneroGW = gateways.NewMoneroGateway(gateways.NewHTTPMoneroClient(cfg.MoneroServiceURL))
	}

	shippingClient := services.NewHTTPShippingClient(cfg.ShippingServiceURL)
	checkoutSvc := services.NewCheckoutService(cartRepo, shippingClient, taxRate, cfg.Currency, logger)
	reconciler := services.NewReconciler(txManager, paymentRepo, cartRepo, producer, logger)
	paymentSvc := services.NewPaymentService(txManager, orderRepo, paymentRepo, checkoutSvc, reconciler, paypalGW, bitcoinGW, moneroGW, logger)
	refundSvc := services.NewRefundService(txManager, paymentRepo, producer, logger)
	orderSvc := services.NewOrderService(orderRepo, producer, logger)

	r := gin.New()
	r.Use(gin.Recovery())

	pc := &controllers.PaymentController{
		Payments: paymentSvc,
		Refunds:  refundSvc,
		Logger:   logger,
	}
	oc := controllers.NewOrderController(orderSvc)
	routes.RegisterRoutes(r, pc, oc)

	log.Println("[CheckoutService] Running on port", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("[CheckoutService] Server failed:", err)
	}
}
