package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port             string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	RedisURL         string
	KafkaBrokers     string
	PaymentTopic     string // Kafka topic for payment events
	Currency         string
	TaxRate          string // decimal string, e.g. "0.20" for VAT

	PayPalClientID     string
	PayPalSecret       string
	PayPalBaseURL      string
	BitcoinServiceURL  string // wallet service handling address issuance + chain lookups
	MoneroServiceURL   string
	ShippingServiceURL string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found, using system environment variables")
	}

	cfg := &Config{
		Port:             getEnv("PORT", "8088"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		KafkaBrokers:     getEnv("KAFKA_BROKERS", "localhost:9092"),
		PaymentTopic:     getEnv("PAYMENT_EVENTS_TOPIC", "payment-events"),
		Currency:         getEnv("CURRENCY", "GBP"),
		TaxRate:          getEnv("TAX_RATE", "0"),

		PayPalClientID:     os.Getenv("PAYPAL_CLIENT_ID"),
		PayPalSecret:       os.Getenv("PAYPAL_SECRET"),
		PayPalBaseURL:      getEnv("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com"),
		BitcoinServiceURL:  os.Getenv("BITCOIN_SERVICE_URL"),
		MoneroServiceURL:   os.Getenv("MONERO_SERVICE_URL"),
		ShippingServiceURL: os.Getenv("SHIPPING_SERVICE_URL"),
	}

	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" {
		return nil, fmt.Errorf("missing required environment variables")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
