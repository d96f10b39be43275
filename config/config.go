package config

import (
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

type Config struct {
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	Port        string `envconfig:"PORT"         default:":5000"`
	LogLevel    string `envconfig:"LOG_LEVEL"    default:"info"`

	ThawaniAPIURL         string `envconfig:"THAWANI_API_URL"         default:"https://uatcheckout.thawani.om/api/v1"`
	ThawaniPayBaseURL     string `envconfig:"THAWANI_PAY_BASE_URL"    default:"https://uatcheckout.thawani.om"`
	ThawaniAPIKey         string `envconfig:"THAWANI_API_KEY"         required:"true"`
	ThawaniPublishableKey string `envconfig:"THAWANI_PUBLISHABLE_KEY"`
	GatewayTimeoutSeconds int    `envconfig:"GATEWAY_TIMEOUT_SECONDS" default:"10"`

	SuccessURL string `envconfig:"SUCCESS_URL" default:"http://localhost:5173/success?session_id={CHECKOUT_SESSION_ID}"`
	CancelURL  string `envconfig:"CANCEL_URL"  default:"http://localhost:5173/cancel"`

	// ShippingFee is a fixed policy value in OMR. It is never read from the
	// request body.
	ShippingFee float64 `envconfig:"SHIPPING_FEE" default:"2"`

	AdminAPIToken string `envconfig:"ADMIN_API_TOKEN"`
}

var (
	config Config
	once   sync.Once
)

func LoadConfig(logger *logrus.Logger) *Config {
	once.Do(func() {
		err := godotenv.Load()
		if err != nil && !os.IsNotExist(err) {
			logger.Warnf("Error loading .env file (but continuing): %v", err)
		} else if err == nil {
			logger.Info("Loaded configuration from .env file")
		}

		err = envconfig.Process("", &config)
		if err != nil {
			logger.Fatalf("Failed to process configuration from environment variables: %v", err)
		}

		logger.Infof("Configuration loaded: Port=%s, LogLevel=%s, ShippingFee=%.3f",
			config.Port, config.LogLevel, config.ShippingFee)
		if config.DatabaseURL == "" {
			logger.Fatal("Configuration error: DATABASE_URL is not set")
		}
		if config.AdminAPIToken == "" {
			logger.Warn("ADMIN_API_TOKEN is not set; administrative endpoints are disabled")
		}
	})
	return &config
}
