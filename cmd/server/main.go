package main

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bilal-alaabadi/ightt-b/config"
	"github.com/bilal-alaabadi/ightt-b/internal/clients"
	"github.com/bilal-alaabadi/ightt-b/internal/delivery"
	"github.com/bilal-alaabadi/ightt-b/internal/middleware"
	"github.com/bilal-alaabadi/ightt-b/internal/repository"
	"github.com/bilal-alaabadi/ightt-b/internal/usecase"
	"github.com/bilal-alaabadi/ightt-b/pkg/db"
	"github.com/bilal-alaabadi/ightt-b/pkg/metrics"
)

func main() {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg := config.LoadConfig(logger)

	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
		logger.Warnf("Invalid LOG_LEVEL '%s', using default: %s", cfg.LogLevel, logLevel.String())
	}
	logger.SetLevel(logLevel)
	logger.Info("Starting shop backend...")

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("FATAL: Failed to connect to database: %v", err)
	}
	defer database.Close()
	logger.Info("Database connection established.")

	paymentClient := clients.NewThawaniClient(
		clients.ThawaniConfig{
			APIURL:         cfg.ThawaniAPIURL,
			PayBaseURL:     cfg.ThawaniPayBaseURL,
			APIKey:         cfg.ThawaniAPIKey,
			PublishableKey: cfg.ThawaniPublishableKey,
			SuccessURL:     cfg.SuccessURL,
			CancelURL:      cfg.CancelURL,
		},
		&http.Client{Timeout: time.Duration(cfg.GatewayTimeoutSeconds) * time.Second},
		logger,
	)
	logger.Infof("Payment gateway client initialized for target: %s", cfg.ThawaniAPIURL)

	serverMetrics := metrics.NewServerMetrics("api")
	checkoutMetrics := metrics.NewCheckoutMetrics()

	orderRepo := repository.NewPostgresOrderRepository(database, logger)
	productRepo := repository.NewPostgresProductRepository(database, logger)
	logger.Info("Repositories initialized.")

	checkoutUseCase := usecase.NewCheckoutUseCase(
		orderRepo, productRepo, paymentClient, cfg.ShippingFee, logger, checkoutMetrics)
	productUseCase := usecase.NewProductUseCase(productRepo, logger)
	logger.Info("Use cases initialized.")

	orderHandler := delivery.NewOrderHandler(checkoutUseCase, logger)
	productHandler := delivery.NewProductHandler(productUseCase, logger)
	logger.Info("Handlers initialized.")

	router := gin.New()
	router.RedirectTrailingSlash = false
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger, serverMetrics))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")
	orderHandler.RegisterRoutes(api)
	productHandler.RegisterRoutes(api)

	admin := router.Group("/api")
	admin.Use(middleware.AdminAuth(cfg.AdminAPIToken, logger))
	orderHandler.RegisterAdminRoutes(admin)
	productHandler.RegisterAdminRoutes(admin)
	logger.Info("Routes registered.")

	logger.Infof("Starting server on port %s", cfg.Port)
	if err := router.Run(cfg.Port); err != nil {
		logger.Errorf("Failed to start server on port %s: %v", cfg.Port, err)
		os.Exit(1)
	}
}
