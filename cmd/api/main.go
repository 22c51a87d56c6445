package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ebarrios/centavo/internal/autodebit"
	"github.com/ebarrios/centavo/internal/currency"
	"github.com/ebarrios/centavo/internal/infra/gateway/exchangerates"
	"github.com/ebarrios/centavo/internal/infra/postgres"
	infraRedis "github.com/ebarrios/centavo/internal/infra/redis"
	"github.com/ebarrios/centavo/internal/installment"
	"github.com/ebarrios/centavo/internal/ledger"
	"github.com/ebarrios/centavo/internal/report"
	"github.com/ebarrios/centavo/internal/transport/httpapi"
	"github.com/ebarrios/centavo/internal/transport/httpapi/handler"
	"github.com/ebarrios/centavo/internal/transport/httpapi/middleware"
	"github.com/ebarrios/centavo/pkg/config"
	"github.com/ebarrios/centavo/pkg/logger"
)

func main() {
	// Create context that listens for termination signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewDefault(cfg.Env)
	log.Info("Starting Centavo API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"base_currency", cfg.BaseCurrency,
	)

	// Initialize database connection pool
	db, err := postgres.NewPool(ctx, postgres.Config{URL: cfg.DatabaseURL})
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("Database connection established")

	// Initialize Redis client for rate caching
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Redis connection established")

	// Initialize repositories
	ledgerRepo := postgres.NewLedgerRepository(db)
	currencyRepo := postgres.NewCurrencyRepository(db)
	installmentRepo := postgres.NewInstallmentRepository(db)
	autoDebitRepo := postgres.NewAutoDebitRepository(db)

	// Initialize rate resolution components
	rateCache := infraRedis.NewRateCacheWithTTL(redisClient, cfg.RateCacheTTL, log)
	rateProvider := exchangerates.NewClient(cfg.ExchangeAPIKey, log)
	if cfg.ExchangeBaseURL != "" {
		rateProvider.SetBaseURL(cfg.ExchangeBaseURL)
	}

	// Initialize services
	currencySvc := currency.NewService(currencyRepo, rateCache, rateProvider, cfg.BaseCurrency, log)
	ledgerSvc := ledger.NewService(ledgerRepo, log)
	installmentSvc := installment.NewService(installmentRepo, ledgerSvc, currencySvc, log)
	autoDebitSvc := autodebit.NewService(autoDebitRepo, ledgerSvc, log)
	reportSvc := report.NewService(ledgerSvc, currencySvc, autoDebitSvc, log)
	jwtSvc := middleware.NewJWTService(cfg.JWTSecret)

	// Initialize HTTP handlers
	healthHandler := handler.NewHealthHandler(db, rateCache)
	transactionHandler := handler.NewTransactionHandler(ledgerSvc)
	purchaseHandler := handler.NewPurchaseHandler(installmentSvc)
	autoDebitHandler := handler.NewAutoDebitHandler(autoDebitSvc)
	rateHandler := handler.NewRateHandler(currencySvc)
	reportHandler := handler.NewReportHandler(reportSvc, cfg.BaseCurrency)

	// Determine allowed origins for CORS
	allowedOrigins := []string{"http://localhost:5173", "http://localhost:3000"}
	if cfg.IsProduction() {
		if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
			allowedOrigins = []string{origins}
		}
	}

	// Create HTTP router
	r := httpapi.NewRouter(httpapi.Config{
		Logger:             log,
		AllowedOrigins:     allowedOrigins,
		HealthHandler:      healthHandler,
		TransactionHandler: transactionHandler,
		PurchaseHandler:    purchaseHandler,
		AutoDebitHandler:   autoDebitHandler,
		RateHandler:        rateHandler,
		ReportHandler:      reportHandler,
		JWTMiddleware:      middleware.JWTMiddleware(jwtSvc),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()
	log.Info("Shutdown signal received")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("Server stopped")
}
