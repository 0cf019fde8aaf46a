package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vaultpay/payment-core/internal/api"
	"github.com/vaultpay/payment-core/internal/api/service"
	"github.com/vaultpay/payment-core/internal/config"
	"github.com/vaultpay/payment-core/internal/data/mongo"
	"github.com/vaultpay/payment-core/internal/data/postgres"
	"github.com/vaultpay/payment-core/internal/fx"
	"github.com/vaultpay/payment-core/internal/gateway"
	"github.com/vaultpay/payment-core/internal/guard"
	"github.com/vaultpay/payment-core/internal/ledger"
	"github.com/vaultpay/payment-core/internal/logger"
	"github.com/vaultpay/payment-core/internal/orchestrator"
	"github.com/vaultpay/payment-core/internal/payrollrun"
	"github.com/vaultpay/payment-core/internal/platform/messaging/producers"
	"github.com/vaultpay/payment-core/internal/platform/persistence"
	"github.com/vaultpay/payment-core/internal/validator"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producer for provider callbacks
	callbackProducer, err := producers.NewCallbackEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize callback Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	walletRepo := postgres.NewWalletRepository(log, postgresDB)
	transactionRepo := postgres.NewTransactionRepository(log, postgresDB)
	reservationRepo := postgres.NewReservationRepository(log, postgresDB)
	idempotencyRepo := postgres.NewIdempotencyRepository(log, postgresDB)
	payrollRepo := postgres.NewPayrollRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	historyRepo := mongo.NewHistoryRepository(log, mongoDB.Database())

	// Initialize the payment pipeline
	store := ledger.NewStore(log, postgresDB, walletRepo, transactionRepo, reservationRepo, outboxRepo)
	idempotencyGuard := guard.NewGuard(log, idempotencyRepo, transactionRepo, cfg.Idempotency.TTL, cfg.Idempotency.InFlightTTL)
	accountValidator := validator.NewService(log, &cfg.Validator)
	providerRegistry := gateway.NewRegistryFromConfig(log, &cfg.Gateway)
	converter, err := fx.NewStaticConverter(cfg.FX.Rates)
	if err != nil {
		log.Error("Failed to parse FX rate table", "error", err)
		os.Exit(1)
	}

	paymentOrchestrator := orchestrator.New(
		log,
		store,
		idempotencyGuard,
		accountValidator,
		providerRegistry,
		converter,
		walletRepo,
		cfg.Gateway.MaxAttempts,
		cfg.Gateway.RetryBackoff,
	)

	// Initialize services
	walletService := service.NewWalletService(walletRepo)
	paymentService := service.NewPaymentService(log, paymentOrchestrator, store, accountValidator)
	historyService := service.NewHistoryService(historyRepo)
	payrollService := payrollrun.NewService(log, payrollRepo, paymentOrchestrator, cfg.Payroll.BatchSize)

	// Initialize REST server
	server := api.NewServer(log, cfg, walletService, paymentService, historyService, payrollService, callbackProducer)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server before the stores it depends on
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = callbackProducer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
