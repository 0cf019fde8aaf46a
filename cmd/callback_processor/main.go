package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/vaultpay/payment-core/internal/callback_processor/consumer"
	"github.com/vaultpay/payment-core/internal/callback_processor/outbox_poller"
	"github.com/vaultpay/payment-core/internal/callback_processor/service"
	"github.com/vaultpay/payment-core/internal/callback_processor/sweeper"
	"github.com/vaultpay/payment-core/internal/config"
	"github.com/vaultpay/payment-core/internal/data/mongo"
	"github.com/vaultpay/payment-core/internal/data/postgres"
	"github.com/vaultpay/payment-core/internal/fx"
	"github.com/vaultpay/payment-core/internal/gateway"
	"github.com/vaultpay/payment-core/internal/guard"
	"github.com/vaultpay/payment-core/internal/ledger"
	"github.com/vaultpay/payment-core/internal/logger"
	"github.com/vaultpay/payment-core/internal/orchestrator"
	"github.com/vaultpay/payment-core/internal/platform/messaging/consumers"
	"github.com/vaultpay/payment-core/internal/platform/messaging/producers"
	"github.com/vaultpay/payment-core/internal/platform/persistence"
	"github.com/vaultpay/payment-core/internal/validator"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("callback_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Callback Processor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

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

	// Initialize repositories
	walletRepo := postgres.NewWalletRepository(log, postgresDB)
	transactionRepo := postgres.NewTransactionRepository(log, postgresDB)
	reservationRepo := postgres.NewReservationRepository(log, postgresDB)
	idempotencyRepo := postgres.NewIdempotencyRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	historyRepo := mongo.NewHistoryRepository(log, mongoDB.Database())

	// Initialize Kafka consumer
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	// Initialize Kafka DLQ producer
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	// dlqProducer might be nil if DLQTopic is not configured. Handler is nil-safe.

	// Initialize Kafka producer for the payment events topic
	eventsProducer, err := producers.NewPaymentEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize payment events Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize the payment pipeline; Resolve only drives the ledger, but
	// the orchestrator carries the whole stack
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

	// Initialize resolution service behind a bounded worker pool
	resolutionService := service.NewCallbackResolutionService(log, paymentOrchestrator)
	workerPoolService, err := service.NewWorkerPoolResolutionService(
		resolutionService,
		service.WorkerPoolConfig{Size: cfg.WorkerPool.Size},
		log,
	)
	if err != nil {
		log.Error("Failed to initialize worker pool", "error", err)
		os.Exit(1)
	}

	// Initialize callback event handler
	callbackEventHandler := consumer.NewCallbackEventHandler(
		log,
		workerPoolService,
		dlqProducer,
	)

	// Initialize outbox poller
	historyPublisher := outbox_poller.NewHistoryPublisher(
		outboxRepo,
		historyRepo,
		eventsProducer,
		log,
	)
	poller := outbox_poller.NewPoller(
		&cfg.Outbox,
		outboxRepo,
		historyPublisher,
		log,
	)

	// Initialize idempotency sweeper
	idempotencySweeper := sweeper.NewSweeper(&cfg.Idempotency, idempotencyGuard, log)

	// Create error channel for service errors
	errChan := make(chan error, 2)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start Kafka consumer in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.CallbackTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.CallbackTopic, cfg.Kafka.ConsumerGroup, callbackEventHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	// Start outbox poller in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Outbox Poller",
			"interval", cfg.Outbox.PollingInterval.String(),
			"batch_size", cfg.Outbox.BatchSize,
		)
		poller.Start(appCtx)
	}()

	// Start idempotency sweeper in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		idempotencySweeper.Start(appCtx)
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Shutdown the worker pool
	log.Info("Shutting down worker pool", "running_workers", workerPoolService.Running())
	workerPoolService.Shutdown()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// Close DLQ Kafka producer
	if dlqProducer != nil { // dlqProducer can be nil if DLQTopic was not configured
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	if err = eventsProducer.Close(); err != nil {
		log.Error("Error closing payment events Kafka producer", "error", err)
	}

	// Close Kafka consumer
	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Close MongoDB connection
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serviceErr != nil {
		log.Error("Callback Processor shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Callback Processor shutdown completed with errors")
	} else {
		log.Info("Callback Processor shutdown completed successfully")
	}
}
