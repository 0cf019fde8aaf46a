package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/vaultpay/payment-core/internal/domain/shared"
)

// WorkerPoolResolutionService fans callback resolution out to a bounded
// worker pool. Callers still block until their event is settled, so the
// Kafka offset is only committed after the ledger transition lands.
type WorkerPoolResolutionService struct {
	baseService ResolutionService
	pool        *ants.Pool
	logger      *slog.Logger
	// Guards the results map
	mu      sync.Mutex
	results map[string]chan error
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolResolutionService(
	baseService ResolutionService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolResolutionService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolResolutionService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
		results:     make(map[string]chan error),
	}, nil
}

// ResolveCallback submits the event to the worker pool and waits for the outcome.
func (s *WorkerPoolResolutionService) ResolveCallback(ctx context.Context, event *shared.CallbackEvent) error {
	logger := s.logger
	if event.CorrelationID != "" {
		logger = s.logger.With("correlation_id", event.CorrelationID)
	}

	logger.Info("Submitting callback to worker pool",
		"transaction_id", event.TransactionID.String(),
	)

	resultChan := make(chan error, 1)

	transactionID := event.TransactionID.String()
	s.mu.Lock()
	s.results[transactionID] = resultChan
	s.mu.Unlock()

	// Copy the event to avoid data races with the caller
	eventCopy := *event

	err := s.pool.Submit(func() {
		err := s.baseService.ResolveCallback(ctx, &eventCopy)

		resultChan <- err

		s.mu.Lock()
		delete(s.results, transactionID)
		close(resultChan)
		s.mu.Unlock()
	})

	if err != nil {
		s.mu.Lock()
		delete(s.results, transactionID)
		close(resultChan)
		s.mu.Unlock()

		logger.Error("Failed to submit callback to worker pool",
			"transaction_id", event.TransactionID.String(),
			"error", err,
		)
		return err
	}

	return <-resultChan
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolResolutionService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolResolutionService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolResolutionService) Capacity() int {
	return s.pool.Cap()
}
