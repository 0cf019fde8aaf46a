package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/vaultpay/payment-core/internal/config"
)

// Purger removes idempotency records past their deduplication window.
// Satisfied by the idempotency guard.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Sweeper periodically purges expired idempotency records so the table
// stays bounded by the deduplication window.
type Sweeper struct {
	purger   Purger
	logger   *slog.Logger
	interval time.Duration
}

func NewSweeper(cfg *config.IdempotencyConfig, purger Purger, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		purger:   purger,
		logger:   logger,
		interval: cfg.CleanupInterval,
	}
}

// Start begins sweeping until context is canceled
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting idempotency sweeper", "cleanup_interval", s.interval.String())
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Idempotency sweeper stopping due to context cancellation.")
			return
		case <-ticker.C:
			removed, err := s.purger.PurgeExpired(ctx)
			if err != nil {
				s.logger.Error("Failed to purge expired idempotency records", "error", err)
				continue
			}
			if removed > 0 {
				s.logger.Debug("Idempotency sweep finished", "removed", removed)
			}
		}
	}
}
