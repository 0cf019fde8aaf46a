package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vaultpay/payment-core/internal/domain/shared"
)

// CallbackResolutionService implements ResolutionService by delegating the
// ledger transition to the resolver.
type CallbackResolutionService struct {
	resolver Resolver
	logger   *slog.Logger
}

func NewCallbackResolutionService(logger *slog.Logger, resolver Resolver) *CallbackResolutionService {
	return &CallbackResolutionService{
		resolver: resolver,
		logger:   logger,
	}
}

// ResolveCallback settles the transaction named by the callback event.
func (s *CallbackResolutionService) ResolveCallback(ctx context.Context, event *shared.CallbackEvent) error {
	logger := s.logger
	if event.CorrelationID != "" {
		logger = s.logger.With("correlation_id", event.CorrelationID)
	}

	logger.Info("Resolving provider callback",
		"transaction_id", event.TransactionID.String(),
		"provider_ref", event.ProviderRef,
		"succeeded", event.Succeeded,
	)

	if err := s.resolver.Resolve(ctx, event); err != nil {
		logger.Error("Failed to resolve provider callback",
			"transaction_id", event.TransactionID.String(),
			"error", err,
		)
		return fmt.Errorf("resolving callback for transaction %s failed: %w", event.TransactionID.String(), err)
	}

	logger.Info("Provider callback resolved", "transaction_id", event.TransactionID.String())
	return nil
}
