package service

import (
	"context"

	"github.com/vaultpay/payment-core/internal/domain/shared"
)

// ResolutionService settles transactions that are awaiting a provider callback.
type ResolutionService interface {
	ResolveCallback(ctx context.Context, event *shared.CallbackEvent) error
}

// Resolver applies a callback verdict to the ledger. Satisfied by the
// payment orchestrator.
type Resolver interface {
	Resolve(ctx context.Context, event *shared.CallbackEvent) error
}
