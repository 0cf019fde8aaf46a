package gateway

import (
	"log/slog"

	"github.com/vaultpay/payment-core/internal/config"
	"github.com/vaultpay/payment-core/internal/domain/shared"
)

// NewRegistryFromConfig builds the provider registry from the four
// configured rails. Rails without a base URL are left unregistered and
// routing to them fails with ErrNoProvider.
func NewRegistryFromConfig(logger *slog.Logger, cfg *config.GatewayConfig) *Registry {
	registry := NewRegistry()

	rails := []struct {
		kind shared.RailKind
		cfg  config.RailConfig
	}{
		{shared.RailBankTransfer, cfg.BankTransfer},
		{shared.RailCard, cfg.Card},
		{shared.RailCrypto, cfg.Crypto},
		{shared.RailUtility, cfg.Utility},
	}

	for _, rail := range rails {
		if rail.cfg.BaseURL == "" {
			logger.Warn("Rail has no provider configured", "rail", string(rail.kind))
			continue
		}
		provider := NewHTTPProvider(logger, rail.cfg, cfg.RequestTimeout)
		registry.Register(rail.kind, provider, rail.cfg.Countries)
		logger.Info("Registered payment provider",
			"rail", string(rail.kind),
			"provider", rail.cfg.Name,
			"countries", rail.cfg.Countries,
			"async", rail.cfg.Async,
		)
	}

	return registry
}
