// Package gateway abstracts the external payment providers behind a single
// Execute call. A registry routes each (rail, country) pair to a configured
// provider; provider failures are classified retryable or terminal so the
// orchestrator can decide between backing off and releasing the hold.
package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vaultpay/payment-core/internal/domain/shared"
)

// Status is the provider's verdict on an operation
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusPending   Status = "pending" // Async rail; outcome arrives via callback
	StatusRejected  Status = "rejected"
)

// Operation is the provider-facing slice of a payment
type Operation struct {
	TransactionID uuid.UUID                `json:"transaction_id"`
	Type          shared.TransactionType   `json:"type"`
	Direction     shared.Direction         `json:"direction"`
	Amount        int64                    `json:"amount"`
	Currency      string                   `json:"currency"`
	Recipient     *shared.RecipientDetails `json:"recipient,omitempty"`
	CorrelationID string                   `json:"correlation_id,omitempty"`
}

// Result is the provider's answer for an accepted request
type Result struct {
	Status      Status `json:"status"`
	ProviderRef string `json:"provider_ref"`
	Reason      string `json:"reason,omitempty"`
}

// Provider executes payment operations against one external backend
type Provider interface {
	Name() string
	Execute(ctx context.Context, op *Operation) (*Result, error)
}

// ProviderError is a transport or service failure talking to a provider.
// Retryable errors (timeouts, 5xx) may be attempted again; non-retryable
// ones are terminal for the operation.
type ProviderError struct {
	Provider   string
	StatusCode int
	Retryable  bool
	Message    string
}

func (e ProviderError) Error() string {
	return fmt.Sprintf("provider %s error (status %d, retryable %t): %s",
		e.Provider, e.StatusCode, e.Retryable, e.Message)
}

// ErrNoProvider indicates no provider serves the rail/country pair
type ErrNoProvider struct {
	Rail    shared.RailKind
	Country string
}

func (e ErrNoProvider) Error() string {
	return fmt.Sprintf("no provider configured for rail %s in %s", e.Rail, e.Country)
}

type registryEntry struct {
	provider  Provider
	countries map[string]bool
	any       bool
}

// Registry routes operations to providers by rail kind and destination country
type Registry struct {
	entries map[shared.RailKind][]registryEntry
}

// NewRegistry creates an empty provider registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[shared.RailKind][]registryEntry)}
}

// Register adds a provider for a rail. Countries is a comma-separated list of
// ISO codes; "*" or an empty list serves every country.
func (r *Registry) Register(rail shared.RailKind, provider Provider, countries string) {
	entry := registryEntry{
		provider:  provider,
		countries: make(map[string]bool),
	}

	countries = strings.TrimSpace(countries)
	if countries == "" || countries == "*" {
		entry.any = true
	} else {
		for _, c := range strings.Split(countries, ",") {
			c = strings.ToUpper(strings.TrimSpace(c))
			if c == "*" {
				entry.any = true
				continue
			}
			if c != "" {
				entry.countries[c] = true
			}
		}
	}

	r.entries[rail] = append(r.entries[rail], entry)
}

// Route picks the provider serving the rail/country pair. Country-specific
// entries win over wildcard ones.
func (r *Registry) Route(rail shared.RailKind, country string) (Provider, error) {
	country = strings.ToUpper(strings.TrimSpace(country))

	var wildcard Provider
	for _, entry := range r.entries[rail] {
		if entry.countries[country] {
			return entry.provider, nil
		}
		if entry.any && wildcard == nil {
			wildcard = entry.provider
		}
	}

	if wildcard != nil {
		return wildcard, nil
	}
	return nil, ErrNoProvider{Rail: rail, Country: country}
}
