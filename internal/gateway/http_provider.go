package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vaultpay/payment-core/internal/config"
)

// HTTPProvider talks to a payment provider over its JSON API
type HTTPProvider struct {
	name    string
	baseURL string
	apiKey  string
	async   bool
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPProvider creates a provider client from a rail configuration
func NewHTTPProvider(logger *slog.Logger, cfg config.RailConfig, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		name:    cfg.Name,
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		async:   cfg.Async,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Name returns the configured provider name
func (p *HTTPProvider) Name() string {
	return p.name
}

type providerResponse struct {
	ProviderRef string `json:"provider_ref"`
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
}

// Execute submits the operation to the provider. Timeouts and 5xx responses
// come back as retryable ProviderErrors; a 422 is the provider's business
// refusal and maps to a Rejected result.
func (p *HTTPProvider) Execute(ctx context.Context, op *Operation) (*Result, error) {
	body, err := json.Marshal(op)
	if err != nil {
		return nil, fmt.Errorf("failed to encode provider request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("Provider request failed",
			"provider", p.name,
			"transaction_id", op.TransactionID.String(),
			"error", err,
		)
		return nil, ProviderError{Provider: p.name, Retryable: true, Message: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusAccepted:
		var pr providerResponse
		if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
			return nil, ProviderError{Provider: p.name, StatusCode: resp.StatusCode, Retryable: true, Message: "malformed provider response: " + err.Error()}
		}
		return p.toResult(&pr)

	case resp.StatusCode == http.StatusUnprocessableEntity:
		var pr providerResponse
		if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
			pr.Reason = "provider refused the operation"
		}
		return &Result{Status: StatusRejected, ProviderRef: pr.ProviderRef, Reason: pr.Reason}, nil

	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, ProviderError{Provider: p.name, StatusCode: resp.StatusCode, Retryable: true, Message: string(payload)}

	default:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, ProviderError{Provider: p.name, StatusCode: resp.StatusCode, Retryable: false, Message: string(payload)}
	}
}

func (p *HTTPProvider) toResult(pr *providerResponse) (*Result, error) {
	switch Status(pr.Status) {
	case StatusSucceeded:
		return &Result{Status: StatusSucceeded, ProviderRef: pr.ProviderRef}, nil
	case StatusRejected:
		return &Result{Status: StatusRejected, ProviderRef: pr.ProviderRef, Reason: pr.Reason}, nil
	case StatusPending:
		if !p.async {
			// A synchronous rail must settle in-band
			return nil, ProviderError{Provider: p.name, Retryable: false, Message: "synchronous provider answered pending"}
		}
		return &Result{Status: StatusPending, ProviderRef: pr.ProviderRef}, nil
	default:
		return nil, ProviderError{Provider: p.name, Retryable: true, Message: "unknown provider status: " + pr.Status}
	}
}

// IsRetryable reports whether the error may succeed on another attempt
func IsRetryable(err error) bool {
	var provErr ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}
