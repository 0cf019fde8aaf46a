// Package validator checks payment destinations before any money is held.
// Validation is two-staged: a local per-country format table rejects
// malformed destinations without a network call, then bank destinations are
// resolved against the account lookup service to confirm the account exists.
package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/vaultpay/payment-core/internal/config"
	"github.com/vaultpay/payment-core/internal/domain/shared"
)

// ErrInvalidFormat indicates the destination fails the local format rules
type ErrInvalidFormat struct {
	Reason string
}

func (e ErrInvalidFormat) Error() string {
	return "invalid recipient format: " + e.Reason
}

// ErrAccountNotFound indicates the lookup service does not know the account
type ErrAccountNotFound struct {
	AccountNumber string
	BankCode      string
}

func (e ErrAccountNotFound) Error() string {
	return fmt.Sprintf("account not found: %s@%s", e.AccountNumber, e.BankCode)
}

// ErrLookupUnavailable indicates the lookup service could not answer
type ErrLookupUnavailable struct {
	Cause error
}

func (e ErrLookupUnavailable) Error() string {
	return "account lookup unavailable: " + e.Cause.Error()
}

func (e ErrLookupUnavailable) Unwrap() error {
	return e.Cause
}

// Result carries what the validator learned about the destination
type Result struct {
	AccountName string `json:"account_name,omitempty"`
}

// Validator verifies payment destinations
type Validator interface {
	Validate(ctx context.Context, rail shared.RailKind, recipient *shared.RecipientDetails) (*Result, error)
}

// countryRule is the format table entry for one country. Patterns are data;
// adding a corridor is a table edit, not new code.
type countryRule struct {
	account   *regexp.Regexp
	bankCode  *regexp.Regexp
	reference *regexp.Regexp
}

var (
	genericAccount   = regexp.MustCompile(`^[0-9]{4,20}$`)
	genericBankCode  = regexp.MustCompile(`^[0-9A-Za-z]{2,11}$`)
	genericReference = regexp.MustCompile(`^[0-9A-Za-z-]{4,24}$`)
	cryptoAddress    = regexp.MustCompile(`^(0x[0-9a-fA-F]{40}|[13][1-9A-HJ-NP-Za-km-z]{25,34}|bc1[0-9a-z]{20,60})$`)

	countryRules = map[string]countryRule{
		"NG": {
			account:   regexp.MustCompile(`^[0-9]{10}$`), // NUBAN
			bankCode:  regexp.MustCompile(`^[0-9]{3,6}$`),
			reference: regexp.MustCompile(`^(0[789][01][0-9]{8}|[0-9]{10,13})$`), // Phone or meter
		},
		"US": {
			account:  regexp.MustCompile(`^[0-9]{4,17}$`),
			bankCode: regexp.MustCompile(`^[0-9]{9}$`), // ABA routing
		},
		"GB": {
			account:  regexp.MustCompile(`^[0-9]{8}$`),
			bankCode: regexp.MustCompile(`^[0-9]{6}$`), // Sort code
		},
		"GH": {
			account:  regexp.MustCompile(`^[0-9]{10,16}$`),
			bankCode: regexp.MustCompile(`^[0-9]{6}$`),
		},
	}
)

// Service validates destinations using the format table and the account
// lookup HTTP endpoint
type Service struct {
	client    *http.Client
	lookupURL string
	apiKey    string
	logger    *slog.Logger
}

// NewService creates an account validator from configuration
func NewService(logger *slog.Logger, cfg *config.ValidatorConfig) *Service {
	return &Service{
		client:    &http.Client{Timeout: cfg.RequestTimeout},
		lookupURL: cfg.LookupURL,
		apiKey:    cfg.APIKey,
		logger:    logger,
	}
}

// Validate checks the destination for the given rail. Bank transfers are
// additionally resolved against the lookup service; other rails pass on
// format alone.
func (s *Service) Validate(ctx context.Context, rail shared.RailKind, recipient *shared.RecipientDetails) (*Result, error) {
	if recipient == nil {
		return nil, ErrInvalidFormat{Reason: "recipient is required"}
	}

	switch rail {
	case shared.RailCrypto:
		if !cryptoAddress.MatchString(recipient.AccountNumber) {
			return nil, ErrInvalidFormat{Reason: "unrecognized crypto address"}
		}
		return &Result{}, nil

	case shared.RailUtility:
		if recipient.Provider == "" {
			return nil, ErrInvalidFormat{Reason: "utility provider is required"}
		}
		if !s.referencePattern(recipient.CountryCode).MatchString(recipient.Reference) {
			return nil, ErrInvalidFormat{Reason: "invalid utility reference"}
		}
		return &Result{}, nil

	case shared.RailBankTransfer, shared.RailCard:
		rule := s.bankRule(recipient.CountryCode)
		if !rule.account.MatchString(recipient.AccountNumber) {
			return nil, ErrInvalidFormat{Reason: "invalid account number for " + recipient.CountryCode}
		}
		if !rule.bankCode.MatchString(recipient.BankCode) {
			return nil, ErrInvalidFormat{Reason: "invalid bank code for " + recipient.CountryCode}
		}
		if rail == shared.RailCard {
			return &Result{}, nil
		}
		return s.lookup(ctx, recipient)

	default:
		return nil, ErrInvalidFormat{Reason: "unsupported rail: " + string(rail)}
	}
}

func (s *Service) bankRule(country string) countryRule {
	rule, ok := countryRules[country]
	if !ok {
		return countryRule{account: genericAccount, bankCode: genericBankCode}
	}
	if rule.account == nil {
		rule.account = genericAccount
	}
	if rule.bankCode == nil {
		rule.bankCode = genericBankCode
	}
	return rule
}

func (s *Service) referencePattern(country string) *regexp.Regexp {
	if rule, ok := countryRules[country]; ok && rule.reference != nil {
		return rule.reference
	}
	return genericReference
}

type lookupRequest struct {
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	CountryCode   string `json:"country_code"`
}

type lookupResponse struct {
	AccountName string `json:"account_name"`
}

// lookup resolves a bank account against the external lookup service
func (s *Service) lookup(ctx context.Context, recipient *shared.RecipientDetails) (*Result, error) {
	body, err := json.Marshal(lookupRequest{
		AccountNumber: recipient.AccountNumber,
		BankCode:      recipient.BankCode,
		CountryCode:   recipient.CountryCode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode lookup request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.lookupURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build lookup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("Account lookup request failed", "error", err)
		return nil, ErrLookupUnavailable{Cause: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var lr lookupResponse
		if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
			return nil, ErrLookupUnavailable{Cause: err}
		}
		return &Result{AccountName: lr.AccountName}, nil

	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrAccountNotFound{AccountNumber: recipient.AccountNumber, BankCode: recipient.BankCode}

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Lookup service refused the request shape itself
		return nil, ErrInvalidFormat{Reason: "lookup rejected destination"}

	default:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		s.logger.Warn("Account lookup unexpected status", "status", resp.StatusCode, "body", string(payload))
		return nil, ErrLookupUnavailable{Cause: errors.New(resp.Status)}
	}
}
