// Package orchestrator drives a payment from request to terminal state:
// idempotency check, FX conversion, balance reservation, destination
// validation, provider execution with bounded retries, and the final
// commit or release. The network call to the provider never runs inside
// a database transaction.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vaultpay/payment-core/internal/domain/payment"
	"github.com/vaultpay/payment-core/internal/domain/shared"
	"github.com/vaultpay/payment-core/internal/domain/wallet"
	"github.com/vaultpay/payment-core/internal/fx"
	"github.com/vaultpay/payment-core/internal/gateway"
	"github.com/vaultpay/payment-core/internal/guard"
	"github.com/vaultpay/payment-core/internal/ledger"
	"github.com/vaultpay/payment-core/internal/validator"
)

// LedgerStore is the slice of the ledger the orchestrator drives
type LedgerStore interface {
	Reserve(ctx context.Context, req *shared.PaymentRequest) (*payment.Transaction, error)
	Commit(ctx context.Context, transactionID uuid.UUID, providerRef string) error
	Release(ctx context.Context, transactionID uuid.UUID, failureReason string) error
	MarkAwaitingCallback(ctx context.Context, transactionID uuid.UUID, providerRef string) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*payment.Transaction, error)
}

// Guard is the idempotency check-or-register surface
type Guard interface {
	CheckOrRegister(ctx context.Context, key, requestHash string) (*guard.Outcome, error)
	RecordSuccess(ctx context.Context, key string, transactionID uuid.UUID) error
	RecordFailure(ctx context.Context, key string, code shared.FailureCode) error
}

// Router routes operations to payment providers
type Router interface {
	Route(rail shared.RailKind, country string) (gateway.Provider, error)
}

// Result is the orchestrator's answer for a payment request
type Result struct {
	TransactionID uuid.UUID                `json:"transaction_id"`
	Status        shared.TransactionStatus `json:"status"`
	ProviderRef   string                   `json:"provider_ref,omitempty"`
	FailureCode   shared.FailureCode       `json:"failure_code,omitempty"`
	FailureReason string                   `json:"failure_reason,omitempty"`
	ValidatedName string                   `json:"validated_name,omitempty"`
	Replayed      bool                     `json:"replayed,omitempty"`
}

// Failed reports whether the payment reached FAILED
func (r *Result) Failed() bool {
	return r.Status == shared.TransactionStatusFailed
}

// Orchestrator coordinates one payment end to end
type Orchestrator struct {
	store       LedgerStore
	guard       Guard
	validator   validator.Validator
	router      Router
	converter   fx.Converter
	wallets     wallet.Repository
	maxAttempts int
	backoff     time.Duration
	logger      *slog.Logger
}

// New creates a payment orchestrator
func New(
	logger *slog.Logger,
	store LedgerStore,
	g Guard,
	v validator.Validator,
	router Router,
	converter fx.Converter,
	wallets wallet.Repository,
	maxAttempts int,
	backoff time.Duration,
) *Orchestrator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Orchestrator{
		store:       store,
		guard:       g,
		validator:   v,
		router:      router,
		converter:   converter,
		wallets:     wallets,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		logger:      logger,
	}
}

// Execute runs a payment request through the full state machine. Domain
// failures (insufficient balance, invalid recipient, provider refusal) come
// back as a FAILED Result with a failure code; the error return is reserved
// for infrastructure faults and idempotency conflicts.
func (o *Orchestrator) Execute(ctx context.Context, req *shared.PaymentRequest) (*Result, error) {
	log := o.logger.With("correlation_id", req.CorrelationID, "idempotency_key", req.IdempotencyKey)

	outcome, err := o.guard.CheckOrRegister(ctx, req.IdempotencyKey, req.Hash())
	if err != nil {
		return nil, err
	}
	if outcome.Replayed {
		return o.replay(ctx, req, outcome)
	}

	// Requests may arrive in a foreign currency; the ledger works in the
	// wallet's currency only.
	if err := o.convertToWalletCurrency(ctx, req); err != nil {
		return o.failBeforeReserve(ctx, req, err)
	}

	txn, err := o.store.Reserve(ctx, req)
	if err != nil {
		return o.failBeforeReserve(ctx, req, err)
	}
	log = log.With("transaction_id", txn.ID.String())

	var validatedName string
	if req.RequiresRecipient() {
		result, err := o.validator.Validate(ctx, req.Rail, req.Recipient)
		if err != nil {
			code := classifyValidationError(err)
			log.Info("Recipient validation failed", "failure_code", string(code), "error", err)
			return o.fail(ctx, req, txn.ID, code, err.Error())
		}
		validatedName = result.AccountName
	}

	provider, err := o.router.Route(req.Rail, recipientCountry(req))
	if err != nil {
		log.Warn("No provider for request", "rail", string(req.Rail), "error", err)
		return o.fail(ctx, req, txn.ID, shared.FailureCodeProviderUnavailable, err.Error())
	}

	result, err := o.executeWithRetry(ctx, provider, operationFor(req, txn))
	if err != nil {
		code := shared.FailureCodeProviderUnavailable
		if !gateway.IsRetryable(err) {
			code = shared.FailureCodeProviderRejected
		}
		log.Warn("Provider execution failed", "provider", provider.Name(), "failure_code", string(code), "error", err)
		return o.fail(ctx, req, txn.ID, code, err.Error())
	}

	switch result.Status {
	case gateway.StatusSucceeded:
		if err := o.store.Commit(ctx, txn.ID, result.ProviderRef); err != nil {
			return nil, err
		}
		if err := o.guard.RecordSuccess(ctx, req.IdempotencyKey, txn.ID); err != nil {
			return nil, err
		}
		log.Info("Payment completed", "provider_ref", result.ProviderRef)
		return &Result{
			TransactionID: txn.ID,
			Status:        shared.TransactionStatusCompleted,
			ProviderRef:   result.ProviderRef,
			ValidatedName: validatedName,
		}, nil

	case gateway.StatusPending:
		if err := o.store.MarkAwaitingCallback(ctx, txn.ID, result.ProviderRef); err != nil {
			return nil, err
		}
		if err := o.guard.RecordSuccess(ctx, req.IdempotencyKey, txn.ID); err != nil {
			return nil, err
		}
		log.Info("Payment awaiting provider callback", "provider_ref", result.ProviderRef)
		return &Result{
			TransactionID: txn.ID,
			Status:        shared.TransactionStatusAwaitingCallback,
			ProviderRef:   result.ProviderRef,
			ValidatedName: validatedName,
		}, nil

	default: // gateway.StatusRejected
		log.Info("Provider rejected payment", "reason", result.Reason)
		return o.fail(ctx, req, txn.ID, shared.FailureCodeProviderRejected, result.Reason)
	}
}

// Resolve settles an AWAITING_CALLBACK transaction from a provider callback.
// Replays for already-terminal transactions are acknowledged without effect.
func (o *Orchestrator) Resolve(ctx context.Context, event *shared.CallbackEvent) error {
	txn, err := o.store.GetTransaction(ctx, event.TransactionID)
	if err != nil {
		return err
	}

	if txn.Status.IsTerminal() {
		o.logger.Info("Callback for settled transaction ignored",
			"transaction_id", txn.ID.String(),
			"status", string(txn.Status),
		)
		return nil
	}

	if txn.Status != shared.TransactionStatusAwaitingCallback {
		return fmt.Errorf("transaction %s is %s, not awaiting callback", txn.ID, txn.Status)
	}

	if event.Succeeded {
		return o.store.Commit(ctx, txn.ID, event.ProviderRef)
	}

	reason := event.Reason
	if reason == "" {
		reason = string(shared.FailureCodeProviderRejected)
	}
	return o.store.Release(ctx, txn.ID, reason)
}

func (o *Orchestrator) replay(ctx context.Context, req *shared.PaymentRequest, outcome *guard.Outcome) (*Result, error) {
	if outcome.TransactionID != nil {
		txn, err := o.store.GetTransaction(ctx, *outcome.TransactionID)
		if err != nil {
			return nil, err
		}
		return &Result{
			TransactionID: txn.ID,
			Status:        txn.Status,
			ProviderRef:   txn.ProviderRef,
			FailureReason: txn.FailureReason,
			Replayed:      true,
		}, nil
	}

	return &Result{
		Status:      shared.TransactionStatusFailed,
		FailureCode: outcome.FailureCode,
		Replayed:    true,
	}, nil
}

// convertToWalletCurrency rewrites the request amount into the wallet's
// currency when they differ
func (o *Orchestrator) convertToWalletCurrency(ctx context.Context, req *shared.PaymentRequest) error {
	w, err := o.wallets.GetByID(ctx, req.WalletID)
	if err != nil {
		return err
	}
	if w.Currency == req.Currency {
		return nil
	}

	converted, err := o.converter.Convert(req.Amount, req.Currency, w.Currency)
	if err != nil {
		return err
	}

	o.logger.Info("Converted request currency",
		"wallet_id", req.WalletID.String(),
		"from_currency", req.Currency,
		"to_currency", w.Currency,
		"from_amount", req.Amount,
		"to_amount", converted,
	)
	req.Amount = converted
	req.Currency = w.Currency
	return nil
}

// failBeforeReserve records a failure for errors raised before any hold
// exists, so there is nothing to release
func (o *Orchestrator) failBeforeReserve(ctx context.Context, req *shared.PaymentRequest, cause error) (*Result, error) {
	code, reason, domain := classifyPreReserveError(cause)
	if !domain {
		return nil, cause
	}

	if err := o.guard.RecordFailure(ctx, req.IdempotencyKey, code); err != nil {
		return nil, err
	}
	return &Result{
		Status:        shared.TransactionStatusFailed,
		FailureCode:   code,
		FailureReason: reason,
	}, nil
}

// fail releases the reservation and pins the failure to the idempotency key
func (o *Orchestrator) fail(ctx context.Context, req *shared.PaymentRequest, transactionID uuid.UUID, code shared.FailureCode, reason string) (*Result, error) {
	if err := o.store.Release(ctx, transactionID, string(code)); err != nil {
		return nil, err
	}
	if err := o.guard.RecordFailure(ctx, req.IdempotencyKey, code); err != nil {
		return nil, err
	}
	return &Result{
		TransactionID: transactionID,
		Status:        shared.TransactionStatusFailed,
		FailureCode:   code,
		FailureReason: reason,
	}, nil
}

// executeWithRetry calls the provider with exponential backoff on retryable
// errors. The reservation stays open across attempts; only the retry budget
// running out turns into a failure.
func (o *Orchestrator) executeWithRetry(ctx context.Context, provider gateway.Provider, op *gateway.Operation) (*gateway.Result, error) {
	var lastErr error
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		result, err := provider.Execute(ctx, op)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !gateway.IsRetryable(err) {
			return nil, err
		}
		if attempt == o.maxAttempts {
			break
		}

		delay := o.backoff << (attempt - 1)
		o.logger.Warn("Retrying provider call",
			"provider", provider.Name(),
			"attempt", attempt,
			"delay", delay.String(),
			"error", err,
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func classifyValidationError(err error) shared.FailureCode {
	var notFoundErr validator.ErrAccountNotFound
	if errors.As(err, &notFoundErr) {
		return shared.FailureCodeAccountNotFound
	}
	var unavailableErr validator.ErrLookupUnavailable
	if errors.As(err, &unavailableErr) {
		return shared.FailureCodeProviderUnavailable
	}
	return shared.FailureCodeInvalidRecipient
}

// classifyPreReserveError maps reservation-stage errors to failure codes.
// The third return is false for infrastructure faults that should surface
// as errors instead of recorded outcomes.
func classifyPreReserveError(err error) (shared.FailureCode, string, bool) {
	var insufficientErr wallet.ErrInsufficientFunds
	if errors.As(err, &insufficientErr) {
		return shared.FailureCodeInsufficientBalance, err.Error(), true
	}
	var mismatchErr ledger.ErrCurrencyMismatch
	if errors.As(err, &mismatchErr) {
		return shared.FailureCodeCurrencyMismatch, err.Error(), true
	}
	var unknownPairErr fx.ErrUnknownPair
	if errors.As(err, &unknownPairErr) {
		return shared.FailureCodeCurrencyMismatch, err.Error(), true
	}
	var walletErr wallet.ErrWalletNotFound
	if errors.As(err, &walletErr) {
		return shared.FailureCodeAccountNotFound, err.Error(), true
	}
	return shared.FailureCodeUnknownError, "", false
}

func operationFor(req *shared.PaymentRequest, txn *payment.Transaction) *gateway.Operation {
	return &gateway.Operation{
		TransactionID: txn.ID,
		Type:          req.Type,
		Direction:     req.Direction,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Recipient:     req.Recipient,
		CorrelationID: req.CorrelationID,
	}
}

func recipientCountry(req *shared.PaymentRequest) string {
	if req.Recipient == nil {
		return ""
	}
	return req.Recipient.CountryCode
}
