package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vaultpay/payment-core/internal/domain/payment"
	"github.com/vaultpay/payment-core/internal/domain/shared"
	"github.com/vaultpay/payment-core/internal/ledger"
	"github.com/vaultpay/payment-core/internal/orchestrator"
	"github.com/vaultpay/payment-core/internal/validator"
)

// Executor runs a payment end to end
type Executor interface {
	Execute(ctx context.Context, req *shared.PaymentRequest) (*orchestrator.Result, error)
}

// Reverser compensates completed ledger transactions
type Reverser interface {
	Reverse(ctx context.Context, originalID uuid.UUID, reason string) (*payment.Transaction, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*payment.Transaction, error)
}

// PaymentServiceImpl implements the PaymentService interface
type PaymentServiceImpl struct {
	executor  Executor
	store     Reverser
	validator validator.Validator
	logger    *slog.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(logger *slog.Logger, executor Executor, store *ledger.Store, v validator.Validator) PaymentService {
	return &PaymentServiceImpl{
		executor:  executor,
		store:     store,
		validator: v,
		logger:    logger,
	}
}

// Execute runs a payment request through the orchestrator
func (s *PaymentServiceImpl) Execute(ctx context.Context, req *shared.PaymentRequest) (*orchestrator.Result, error) {
	result, err := s.executor.Execute(ctx, req)
	if err != nil {
		s.logger.Error("Payment execution failed",
			"wallet_id", req.WalletID.String(),
			"type", string(req.Type),
			"amount", req.Amount,
			"error", err,
		)
		return nil, err
	}
	return result, nil
}

// GetTransaction retrieves a ledger transaction by its ID
func (s *PaymentServiceImpl) GetTransaction(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// Reverse compensates a COMPLETED transaction with an opposite movement
func (s *PaymentServiceImpl) Reverse(ctx context.Context, transactionID uuid.UUID, reason string) (*payment.Transaction, error) {
	reversal, err := s.store.Reverse(ctx, transactionID, reason)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Transaction reversed",
		"transaction_id", transactionID.String(),
		"reversal_id", reversal.ID.String(),
		"reason", reason,
	)
	return reversal, nil
}

// ValidateAccount checks a destination account without moving money
func (s *PaymentServiceImpl) ValidateAccount(ctx context.Context, rail shared.RailKind, recipient *shared.RecipientDetails) (*validator.Result, error) {
	return s.validator.Validate(ctx, rail, recipient)
}
