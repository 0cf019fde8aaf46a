package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/vaultpay/payment-core/internal/domain/history"
	"github.com/vaultpay/payment-core/internal/domain/payment"
	"github.com/vaultpay/payment-core/internal/domain/payroll"
	"github.com/vaultpay/payment-core/internal/domain/shared"
	"github.com/vaultpay/payment-core/internal/domain/wallet"
	"github.com/vaultpay/payment-core/internal/orchestrator"
	"github.com/vaultpay/payment-core/internal/payrollrun"
	"github.com/vaultpay/payment-core/internal/validator"
)

// WalletService defines the interface for wallet operations
type WalletService interface {
	// CreateWallet opens a wallet for an owner with an opening balance
	CreateWallet(ctx context.Context, ownerID, currency string, openingBalance int64) (*wallet.Wallet, error)

	// GetWallet retrieves a wallet by its ID
	// Returns ErrWalletNotFound if the wallet doesn't exist
	GetWallet(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error)
}

// PaymentService defines the interface for money-movement operations
type PaymentService interface {
	// Execute runs a payment request through the orchestrator
	Execute(ctx context.Context, req *shared.PaymentRequest) (*orchestrator.Result, error)

	// GetTransaction retrieves a ledger transaction by its ID
	// Returns ErrTransactionNotFound if the transaction doesn't exist
	GetTransaction(ctx context.Context, id uuid.UUID) (*payment.Transaction, error)

	// Reverse compensates a COMPLETED transaction with an opposite movement
	Reverse(ctx context.Context, transactionID uuid.UUID, reason string) (*payment.Transaction, error)

	// ValidateAccount checks a destination account without moving money
	ValidateAccount(ctx context.Context, rail shared.RailKind, recipient *shared.RecipientDetails) (*validator.Result, error)
}

// HistoryService defines the interface for the transaction-history read model
type HistoryService interface {
	// GetWalletHistory returns a page of history records plus the total count
	GetWalletHistory(ctx context.Context, walletID uuid.UUID, page, perPage int) ([]*history.Record, int64, error)
}

// PayrollService defines the interface for payroll entry management and runs.
// Satisfied by payrollrun.Service.
type PayrollService interface {
	CreateEntry(ctx context.Context, employeeID, employeeName string, walletID uuid.UUID, salary, bonus, deductions int64, currency string, recipient shared.RecipientDetails) (*payroll.Entry, error)
	GetEntry(ctx context.Context, id uuid.UUID) (*payroll.Entry, error)
	UpdateEntryAmounts(ctx context.Context, id uuid.UUID, salary, bonus, deductions int64) (*payroll.Entry, error)
	ListEntries(ctx context.Context, limit, offset int) ([]*payroll.Entry, error)
	ProcessPending(ctx context.Context) (*payrollrun.Summary, error)
	PayEntry(ctx context.Context, id uuid.UUID) (*payroll.Entry, error)
}
