// Package payrollrun manages payroll entries and disburses them in batches
// through the payment orchestrator. Each entry is paid under its own derived
// idempotency key, so a crashed or repeated run never pays an employee twice.
package payrollrun

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vaultpay/payment-core/internal/domain/payroll"
	"github.com/vaultpay/payment-core/internal/domain/shared"
	"github.com/vaultpay/payment-core/internal/orchestrator"
)

// Executor runs a single payment end to end
type Executor interface {
	Execute(ctx context.Context, req *shared.PaymentRequest) (*orchestrator.Result, error)
}

// Summary reports the outcome of one batch run
type Summary struct {
	RunID       uuid.UUID `json:"run_id"`
	Picked      int       `json:"picked"`
	Paid        int       `json:"paid"`
	Failed      int       `json:"failed"`
	Interrupted bool      `json:"interrupted,omitempty"`
}

// Service manages payroll entries and runs disbursement batches
type Service struct {
	repo      payroll.Repository
	executor  Executor
	batchSize int
	logger    *slog.Logger
}

// NewService creates the payroll service
func NewService(logger *slog.Logger, repo payroll.Repository, executor Executor, batchSize int) *Service {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Service{
		repo:      repo,
		executor:  executor,
		batchSize: batchSize,
		logger:    logger,
	}
}

// CreateEntry registers a pending payroll entry
func (s *Service) CreateEntry(ctx context.Context, employeeID, employeeName string, walletID uuid.UUID, salary, bonus, deductions int64, currency string, recipient shared.RecipientDetails) (*payroll.Entry, error) {
	entry, err := payroll.NewEntry(employeeID, employeeName, walletID, salary, bonus, deductions, currency, recipient)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to create payroll entry: %w", err)
	}
	return entry, nil
}

// GetEntry fetches a payroll entry by id
func (s *Service) GetEntry(ctx context.Context, id uuid.UUID) (*payroll.Entry, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateEntryAmounts edits the pay components of a pending entry
func (s *Service) UpdateEntryAmounts(ctx context.Context, id uuid.UUID, salary, bonus, deductions int64) (*payroll.Entry, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := entry.UpdateAmounts(salary, bonus, deductions); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to update payroll entry: %w", err)
	}
	return entry, nil
}

// ListEntries returns payroll entries, newest first
func (s *Service) ListEntries(ctx context.Context, limit, offset int) ([]*payroll.Entry, error) {
	return s.repo.List(ctx, limit, offset)
}

// ProcessPending picks up to the configured batch of PENDING entries and pays
// them one by one. A failed entry is marked FAILED and the run continues;
// cancellation is honored between entries, never mid-payment.
func (s *Service) ProcessPending(ctx context.Context) (*Summary, error) {
	summary := &Summary{RunID: uuid.New()}
	log := s.logger.With("run_id", summary.RunID.String())

	entries, err := s.repo.ListByStatus(ctx, payroll.EntryStatusPending, s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending payroll entries: %w", err)
	}
	summary.Picked = len(entries)
	if len(entries) == 0 {
		return summary, nil
	}
	log.Info("Payroll run started", "entries", len(entries))

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			summary.Interrupted = true
			log.Warn("Payroll run interrupted", "paid", summary.Paid, "failed", summary.Failed)
			return summary, ctx.Err()
		default:
		}

		if err := s.payEntry(ctx, entry, summary.RunID); err != nil {
			summary.Failed++
			log.Error("Payroll entry failed",
				"entry_id", entry.ID.String(),
				"employee_id", entry.EmployeeID,
				"error", err,
			)
			continue
		}
		if entry.Status == payroll.EntryStatusFailed {
			summary.Failed++
			continue
		}
		summary.Paid++
	}

	log.Info("Payroll run finished", "paid", summary.Paid, "failed", summary.Failed)
	return summary, nil
}

// PayEntry disburses a single pending entry outside a batch run
func (s *Service) PayEntry(ctx context.Context, id uuid.UUID) (*payroll.Entry, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.payEntry(ctx, entry, uuid.New()); err != nil {
		return nil, err
	}
	return entry, nil
}

// payEntry moves one entry through PROCESSING to PAID or FAILED. The error
// return covers infrastructure faults only; a declined payment marks the
// entry FAILED and returns nil.
func (s *Service) payEntry(ctx context.Context, entry *payroll.Entry, runID uuid.UUID) error {
	if err := entry.MarkProcessing(); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, entry); err != nil {
		return fmt.Errorf("failed to mark entry processing: %w", err)
	}

	recipient := entry.Recipient
	result, err := s.executor.Execute(ctx, &shared.PaymentRequest{
		WalletID:       entry.WalletID,
		Type:           shared.TransactionTypePayrollPayment,
		Direction:      shared.DirectionDebit,
		Rail:           shared.RailBankTransfer,
		Amount:         entry.NetPay,
		Currency:       entry.Currency,
		Recipient:      &recipient,
		IdempotencyKey: entry.IdempotencyKey(),
		CorrelationID:  fmt.Sprintf("payroll-run:%s:%s", runID, entry.ID),
	})
	if err != nil {
		// Infrastructure fault: leave the entry FAILED with the cause so an
		// operator can requeue it; the idempotency key protects the retry.
		entry.MarkFailed(nil, err.Error())
		if updateErr := s.repo.Update(ctx, entry); updateErr != nil {
			return fmt.Errorf("failed to record entry failure: %w", updateErr)
		}
		return err
	}

	if result.Failed() {
		reason := result.FailureReason
		if reason == "" {
			reason = string(result.FailureCode)
		}
		var txnID *uuid.UUID
		if result.TransactionID != uuid.Nil {
			id := result.TransactionID
			txnID = &id
		}
		entry.MarkFailed(txnID, reason)
		if err := s.repo.Update(ctx, entry); err != nil {
			return fmt.Errorf("failed to record entry failure: %w", err)
		}
		return nil
	}

	// AWAITING_CALLBACK counts as disbursed: the provider accepted the
	// transfer and the ledger settles it when the callback lands.
	entry.MarkPaid(result.TransactionID)
	if err := s.repo.Update(ctx, entry); err != nil {
		return fmt.Errorf("failed to record entry payment: %w", err)
	}
	return nil
}
