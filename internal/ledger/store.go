// Package ledger implements the append-only transaction store and the
// reserve/commit/release lifecycle that keeps wallet balances consistent
// with provider outcomes. All multi-row transitions run inside a single
// database transaction under a pessimistic wallet row lock.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vaultpay/payment-core/internal/domain/outbox"
	"github.com/vaultpay/payment-core/internal/domain/payment"
	"github.com/vaultpay/payment-core/internal/domain/shared"
	"github.com/vaultpay/payment-core/internal/domain/wallet"
)

// TxRunner runs a function inside a database transaction
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// ErrCurrencyMismatch indicates the request currency differs from the wallet's
type ErrCurrencyMismatch struct {
	WalletCurrency  string
	RequestCurrency string
}

func (e ErrCurrencyMismatch) Error() string {
	return fmt.Sprintf("currency mismatch: wallet holds %s, request is %s", e.WalletCurrency, e.RequestCurrency)
}

// ErrSettleConflict indicates a commit attempt on a released reservation or
// a release attempt on a committed one. Settling twice the same way is a
// no-op, not a conflict.
type ErrSettleConflict struct {
	TransactionID uuid.UUID
	State         shared.ReservationState
}

func (e ErrSettleConflict) Error() string {
	return fmt.Sprintf("reservation for transaction %s already resolved as %s", e.TransactionID.String(), e.State)
}

// ErrNotReversible indicates a reversal attempt on a non-completed transaction
type ErrNotReversible struct {
	TransactionID uuid.UUID
	Status        shared.TransactionStatus
}

func (e ErrNotReversible) Error() string {
	return fmt.Sprintf("transaction %s cannot be reversed from status %s", e.TransactionID.String(), e.Status)
}

// Store coordinates wallets, transactions, reservations and outbox rows.
// Terminal transitions append an outbox message in the same database
// transaction so the history projection can never observe a state the
// ledger did not commit.
type Store struct {
	db           TxRunner
	wallets      wallet.Repository
	transactions payment.TransactionRepository
	reservations payment.ReservationRepository
	outbox       outbox.Repository
	logger       *slog.Logger
}

// NewStore creates a ledger store
func NewStore(
	logger *slog.Logger,
	db TxRunner,
	wallets wallet.Repository,
	transactions payment.TransactionRepository,
	reservations payment.ReservationRepository,
	outboxRepo outbox.Repository,
) *Store {
	return &Store{
		db:           db,
		wallets:      wallets,
		transactions: transactions,
		reservations: reservations,
		outbox:       outboxRepo,
		logger:       logger,
	}
}

// Reserve opens a hold for the request and records the transaction in
// RESERVED state. Debit requests raise the wallet's reserved amount and fail
// with ErrInsufficientFunds when the available balance cannot cover them;
// credit requests only pin the pending transaction.
func (s *Store) Reserve(ctx context.Context, req *shared.PaymentRequest) (*payment.Transaction, error) {
	txn := payment.NewTransaction(req)
	txn.Status = shared.TransactionStatusReserved
	rsv := payment.NewReservation(txn)

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		wallets := s.wallets.WithTx(tx)

		w, err := wallets.LockForUpdate(ctx, req.WalletID)
		if err != nil {
			return err
		}

		if w.Currency != req.Currency {
			return ErrCurrencyMismatch{WalletCurrency: w.Currency, RequestCurrency: req.Currency}
		}

		if rsv.HoldsFunds() {
			if err := w.Hold(req.Amount); err != nil {
				return err
			}
			if err := wallets.Update(ctx, w); err != nil {
				return err
			}
		}

		if err := s.transactions.WithTx(tx).Create(ctx, txn); err != nil {
			return err
		}
		return s.reservations.WithTx(tx).Create(ctx, rsv)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Reserved funds",
		"transaction_id", txn.ID.String(),
		"wallet_id", req.WalletID.String(),
		"amount", req.Amount,
		"direction", string(req.Direction),
	)
	return txn, nil
}

// Commit finalizes a reserved transaction: the hold is converted into a
// balance movement, the reservation closes as COMMITTED and the transaction
// reaches COMPLETED with an outbox message appended atomically. Committing
// an already-committed reservation is a no-op, so duplicate provider
// callbacks settle cleanly; committing a released one fails with
// ErrSettleConflict.
func (s *Store) Commit(ctx context.Context, transactionID uuid.UUID, providerRef string) error {
	var alreadySettled bool

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		transactions := s.transactions.WithTx(tx)
		wallets := s.wallets.WithTx(tx)

		txn, err := transactions.GetByID(ctx, transactionID)
		if err != nil {
			return err
		}

		// The wallet lock serializes racing settles; the reservation state
		// read below sees whatever the winner wrote.
		w, err := wallets.LockForUpdate(ctx, txn.WalletID)
		if err != nil {
			return err
		}

		rsv, err := s.reservations.WithTx(tx).GetByTransactionID(ctx, transactionID)
		if err != nil {
			return err
		}

		switch rsv.State {
		case shared.ReservationStateCommitted:
			alreadySettled = true
			return nil
		case shared.ReservationStateReleased:
			return ErrSettleConflict{TransactionID: transactionID, State: rsv.State}
		}

		if rsv.HoldsFunds() {
			err = w.CommitDebit(rsv.Amount)
		} else {
			err = w.Credit(rsv.Amount)
		}
		if err != nil {
			return err
		}
		if err := wallets.Update(ctx, w); err != nil {
			return err
		}

		if err := s.reservations.WithTx(tx).SetState(ctx, rsv.ID, shared.ReservationStateCommitted); err != nil {
			return err
		}
		if err := transactions.SetStatus(ctx, transactionID, shared.TransactionStatusCompleted, providerRef, ""); err != nil {
			return err
		}

		txn.Status = shared.TransactionStatusCompleted
		txn.ProviderRef = providerRef
		return s.appendOutbox(ctx, tx, txn)
	})
	if err != nil {
		return err
	}

	if alreadySettled {
		s.logger.Info("Commit replayed on settled reservation", "transaction_id", transactionID.String())
		return nil
	}

	s.logger.Info("Committed transaction", "transaction_id", transactionID.String(), "provider_ref", providerRef)
	return nil
}

// Release abandons a reserved transaction: the hold returns to the available
// balance untouched, the reservation closes as RELEASED and the transaction
// fails with the given reason. Releasing an already-released reservation is
// a no-op; releasing a committed one fails with ErrSettleConflict.
func (s *Store) Release(ctx context.Context, transactionID uuid.UUID, failureReason string) error {
	var alreadySettled bool

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		transactions := s.transactions.WithTx(tx)
		wallets := s.wallets.WithTx(tx)

		txn, err := transactions.GetByID(ctx, transactionID)
		if err != nil {
			return err
		}

		// Locked even for credit reservations so a racing Commit and Release
		// on one transaction serialize on the wallet row.
		w, err := wallets.LockForUpdate(ctx, txn.WalletID)
		if err != nil {
			return err
		}

		rsv, err := s.reservations.WithTx(tx).GetByTransactionID(ctx, transactionID)
		if err != nil {
			return err
		}

		switch rsv.State {
		case shared.ReservationStateReleased:
			alreadySettled = true
			return nil
		case shared.ReservationStateCommitted:
			return ErrSettleConflict{TransactionID: transactionID, State: rsv.State}
		}

		if rsv.HoldsFunds() {
			if err := w.ReleaseHold(rsv.Amount); err != nil {
				return err
			}
			if err := wallets.Update(ctx, w); err != nil {
				return err
			}
		}

		if err := s.reservations.WithTx(tx).SetState(ctx, rsv.ID, shared.ReservationStateReleased); err != nil {
			return err
		}
		if err := transactions.SetStatus(ctx, transactionID, shared.TransactionStatusFailed, "", failureReason); err != nil {
			return err
		}

		txn.Status = shared.TransactionStatusFailed
		txn.FailureReason = failureReason
		return s.appendOutbox(ctx, tx, txn)
	})
	if err != nil {
		return err
	}

	if alreadySettled {
		s.logger.Info("Release replayed on settled reservation", "transaction_id", transactionID.String())
		return nil
	}

	s.logger.Info("Released reservation", "transaction_id", transactionID.String(), "reason", failureReason)
	return nil
}

// MarkAwaitingCallback parks a reserved transaction while an asynchronous
// provider works on it. The hold stays in place; resolution happens later
// through Commit or Release when the callback arrives.
func (s *Store) MarkAwaitingCallback(ctx context.Context, transactionID uuid.UUID, providerRef string) error {
	if err := s.transactions.SetStatus(ctx, transactionID, shared.TransactionStatusAwaitingCallback, providerRef, ""); err != nil {
		return err
	}

	s.logger.Info("Transaction awaiting provider callback",
		"transaction_id", transactionID.String(),
		"provider_ref", providerRef,
	)
	return nil
}

// Reverse appends a compensating transaction for a completed original and
// applies the opposite balance movement. The original row is marked REVERSED
// but otherwise untouched; reversing twice returns ErrAlreadyReversed.
func (s *Store) Reverse(ctx context.Context, originalID uuid.UUID, reason string) (*payment.Transaction, error) {
	var reversal *payment.Transaction

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		transactions := s.transactions.WithTx(tx)
		wallets := s.wallets.WithTx(tx)

		original, err := transactions.GetByID(ctx, originalID)
		if err != nil {
			return err
		}
		if original.Status != shared.TransactionStatusCompleted {
			return ErrNotReversible{TransactionID: originalID, Status: original.Status}
		}

		existing, err := transactions.GetReversalOf(ctx, originalID)
		if err != nil {
			return err
		}
		if existing != nil {
			return payment.ErrAlreadyReversed{TransactionID: originalID}
		}

		w, err := wallets.LockForUpdate(ctx, original.WalletID)
		if err != nil {
			return err
		}

		// Undo the original movement. Reversing a credit may fail when the
		// funds have since been spent.
		if original.Direction == shared.DirectionDebit {
			err = w.Credit(original.Amount)
		} else {
			err = w.Debit(original.Amount)
		}
		if err != nil {
			return err
		}
		if err := wallets.Update(ctx, w); err != nil {
			return err
		}

		reversal = newReversal(original, reason)
		if err := transactions.Create(ctx, reversal); err != nil {
			return err
		}
		if err := transactions.SetStatus(ctx, originalID, shared.TransactionStatusReversed, "", reason); err != nil {
			return err
		}

		original.Status = shared.TransactionStatusReversed
		original.FailureReason = reason
		if err := s.appendOutbox(ctx, tx, original); err != nil {
			return err
		}
		return s.appendOutbox(ctx, tx, reversal)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Reversed transaction",
		"transaction_id", originalID.String(),
		"reversal_id", reversal.ID.String(),
		"reason", reason,
	)
	return reversal, nil
}

// GetTransaction retrieves a transaction by ID
func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	return s.transactions.GetByID(ctx, id)
}

// ReservationByTransaction retrieves the reservation backing a transaction
func (s *Store) ReservationByTransaction(ctx context.Context, transactionID uuid.UUID) (*payment.Reservation, error) {
	return s.reservations.GetByTransactionID(ctx, transactionID)
}

func (s *Store) appendOutbox(ctx context.Context, tx pgx.Tx, txn *payment.Transaction) error {
	message, err := outbox.NewMessage(txn)
	if err != nil {
		return fmt.Errorf("failed to build outbox message: %w", err)
	}
	return s.outbox.WithTx(tx).Create(ctx, message)
}

func newReversal(original *payment.Transaction, reason string) *payment.Transaction {
	opposite := shared.DirectionCredit
	if original.Direction == shared.DirectionCredit {
		opposite = shared.DirectionDebit
	}

	reversal := payment.NewTransaction(&shared.PaymentRequest{
		WalletID:      original.WalletID,
		Type:          original.Type,
		Direction:     opposite,
		Amount:        original.Amount,
		Currency:      original.Currency,
		CorrelationID: original.CorrelationID,
	})
	reversal.CounterpartyRef = original.CounterpartyRef
	reversal.Status = shared.TransactionStatusCompleted
	reversal.FailureReason = reason
	reversal.ReversalOf = &original.ID
	completed := reversal.CreatedAt
	reversal.CompletedAt = &completed
	return reversal
}
