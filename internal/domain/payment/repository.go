package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vaultpay/payment-core/internal/domain/shared"
)

// TransactionRepository manages transaction persistence
type TransactionRepository interface {
	Create(ctx context.Context, txn *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetByIdempotencyKey(ctx context.Context, idempotencyKey string) (*Transaction, error)
	GetReversalOf(ctx context.Context, originalID uuid.UUID) (*Transaction, error)

	// SetStatus transitions a transaction, stamping CompletedAt for terminal
	// states. Callers enforce state-machine legality under the wallet lock.
	SetStatus(ctx context.Context, id uuid.UUID, status shared.TransactionStatus, providerRef, failureReason string) error
	WithTx(tx pgx.Tx) TransactionRepository
}

// ReservationRepository manages balance-hold persistence
type ReservationRepository interface {
	Create(ctx context.Context, rsv *Reservation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Reservation, error)
	GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*Reservation, error)
	SetState(ctx context.Context, id uuid.UUID, state shared.ReservationState) error
	WithTx(tx pgx.Tx) ReservationRepository
}

// ErrTransactionNotFound indicates missing transaction
type ErrTransactionNotFound struct {
	TransactionID uuid.UUID
}

func (e ErrTransactionNotFound) Error() string {
	return "transaction not found: " + e.TransactionID.String()
}

// Is matches any ErrTransactionNotFound when the target carries a nil ID
func (e ErrTransactionNotFound) Is(target error) bool {
	t, ok := target.(ErrTransactionNotFound)
	if !ok {
		return false
	}
	return t.TransactionID == uuid.Nil || e.TransactionID == t.TransactionID
}

// ErrReservationNotFound indicates missing reservation
type ErrReservationNotFound struct {
	ReservationID uuid.UUID
}

func (e ErrReservationNotFound) Error() string {
	return "reservation not found: " + e.ReservationID.String()
}

// Is matches any ErrReservationNotFound when the target carries a nil ID
func (e ErrReservationNotFound) Is(target error) bool {
	t, ok := target.(ErrReservationNotFound)
	if !ok {
		return false
	}
	return t.ReservationID == uuid.Nil || e.ReservationID == t.ReservationID
}

// ErrAlreadyReversed indicates a second reversal attempt on one transaction
type ErrAlreadyReversed struct {
	TransactionID uuid.UUID
}

func (e ErrAlreadyReversed) Error() string {
	return "transaction already reversed: " + e.TransactionID.String()
}

// ErrDuplicateTransaction indicates transaction uniqueness violation
type ErrDuplicateTransaction struct {
	TransactionID uuid.UUID
}

func (e ErrDuplicateTransaction) Error() string {
	return "duplicate transaction: " + e.TransactionID.String()
}
