package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/vaultpay/payment-core/internal/domain/shared"
)

// Transaction is an immutable ledger record of one money movement. It is
// created in RESERVED state together with its Reservation and transitions
// exactly once to a terminal state; corrections after completion are new
// compensating transactions linked through ReversalOf.
type Transaction struct {
	ID              uuid.UUID                `json:"id"`
	WalletID        uuid.UUID                `json:"wallet_id"`
	Type            shared.TransactionType   `json:"type"`
	Direction       shared.Direction         `json:"direction"`
	Amount          int64                    `json:"amount"` // Minor units
	Currency        string                   `json:"currency"`
	Status          shared.TransactionStatus `json:"status"`
	CounterpartyRef string                   `json:"counterparty_ref,omitempty"`
	ProviderRef     string                   `json:"provider_ref,omitempty"`
	IdempotencyKey  string                   `json:"idempotency_key,omitempty"`
	FailureReason   string                   `json:"failure_reason,omitempty"`
	ReversalOf      *uuid.UUID               `json:"reversal_of,omitempty"`
	CorrelationID   string                   `json:"correlation_id,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
	CompletedAt     *time.Time               `json:"completed_at,omitempty"`
}

// NewTransaction builds a pending transaction from an orchestration request
func NewTransaction(req *shared.PaymentRequest) *Transaction {
	id := req.TransactionID
	if id == uuid.Nil {
		id = uuid.New()
	}

	return &Transaction{
		ID:              id,
		WalletID:        req.WalletID,
		Type:            req.Type,
		Direction:       req.Direction,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Status:          shared.TransactionStatusPending,
		CounterpartyRef: req.Recipient.CounterpartyRef(),
		IdempotencyKey:  req.IdempotencyKey,
		CorrelationID:   req.CorrelationID,
		CreatedAt:       time.Now(),
	}
}

// Reservation is an ephemeral hold against a wallet's available balance,
// referencing exactly one transaction. It exists between the balance check
// and the provider outcome and is resolved (committed or released) once.
type Reservation struct {
	ID            uuid.UUID               `json:"id"`
	TransactionID uuid.UUID               `json:"transaction_id"`
	WalletID      uuid.UUID               `json:"wallet_id"`
	Amount        int64                   `json:"amount"`
	Direction     shared.Direction        `json:"direction"`
	State         shared.ReservationState `json:"state"`
	CreatedAt     time.Time               `json:"created_at"`
	ResolvedAt    *time.Time              `json:"resolved_at,omitempty"`
}

// NewReservation opens a hold for the given transaction
func NewReservation(txn *Transaction) *Reservation {
	return &Reservation{
		ID:            uuid.New(),
		TransactionID: txn.ID,
		WalletID:      txn.WalletID,
		Amount:        txn.Amount,
		Direction:     txn.Direction,
		State:         shared.ReservationStateOpen,
		CreatedAt:     time.Now(),
	}
}

// HoldsFunds reports whether the reservation raises the wallet's reserved
// amount. Credit reservations only pin the pending transaction.
func (r *Reservation) HoldsFunds() bool {
	return r.Direction == shared.DirectionDebit
}
