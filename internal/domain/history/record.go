package history

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vaultpay/payment-core/internal/domain/payment"
	"github.com/vaultpay/payment-core/internal/domain/shared"
)

// Record is the denormalized transaction-history document served to
// dashboards. It is a read model: the outbox poller projects terminal
// transactions into it, and nothing here feeds back into balances.
type Record struct {
	TransactionID   uuid.UUID                `bson:"transaction_id" json:"transaction_id"`
	WalletID        uuid.UUID                `bson:"wallet_id" json:"wallet_id"`
	Type            shared.TransactionType   `bson:"type" json:"type"`
	Direction       shared.Direction         `bson:"direction" json:"direction"`
	Amount          int64                    `bson:"amount" json:"amount"`
	Currency        string                   `bson:"currency" json:"currency"`
	Status          shared.TransactionStatus `bson:"status" json:"status"`
	CounterpartyRef string                   `bson:"counterparty_ref,omitempty" json:"counterparty_ref,omitempty"`
	ProviderRef     string                   `bson:"provider_ref,omitempty" json:"provider_ref,omitempty"`
	FailureReason   string                   `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`
	CorrelationID   string                   `bson:"correlation_id,omitempty" json:"correlation_id,omitempty"`
	CreatedAt       time.Time                `bson:"created_at" json:"created_at"`
	CompletedAt     *time.Time               `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	RecordedAt      time.Time                `bson:"recorded_at" json:"recorded_at"`
}

// NewRecord projects a transaction into its history document
func NewRecord(txn *payment.Transaction) *Record {
	return &Record{
		TransactionID:   txn.ID,
		WalletID:        txn.WalletID,
		Type:            txn.Type,
		Direction:       txn.Direction,
		Amount:          txn.Amount,
		Currency:        txn.Currency,
		Status:          txn.Status,
		CounterpartyRef: txn.CounterpartyRef,
		ProviderRef:     txn.ProviderRef,
		FailureReason:   txn.FailureReason,
		CorrelationID:   txn.CorrelationID,
		CreatedAt:       txn.CreatedAt,
		CompletedAt:     txn.CompletedAt,
		RecordedAt:      time.Now(),
	}
}

// Repository manages the transaction-history read model
type Repository interface {
	// Upsert writes the record keyed by transaction ID. The poller may
	// deliver the same transaction more than once; later writes win.
	Upsert(ctx context.Context, record *Record) error
	GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*Record, error)
	GetByWalletID(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*Record, error)
	CountByWalletID(ctx context.Context, walletID uuid.UUID) (int64, error)
	GetByTimeRange(ctx context.Context, startTime, endTime time.Time, limit, offset int) ([]*Record, error)
}

// ErrRecordNotFound indicates missing history record
type ErrRecordNotFound struct {
	TransactionID uuid.UUID
}

func (e ErrRecordNotFound) Error() string {
	return "history record not found: " + e.TransactionID.String()
}

// Is matches any ErrRecordNotFound when the target carries a nil ID
func (e ErrRecordNotFound) Is(target error) bool {
	t, ok := target.(ErrRecordNotFound)
	if !ok {
		return false
	}
	return t.TransactionID == uuid.Nil || e.TransactionID == t.TransactionID
}
