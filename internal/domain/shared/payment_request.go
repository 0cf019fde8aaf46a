package shared

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrInvalidCurrency        = errors.New("invalid currency")
)

// RecipientDetails identifies the external counterparty of a debit operation.
// For utility payments Reference carries the phone/meter/smartcard number and
// Provider the aggregator code; bank transfers use AccountNumber + BankCode.
type RecipientDetails struct {
	AccountNumber string `json:"account_number,omitempty"`
	BankCode      string `json:"bank_code,omitempty"`
	Provider      string `json:"provider,omitempty"`
	Reference     string `json:"reference,omitempty"`
	CountryCode   string `json:"country_code"`
	ValidatedName string `json:"validated_name,omitempty"`
}

// CounterpartyRef renders a stable reference string for ledger records
func (r *RecipientDetails) CounterpartyRef() string {
	if r == nil {
		return ""
	}
	if r.Reference != "" {
		return fmt.Sprintf("%s:%s", r.Provider, r.Reference)
	}
	return fmt.Sprintf("%s:%s:%s", r.CountryCode, r.BankCode, r.AccountNumber)
}

// PaymentRequest is the orchestrator's input for every money-movement
// operation (fund, withdraw, send, bill/utility payment, payroll entry).
type PaymentRequest struct {
	TransactionID  uuid.UUID         `json:"transaction_id"`
	WalletID       uuid.UUID         `json:"wallet_id"`
	Type           TransactionType   `json:"type"`
	Direction      Direction         `json:"direction"`
	Rail           RailKind          `json:"rail"`
	Amount         int64             `json:"amount"` // Minor units
	Currency       string            `json:"currency"`
	Recipient      *RecipientDetails `json:"recipient,omitempty"`
	Note           string            `json:"note,omitempty"`
	IdempotencyKey string            `json:"idempotency_key"`
	CorrelationID  string            `json:"correlation_id,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
}

// RequiresRecipient reports whether the operation targets an external
// destination and therefore needs account validation before execution
func (r *PaymentRequest) RequiresRecipient() bool {
	return r.Direction == DirectionDebit
}

// Hash computes the canonical request fingerprint used to detect idempotency
// key reuse with a different payload. The transaction ID, correlation ID and
// timestamp are excluded: retries regenerate those.
func (r *PaymentRequest) Hash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%d|%s|%s",
		r.WalletID, r.Type, r.Direction, r.Rail, r.Amount, r.Currency, r.Recipient.CounterpartyRef())
	return hex.EncodeToString(h.Sum(nil))
}

// CallbackEvent is the Kafka message an asynchronous rail delivers when a
// pending operation settles or fails on the provider side.
type CallbackEvent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	ProviderRef   string    `json:"provider_ref"`
	Succeeded     bool      `json:"succeeded"`
	Reason        string    `json:"reason,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
