package wallet

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrEmptyOwnerID          = errors.New("owner id cannot be empty")
	ErrInvalidCurrencyFormat = errors.New("currency must be a 3-letter code")
	ErrReservedExceedsFunds  = errors.New("reserved amount exceeds balance")
)

// Wallet holds the spendable money of one owning entity in a single currency.
// Balance and Reserved are stored in minor units; Available is the amount a
// new debit may hold. Mutated only through committed ledger transactions.
type Wallet struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Currency  string    `json:"currency"`
	Balance   int64     `json:"balance"`  // Minor units
	Reserved  int64     `json:"reserved"` // Sum of open debit holds
	Version   int       `json:"version"`  // For optimistic locking
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewWallet creates a wallet with the given opening balance
func NewWallet(ownerID string, currency string, openingBalance int64) (*Wallet, error) {
	if ownerID == "" {
		return nil, ErrEmptyOwnerID
	}
	if len(currency) != 3 {
		return nil, ErrInvalidCurrencyFormat
	}
	if openingBalance < 0 {
		return nil, ErrInvalidAmount
	}

	return &Wallet{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Currency:  currency,
		Balance:   openingBalance,
		Reserved:  0,
		Version:   1,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}, nil
}

// Available returns the balance not held by open reservations
func (w *Wallet) Available() int64 {
	return w.Balance - w.Reserved
}

// Hold places a debit reservation against the available balance
func (w *Wallet) Hold(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if w.Available() < amount {
		return ErrInsufficientFunds{WalletID: w.ID, Requested: amount, Available: w.Available()}
	}

	w.Reserved += amount
	w.UpdatedAt = time.Now()
	w.Version++
	return nil
}

// CommitDebit converts a held amount into a balance debit
func (w *Wallet) CommitDebit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if w.Reserved < amount || w.Balance < amount {
		return ErrReservedExceedsFunds
	}

	w.Reserved -= amount
	w.Balance -= amount
	w.UpdatedAt = time.Now()
	w.Version++
	return nil
}

// ReleaseHold discards a held amount without touching the balance
func (w *Wallet) ReleaseHold(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if w.Reserved < amount {
		return ErrReservedExceedsFunds
	}

	w.Reserved -= amount
	w.UpdatedAt = time.Now()
	w.Version++
	return nil
}

// Credit adds the amount to the balance
func (w *Wallet) Credit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	w.Balance += amount
	w.UpdatedAt = time.Now()
	w.Version++
	return nil
}

// Debit subtracts the amount from the balance without a prior hold.
// Used by reversals of completed credits.
func (w *Wallet) Debit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if w.Balance < amount {
		return ErrInsufficientFunds{WalletID: w.ID, Requested: amount, Available: w.Available()}
	}

	w.Balance -= amount
	w.UpdatedAt = time.Now()
	w.Version++
	return nil
}
