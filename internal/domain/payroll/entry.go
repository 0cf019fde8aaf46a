package payroll

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vaultpay/payment-core/internal/domain/shared"
)

// Common errors
var (
	ErrEmptyEmployeeID = errors.New("employee id cannot be empty")
	ErrNegativePay     = errors.New("net pay must be positive")
	ErrEntryNotPending = errors.New("payroll entry can only be edited while pending")
)

// EntryStatus defines payroll entry processing states
type EntryStatus string

const (
	EntryStatusPending    EntryStatus = "PENDING"
	EntryStatusProcessing EntryStatus = "PROCESSING"
	EntryStatusPaid       EntryStatus = "PAID"
	EntryStatusFailed     EntryStatus = "FAILED"
)

// Entry is one employee's line in a payroll run. NetPay is derived from
// salary, bonus and deductions and recomputed on every edit; once a run has
// picked the entry up (status != PENDING) the amounts are frozen.
type Entry struct {
	ID            uuid.UUID                `json:"id"`
	EmployeeID    string                   `json:"employee_id"`
	EmployeeName  string                   `json:"employee_name"`
	WalletID      uuid.UUID                `json:"wallet_id"` // Funding wallet for the run
	Salary        int64                    `json:"salary"`    // Minor units
	Bonus         int64                    `json:"bonus"`
	Deductions    int64                    `json:"deductions"`
	NetPay        int64                    `json:"net_pay"` // salary + bonus - deductions
	Currency      string                   `json:"currency"`
	Recipient     shared.RecipientDetails  `json:"recipient"`
	Status        EntryStatus              `json:"status"`
	TransactionID *uuid.UUID               `json:"transaction_id,omitempty"`
	FailureReason string                   `json:"failure_reason,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at"`
}

// NewEntry creates a pending payroll entry with NetPay derived
func NewEntry(employeeID, employeeName string, walletID uuid.UUID, salary, bonus, deductions int64, currency string, recipient shared.RecipientDetails) (*Entry, error) {
	if employeeID == "" {
		return nil, ErrEmptyEmployeeID
	}

	e := &Entry{
		ID:           uuid.New(),
		EmployeeID:   employeeID,
		EmployeeName: employeeName,
		WalletID:     walletID,
		Salary:       salary,
		Bonus:        bonus,
		Deductions:   deductions,
		Currency:     currency,
		Recipient:    recipient,
		Status:       EntryStatusPending,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	e.recomputeNetPay()
	if e.NetPay <= 0 {
		return nil, ErrNegativePay
	}
	return e, nil
}

// UpdateAmounts changes the pay components of a pending entry
func (e *Entry) UpdateAmounts(salary, bonus, deductions int64) error {
	if e.Status != EntryStatusPending {
		return ErrEntryNotPending
	}

	e.Salary = salary
	e.Bonus = bonus
	e.Deductions = deductions
	e.recomputeNetPay()
	if e.NetPay <= 0 {
		return ErrNegativePay
	}
	e.UpdatedAt = time.Now()
	return nil
}

func (e *Entry) recomputeNetPay() {
	e.NetPay = e.Salary + e.Bonus - e.Deductions
}

// IdempotencyKey derives the stable per-entry key so a crashed batch can
// resume without double-paying completed entries
func (e *Entry) IdempotencyKey() string {
	return "payroll:" + e.ID.String()
}

// MarkProcessing transitions a pending entry into an active run
func (e *Entry) MarkProcessing() error {
	if e.Status != EntryStatusPending {
		return ErrEntryNotPending
	}
	e.Status = EntryStatusProcessing
	e.UpdatedAt = time.Now()
	return nil
}

// MarkPaid records a successful disbursement
func (e *Entry) MarkPaid(transactionID uuid.UUID) {
	e.Status = EntryStatusPaid
	e.TransactionID = &transactionID
	e.FailureReason = ""
	e.UpdatedAt = time.Now()
}

// MarkFailed records a failed disbursement without aborting the batch
func (e *Entry) MarkFailed(transactionID *uuid.UUID, reason string) {
	e.Status = EntryStatusFailed
	e.TransactionID = transactionID
	e.FailureReason = reason
	e.UpdatedAt = time.Now()
}
