package shared

// TransactionType defines the money-movement categories recorded in the ledger
type TransactionType string

const (
	TransactionTypeFunding        TransactionType = "FUNDING"
	TransactionTypeWithdrawal     TransactionType = "WITHDRAWAL"
	TransactionTypeTransfer       TransactionType = "TRANSFER"
	TransactionTypeBillPayment    TransactionType = "BILL_PAYMENT"
	TransactionTypeUtilityPayment TransactionType = "UTILITY_PAYMENT"
	TransactionTypePayrollPayment TransactionType = "PAYROLL_PAYMENT"
)

// Direction defines which way money moves relative to the wallet
type Direction string

const (
	DirectionCredit Direction = "CREDIT"
	DirectionDebit  Direction = "DEBIT"
)

// TransactionStatus defines transaction processing states.
// COMPLETED, FAILED and REVERSED are terminal; a transaction never leaves
// a terminal state - corrections are new compensating transactions.
type TransactionStatus string

const (
	TransactionStatusPending          TransactionStatus = "PENDING"
	TransactionStatusReserved         TransactionStatus = "RESERVED"
	TransactionStatusAwaitingCallback TransactionStatus = "AWAITING_CALLBACK"
	TransactionStatusCompleted        TransactionStatus = "COMPLETED"
	TransactionStatusFailed           TransactionStatus = "FAILED"
	TransactionStatusReversed         TransactionStatus = "REVERSED"
)

// IsTerminal reports whether no further transition is allowed from s
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed || s == TransactionStatusReversed
}

// ReservationState defines the lifecycle of a balance hold
type ReservationState string

const (
	ReservationStateOpen      ReservationState = "OPEN"
	ReservationStateCommitted ReservationState = "COMMITTED"
	ReservationStateReleased  ReservationState = "RELEASED"
)

// RailKind selects a payment provider backend
type RailKind string

const (
	RailBankTransfer RailKind = "bank_transfer"
	RailCard         RailKind = "card"
	RailCrypto       RailKind = "crypto"
	RailUtility      RailKind = "utility"
)

// FailureCode defines the failure taxonomy surfaced to callers.
// Raw provider errors never leak past the orchestrator.
type FailureCode string

const (
	FailureCodeInsufficientBalance    FailureCode = "INSUFFICIENT_BALANCE"
	FailureCodeInvalidRecipient       FailureCode = "INVALID_RECIPIENT"
	FailureCodeProviderUnavailable    FailureCode = "PROVIDER_UNAVAILABLE"
	FailureCodeProviderRejected       FailureCode = "PROVIDER_REJECTED"
	FailureCodeIdempotencyKeyConflict FailureCode = "IDEMPOTENCY_KEY_CONFLICT"
	FailureCodeAccountNotFound        FailureCode = "ACCOUNT_NOT_FOUND"
	FailureCodeCurrencyMismatch       FailureCode = "CURRENCY_MISMATCH"
	FailureCodeUnknownError           FailureCode = "UNKNOWN_ERROR"
)

// OutboxStatus defines event publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)
