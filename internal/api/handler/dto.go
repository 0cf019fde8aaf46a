package handler

// CreateWalletRequest represents a request to open a new wallet
type CreateWalletRequest struct {
	OwnerID        string `json:"owner_id" binding:"required"`
	Currency       string `json:"currency" binding:"required,len=3"`
	OpeningBalance int64  `json:"opening_balance" binding:"min=0"`
}

// WalletResponse represents a wallet in API responses
type WalletResponse struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Currency  string `json:"currency"`
	Balance   int64  `json:"balance"`
	Reserved  int64  `json:"reserved"`
	Available int64  `json:"available"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// RecipientPayload carries destination details on money-movement requests
type RecipientPayload struct {
	AccountNumber string `json:"account_number,omitempty"`
	BankCode      string `json:"bank_code,omitempty"`
	Provider      string `json:"provider,omitempty"`
	Reference     string `json:"reference,omitempty"`
	CountryCode   string `json:"country_code" binding:"required,len=2"`
}

// FundRequest represents a request to add money to a wallet. Method accepts
// bank as a shorthand for the bank_transfer rail.
type FundRequest struct {
	WalletID       string `json:"wallet_id" binding:"required,uuid"`
	Amount         int64  `json:"amount" binding:"required,gt=0"`
	Currency       string `json:"currency" binding:"required,len=3"`
	Method         string `json:"method" binding:"required,oneof=bank bank_transfer card crypto"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// WithdrawRequest represents a request to move money out to an external account
type WithdrawRequest struct {
	WalletID       string           `json:"wallet_id" binding:"required,uuid"`
	Amount         int64            `json:"amount" binding:"required,gt=0"`
	Currency       string           `json:"currency" binding:"required,len=3"`
	Recipient      RecipientPayload `json:"recipient" binding:"required"`
	IdempotencyKey string           `json:"idempotency_key,omitempty"`
}

// SendRequest represents a peer payout request
type SendRequest struct {
	WalletID       string           `json:"wallet_id" binding:"required,uuid"`
	Amount         int64            `json:"amount" binding:"required,gt=0"`
	Currency       string           `json:"currency" binding:"required,len=3"`
	Recipient      RecipientPayload `json:"recipient" binding:"required"`
	Note           string           `json:"note,omitempty"`
	IdempotencyKey string           `json:"idempotency_key,omitempty"`
}

// UtilityPaymentRequest represents an airtime/electricity/cable payment
type UtilityPaymentRequest struct {
	WalletID       string `json:"wallet_id" binding:"required,uuid"`
	Amount         int64  `json:"amount" binding:"required,gt=0"`
	Currency       string `json:"currency" binding:"required,len=3"`
	Provider       string `json:"provider" binding:"required"`
	Reference      string `json:"reference" binding:"required"`
	CountryCode    string `json:"country_code" binding:"required,len=2"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// ValidateAccountRequest represents an account validation passthrough request
type ValidateAccountRequest struct {
	Rail          string `json:"rail" binding:"required,oneof=bank_transfer card crypto utility"`
	AccountNumber string `json:"account_number,omitempty"`
	BankCode      string `json:"bank_code,omitempty"`
	Provider      string `json:"provider,omitempty"`
	Reference     string `json:"reference,omitempty"`
	CountryCode   string `json:"country_code" binding:"required,len=2"`
}

// ReverseTransactionRequest represents a request to compensate a completed transaction
type ReverseTransactionRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// PaymentResponse represents the outcome of a money-movement request
type PaymentResponse struct {
	TransactionID string `json:"transaction_id,omitempty"`
	Status        string `json:"status"`
	ProviderRef   string `json:"provider_ref,omitempty"`
	FailureCode   string `json:"failure_code,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
	ValidatedName string `json:"validated_name,omitempty"`
	Replayed      bool   `json:"replayed,omitempty"`
}

// TransactionResponse represents a ledger transaction in API responses
type TransactionResponse struct {
	ID              string `json:"id"`
	WalletID        string `json:"wallet_id"`
	Type            string `json:"type"`
	Direction       string `json:"direction"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Status          string `json:"status"`
	CounterpartyRef string `json:"counterparty_ref,omitempty"`
	ProviderRef     string `json:"provider_ref,omitempty"`
	FailureReason   string `json:"failure_reason,omitempty"`
	ReversalOf      string `json:"reversal_of,omitempty"`
	CreatedAt       string `json:"created_at"`
	CompletedAt     string `json:"completed_at,omitempty"`
}

// CreatePayrollEntryRequest represents a request to register a payroll entry
type CreatePayrollEntryRequest struct {
	EmployeeID   string           `json:"employee_id" binding:"required"`
	EmployeeName string           `json:"employee_name" binding:"required"`
	WalletID     string           `json:"wallet_id" binding:"required,uuid"`
	Salary       int64            `json:"salary" binding:"required,gt=0"`
	Bonus        int64            `json:"bonus" binding:"min=0"`
	Deductions   int64            `json:"deductions" binding:"min=0"`
	Currency     string           `json:"currency" binding:"required,len=3"`
	Recipient    RecipientPayload `json:"recipient" binding:"required"`
}

// UpdatePayrollEntryRequest represents an edit to a pending payroll entry
type UpdatePayrollEntryRequest struct {
	Salary     int64 `json:"salary" binding:"required,gt=0"`
	Bonus      int64 `json:"bonus" binding:"min=0"`
	Deductions int64 `json:"deductions" binding:"min=0"`
}

// PayrollEntryResponse represents a payroll entry in API responses
type PayrollEntryResponse struct {
	ID            string `json:"id"`
	EmployeeID    string `json:"employee_id"`
	EmployeeName  string `json:"employee_name"`
	WalletID      string `json:"wallet_id"`
	Salary        int64  `json:"salary"`
	Bonus         int64  `json:"bonus"`
	Deductions    int64  `json:"deductions"`
	NetPay        int64  `json:"net_pay"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// ProviderCallbackRequest represents the webhook payload asynchronous rails
// deliver when a pending payment settles
type ProviderCallbackRequest struct {
	TransactionID string `json:"transaction_id" binding:"required,uuid"`
	ProviderRef   string `json:"provider_ref,omitempty"`
	Status        string `json:"status" binding:"required,oneof=succeeded failed"`
	Reason        string `json:"reason,omitempty"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}
