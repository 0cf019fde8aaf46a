package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vaultpay/payment-core/internal/api/middleware"
	"github.com/vaultpay/payment-core/internal/api/service"
	"github.com/vaultpay/payment-core/internal/domain/idempotency"
	"github.com/vaultpay/payment-core/internal/domain/payment"
	"github.com/vaultpay/payment-core/internal/domain/shared"
	"github.com/vaultpay/payment-core/internal/guard"
	"github.com/vaultpay/payment-core/internal/orchestrator"
	"github.com/vaultpay/payment-core/internal/validator"
)

// IdempotencyKeyHeader carries the client-chosen deduplication key. A body
// field is accepted too; a fresh key is derived when both are absent.
const IdempotencyKeyHeader = "Idempotency-Key"

// PaymentHandler handles HTTP requests for money-movement operations
type PaymentHandler struct {
	paymentService service.PaymentService
	logger         *slog.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(logger *slog.Logger, paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

// Fund adds money to a wallet through the configured funding rail
func (h *PaymentHandler) Fund(c *gin.Context) {
	var req FundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	walletID, err := uuid.Parse(req.WalletID)
	if err != nil {
		RespondBadRequest(c, "Invalid wallet ID")
		return
	}

	h.execute(c, &shared.PaymentRequest{
		WalletID:       walletID,
		Type:           shared.TransactionTypeFunding,
		Direction:      shared.DirectionCredit,
		Rail:           railForMethod(req.Method),
		Amount:         req.Amount,
		Currency:       req.Currency,
		IdempotencyKey: idempotencyKey(c, req.IdempotencyKey),
		CorrelationID:  middleware.GetCorrelationID(c),
		Timestamp:      time.Now(),
	})
}

// Withdraw moves money out of a wallet to an external bank account
func (h *PaymentHandler) Withdraw(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	walletID, err := uuid.Parse(req.WalletID)
	if err != nil {
		RespondBadRequest(c, "Invalid wallet ID")
		return
	}

	h.execute(c, &shared.PaymentRequest{
		WalletID:       walletID,
		Type:           shared.TransactionTypeWithdrawal,
		Direction:      shared.DirectionDebit,
		Rail:           shared.RailBankTransfer,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Recipient:      recipientFromPayload(req.Recipient),
		IdempotencyKey: idempotencyKey(c, req.IdempotencyKey),
		CorrelationID:  middleware.GetCorrelationID(c),
		Timestamp:      time.Now(),
	})
}

// Send pays an external counterparty from a wallet
func (h *PaymentHandler) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	walletID, err := uuid.Parse(req.WalletID)
	if err != nil {
		RespondBadRequest(c, "Invalid wallet ID")
		return
	}

	h.execute(c, &shared.PaymentRequest{
		WalletID:       walletID,
		Type:           shared.TransactionTypeTransfer,
		Direction:      shared.DirectionDebit,
		Rail:           shared.RailBankTransfer,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Recipient:      recipientFromPayload(req.Recipient),
		Note:           req.Note,
		IdempotencyKey: idempotencyKey(c, req.IdempotencyKey),
		CorrelationID:  middleware.GetCorrelationID(c),
		Timestamp:      time.Now(),
	})
}

// PayUtility pays an airtime/electricity/cable bill through the utility rail
func (h *PaymentHandler) PayUtility(c *gin.Context) {
	var req UtilityPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	walletID, err := uuid.Parse(req.WalletID)
	if err != nil {
		RespondBadRequest(c, "Invalid wallet ID")
		return
	}

	h.execute(c, &shared.PaymentRequest{
		WalletID:  walletID,
		Type:      shared.TransactionTypeUtilityPayment,
		Direction: shared.DirectionDebit,
		Rail:      shared.RailUtility,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Recipient: &shared.RecipientDetails{
			Provider:    req.Provider,
			Reference:   req.Reference,
			CountryCode: req.CountryCode,
		},
		IdempotencyKey: idempotencyKey(c, req.IdempotencyKey),
		CorrelationID:  middleware.GetCorrelationID(c),
		Timestamp:      time.Now(),
	})
}

// GetTransaction retrieves transaction details by ID, returns 404 if not found
func (h *PaymentHandler) GetTransaction(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		RespondBadRequest(c, "Invalid transaction ID")
		return
	}

	txn, err := h.paymentService.GetTransaction(c.Request.Context(), id)
	if err != nil {
		var notFoundErr payment.ErrTransactionNotFound
		if errors.As(err, &notFoundErr) {
			RespondNotFound(c, "Transaction not found")
			return
		}
		h.logger.Error("Failed to get transaction", "id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapTransactionToResponse(txn))
}

// Reverse compensates a completed transaction with an opposite movement
func (h *PaymentHandler) Reverse(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		RespondBadRequest(c, "Invalid transaction ID")
		return
	}

	var req ReverseTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	reversal, err := h.paymentService.Reverse(c.Request.Context(), id, req.Reason)
	if err != nil {
		var notFoundErr payment.ErrTransactionNotFound
		if errors.As(err, &notFoundErr) {
			RespondNotFound(c, "Transaction not found")
			return
		}
		var alreadyErr payment.ErrAlreadyReversed
		if errors.As(err, &alreadyErr) {
			RespondConflict(c, "ALREADY_REVERSED", err.Error())
			return
		}
		h.logger.Error("Failed to reverse transaction", "id", idParam, "error", err)
		RespondUnprocessable(c, "NOT_REVERSIBLE", err.Error())
		return
	}

	RespondCreated(c, mapTransactionToResponse(reversal))
}

// ValidateAccount checks a destination account without moving money
func (h *PaymentHandler) ValidateAccount(c *gin.Context) {
	var req ValidateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.paymentService.ValidateAccount(c.Request.Context(), shared.RailKind(req.Rail), &shared.RecipientDetails{
		AccountNumber: req.AccountNumber,
		BankCode:      req.BankCode,
		Provider:      req.Provider,
		Reference:     req.Reference,
		CountryCode:   req.CountryCode,
	})
	if err != nil {
		var notFoundErr validator.ErrAccountNotFound
		if errors.As(err, &notFoundErr) {
			RespondNotFound(c, "Account not found")
			return
		}
		var unavailableErr validator.ErrLookupUnavailable
		if errors.As(err, &unavailableErr) {
			RespondServiceUnavailable(c, "Account lookup temporarily unavailable")
			return
		}
		RespondBadRequest(c, err.Error())
		return
	}

	RespondOK(c, gin.H{"valid": true, "account_name": result.AccountName})
}

// execute runs the request through the orchestrator and maps the outcome to
// an HTTP status: 200 completed, 202 awaiting callback, 4xx/5xx by failure code
func (h *PaymentHandler) execute(c *gin.Context, req *shared.PaymentRequest) {
	req.TransactionID = uuid.New()

	result, err := h.paymentService.Execute(c.Request.Context(), req)
	if err != nil {
		var conflictErr idempotency.ErrKeyConflict
		if errors.As(err, &conflictErr) {
			RespondConflict(c, string(shared.FailureCodeIdempotencyKeyConflict), "Idempotency key was already used with a different payload")
			return
		}
		var inFlightErr guard.ErrKeyInFlight
		if errors.As(err, &inFlightErr) {
			RespondConflict(c, "REQUEST_IN_FLIGHT", "A request with this idempotency key is still being processed")
			return
		}
		h.logger.Error("Failed to execute payment", "error", err)
		RespondInternalError(c)
		return
	}

	response := mapResultToResponse(result)
	switch result.Status {
	case shared.TransactionStatusAwaitingCallback:
		RespondAccepted(c, response)
	case shared.TransactionStatusFailed:
		respondFailure(c, result, response)
	default:
		RespondWithData(c, http.StatusOK, response)
	}
}

// respondFailure maps a terminal failure code to its HTTP status
func respondFailure(c *gin.Context, result *orchestrator.Result, response PaymentResponse) {
	status := http.StatusUnprocessableEntity
	switch result.FailureCode {
	case shared.FailureCodeInvalidRecipient:
		status = http.StatusBadRequest
	case shared.FailureCodeAccountNotFound:
		status = http.StatusNotFound
	case shared.FailureCodeProviderUnavailable:
		status = http.StatusServiceUnavailable
	case shared.FailureCodeUnknownError:
		status = http.StatusInternalServerError
	}
	RespondWithData(c, status, response)
}

func idempotencyKey(c *gin.Context, bodyKey string) string {
	if headerKey := c.GetHeader(IdempotencyKeyHeader); headerKey != "" {
		return headerKey
	}
	if bodyKey != "" {
		return bodyKey
	}
	return uuid.New().String()
}

// railForMethod maps a funding method to its rail. Clients say bank; the
// rail registry says bank_transfer.
func railForMethod(method string) shared.RailKind {
	if method == "bank" {
		return shared.RailBankTransfer
	}
	return shared.RailKind(method)
}

func recipientFromPayload(p RecipientPayload) *shared.RecipientDetails {
	return &shared.RecipientDetails{
		AccountNumber: p.AccountNumber,
		BankCode:      p.BankCode,
		Provider:      p.Provider,
		Reference:     p.Reference,
		CountryCode:   p.CountryCode,
	}
}

func mapResultToResponse(result *orchestrator.Result) PaymentResponse {
	response := PaymentResponse{
		Status:        string(result.Status),
		ProviderRef:   result.ProviderRef,
		FailureCode:   string(result.FailureCode),
		FailureReason: result.FailureReason,
		ValidatedName: result.ValidatedName,
		Replayed:      result.Replayed,
	}
	if result.TransactionID != uuid.Nil {
		response.TransactionID = result.TransactionID.String()
	}
	return response
}

// mapTransactionToResponse maps a ledger transaction to a response DTO
func mapTransactionToResponse(txn *payment.Transaction) TransactionResponse {
	response := TransactionResponse{
		ID:              txn.ID.String(),
		WalletID:        txn.WalletID.String(),
		Type:            string(txn.Type),
		Direction:       string(txn.Direction),
		Amount:          txn.Amount,
		Currency:        txn.Currency,
		Status:          string(txn.Status),
		CounterpartyRef: txn.CounterpartyRef,
		ProviderRef:     txn.ProviderRef,
		FailureReason:   txn.FailureReason,
		CreatedAt:       txn.CreatedAt.Format(time.RFC3339),
	}
	if txn.ReversalOf != nil {
		response.ReversalOf = txn.ReversalOf.String()
	}
	if txn.CompletedAt != nil {
		response.CompletedAt = txn.CompletedAt.Format(time.RFC3339)
	}
	return response
}
