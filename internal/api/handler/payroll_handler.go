package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vaultpay/payment-core/internal/api/service"
	"github.com/vaultpay/payment-core/internal/domain/payroll"
	"github.com/vaultpay/payment-core/internal/domain/shared"
)

// PayrollHandler handles HTTP requests for payroll operations
type PayrollHandler struct {
	payrollService service.PayrollService
	logger         *slog.Logger
}

// NewPayrollHandler creates a new payroll handler
func NewPayrollHandler(logger *slog.Logger, payrollService service.PayrollService) *PayrollHandler {
	return &PayrollHandler{
		payrollService: payrollService,
		logger:         logger,
	}
}

// CreateEntry registers a pending payroll entry
func (h *PayrollHandler) CreateEntry(c *gin.Context) {
	var req CreatePayrollEntryRequest
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

	entry, err := h.payrollService.CreateEntry(
		c.Request.Context(),
		req.EmployeeID,
		req.EmployeeName,
		walletID,
		req.Salary,
		req.Bonus,
		req.Deductions,
		req.Currency,
		shared.RecipientDetails{
			AccountNumber: req.Recipient.AccountNumber,
			BankCode:      req.Recipient.BankCode,
			CountryCode:   req.Recipient.CountryCode,
		},
	)
	if err != nil {
		if errors.Is(err, payroll.ErrEmptyEmployeeID) || errors.Is(err, payroll.ErrNegativePay) {
			RespondBadRequest(c, err.Error())
			return
		}
		h.logger.Error("Failed to create payroll entry", "error", err)
		RespondInternalError(c)
		return
	}

	RespondCreated(c, mapEntryToResponse(entry))
}

// UpdateEntry edits the pay components of a pending entry
func (h *PayrollHandler) UpdateEntry(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		RespondBadRequest(c, "Invalid entry ID")
		return
	}

	var req UpdatePayrollEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	entry, err := h.payrollService.UpdateEntryAmounts(c.Request.Context(), id, req.Salary, req.Bonus, req.Deductions)
	if err != nil {
		var notFoundErr payroll.ErrEntryNotFound
		if errors.As(err, &notFoundErr) {
			RespondNotFound(c, "Payroll entry not found")
			return
		}
		if errors.Is(err, payroll.ErrEntryNotPending) {
			RespondConflict(c, "ENTRY_NOT_PENDING", "Only pending entries can be edited")
			return
		}
		if errors.Is(err, payroll.ErrNegativePay) {
			RespondBadRequest(c, err.Error())
			return
		}
		h.logger.Error("Failed to update payroll entry", "id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapEntryToResponse(entry))
}

// ListEntries returns payroll entries, newest first
func (h *PayrollHandler) ListEntries(c *gin.Context) {
	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	offset := (pagination.Page - 1) * pagination.PerPage
	entries, err := h.payrollService.ListEntries(c.Request.Context(), pagination.PerPage, offset)
	if err != nil {
		h.logger.Error("Failed to list payroll entries", "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]PayrollEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, mapEntryToResponse(entry))
	}
	RespondWithData(c, http.StatusOK, responses)
}

// Process runs a disbursement batch over all pending entries
func (h *PayrollHandler) Process(c *gin.Context) {
	summary, err := h.payrollService.ProcessPending(c.Request.Context())
	if err != nil {
		h.logger.Error("Payroll run failed", "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, summary)
}

// PayEntry disburses a single pending entry
func (h *PayrollHandler) PayEntry(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		RespondBadRequest(c, "Invalid entry ID")
		return
	}

	entry, err := h.payrollService.PayEntry(c.Request.Context(), id)
	if err != nil {
		var notFoundErr payroll.ErrEntryNotFound
		if errors.As(err, &notFoundErr) {
			RespondNotFound(c, "Payroll entry not found")
			return
		}
		if errors.Is(err, payroll.ErrEntryNotPending) {
			RespondConflict(c, "ENTRY_NOT_PENDING", "Entry was already picked up or settled")
			return
		}
		h.logger.Error("Failed to pay payroll entry", "id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapEntryToResponse(entry))
}

// mapEntryToResponse maps a payroll entry to a response DTO
func mapEntryToResponse(entry *payroll.Entry) PayrollEntryResponse {
	response := PayrollEntryResponse{
		ID:            entry.ID.String(),
		EmployeeID:    entry.EmployeeID,
		EmployeeName:  entry.EmployeeName,
		WalletID:      entry.WalletID.String(),
		Salary:        entry.Salary,
		Bonus:         entry.Bonus,
		Deductions:    entry.Deductions,
		NetPay:        entry.NetPay,
		Currency:      entry.Currency,
		Status:        string(entry.Status),
		FailureReason: entry.FailureReason,
		CreatedAt:     entry.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     entry.UpdatedAt.Format(time.RFC3339),
	}
	if entry.TransactionID != nil {
		response.TransactionID = entry.TransactionID.String()
	}
	return response
}
