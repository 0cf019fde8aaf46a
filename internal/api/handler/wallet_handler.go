package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vaultpay/payment-core/internal/api/service"
	"github.com/vaultpay/payment-core/internal/domain/history"
	"github.com/vaultpay/payment-core/internal/domain/wallet"
)

// WalletHandler handles HTTP requests for wallet operations
type WalletHandler struct {
	walletService  service.WalletService
	historyService service.HistoryService
	logger         *slog.Logger
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(logger *slog.Logger, walletService service.WalletService, historyService service.HistoryService) *WalletHandler {
	return &WalletHandler{
		walletService:  walletService,
		historyService: historyService,
		logger:         logger,
	}
}

// Create handles creation of a new wallet
func (h *WalletHandler) Create(c *gin.Context) {
	var req CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	w, err := h.walletService.CreateWallet(c.Request.Context(), req.OwnerID, req.Currency, req.OpeningBalance)
	if err != nil {
		if errors.Is(err, wallet.ErrEmptyOwnerID) || errors.Is(err, wallet.ErrInvalidCurrencyFormat) || errors.Is(err, wallet.ErrInvalidAmount) {
			RespondBadRequest(c, err.Error())
			return
		}
		h.logger.Error("Failed to create wallet", "error", err)
		RespondInternalError(c)
		return
	}

	RespondCreated(c, mapWalletToResponse(w))
}

// GetByID retrieves a wallet with its balance breakdown, returns 404 if not found
func (h *WalletHandler) GetByID(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		RespondBadRequest(c, "Invalid wallet ID")
		return
	}

	w, err := h.walletService.GetWallet(c.Request.Context(), id)
	if err != nil {
		var notFoundErr wallet.ErrWalletNotFound
		if errors.As(err, &notFoundErr) {
			RespondNotFound(c, "Wallet not found")
			return
		}
		h.logger.Error("Failed to get wallet", "id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapWalletToResponse(w))
}

// GetTransactions retrieves paginated transaction history for a wallet from
// the read model
func (h *WalletHandler) GetTransactions(c *gin.Context) {
	idParam := c.Param("id")
	walletID, err := uuid.Parse(idParam)
	if err != nil {
		RespondBadRequest(c, "Invalid wallet ID")
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	records, total, err := h.historyService.GetWalletHistory(
		c.Request.Context(),
		walletID,
		pagination.Page,
		pagination.PerPage,
	)
	if err != nil {
		h.logger.Error("Failed to get wallet history", "wallet_id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	if records == nil {
		records = []*history.Record{}
	}
	RespondWithPaginatedData(c, http.StatusOK, records, pagination.Page, pagination.PerPage, int(total))
}

// mapWalletToResponse maps a wallet entity to a wallet response DTO
func mapWalletToResponse(w *wallet.Wallet) WalletResponse {
	return WalletResponse{
		ID:        w.ID.String(),
		OwnerID:   w.OwnerID,
		Currency:  w.Currency,
		Balance:   w.Balance,
		Reserved:  w.Reserved,
		Available: w.Available(),
		CreatedAt: w.CreatedAt.Format(time.RFC3339),
		UpdatedAt: w.UpdatedAt.Format(time.RFC3339),
	}
}
