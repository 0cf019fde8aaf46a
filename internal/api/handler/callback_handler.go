package handler

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vaultpay/payment-core/internal/api/middleware"
	"github.com/vaultpay/payment-core/internal/domain/shared"
	"github.com/vaultpay/payment-core/internal/platform/messaging/producers"
)

// CallbackHandler ingests provider webhooks. The callback is published to
// Kafka and resolved by the callback processor; the webhook never touches
// the ledger directly, so a slow database cannot stall the provider.
type CallbackHandler struct {
	producer producers.MessagePublisher
	logger   *slog.Logger
}

// NewCallbackHandler creates a new callback handler
func NewCallbackHandler(logger *slog.Logger, producer producers.MessagePublisher) *CallbackHandler {
	return &CallbackHandler{
		producer: producer,
		logger:   logger,
	}
}

// Receive accepts a provider settlement webhook and queues it for resolution
func (h *CallbackHandler) Receive(c *gin.Context) {
	var req ProviderCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid callback payload", "error", err)
		RespondBadRequest(c, "Invalid callback payload: "+err.Error())
		return
	}

	transactionID, err := uuid.Parse(req.TransactionID)
	if err != nil {
		RespondBadRequest(c, "Invalid transaction ID")
		return
	}

	event := &shared.CallbackEvent{
		TransactionID: transactionID,
		ProviderRef:   req.ProviderRef,
		Succeeded:     req.Status == "succeeded",
		Reason:        req.Reason,
		CorrelationID: middleware.GetCorrelationID(c),
		Timestamp:     time.Now(),
	}

	if err := h.producer.Publish(c.Request.Context(), transactionID.String(), event); err != nil {
		h.logger.Error("Failed to queue provider callback",
			"transaction_id", req.TransactionID,
			"error", err,
		)
		RespondServiceUnavailable(c, "Callback could not be queued, retry later")
		return
	}

	h.logger.Info("Provider callback queued",
		"transaction_id", req.TransactionID,
		"succeeded", event.Succeeded,
	)
	RespondAccepted(c, gin.H{"transaction_id": req.TransactionID, "queued": true})
}
