package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vaultpay/payment-core/internal/callback_processor/service"
	"github.com/vaultpay/payment-core/internal/domain/payment"
	"github.com/vaultpay/payment-core/internal/domain/shared"
	"github.com/vaultpay/payment-core/internal/platform/messaging/producers"
)

// CallbackEventHandler handles provider callback messages from Kafka
type CallbackEventHandler struct {
	resolutionService service.ResolutionService
	producer          producers.DeadLetterPublisher
	logger            *slog.Logger
}

// NewCallbackEventHandler creates a new handler
func NewCallbackEventHandler(
	logger *slog.Logger,
	resolutionService service.ResolutionService,
	producer producers.DeadLetterPublisher,
) *CallbackEventHandler {
	return &CallbackEventHandler{
		resolutionService: resolutionService,
		producer:          producer,
		logger:            logger,
	}
}

// HandleMessage processes Kafka messages
func (h *CallbackEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var event shared.CallbackEvent
	if err := json.Unmarshal(value, &event); err != nil {
		unmarshalErrorMsg := "Failed to unmarshal callback event from Kafka message"
		h.logger.Error(unmarshalErrorMsg,
			"error", err,
			"message_key", string(key),
		)

		reason := fmt.Sprintf("%s: %s", unmarshalErrorMsg, err.Error())
		if h.parkMessage(ctx, string(key), value, reason) {
			// Message handled, commit offset
			return nil
		}
		// Allow Kafka retries
		return fmt.Errorf("failed to unmarshal message value: %w", err)
	}

	logger := h.logger
	if event.CorrelationID != "" {
		logger = h.logger.With("correlation_id", event.CorrelationID)
	}

	logger.Info("Received provider callback for resolution",
		"transaction_id", event.TransactionID.String(),
		"provider_ref", event.ProviderRef,
		"succeeded", event.Succeeded,
	)

	if err := h.resolutionService.ResolveCallback(ctx, &event); err != nil {
		// A callback naming an unknown transaction will never resolve, no
		// matter how often it is redelivered. Park it instead of looping.
		if errors.Is(err, payment.ErrTransactionNotFound{}) {
			logger.Warn("Callback names an unknown transaction, sending to DLQ",
				"transaction_id", event.TransactionID.String(),
			)
			if h.parkMessage(ctx, string(key), value, err.Error()) {
				return nil
			}
		}

		logger.Error("Failed to resolve callback",
			"transaction_id", event.TransactionID.String(),
			"error", err,
		)
		return fmt.Errorf("resolving callback %s failed: %w", event.TransactionID.String(), err)
	}

	logger.Info("Successfully resolved callback", "transaction_id", event.TransactionID.String())
	return nil // Success, commit offset
}

// parkMessage publishes an unprocessable message to the DLQ. Returns true
// when the message is safely parked and the offset can be committed.
func (h *CallbackEventHandler) parkMessage(ctx context.Context, key string, value []byte, reason string) bool {
	if h.producer == nil {
		return false
	}

	if err := h.producer.PublishToDLQ(ctx, key, value, reason); err != nil {
		h.logger.Error("Failed to publish message to DLQ",
			"dlq_error", err,
			"message_key", key,
			"reason", reason,
		)
		return false
	}

	h.logger.Info("Published unprocessable message to DLQ", "message_key", key, "reason", reason)
	return true
}
