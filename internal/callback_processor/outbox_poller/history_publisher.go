package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vaultpay/payment-core/internal/domain/history"
	"github.com/vaultpay/payment-core/internal/domain/outbox"
	"github.com/vaultpay/payment-core/internal/domain/payment"
	"github.com/vaultpay/payment-core/internal/domain/shared"
	"github.com/vaultpay/payment-core/internal/platform/messaging/producers"
)

// HistoryPublisher projects an outbox message into the read model and the
// payment events topic
type HistoryPublisher interface {
	PublishToHistory(ctx context.Context, message *outbox.Message) error
}

// TransactionEvent is the envelope written to the payment events topic
type TransactionEvent struct {
	EventType   string               `json:"event_type"`
	Transaction *payment.Transaction `json:"transaction"`
	EmittedAt   time.Time            `json:"emitted_at"`
}

func eventTypeFor(status shared.TransactionStatus) string {
	switch status {
	case shared.TransactionStatusCompleted:
		return "payment.completed"
	case shared.TransactionStatusFailed:
		return "payment.failed"
	case shared.TransactionStatusReversed:
		return "payment.reversed"
	default:
		return "payment.updated"
	}
}

// HistoryPublisherImpl implements HistoryPublisher
type HistoryPublisherImpl struct {
	outboxRepo  outbox.Repository
	historyRepo history.Repository
	events      producers.MessagePublisher
	logger      *slog.Logger
}

// NewHistoryPublisher creates a new publisher
func NewHistoryPublisher(
	outboxRepo outbox.Repository,
	historyRepo history.Repository,
	events producers.MessagePublisher,
	logger *slog.Logger,
) HistoryPublisher {
	return &HistoryPublisherImpl{
		outboxRepo:  outboxRepo,
		historyRepo: historyRepo,
		events:      events,
		logger:      logger,
	}
}

// PublishToHistory upserts the history record, emits the payment event, and
// marks the outbox row processed. Every step is idempotent, so a crash
// between them only causes a duplicate write on the next poll.
func (p *HistoryPublisherImpl) PublishToHistory(ctx context.Context, message *outbox.Message) error {
	txn, err := message.GetTransaction()
	if err != nil {
		p.logger.Error("Failed to unmarshal transaction from outbox payload",
			"outbox_id", message.ID, "transaction_id", message.TransactionID, "error", err,
		)
		// A malformed payload will never publish. Park the row so the poller
		// stops retrying it.
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after unmarshal error", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("unmarshal payload for outbox %d failed: %w", message.ID, err)
	}

	logger := p.logger
	if txn.CorrelationID != "" {
		logger = p.logger.With("correlation_id", txn.CorrelationID)
	}

	logger.Info("Projecting outbox message into transaction history",
		"outbox_id", message.ID, "transaction_id", message.TransactionID, "status", txn.Status,
	)

	record := history.NewRecord(txn)
	if err := p.historyRepo.Upsert(ctx, record); err != nil {
		logger.Error("Failed to upsert history record", "transaction_id", txn.ID, "error", err)
		return fmt.Errorf("failed to upsert history record %s: %w", txn.ID, err)
	}

	event := &TransactionEvent{
		EventType:   eventTypeFor(txn.Status),
		Transaction: txn,
		EmittedAt:   time.Now().UTC(),
	}
	// Keyed by wallet so consumers see a wallet's events in order
	if err := p.events.Publish(ctx, txn.WalletID.String(), event); err != nil {
		logger.Error("Failed to publish payment event", "transaction_id", txn.ID, "error", err)
		return fmt.Errorf("failed to publish payment event for %s: %w", txn.ID, err)
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED",
			"outbox_id", message.ID, "transaction_id", message.TransactionID, "error", err,
		)
		return fmt.Errorf("history write for %s OK, but failed to mark outbox %d as PROCESSED: %w", message.TransactionID, message.ID, err)
	}

	logger.Info("Outbox message projected and marked as PROCESSED", "outbox_id", message.ID, "transaction_id", message.TransactionID)
	return nil
}
