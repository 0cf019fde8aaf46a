package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vaultpay/payment-core/internal/domain/history"
)

const (
	// HistoryCollectionName is the name of the transaction-history collection in MongoDB
	HistoryCollectionName = "transaction_history"
)

// HistoryRepository implements the history.Repository interface for MongoDB
type HistoryRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewHistoryRepository creates a new MongoDB transaction-history repository
func NewHistoryRepository(logger *slog.Logger, db *mongo.Database) history.Repository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert writes a history record keyed by transaction ID. Replaying the same
// transaction overwrites the previous projection, which keeps the poller's
// at-least-once delivery safe.
func (r *HistoryRepository) Upsert(ctx context.Context, record *history.Record) error {
	collection := r.db.Collection(HistoryCollectionName)

	filter := bson.M{"transaction_id": record.TransactionID}
	opts := options.Replace().SetUpsert(true)

	_, err := collection.ReplaceOne(ctx, filter, record, opts)
	if err != nil {
		r.logger.Error("Failed to upsert history record",
			"transaction_id", record.TransactionID.String(),
			"error", err)
		return fmt.Errorf("failed to upsert history record: %w", err)
	}

	return nil
}

// GetByTransactionID retrieves a history record by its transaction ID.
// Returns ErrRecordNotFound if no record exists for the given transaction.
func (r *HistoryRepository) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*history.Record, error) {
	collection := r.db.Collection(HistoryCollectionName)

	filter := bson.M{"transaction_id": transactionID}
	var record history.Record
	err := collection.FindOne(ctx, filter).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, history.ErrRecordNotFound{TransactionID: transactionID}
		}
		r.logger.Error("Failed to get history record",
			"transaction_id", transactionID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get history record: %w", err)
	}

	return &record, nil
}

// GetByWalletID retrieves paginated history records for a wallet.
// Results are sorted by creation time in descending order (newest first).
func (r *HistoryRepository) GetByWalletID(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*history.Record, error) {
	collection := r.db.Collection(HistoryCollectionName)

	filter := bson.M{"wallet_id": walletID}
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get history records",
			"wallet_id", walletID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get history records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*history.Record
	if err := cursor.All(ctx, &records); err != nil {
		r.logger.Error("Failed to decode history records",
			"wallet_id", walletID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode history records: %w", err)
	}

	return records, nil
}

// CountByWalletID counts the total number of history records for a wallet
func (r *HistoryRepository) CountByWalletID(ctx context.Context, walletID uuid.UUID) (int64, error) {
	collection := r.db.Collection(HistoryCollectionName)

	filter := bson.M{"wallet_id": walletID}
	count, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to count history records",
			"wallet_id", walletID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to count history records: %w", err)
	}

	return count, nil
}

// GetByTimeRange retrieves paginated history records within the specified time window.
// Results are sorted by creation time in descending order for recent-first access.
func (r *HistoryRepository) GetByTimeRange(ctx context.Context, startTime, endTime time.Time, limit, offset int) ([]*history.Record, error) {
	collection := r.db.Collection(HistoryCollectionName)

	filter := bson.M{
		"created_at": bson.M{
			"$gte": startTime,
			"$lte": endTime,
		},
	}
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get history records by time range",
			"start_time", startTime,
			"end_time", endTime,
			"error", err)
		return nil, fmt.Errorf("failed to get history records by time range: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*history.Record
	if err := cursor.All(ctx, &records); err != nil {
		r.logger.Error("Failed to decode history records",
			"start_time", startTime,
			"end_time", endTime,
			"error", err)
		return nil, fmt.Errorf("failed to decode history records: %w", err)
	}

	return records, nil
}
