package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vaultpay/payment-core/internal/domain/idempotency"
	"github.com/vaultpay/payment-core/internal/domain/shared"
	"github.com/vaultpay/payment-core/internal/platform/persistence"
)

const uniqueViolationCode = "23505"

// IdempotencyRepository implements the idempotency.Repository interface for
// PostgreSQL. The primary key on the key column is what makes Insert an
// atomic insert-if-absent across concurrent requests.
type IdempotencyRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewIdempotencyRepository creates a new PostgreSQL idempotency repository
func NewIdempotencyRepository(logger *slog.Logger, db *persistence.PostgresDB) idempotency.Repository {
	return &IdempotencyRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *IdempotencyRepository) WithTx(tx pgx.Tx) idempotency.Repository {
	return &IdempotencyRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Insert registers a new idempotency record. Returns ErrDuplicateKey when the
// key is already registered, which callers resolve into a replay or conflict.
func (r *IdempotencyRepository) Insert(ctx context.Context, record *idempotency.Record) error {
	query := `
		INSERT INTO idempotency_records (key, request_hash, transaction_id, failure_code, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.querier.Exec(ctx, query,
		record.Key,
		record.RequestHash,
		record.TransactionID,
		record.FailureCode,
		record.CreatedAt,
		record.ExpiresAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return idempotency.ErrDuplicateKey{Key: record.Key}
		}
		r.logger.Error("Failed to insert idempotency record", "key", record.Key, "error", err)
		return fmt.Errorf("failed to insert idempotency record: %w", err)
	}

	return nil
}

// Get retrieves an idempotency record by key
func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*idempotency.Record, error) {
	query := `
		SELECT key, request_hash, transaction_id, failure_code, created_at, expires_at
		FROM idempotency_records
		WHERE key = $1
	`

	var record idempotency.Record
	err := r.querier.QueryRow(ctx, query, key).Scan(
		&record.Key,
		&record.RequestHash,
		&record.TransactionID,
		&record.FailureCode,
		&record.CreatedAt,
		&record.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, idempotency.ErrRecordNotFound{Key: key}
		}
		r.logger.Error("Failed to get idempotency record", "key", key, "error", err)
		return nil, fmt.Errorf("failed to get idempotency record: %w", err)
	}

	return &record, nil
}

// SetResult stores the outcome of the execution pinned to a key
func (r *IdempotencyRepository) SetResult(ctx context.Context, key string, transactionID *uuid.UUID, failureCode shared.FailureCode) error {
	query := `
		UPDATE idempotency_records
		SET transaction_id = $1, failure_code = $2
		WHERE key = $3
	`

	result, err := r.querier.Exec(ctx, query, transactionID, failureCode, key)
	if err != nil {
		r.logger.Error("Failed to set idempotency record result", "key", key, "error", err)
		return fmt.Errorf("failed to set idempotency record result: %w", err)
	}

	if result.RowsAffected() == 0 {
		return idempotency.ErrRecordNotFound{Key: key}
	}

	return nil
}

// Reclaim takes over a stale in-flight record. The WHERE clause is the
// atomicity: only a record still without an outcome and registered before
// staleBefore matches, so concurrent reclaimers race on one UPDATE and a
// single winner sees an affected row.
func (r *IdempotencyRepository) Reclaim(ctx context.Context, key string, staleBefore time.Time, ttl time.Duration) (bool, error) {
	query := `
		UPDATE idempotency_records
		SET created_at = $1, expires_at = $2
		WHERE key = $3
		  AND transaction_id IS NULL
		  AND (failure_code IS NULL OR failure_code = '')
		  AND created_at < $4
	`

	now := time.Now()
	result, err := r.querier.Exec(ctx, query, now, now.Add(ttl), key, staleBefore)
	if err != nil {
		r.logger.Error("Failed to reclaim idempotency record", "key", key, "error", err)
		return false, fmt.Errorf("failed to reclaim idempotency record: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// DeleteExpired removes records whose deduplication window has passed and
// returns the number of rows removed
func (r *IdempotencyRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM idempotency_records
		WHERE expires_at < $1
	`

	result, err := r.querier.Exec(ctx, query, now)
	if err != nil {
		r.logger.Error("Failed to delete expired idempotency records", "error", err)
		return 0, fmt.Errorf("failed to delete expired idempotency records: %w", err)
	}

	return result.RowsAffected(), nil
}
