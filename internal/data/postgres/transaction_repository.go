package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vaultpay/payment-core/internal/domain/payment"
	"github.com/vaultpay/payment-core/internal/domain/shared"
	"github.com/vaultpay/payment-core/internal/platform/persistence"
)

const transactionColumns = `id, wallet_id, type, direction, amount, currency, status,
		counterparty_ref, provider_ref, idempotency_key, failure_reason, reversal_of,
		correlation_id, created_at, completed_at`

// TransactionRepository implements payment.TransactionRepository for PostgreSQL
type TransactionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewTransactionRepository creates a new PostgreSQL transaction repository
func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) payment.TransactionRepository {
	return &TransactionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *TransactionRepository) WithTx(tx pgx.Tx) payment.TransactionRepository {
	return &TransactionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new transaction record
func (r *TransactionRepository) Create(ctx context.Context, txn *payment.Transaction) error {
	query := `
		INSERT INTO transactions (id, wallet_id, type, direction, amount, currency, status,
			counterparty_ref, provider_ref, idempotency_key, failure_reason, reversal_of,
			correlation_id, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.querier.Exec(ctx, query,
		txn.ID,
		txn.WalletID,
		txn.Type,
		txn.Direction,
		txn.Amount,
		txn.Currency,
		txn.Status,
		txn.CounterpartyRef,
		txn.ProviderRef,
		txn.IdempotencyKey,
		txn.FailureReason,
		txn.ReversalOf,
		txn.CorrelationID,
		txn.CreatedAt,
		txn.CompletedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create transaction", "id", txn.ID.String(), "error", err)
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a transaction by its ID
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id = $1
	`

	txn, err := r.scanOne(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrTransactionNotFound{TransactionID: id}
		}
		r.logger.Error("Failed to get transaction", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return txn, nil
}

// GetByIdempotencyKey retrieves a transaction using its idempotency key.
// Returns nil when no transaction exists for the key.
func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, idempotencyKey string) (*payment.Transaction, error) {
	if idempotencyKey == "" {
		return nil, errors.New("idempotency key cannot be empty")
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE idempotency_key = $1 AND reversal_of IS NULL
	`

	txn, err := r.scanOne(r.querier.QueryRow(ctx, query, idempotencyKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // No transaction with this idempotency key
		}
		r.logger.Error("Failed to get transaction by idempotency key", "idempotency_key", idempotencyKey, "error", err)
		return nil, fmt.Errorf("failed to get transaction by idempotency key: %w", err)
	}

	return txn, nil
}

// GetReversalOf retrieves the compensating transaction for an original, if any.
// Returns nil when the original has not been reversed.
func (r *TransactionRepository) GetReversalOf(ctx context.Context, originalID uuid.UUID) (*payment.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE reversal_of = $1
	`

	txn, err := r.scanOne(r.querier.QueryRow(ctx, query, originalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get reversal transaction", "original_id", originalID.String(), "error", err)
		return nil, fmt.Errorf("failed to get reversal transaction: %w", err)
	}

	return txn, nil
}

// SetStatus transitions a transaction and stamps completed_at for terminal
// states. Terminal rows are never modified again: the WHERE clause refuses
// to touch transactions that already reached COMPLETED, FAILED or REVERSED,
// except for the COMPLETED -> REVERSED transition driven by reversals.
func (r *TransactionRepository) SetStatus(ctx context.Context, id uuid.UUID, status shared.TransactionStatus, providerRef, failureReason string) error {
	var completedAt *time.Time
	if status.IsTerminal() {
		now := time.Now()
		completedAt = &now
	}

	query := `
		UPDATE transactions
		SET status = $1,
			provider_ref = CASE WHEN $2 <> '' THEN $2 ELSE provider_ref END,
			failure_reason = $3,
			completed_at = COALESCE($4, completed_at)
		WHERE id = $5
		  AND (status NOT IN ('COMPLETED', 'FAILED', 'REVERSED')
			   OR (status = 'COMPLETED' AND $1 = 'REVERSED'))
	`

	result, err := r.querier.Exec(ctx, query, status, providerRef, failureReason, completedAt, id)
	if err != nil {
		r.logger.Error("Failed to set transaction status", "id", id.String(), "status", string(status), "error", err)
		return fmt.Errorf("failed to set transaction status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return payment.ErrTransactionNotFound{TransactionID: id}
	}

	return nil
}

func (r *TransactionRepository) scanOne(row pgx.Row) (*payment.Transaction, error) {
	var txn payment.Transaction
	err := row.Scan(
		&txn.ID,
		&txn.WalletID,
		&txn.Type,
		&txn.Direction,
		&txn.Amount,
		&txn.Currency,
		&txn.Status,
		&txn.CounterpartyRef,
		&txn.ProviderRef,
		&txn.IdempotencyKey,
		&txn.FailureReason,
		&txn.ReversalOf,
		&txn.CorrelationID,
		&txn.CreatedAt,
		&txn.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}
