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

// ReservationRepository implements payment.ReservationRepository for PostgreSQL
type ReservationRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewReservationRepository creates a new PostgreSQL reservation repository
func NewReservationRepository(logger *slog.Logger, db *persistence.PostgresDB) payment.ReservationRepository {
	return &ReservationRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *ReservationRepository) WithTx(tx pgx.Tx) payment.ReservationRepository {
	return &ReservationRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new reservation in OPEN state
func (r *ReservationRepository) Create(ctx context.Context, rsv *payment.Reservation) error {
	query := `
		INSERT INTO reservations (id, transaction_id, wallet_id, amount, direction, state, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.querier.Exec(ctx, query,
		rsv.ID,
		rsv.TransactionID,
		rsv.WalletID,
		rsv.Amount,
		rsv.Direction,
		rsv.State,
		rsv.CreatedAt,
		rsv.ResolvedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create reservation",
			"id", rsv.ID.String(),
			"transaction_id", rsv.TransactionID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	return nil
}

// GetByID retrieves a reservation by its ID
func (r *ReservationRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Reservation, error) {
	query := `
		SELECT id, transaction_id, wallet_id, amount, direction, state, created_at, resolved_at
		FROM reservations
		WHERE id = $1
	`

	rsv, err := r.scanOne(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrReservationNotFound{ReservationID: id}
		}
		r.logger.Error("Failed to get reservation", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}

	return rsv, nil
}

// GetByTransactionID retrieves the reservation that holds funds for a transaction
func (r *ReservationRepository) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*payment.Reservation, error) {
	query := `
		SELECT id, transaction_id, wallet_id, amount, direction, state, created_at, resolved_at
		FROM reservations
		WHERE transaction_id = $1
	`

	rsv, err := r.scanOne(r.querier.QueryRow(ctx, query, transactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrReservationNotFound{}
		}
		r.logger.Error("Failed to get reservation by transaction",
			"transaction_id", transactionID.String(),
			"error", err,
		)
		return nil, fmt.Errorf("failed to get reservation by transaction: %w", err)
	}

	return rsv, nil
}

// SetState resolves a reservation. OPEN is the only state this will move
// from; COMMITTED and RELEASED rows stay as written.
func (r *ReservationRepository) SetState(ctx context.Context, id uuid.UUID, state shared.ReservationState) error {
	query := `
		UPDATE reservations
		SET state = $1, resolved_at = $2
		WHERE id = $3 AND state = 'OPEN'
	`

	result, err := r.querier.Exec(ctx, query, state, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to set reservation state",
			"id", id.String(),
			"state", string(state),
			"error", err,
		)
		return fmt.Errorf("failed to set reservation state: %w", err)
	}

	if result.RowsAffected() == 0 {
		return payment.ErrReservationNotFound{ReservationID: id}
	}

	return nil
}

func (r *ReservationRepository) scanOne(row pgx.Row) (*payment.Reservation, error) {
	var rsv payment.Reservation
	err := row.Scan(
		&rsv.ID,
		&rsv.TransactionID,
		&rsv.WalletID,
		&rsv.Amount,
		&rsv.Direction,
		&rsv.State,
		&rsv.CreatedAt,
		&rsv.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rsv, nil
}
