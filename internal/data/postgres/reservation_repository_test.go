package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaultpay/payment-core/internal/domain/payment"
	"github.com/vaultpay/payment-core/internal/domain/shared"
)

func TestReservationRepository_Create(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &ReservationRepository{querier: mock, logger: logger}

	rsv := &payment.Reservation{
		ID:            uuid.New(),
		TransactionID: uuid.New(),
		WalletID:      uuid.New(),
		Amount:        5000,
		Direction:     shared.DirectionDebit,
		State:         shared.ReservationStateOpen,
		CreatedAt:     time.Now(),
	}

	query := `
		INSERT INTO reservations \(id, transaction_id, wallet_id, amount, direction, state, created_at, resolved_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8\)
	`

	mock.ExpectExec(query).
		WithArgs(rsv.ID, rsv.TransactionID, rsv.WalletID, rsv.Amount, rsv.Direction, rsv.State, rsv.CreatedAt, rsv.ResolvedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(ctx, rsv)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepository_GetByTransactionID(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &ReservationRepository{querier: mock, logger: logger}
	txnID := uuid.New()

	query := `
		SELECT id, transaction_id, wallet_id, amount, direction, state, created_at, resolved_at
		FROM reservations
		WHERE transaction_id = \$1
	`

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"id", "transaction_id", "wallet_id", "amount", "direction", "state", "created_at", "resolved_at"}).
			AddRow(uuid.New(), txnID, uuid.New(), int64(5000), shared.DirectionDebit, shared.ReservationStateOpen, time.Now(), nil)
		mock.ExpectQuery(query).WithArgs(txnID).WillReturnRows(rows)

		rsv, err := repo.GetByTransactionID(ctx, txnID)
		assert.NoError(t, err)
		require.NotNil(t, rsv)
		assert.Equal(t, txnID, rsv.TransactionID)
		assert.Equal(t, shared.ReservationStateOpen, rsv.State)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(txnID).WillReturnError(pgx.ErrNoRows)

		rsv, err := repo.GetByTransactionID(ctx, txnID)
		assert.Error(t, err)
		assert.Nil(t, rsv)
		assert.ErrorIs(t, err, payment.ErrReservationNotFound{})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReservationRepository_SetState(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &ReservationRepository{querier: mock, logger: logger}
	rsvID := uuid.New()

	query := `
		UPDATE reservations
		SET state = \$1, resolved_at = \$2
		WHERE id = \$3 AND state = 'OPEN'
	`

	t.Run("commit open reservation", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(shared.ReservationStateCommitted, pgxmock.AnyArg(), rsvID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.SetState(ctx, rsvID, shared.ReservationStateCommitted)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already resolved", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(shared.ReservationStateReleased, pgxmock.AnyArg(), rsvID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.SetState(ctx, rsvID, shared.ReservationStateReleased)
		assert.Error(t, err)
		var notFoundErr payment.ErrReservationNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
