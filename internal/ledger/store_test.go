package ledger

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vaultpay/payment-core/internal/domain/outbox"
	"github.com/vaultpay/payment-core/internal/domain/payment"
	"github.com/vaultpay/payment-core/internal/domain/shared"
	"github.com/vaultpay/payment-core/internal/domain/wallet"
)

type mockTxRunner struct {
	mock.Mock
}

func (m *mockTxRunner) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(nil)
}

type mockWalletRepo struct {
	mock.Mock
}

func (m *mockWalletRepo) Create(ctx context.Context, w *wallet.Wallet) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

func (m *mockWalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *mockWalletRepo) Update(ctx context.Context, w *wallet.Wallet) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

func (m *mockWalletRepo) LockForUpdate(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *mockWalletRepo) WithTx(tx pgx.Tx) wallet.Repository {
	m.Called(tx)
	return m
}

type mockTransactionRepo struct {
	mock.Mock
}

func (m *mockTransactionRepo) Create(ctx context.Context, txn *payment.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *mockTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Transaction), args.Error(1)
}

func (m *mockTransactionRepo) GetByIdempotencyKey(ctx context.Context, key string) (*payment.Transaction, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Transaction), args.Error(1)
}

func (m *mockTransactionRepo) GetReversalOf(ctx context.Context, originalID uuid.UUID) (*payment.Transaction, error) {
	args := m.Called(ctx, originalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Transaction), args.Error(1)
}

func (m *mockTransactionRepo) SetStatus(ctx context.Context, id uuid.UUID, status shared.TransactionStatus, providerRef, failureReason string) error {
	args := m.Called(ctx, id, status, providerRef, failureReason)
	return args.Error(0)
}

func (m *mockTransactionRepo) WithTx(tx pgx.Tx) payment.TransactionRepository {
	m.Called(tx)
	return m
}

type mockReservationRepo struct {
	mock.Mock
}

func (m *mockReservationRepo) Create(ctx context.Context, rsv *payment.Reservation) error {
	args := m.Called(ctx, rsv)
	return args.Error(0)
}

func (m *mockReservationRepo) GetByID(ctx context.Context, id uuid.UUID) (*payment.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Reservation), args.Error(1)
}

func (m *mockReservationRepo) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*payment.Reservation, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Reservation), args.Error(1)
}

func (m *mockReservationRepo) SetState(ctx context.Context, id uuid.UUID, state shared.ReservationState) error {
	args := m.Called(ctx, id, state)
	return args.Error(0)
}

func (m *mockReservationRepo) WithTx(tx pgx.Tx) payment.ReservationRepository {
	m.Called(tx)
	return m
}

type mockOutboxRepo struct {
	mock.Mock
}

func (m *mockOutboxRepo) Create(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *mockOutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *mockOutboxRepo) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockOutboxRepo) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockOutboxRepo) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockOutboxRepo) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*outbox.Message, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbox.Message), args.Error(1)
}

func (m *mockOutboxRepo) WithTx(tx pgx.Tx) outbox.Repository {
	m.Called(tx)
	return m
}

type storeFixture struct {
	db           *mockTxRunner
	wallets      *mockWalletRepo
	transactions *mockTransactionRepo
	reservations *mockReservationRepo
	outbox       *mockOutboxRepo
	store        *Store
}

func newStoreFixture() *storeFixture {
	f := &storeFixture{
		db:           &mockTxRunner{},
		wallets:      &mockWalletRepo{},
		transactions: &mockTransactionRepo{},
		reservations: &mockReservationRepo{},
		outbox:       &mockOutboxRepo{},
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	f.store = NewStore(logger, f.db, f.wallets, f.transactions, f.reservations, f.outbox)

	f.db.On("ExecuteTx", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.wallets.On("WithTx", mock.Anything).Return().Maybe()
	f.transactions.On("WithTx", mock.Anything).Return().Maybe()
	f.reservations.On("WithTx", mock.Anything).Return().Maybe()
	f.outbox.On("WithTx", mock.Anything).Return().Maybe()
	return f
}

func newDebitRequest(walletID uuid.UUID, amount int64) *shared.PaymentRequest {
	return &shared.PaymentRequest{
		WalletID:  walletID,
		Type:      shared.TransactionTypeTransfer,
		Direction: shared.DirectionDebit,
		Rail:      shared.RailBankTransfer,
		Amount:    amount,
		Currency:  "USD",
		Recipient: &shared.RecipientDetails{
			AccountNumber: "0123456789",
			BankCode:      "058",
			CountryCode:   "NG",
		},
		IdempotencyKey: "key-1",
		CorrelationID:  "corr-1",
	}
}

func TestStore_Reserve_Debit(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture()

	walletID := uuid.New()
	w := &wallet.Wallet{ID: walletID, OwnerID: "org-1", Currency: "USD", Balance: 10000, Version: 1}

	f.wallets.On("LockForUpdate", mock.Anything, walletID).Return(w, nil)
	f.wallets.On("Update", mock.Anything, w).Return(nil)
	f.transactions.On("Create", mock.Anything, mock.AnythingOfType("*payment.Transaction")).Return(nil)
	f.reservations.On("Create", mock.Anything, mock.AnythingOfType("*payment.Reservation")).Return(nil)

	txn, err := f.store.Reserve(ctx, newDebitRequest(walletID, 2500))
	require.NoError(t, err)
	require.NotNil(t, txn)

	assert.Equal(t, shared.TransactionStatusReserved, txn.Status)
	assert.Equal(t, int64(2500), w.Reserved)
	assert.Equal(t, int64(7500), w.Available())
	assert.Equal(t, int64(10000), w.Balance) // Balance untouched until commit
	f.wallets.AssertExpectations(t)
	f.transactions.AssertExpectations(t)
	f.reservations.AssertExpectations(t)
}

func TestStore_Reserve_InsufficientFunds(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture()

	walletID := uuid.New()
	w := &wallet.Wallet{ID: walletID, OwnerID: "org-1", Currency: "USD", Balance: 1000, Reserved: 500, Version: 1}

	f.wallets.On("LockForUpdate", mock.Anything, walletID).Return(w, nil)

	txn, err := f.store.Reserve(ctx, newDebitRequest(walletID, 2500))
	assert.Nil(t, txn)
	assert.ErrorIs(t, err, wallet.ErrInsufficientFunds{WalletID: walletID})

	var insufficientErr wallet.ErrInsufficientFunds
	require.ErrorAs(t, err, &insufficientErr)
	assert.Equal(t, int64(2500), insufficientErr.Requested)
	assert.Equal(t, int64(500), insufficientErr.Available)
	f.transactions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestStore_Reserve_CurrencyMismatch(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture()

	walletID := uuid.New()
	w := &wallet.Wallet{ID: walletID, OwnerID: "org-1", Currency: "NGN", Balance: 100000, Version: 1}

	f.wallets.On("LockForUpdate", mock.Anything, walletID).Return(w, nil)

	txn, err := f.store.Reserve(ctx, newDebitRequest(walletID, 2500))
	assert.Nil(t, txn)

	var mismatchErr ErrCurrencyMismatch
	require.ErrorAs(t, err, &mismatchErr)
	assert.Equal(t, "NGN", mismatchErr.WalletCurrency)
	assert.Equal(t, "USD", mismatchErr.RequestCurrency)
}

func TestStore_Reserve_CreditDoesNotHold(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture()

	walletID := uuid.New()
	w := &wallet.Wallet{ID: walletID, OwnerID: "org-1", Currency: "USD", Balance: 100, Version: 1}

	req := newDebitRequest(walletID, 5000)
	req.Type = shared.TransactionTypeFunding
	req.Direction = shared.DirectionCredit

	f.wallets.On("LockForUpdate", mock.Anything, walletID).Return(w, nil)
	f.transactions.On("Create", mock.Anything, mock.AnythingOfType("*payment.Transaction")).Return(nil)
	f.reservations.On("Create", mock.Anything, mock.AnythingOfType("*payment.Reservation")).Return(nil)

	txn, err := f.store.Reserve(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, shared.TransactionStatusReserved, txn.Status)
	assert.Equal(t, int64(0), w.Reserved)
	f.wallets.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestStore_Commit_Debit(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture()

	walletID := uuid.New()
	txnID := uuid.New()
	w := &wallet.Wallet{ID: walletID, OwnerID: "org-1", Currency: "USD", Balance: 10000, Reserved: 2500, Version: 2}
	txn := &payment.Transaction{ID: txnID, WalletID: walletID, Direction: shared.DirectionDebit, Amount: 2500, Currency: "USD", Status: shared.TransactionStatusReserved, CreatedAt: time.Now()}
	rsv := &payment.Reservation{ID: uuid.New(), TransactionID: txnID, WalletID: walletID, Amount: 2500, Direction: shared.DirectionDebit, State: shared.ReservationStateOpen}

	f.transactions.On("GetByID", mock.Anything, txnID).Return(txn, nil)
	f.reservations.On("GetByTransactionID", mock.Anything, txnID).Return(rsv, nil)
	f.wallets.On("LockForUpdate", mock.Anything, walletID).Return(w, nil)
	f.wallets.On("Update", mock.Anything, w).Return(nil)
	f.reservations.On("SetState", mock.Anything, rsv.ID, shared.ReservationStateCommitted).Return(nil)
	f.transactions.On("SetStatus", mock.Anything, txnID, shared.TransactionStatusCompleted, "prov-1", "").Return(nil)
	f.outbox.On("Create", mock.Anything, mock.AnythingOfType("*outbox.Message")).Return(nil)

	err := f.store.Commit(ctx, txnID, "prov-1")
	require.NoError(t, err)

	assert.Equal(t, int64(7500), w.Balance)
	assert.Equal(t, int64(0), w.Reserved)
	f.outbox.AssertNumberOfCalls(t, "Create", 1)
	f.wallets.AssertExpectations(t)
}

func TestStore_Release_ReturnsHold(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture()

	walletID := uuid.New()
	txnID := uuid.New()
	w := &wallet.Wallet{ID: walletID, OwnerID: "org-1", Currency: "USD", Balance: 10000, Reserved: 2500, Version: 2}
	txn := &payment.Transaction{ID: txnID, WalletID: walletID, Direction: shared.DirectionDebit, Amount: 2500, Currency: "USD", Status: shared.TransactionStatusReserved, CreatedAt: time.Now()}
	rsv := &payment.Reservation{ID: uuid.New(), TransactionID: txnID, WalletID: walletID, Amount: 2500, Direction: shared.DirectionDebit, State: shared.ReservationStateOpen}

	f.transactions.On("GetByID", mock.Anything, txnID).Return(txn, nil)
	f.reservations.On("GetByTransactionID", mock.Anything, txnID).Return(rsv, nil)
	f.wallets.On("LockForUpdate", mock.Anything, walletID).Return(w, nil)
	f.wallets.On("Update", mock.Anything, w).Return(nil)
	f.reservations.On("SetState", mock.Anything, rsv.ID, shared.ReservationStateReleased).Return(nil)
	f.transactions.On("SetStatus", mock.Anything, txnID, shared.TransactionStatusFailed, "", "PROVIDER_UNAVAILABLE").Return(nil)
	f.outbox.On("Create", mock.Anything, mock.AnythingOfType("*outbox.Message")).Return(nil)

	err := f.store.Release(ctx, txnID, "PROVIDER_UNAVAILABLE")
	require.NoError(t, err)

	assert.Equal(t, int64(10000), w.Balance) // Balance never moved
	assert.Equal(t, int64(0), w.Reserved)
}

func TestStore_MarkAwaitingCallback(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture()

	txnID := uuid.New()
	f.transactions.On("SetStatus", mock.Anything, txnID, shared.TransactionStatusAwaitingCallback, "prov-9", "").Return(nil)

	err := f.store.MarkAwaitingCallback(ctx, txnID, "prov-9")
	assert.NoError(t, err)
	f.transactions.AssertExpectations(t)
}

func TestStore_Reverse_CompletedDebit(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture()

	walletID := uuid.New()
	originalID := uuid.New()
	completedAt := time.Now()
	w := &wallet.Wallet{ID: walletID, OwnerID: "org-1", Currency: "USD", Balance: 7500, Version: 3}
	original := &payment.Transaction{
		ID:          originalID,
		WalletID:    walletID,
		Type:        shared.TransactionTypeTransfer,
		Direction:   shared.DirectionDebit,
		Amount:      2500,
		Currency:    "USD",
		Status:      shared.TransactionStatusCompleted,
		CreatedAt:   completedAt.Add(-time.Minute),
		CompletedAt: &completedAt,
	}

	f.transactions.On("GetByID", mock.Anything, originalID).Return(original, nil)
	f.transactions.On("GetReversalOf", mock.Anything, originalID).Return(nil, nil)
	f.wallets.On("LockForUpdate", mock.Anything, walletID).Return(w, nil)
	f.wallets.On("Update", mock.Anything, w).Return(nil)
	f.transactions.On("Create", mock.Anything, mock.AnythingOfType("*payment.Transaction")).Return(nil)
	f.transactions.On("SetStatus", mock.Anything, originalID, shared.TransactionStatusReversed, "", "support reversal").Return(nil)
	f.outbox.On("Create", mock.Anything, mock.AnythingOfType("*outbox.Message")).Return(nil)

	reversal, err := f.store.Reverse(ctx, originalID, "support reversal")
	require.NoError(t, err)
	require.NotNil(t, reversal)

	assert.Equal(t, int64(10000), w.Balance) // Debit undone
	assert.Equal(t, shared.DirectionCredit, reversal.Direction)
	assert.Equal(t, original.Amount, reversal.Amount)
	assert.Equal(t, originalID, *reversal.ReversalOf)
	assert.Equal(t, shared.TransactionStatusCompleted, reversal.Status)
	f.outbox.AssertNumberOfCalls(t, "Create", 2)
}

func TestStore_Reverse_AlreadyReversed(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture()

	walletID := uuid.New()
	originalID := uuid.New()
	completedAt := time.Now()
	original := &payment.Transaction{
		ID:          originalID,
		WalletID:    walletID,
		Direction:   shared.DirectionDebit,
		Amount:      2500,
		Status:      shared.TransactionStatusCompleted,
		CompletedAt: &completedAt,
	}
	existing := &payment.Transaction{ID: uuid.New(), ReversalOf: &originalID}

	f.transactions.On("GetByID", mock.Anything, originalID).Return(original, nil)
	f.transactions.On("GetReversalOf", mock.Anything, originalID).Return(existing, nil)

	reversal, err := f.store.Reverse(ctx, originalID, "again")
	assert.Nil(t, reversal)

	var alreadyErr payment.ErrAlreadyReversed
	require.ErrorAs(t, err, &alreadyErr)
	assert.Equal(t, originalID, alreadyErr.TransactionID)
	f.wallets.AssertNotCalled(t, "LockForUpdate", mock.Anything, mock.Anything)
}

func TestStore_Reverse_NotCompleted(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture()

	originalID := uuid.New()
	original := &payment.Transaction{ID: originalID, Status: shared.TransactionStatusReserved}

	f.transactions.On("GetByID", mock.Anything, originalID).Return(original, nil)

	reversal, err := f.store.Reverse(ctx, originalID, "too early")
	assert.Nil(t, reversal)

	var notReversibleErr ErrNotReversible
	require.ErrorAs(t, err, &notReversibleErr)
	assert.Equal(t, shared.TransactionStatusReserved, notReversibleErr.Status)
}

func TestStore_Commit_ReplayIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture()

	walletID := uuid.New()
	txnID := uuid.New()
	w := &wallet.Wallet{ID: walletID, OwnerID: "org-1", Currency: "USD", Balance: 7500, Version: 3}
	txn := &payment.Transaction{ID: txnID, WalletID: walletID, Direction: shared.DirectionDebit, Amount: 2500, Currency: "USD", Status: shared.TransactionStatusCompleted, CreatedAt: time.Now()}
	rsv := &payment.Reservation{ID: uuid.New(), TransactionID: txnID, WalletID: walletID, Amount: 2500, Direction: shared.DirectionDebit, State: shared.ReservationStateCommitted}

	f.transactions.On("GetByID", mock.Anything, txnID).Return(txn, nil)
	f.wallets.On("LockForUpdate", mock.Anything, walletID).Return(w, nil)
	f.reservations.On("GetByTransactionID", mock.Anything, txnID).Return(rsv, nil)

	err := f.store.Commit(ctx, txnID, "prov-1")
	require.NoError(t, err)

	assert.Equal(t, int64(7500), w.Balance) // No second debit
	f.wallets.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	f.reservations.AssertNotCalled(t, "SetState", mock.Anything, mock.Anything, mock.Anything)
	f.transactions.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.outbox.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestStore_Commit_AfterReleaseConflicts(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture()

	walletID := uuid.New()
	txnID := uuid.New()
	w := &wallet.Wallet{ID: walletID, OwnerID: "org-1", Currency: "USD", Balance: 10000, Version: 3}
	txn := &payment.Transaction{ID: txnID, WalletID: walletID, Direction: shared.DirectionDebit, Amount: 2500, Currency: "USD", Status: shared.TransactionStatusFailed, CreatedAt: time.Now()}
	rsv := &payment.Reservation{ID: uuid.New(), TransactionID: txnID, WalletID: walletID, Amount: 2500, Direction: shared.DirectionDebit, State: shared.ReservationStateReleased}

	f.transactions.On("GetByID", mock.Anything, txnID).Return(txn, nil)
	f.wallets.On("LockForUpdate", mock.Anything, walletID).Return(w, nil)
	f.reservations.On("GetByTransactionID", mock.Anything, txnID).Return(rsv, nil)

	err := f.store.Commit(ctx, txnID, "prov-1")

	var conflictErr ErrSettleConflict
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, txnID, conflictErr.TransactionID)
	assert.Equal(t, shared.ReservationStateReleased, conflictErr.State)
	assert.Equal(t, int64(10000), w.Balance)
	f.wallets.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestStore_Release_ReplayIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture()

	walletID := uuid.New()
	txnID := uuid.New()
	w := &wallet.Wallet{ID: walletID, OwnerID: "org-1", Currency: "USD", Balance: 10000, Version: 3}
	txn := &payment.Transaction{ID: txnID, WalletID: walletID, Direction: shared.DirectionDebit, Amount: 2500, Currency: "USD", Status: shared.TransactionStatusFailed, CreatedAt: time.Now()}
	rsv := &payment.Reservation{ID: uuid.New(), TransactionID: txnID, WalletID: walletID, Amount: 2500, Direction: shared.DirectionDebit, State: shared.ReservationStateReleased}

	f.transactions.On("GetByID", mock.Anything, txnID).Return(txn, nil)
	f.wallets.On("LockForUpdate", mock.Anything, walletID).Return(w, nil)
	f.reservations.On("GetByTransactionID", mock.Anything, txnID).Return(rsv, nil)

	err := f.store.Release(ctx, txnID, "PROVIDER_UNAVAILABLE")
	require.NoError(t, err)

	assert.Equal(t, int64(0), w.Reserved) // No double return of the hold
	f.wallets.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	f.reservations.AssertNotCalled(t, "SetState", mock.Anything, mock.Anything, mock.Anything)
	f.outbox.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestStore_Release_AfterCommitConflicts(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture()

	walletID := uuid.New()
	txnID := uuid.New()
	w := &wallet.Wallet{ID: walletID, OwnerID: "org-1", Currency: "USD", Balance: 7500, Version: 3}
	txn := &payment.Transaction{ID: txnID, WalletID: walletID, Direction: shared.DirectionDebit, Amount: 2500, Currency: "USD", Status: shared.TransactionStatusCompleted, CreatedAt: time.Now()}
	rsv := &payment.Reservation{ID: uuid.New(), TransactionID: txnID, WalletID: walletID, Amount: 2500, Direction: shared.DirectionDebit, State: shared.ReservationStateCommitted}

	f.transactions.On("GetByID", mock.Anything, txnID).Return(txn, nil)
	f.wallets.On("LockForUpdate", mock.Anything, walletID).Return(w, nil)
	f.reservations.On("GetByTransactionID", mock.Anything, txnID).Return(rsv, nil)

	err := f.store.Release(ctx, txnID, "late callback")

	var conflictErr ErrSettleConflict
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, shared.ReservationStateCommitted, conflictErr.State)
	assert.Equal(t, int64(7500), w.Balance) // Committed debit stands
}
