package orchestrator

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

	"github.com/vaultpay/payment-core/internal/domain/payment"
	"github.com/vaultpay/payment-core/internal/domain/shared"
	"github.com/vaultpay/payment-core/internal/domain/wallet"
	"github.com/vaultpay/payment-core/internal/fx"
	"github.com/vaultpay/payment-core/internal/gateway"
	"github.com/vaultpay/payment-core/internal/guard"
	"github.com/vaultpay/payment-core/internal/validator"
)

type mockLedgerStore struct {
	mock.Mock
}

func (m *mockLedgerStore) Reserve(ctx context.Context, req *shared.PaymentRequest) (*payment.Transaction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Transaction), args.Error(1)
}

func (m *mockLedgerStore) Commit(ctx context.Context, transactionID uuid.UUID, providerRef string) error {
	args := m.Called(ctx, transactionID, providerRef)
	return args.Error(0)
}

func (m *mockLedgerStore) Release(ctx context.Context, transactionID uuid.UUID, failureReason string) error {
	args := m.Called(ctx, transactionID, failureReason)
	return args.Error(0)
}

func (m *mockLedgerStore) MarkAwaitingCallback(ctx context.Context, transactionID uuid.UUID, providerRef string) error {
	args := m.Called(ctx, transactionID, providerRef)
	return args.Error(0)
}

func (m *mockLedgerStore) GetTransaction(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Transaction), args.Error(1)
}

type mockGuard struct {
	mock.Mock
}

func (m *mockGuard) CheckOrRegister(ctx context.Context, key, requestHash string) (*guard.Outcome, error) {
	args := m.Called(ctx, key, requestHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*guard.Outcome), args.Error(1)
}

func (m *mockGuard) RecordSuccess(ctx context.Context, key string, transactionID uuid.UUID) error {
	args := m.Called(ctx, key, transactionID)
	return args.Error(0)
}

func (m *mockGuard) RecordFailure(ctx context.Context, key string, code shared.FailureCode) error {
	args := m.Called(ctx, key, code)
	return args.Error(0)
}

type mockValidator struct {
	mock.Mock
}

func (m *mockValidator) Validate(ctx context.Context, rail shared.RailKind, recipient *shared.RecipientDetails) (*validator.Result, error) {
	args := m.Called(ctx, rail, recipient)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*validator.Result), args.Error(1)
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Name() string { return "mock-provider" }

func (m *mockProvider) Execute(ctx context.Context, op *gateway.Operation) (*gateway.Result, error) {
	args := m.Called(ctx, op)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Result), args.Error(1)
}

type mockRouter struct {
	mock.Mock
}

func (m *mockRouter) Route(rail shared.RailKind, country string) (gateway.Provider, error) {
	args := m.Called(rail, country)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(gateway.Provider), args.Error(1)
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

func (m *mockWalletRepo) WithTx(tx pgx.Tx) wallet.Repository { return m }

type fixture struct {
	store     *mockLedgerStore
	guard     *mockGuard
	validator *mockValidator
	router    *mockRouter
	provider  *mockProvider
	wallets   *mockWalletRepo
	orch      *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     &mockLedgerStore{},
		guard:     &mockGuard{},
		validator: &mockValidator{},
		router:    &mockRouter{},
		provider:  &mockProvider{},
		wallets:   &mockWalletRepo{},
	}

	converter, err := fx.NewStaticConverter("USD:NGN=1500")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	f.orch = New(logger, f.store, f.guard, f.validator, f.router, converter, f.wallets, 3, time.Millisecond)
	return f
}

func newRequest(walletID uuid.UUID) *shared.PaymentRequest {
	return &shared.PaymentRequest{
		WalletID:  walletID,
		Type:      shared.TransactionTypeTransfer,
		Direction: shared.DirectionDebit,
		Rail:      shared.RailBankTransfer,
		Amount:    5000,
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

func usdWallet(id uuid.UUID) *wallet.Wallet {
	return &wallet.Wallet{ID: id, OwnerID: "org-1", Currency: "USD", Balance: 100000, Version: 1}
}

func reservedTxn(req *shared.PaymentRequest) *payment.Transaction {
	txn := payment.NewTransaction(req)
	txn.Status = shared.TransactionStatusReserved
	return txn
}

func TestOrchestrator_Execute_SyncSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	walletID := uuid.New()
	req := newRequest(walletID)
	txn := reservedTxn(req)

	f.guard.On("CheckOrRegister", mock.Anything, "key-1", req.Hash()).Return(&guard.Outcome{}, nil)
	f.wallets.On("GetByID", mock.Anything, walletID).Return(usdWallet(walletID), nil)
	f.store.On("Reserve", mock.Anything, req).Return(txn, nil)
	f.validator.On("Validate", mock.Anything, shared.RailBankTransfer, req.Recipient).Return(&validator.Result{AccountName: "ADA OKAFOR"}, nil)
	f.router.On("Route", shared.RailBankTransfer, "NG").Return(f.provider, nil)
	f.provider.On("Execute", mock.Anything, mock.AnythingOfType("*gateway.Operation")).Return(&gateway.Result{Status: gateway.StatusSucceeded, ProviderRef: "prov-1"}, nil)
	f.store.On("Commit", mock.Anything, txn.ID, "prov-1").Return(nil)
	f.guard.On("RecordSuccess", mock.Anything, "key-1", txn.ID).Return(nil)

	result, err := f.orch.Execute(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, shared.TransactionStatusCompleted, result.Status)
	assert.Equal(t, "prov-1", result.ProviderRef)
	assert.Equal(t, "ADA OKAFOR", result.ValidatedName)
	assert.False(t, result.Replayed)
	f.store.AssertExpectations(t)
	f.guard.AssertExpectations(t)
}

func TestOrchestrator_Execute_AsyncPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	walletID := uuid.New()
	req := newRequest(walletID)
	txn := reservedTxn(req)

	f.guard.On("CheckOrRegister", mock.Anything, "key-1", req.Hash()).Return(&guard.Outcome{}, nil)
	f.wallets.On("GetByID", mock.Anything, walletID).Return(usdWallet(walletID), nil)
	f.store.On("Reserve", mock.Anything, req).Return(txn, nil)
	f.validator.On("Validate", mock.Anything, shared.RailBankTransfer, req.Recipient).Return(&validator.Result{}, nil)
	f.router.On("Route", shared.RailBankTransfer, "NG").Return(f.provider, nil)
	f.provider.On("Execute", mock.Anything, mock.Anything).Return(&gateway.Result{Status: gateway.StatusPending, ProviderRef: "prov-2"}, nil)
	f.store.On("MarkAwaitingCallback", mock.Anything, txn.ID, "prov-2").Return(nil)
	f.guard.On("RecordSuccess", mock.Anything, "key-1", txn.ID).Return(nil)

	result, err := f.orch.Execute(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, shared.TransactionStatusAwaitingCallback, result.Status)
	f.store.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything, mock.Anything)
	f.store.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrchestrator_Execute_InsufficientBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	walletID := uuid.New()
	req := newRequest(walletID)

	f.guard.On("CheckOrRegister", mock.Anything, "key-1", req.Hash()).Return(&guard.Outcome{}, nil)
	f.wallets.On("GetByID", mock.Anything, walletID).Return(usdWallet(walletID), nil)
	f.store.On("Reserve", mock.Anything, req).Return(nil, wallet.ErrInsufficientFunds{WalletID: walletID, Requested: 5000, Available: 100})
	f.guard.On("RecordFailure", mock.Anything, "key-1", shared.FailureCodeInsufficientBalance).Return(nil)

	result, err := f.orch.Execute(ctx, req)
	require.NoError(t, err)

	assert.True(t, result.Failed())
	assert.Equal(t, shared.FailureCodeInsufficientBalance, result.FailureCode)
	f.store.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrchestrator_Execute_InvalidRecipientReleasesHold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	walletID := uuid.New()
	req := newRequest(walletID)
	txn := reservedTxn(req)

	f.guard.On("CheckOrRegister", mock.Anything, "key-1", req.Hash()).Return(&guard.Outcome{}, nil)
	f.wallets.On("GetByID", mock.Anything, walletID).Return(usdWallet(walletID), nil)
	f.store.On("Reserve", mock.Anything, req).Return(txn, nil)
	f.validator.On("Validate", mock.Anything, shared.RailBankTransfer, req.Recipient).
		Return(nil, validator.ErrInvalidFormat{Reason: "bad account"})
	f.store.On("Release", mock.Anything, txn.ID, string(shared.FailureCodeInvalidRecipient)).Return(nil)
	f.guard.On("RecordFailure", mock.Anything, "key-1", shared.FailureCodeInvalidRecipient).Return(nil)

	result, err := f.orch.Execute(ctx, req)
	require.NoError(t, err)

	assert.True(t, result.Failed())
	assert.Equal(t, shared.FailureCodeInvalidRecipient, result.FailureCode)
	f.store.AssertExpectations(t)
	f.provider.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestOrchestrator_Execute_RetriesThenSucceeds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	walletID := uuid.New()
	req := newRequest(walletID)
	txn := reservedTxn(req)
	retryable := gateway.ProviderError{Provider: "mock-provider", StatusCode: 503, Retryable: true, Message: "overloaded"}

	f.guard.On("CheckOrRegister", mock.Anything, "key-1", req.Hash()).Return(&guard.Outcome{}, nil)
	f.wallets.On("GetByID", mock.Anything, walletID).Return(usdWallet(walletID), nil)
	f.store.On("Reserve", mock.Anything, req).Return(txn, nil)
	f.validator.On("Validate", mock.Anything, mock.Anything, mock.Anything).Return(&validator.Result{}, nil)
	f.router.On("Route", shared.RailBankTransfer, "NG").Return(f.provider, nil)
	f.provider.On("Execute", mock.Anything, mock.Anything).Return(nil, retryable).Twice()
	f.provider.On("Execute", mock.Anything, mock.Anything).Return(&gateway.Result{Status: gateway.StatusSucceeded, ProviderRef: "prov-3"}, nil).Once()
	f.store.On("Commit", mock.Anything, txn.ID, "prov-3").Return(nil)
	f.guard.On("RecordSuccess", mock.Anything, "key-1", txn.ID).Return(nil)

	result, err := f.orch.Execute(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, shared.TransactionStatusCompleted, result.Status)
	f.provider.AssertNumberOfCalls(t, "Execute", 3)
}

func TestOrchestrator_Execute_RetryBudgetExhausted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	walletID := uuid.New()
	req := newRequest(walletID)
	txn := reservedTxn(req)
	retryable := gateway.ProviderError{Provider: "mock-provider", StatusCode: 503, Retryable: true, Message: "down"}

	f.guard.On("CheckOrRegister", mock.Anything, "key-1", req.Hash()).Return(&guard.Outcome{}, nil)
	f.wallets.On("GetByID", mock.Anything, walletID).Return(usdWallet(walletID), nil)
	f.store.On("Reserve", mock.Anything, req).Return(txn, nil)
	f.validator.On("Validate", mock.Anything, mock.Anything, mock.Anything).Return(&validator.Result{}, nil)
	f.router.On("Route", shared.RailBankTransfer, "NG").Return(f.provider, nil)
	f.provider.On("Execute", mock.Anything, mock.Anything).Return(nil, retryable)
	f.store.On("Release", mock.Anything, txn.ID, string(shared.FailureCodeProviderUnavailable)).Return(nil)
	f.guard.On("RecordFailure", mock.Anything, "key-1", shared.FailureCodeProviderUnavailable).Return(nil)

	result, err := f.orch.Execute(ctx, req)
	require.NoError(t, err)

	assert.True(t, result.Failed())
	assert.Equal(t, shared.FailureCodeProviderUnavailable, result.FailureCode)
	f.provider.AssertNumberOfCalls(t, "Execute", 3)
	f.store.AssertExpectations(t)
}

func TestOrchestrator_Execute_ProviderRejection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	walletID := uuid.New()
	req := newRequest(walletID)
	txn := reservedTxn(req)

	f.guard.On("CheckOrRegister", mock.Anything, "key-1", req.Hash()).Return(&guard.Outcome{}, nil)
	f.wallets.On("GetByID", mock.Anything, walletID).Return(usdWallet(walletID), nil)
	f.store.On("Reserve", mock.Anything, req).Return(txn, nil)
	f.validator.On("Validate", mock.Anything, mock.Anything, mock.Anything).Return(&validator.Result{}, nil)
	f.router.On("Route", shared.RailBankTransfer, "NG").Return(f.provider, nil)
	f.provider.On("Execute", mock.Anything, mock.Anything).Return(&gateway.Result{Status: gateway.StatusRejected, Reason: "account frozen"}, nil)
	f.store.On("Release", mock.Anything, txn.ID, string(shared.FailureCodeProviderRejected)).Return(nil)
	f.guard.On("RecordFailure", mock.Anything, "key-1", shared.FailureCodeProviderRejected).Return(nil)

	result, err := f.orch.Execute(ctx, req)
	require.NoError(t, err)

	assert.True(t, result.Failed())
	assert.Equal(t, shared.FailureCodeProviderRejected, result.FailureCode)
	assert.Equal(t, "account frozen", result.FailureReason)
	f.provider.AssertNumberOfCalls(t, "Execute", 1) // Business refusal never retried
}

func TestOrchestrator_Execute_ReplaysStoredSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	walletID := uuid.New()
	req := newRequest(walletID)
	txnID := uuid.New()
	stored := &payment.Transaction{ID: txnID, WalletID: walletID, Status: shared.TransactionStatusCompleted, ProviderRef: "prov-1"}

	f.guard.On("CheckOrRegister", mock.Anything, "key-1", req.Hash()).
		Return(&guard.Outcome{Replayed: true, TransactionID: &txnID}, nil)
	f.store.On("GetTransaction", mock.Anything, txnID).Return(stored, nil)

	result, err := f.orch.Execute(ctx, req)
	require.NoError(t, err)

	assert.True(t, result.Replayed)
	assert.Equal(t, txnID, result.TransactionID)
	assert.Equal(t, shared.TransactionStatusCompleted, result.Status)
	f.store.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything)
}

func TestOrchestrator_Execute_ReplaysStoredFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	req := newRequest(uuid.New())
	f.guard.On("CheckOrRegister", mock.Anything, "key-1", req.Hash()).
		Return(&guard.Outcome{Replayed: true, FailureCode: shared.FailureCodeInsufficientBalance}, nil)

	result, err := f.orch.Execute(ctx, req)
	require.NoError(t, err)

	assert.True(t, result.Replayed)
	assert.True(t, result.Failed())
	assert.Equal(t, shared.FailureCodeInsufficientBalance, result.FailureCode)
}

func TestOrchestrator_Execute_FXConversion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	walletID := uuid.New()
	req := newRequest(walletID)
	req.Currency = "USD"
	ngnWallet := &wallet.Wallet{ID: walletID, OwnerID: "org-1", Currency: "NGN", Balance: 100000000, Version: 1}

	f.guard.On("CheckOrRegister", mock.Anything, "key-1", mock.Anything).Return(&guard.Outcome{}, nil)
	f.wallets.On("GetByID", mock.Anything, walletID).Return(ngnWallet, nil)
	f.store.On("Reserve", mock.Anything, mock.MatchedBy(func(r *shared.PaymentRequest) bool {
		return r.Currency == "NGN" && r.Amount == 7500000 // 5000 USD minor units at 1500
	})).Return(reservedTxn(req), nil)
	f.validator.On("Validate", mock.Anything, mock.Anything, mock.Anything).Return(&validator.Result{}, nil)
	f.router.On("Route", shared.RailBankTransfer, "NG").Return(f.provider, nil)
	f.provider.On("Execute", mock.Anything, mock.Anything).Return(&gateway.Result{Status: gateway.StatusSucceeded, ProviderRef: "prov-fx"}, nil)
	f.store.On("Commit", mock.Anything, mock.Anything, "prov-fx").Return(nil)
	f.guard.On("RecordSuccess", mock.Anything, "key-1", mock.Anything).Return(nil)

	result, err := f.orch.Execute(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, shared.TransactionStatusCompleted, result.Status)
	f.store.AssertExpectations(t)
}

func TestOrchestrator_Execute_CreditSkipsValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	walletID := uuid.New()
	req := newRequest(walletID)
	req.Type = shared.TransactionTypeFunding
	req.Direction = shared.DirectionCredit
	req.Rail = shared.RailCard
	txn := reservedTxn(req)

	f.guard.On("CheckOrRegister", mock.Anything, "key-1", mock.Anything).Return(&guard.Outcome{}, nil)
	f.wallets.On("GetByID", mock.Anything, walletID).Return(usdWallet(walletID), nil)
	f.store.On("Reserve", mock.Anything, req).Return(txn, nil)
	f.router.On("Route", shared.RailCard, "NG").Return(f.provider, nil)
	f.provider.On("Execute", mock.Anything, mock.Anything).Return(&gateway.Result{Status: gateway.StatusSucceeded, ProviderRef: "prov-4"}, nil)
	f.store.On("Commit", mock.Anything, txn.ID, "prov-4").Return(nil)
	f.guard.On("RecordSuccess", mock.Anything, "key-1", txn.ID).Return(nil)

	result, err := f.orch.Execute(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, shared.TransactionStatusCompleted, result.Status)
	f.validator.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrchestrator_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("successful callback commits", func(t *testing.T) {
		f := newFixture(t)
		txnID := uuid.New()
		txn := &payment.Transaction{ID: txnID, Status: shared.TransactionStatusAwaitingCallback}

		f.store.On("GetTransaction", mock.Anything, txnID).Return(txn, nil)
		f.store.On("Commit", mock.Anything, txnID, "prov-cb").Return(nil)

		err := f.orch.Resolve(ctx, &shared.CallbackEvent{TransactionID: txnID, ProviderRef: "prov-cb", Succeeded: true})
		assert.NoError(t, err)
		f.store.AssertExpectations(t)
	})

	t.Run("failed callback releases", func(t *testing.T) {
		f := newFixture(t)
		txnID := uuid.New()
		txn := &payment.Transaction{ID: txnID, Status: shared.TransactionStatusAwaitingCallback}

		f.store.On("GetTransaction", mock.Anything, txnID).Return(txn, nil)
		f.store.On("Release", mock.Anything, txnID, "insufficient float").Return(nil)

		err := f.orch.Resolve(ctx, &shared.CallbackEvent{TransactionID: txnID, Succeeded: false, Reason: "insufficient float"})
		assert.NoError(t, err)
	})

	t.Run("terminal transaction is a no-op", func(t *testing.T) {
		f := newFixture(t)
		txnID := uuid.New()
		txn := &payment.Transaction{ID: txnID, Status: shared.TransactionStatusCompleted}

		f.store.On("GetTransaction", mock.Anything, txnID).Return(txn, nil)

		err := f.orch.Resolve(ctx, &shared.CallbackEvent{TransactionID: txnID, Succeeded: true})
		assert.NoError(t, err)
		f.store.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything, mock.Anything)
		f.store.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("reserved transaction rejects callback", func(t *testing.T) {
		f := newFixture(t)
		txnID := uuid.New()
		txn := &payment.Transaction{ID: txnID, Status: shared.TransactionStatusReserved}

		f.store.On("GetTransaction", mock.Anything, txnID).Return(txn, nil)

		err := f.orch.Resolve(ctx, &shared.CallbackEvent{TransactionID: txnID, Succeeded: true})
		assert.Error(t, err)
	})
}
