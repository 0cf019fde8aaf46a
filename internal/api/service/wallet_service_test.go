package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vaultpay/payment-core/internal/domain/wallet"
)

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
	return m
}

func TestWalletService_CreateWallet(t *testing.T) {
	t.Run("persists a valid wallet", func(t *testing.T) {
		repo := new(mockWalletRepo)
		svc := NewWalletService(repo)

		repo.On("Create", mock.Anything, mock.MatchedBy(func(w *wallet.Wallet) bool {
			return w.OwnerID == "org-42" && w.Currency == "NGN" && w.Balance == 1000000
		})).Return(nil).Once()

		w, err := svc.CreateWallet(context.Background(), "org-42", "NGN", 1000000)

		require.NoError(t, err)
		assert.Equal(t, int64(1000000), w.Available())
		repo.AssertExpectations(t)
	})

	t.Run("rejects invalid input before touching the repository", func(t *testing.T) {
		repo := new(mockWalletRepo)
		svc := NewWalletService(repo)

		_, err := svc.CreateWallet(context.Background(), "", "NGN", 0)

		assert.ErrorIs(t, err, wallet.ErrEmptyOwnerID)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestWalletService_GetWallet(t *testing.T) {
	repo := new(mockWalletRepo)
	svc := NewWalletService(repo)

	id := uuid.New()
	repo.On("GetByID", mock.Anything, id).Return(nil, wallet.ErrWalletNotFound{WalletID: id})

	_, err := svc.GetWallet(context.Background(), id)

	assert.ErrorIs(t, err, wallet.ErrWalletNotFound{WalletID: id})
}
