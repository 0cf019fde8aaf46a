package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/vaultpay/payment-core/internal/domain/wallet"
)

// WalletServiceImpl implements the WalletService interface
type WalletServiceImpl struct {
	walletRepo wallet.Repository
}

// NewWalletService creates a new wallet service
func NewWalletService(walletRepo wallet.Repository) WalletService {
	return &WalletServiceImpl{
		walletRepo: walletRepo,
	}
}

// CreateWallet opens a wallet for an owner with an opening balance
func (s *WalletServiceImpl) CreateWallet(ctx context.Context, ownerID, currency string, openingBalance int64) (*wallet.Wallet, error) {
	w, err := wallet.NewWallet(ownerID, currency, openingBalance)
	if err != nil {
		return nil, err
	}

	if err := s.walletRepo.Create(ctx, w); err != nil {
		return nil, err
	}

	return w, nil
}

// GetWallet retrieves a wallet by its ID, returns ErrWalletNotFound if not found
func (s *WalletServiceImpl) GetWallet(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	return s.walletRepo.GetByID(ctx, id)
}
