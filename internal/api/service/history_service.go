package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/vaultpay/payment-core/internal/domain/history"
)

// HistoryServiceImpl implements the HistoryService interface
type HistoryServiceImpl struct {
	historyRepo history.Repository
}

// NewHistoryService creates a new history service
func NewHistoryService(historyRepo history.Repository) HistoryService {
	return &HistoryServiceImpl{
		historyRepo: historyRepo,
	}
}

// GetWalletHistory retrieves a paginated page of history records for a wallet
// Returns records, total count, and any error
func (s *HistoryServiceImpl) GetWalletHistory(ctx context.Context, walletID uuid.UUID, page, perPage int) ([]*history.Record, int64, error) {
	offset := (page - 1) * perPage

	records, err := s.historyRepo.GetByWalletID(ctx, walletID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.historyRepo.CountByWalletID(ctx, walletID)
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}
