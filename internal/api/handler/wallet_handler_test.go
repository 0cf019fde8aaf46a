package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vaultpay/payment-core/internal/domain/history"
	"github.com/vaultpay/payment-core/internal/domain/shared"
	"github.com/vaultpay/payment-core/internal/domain/wallet"
)

// PaginatedResponse is a generic version of Response for testing paginated data
type PaginatedResponse[T any] struct {
	Data          []T        `json:"data"`
	Error         *ErrorInfo `json:"error,omitempty"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	Meta          *MetaInfo  `json:"meta,omitempty"`
}

type MockWalletService struct {
	mock.Mock
}

func (m *MockWalletService) CreateWallet(ctx context.Context, ownerID, currency string, openingBalance int64) (*wallet.Wallet, error) {
	args := m.Called(ctx, ownerID, currency, openingBalance)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockWalletService) GetWallet(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

type MockHistoryService struct {
	mock.Mock
}

func (m *MockHistoryService) GetWalletHistory(ctx context.Context, walletID uuid.UUID, page, perPage int) ([]*history.Record, int64, error) {
	args := m.Called(ctx, walletID, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*history.Record), args.Get(1).(int64), args.Error(2)
}

func newWalletRouter(walletService *MockWalletService, historyService *MockHistoryService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	handler := NewWalletHandler(logger, walletService, historyService)

	router := gin.New()
	router.POST("/wallets", handler.Create)
	router.GET("/wallets/:id", handler.GetByID)
	router.GET("/wallets/:id/transactions", handler.GetTransactions)
	return router
}

func TestWalletHandler_Create(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		walletService := new(MockWalletService)
		router := newWalletRouter(walletService, new(MockHistoryService))

		created, err := wallet.NewWallet("org-42", "NGN", 1000000)
		require.NoError(t, err)
		walletService.On("CreateWallet", mock.Anything, "org-42", "NGN", int64(1000000)).Return(created, nil)

		body, _ := json.Marshal(CreateWalletRequest{OwnerID: "org-42", Currency: "NGN", OpeningBalance: 1000000})
		req, _ := http.NewRequest(http.MethodPost, "/wallets", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
		data := response["data"].(map[string]interface{})
		assert.Equal(t, created.ID.String(), data["id"])
		assert.Equal(t, float64(1000000), data["available"])
		walletService.AssertExpectations(t)
	})

	t.Run("MissingOwnerReturns400", func(t *testing.T) {
		walletService := new(MockWalletService)
		router := newWalletRouter(walletService, new(MockHistoryService))

		body, _ := json.Marshal(CreateWalletRequest{Currency: "NGN"})
		req, _ := http.NewRequest(http.MethodPost, "/wallets", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		walletService.AssertNotCalled(t, "CreateWallet", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestWalletHandler_GetByID(t *testing.T) {
	t.Run("ReturnsBalanceBreakdown", func(t *testing.T) {
		walletService := new(MockWalletService)
		router := newWalletRouter(walletService, new(MockHistoryService))

		w, err := wallet.NewWallet("org-42", "NGN", 1000000)
		require.NoError(t, err)
		w.Reserved = 250000
		walletService.On("GetWallet", mock.Anything, w.ID).Return(w, nil)

		req, _ := http.NewRequest(http.MethodGet, "/wallets/"+w.ID.String(), nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
		data := response["data"].(map[string]interface{})
		assert.Equal(t, float64(1000000), data["balance"])
		assert.Equal(t, float64(250000), data["reserved"])
		assert.Equal(t, float64(750000), data["available"])
	})

	t.Run("NotFound", func(t *testing.T) {
		walletService := new(MockWalletService)
		router := newWalletRouter(walletService, new(MockHistoryService))

		id := uuid.New()
		walletService.On("GetWallet", mock.Anything, id).Return(nil, wallet.ErrWalletNotFound{WalletID: id})

		req, _ := http.NewRequest(http.MethodGet, "/wallets/"+id.String(), nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("InvalidID", func(t *testing.T) {
		router := newWalletRouter(new(MockWalletService), new(MockHistoryService))

		req, _ := http.NewRequest(http.MethodGet, "/wallets/not-a-uuid", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestWalletHandler_GetTransactions(t *testing.T) {
	walletService := new(MockWalletService)
	historyService := new(MockHistoryService)
	router := newWalletRouter(walletService, historyService)

	walletID := uuid.New()
	records := []*history.Record{
		{
			TransactionID: uuid.New(),
			WalletID:      walletID,
			Type:          shared.TransactionTypeTransfer,
			Direction:     shared.DirectionDebit,
			Amount:        250000,
			Currency:      "NGN",
			Status:        shared.TransactionStatusCompleted,
			CreatedAt:     time.Now(),
		},
		{
			TransactionID: uuid.New(),
			WalletID:      walletID,
			Type:          shared.TransactionTypeFunding,
			Direction:     shared.DirectionCredit,
			Amount:        1000000,
			Currency:      "NGN",
			Status:        shared.TransactionStatusCompleted,
			CreatedAt:     time.Now().Add(-time.Hour),
		},
	}
	historyService.On("GetWalletHistory", mock.Anything, walletID, 1, 10).Return(records, int64(12), nil)

	url := fmt.Sprintf("/wallets/%s/transactions?page=1&per_page=10", walletID)
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var response PaginatedResponse[history.Record]
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Len(t, response.Data, 2)
	require.NotNil(t, response.Meta)
	assert.Equal(t, 12, response.Meta.TotalItems)
	assert.Equal(t, 2, response.Meta.TotalPages)
	historyService.AssertExpectations(t)
}
