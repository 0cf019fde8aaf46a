package validator

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultpay/payment-core/internal/config"
	"github.com/vaultpay/payment-core/internal/domain/shared"
)

func newService(lookupURL string) *Service {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return NewService(logger, &config.ValidatorConfig{
		LookupURL:      lookupURL,
		APIKey:         "test-key",
		RequestTimeout: 2 * time.Second,
	})
}

func TestService_Validate_FormatRules(t *testing.T) {
	svc := newService("http://unused")
	ctx := context.Background()

	tests := []struct {
		name      string
		rail      shared.RailKind
		recipient *shared.RecipientDetails
		wantErr   bool
	}{
		{
			name: "valid NG card destination",
			rail: shared.RailCard,
			recipient: &shared.RecipientDetails{
				AccountNumber: "0123456789",
				BankCode:      "058",
				CountryCode:   "NG",
			},
		},
		{
			name: "NG account number too short",
			rail: shared.RailCard,
			recipient: &shared.RecipientDetails{
				AccountNumber: "01234",
				BankCode:      "058",
				CountryCode:   "NG",
			},
			wantErr: true,
		},
		{
			name: "US routing number must be nine digits",
			rail: shared.RailCard,
			recipient: &shared.RecipientDetails{
				AccountNumber: "12345678",
				BankCode:      "02100002",
				CountryCode:   "US",
			},
			wantErr: true,
		},
		{
			name: "GB sort code accepted",
			rail: shared.RailCard,
			recipient: &shared.RecipientDetails{
				AccountNumber: "12345678",
				BankCode:      "123456",
				CountryCode:   "GB",
			},
		},
		{
			name: "unknown country falls back to generic rule",
			rail: shared.RailCard,
			recipient: &shared.RecipientDetails{
				AccountNumber: "123456789012",
				BankCode:      "ABCDE",
				CountryCode:   "KE",
			},
		},
		{
			name: "valid utility reference",
			rail: shared.RailUtility,
			recipient: &shared.RecipientDetails{
				Provider:    "ikeja-electric",
				Reference:   "08031234567",
				CountryCode: "NG",
			},
		},
		{
			name: "utility without provider",
			rail: shared.RailUtility,
			recipient: &shared.RecipientDetails{
				Reference:   "08031234567",
				CountryCode: "NG",
			},
			wantErr: true,
		},
		{
			name: "valid ethereum address",
			rail: shared.RailCrypto,
			recipient: &shared.RecipientDetails{
				AccountNumber: "0x52908400098527886E0F7030069857D2E4169EE7",
				CountryCode:   "US",
			},
		},
		{
			name: "garbage crypto address",
			rail: shared.RailCrypto,
			recipient: &shared.RecipientDetails{
				AccountNumber: "not-an-address",
				CountryCode:   "US",
			},
			wantErr: true,
		},
		{
			name:    "nil recipient",
			rail:    shared.RailCard,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.Validate(ctx, tt.rail, tt.recipient)
			if tt.wantErr {
				assert.Error(t, err)
				var formatErr ErrInvalidFormat
				assert.ErrorAs(t, err, &formatErr)
				assert.Nil(t, result)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, result)
			}
		})
	}
}

func TestService_Validate_BankLookup(t *testing.T) {
	ctx := context.Background()
	recipient := &shared.RecipientDetails{
		AccountNumber: "0123456789",
		BankCode:      "058",
		CountryCode:   "NG",
	}

	t.Run("resolves account name", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"account_name":"ADA OKAFOR"}`))
		}))
		defer server.Close()

		result, err := newService(server.URL).Validate(ctx, shared.RailBankTransfer, recipient)
		require.NoError(t, err)
		assert.Equal(t, "ADA OKAFOR", result.AccountName)
	})

	t.Run("unknown account", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		result, err := newService(server.URL).Validate(ctx, shared.RailBankTransfer, recipient)
		assert.Nil(t, result)
		var notFoundErr ErrAccountNotFound
		require.ErrorAs(t, err, &notFoundErr)
		assert.Equal(t, "0123456789", notFoundErr.AccountNumber)
	})

	t.Run("lookup service down", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		result, err := newService(server.URL).Validate(ctx, shared.RailBankTransfer, recipient)
		assert.Nil(t, result)
		var unavailableErr ErrLookupUnavailable
		assert.ErrorAs(t, err, &unavailableErr)
	})

	t.Run("unreachable host", func(t *testing.T) {
		result, err := newService("http://127.0.0.1:1").Validate(ctx, shared.RailBankTransfer, recipient)
		assert.Nil(t, result)
		var unavailableErr ErrLookupUnavailable
		assert.ErrorAs(t, err, &unavailableErr)
	})
}
