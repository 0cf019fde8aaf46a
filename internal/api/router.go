package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vaultpay/payment-core/internal/api/handler"
	"github.com/vaultpay/payment-core/internal/api/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	walletHandler *handler.WalletHandler,
	paymentHandler *handler.PaymentHandler,
	payrollHandler *handler.PayrollHandler,
	callbackHandler *handler.CallbackHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Wallet operations
		wallets := v1.Group("/wallets")
		{
			wallets.POST("", walletHandler.Create)
			wallets.GET("/:id", walletHandler.GetByID)
			wallets.GET("/:id/transactions", walletHandler.GetTransactions)
		}

		// Ledger transactions
		transactions := v1.Group("/transactions")
		{
			transactions.GET("/:id", paymentHandler.GetTransaction)
			transactions.POST("/:id/reverse", paymentHandler.Reverse)
		}

		// Balance movements
		balances := v1.Group("/balances")
		{
			balances.POST("/fund", paymentHandler.Fund)
			balances.POST("/withdraw", paymentHandler.Withdraw)
			balances.POST("/send", paymentHandler.Send)
		}

		// Utility and bill payments
		v1.POST("/payments/utility", paymentHandler.PayUtility)
		v1.POST("/payment/validate-account", paymentHandler.ValidateAccount)

		// Payroll operations
		payroll := v1.Group("/payroll")
		{
			payroll.POST("/entries", payrollHandler.CreateEntry)
			payroll.PUT("/entries/:id", payrollHandler.UpdateEntry)
			payroll.GET("/entries", payrollHandler.ListEntries)
			payroll.POST("/process", payrollHandler.Process)
			payroll.POST("/:id/pay", payrollHandler.PayEntry)
		}

		// Provider webhook ingress
		v1.POST("/callbacks/provider", callbackHandler.Receive)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
