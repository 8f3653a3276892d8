package handler

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts every route on a ServeMux using Go 1.22 method patterns.
func NewRouter(
	health *HealthHandler,
	webhooks *WebhookHandler,
	transactions *TransactionHandler,
	accounts *AccountHandler,
) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", health.Liveness)
	mux.HandleFunc("GET /health/ready", health.Readiness)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/v1/webhooks/{acquirer}", webhooks.ReceiveAcquirerWebhook)

	mux.HandleFunc("POST /api/v1/deposits", transactions.CreateDeposit)
	mux.HandleFunc("POST /api/v1/withdrawals", transactions.CreateWithdrawal)
	mux.HandleFunc("POST /api/v1/withdrawals/{id}/approve", transactions.ApproveWithdrawal)
	mux.HandleFunc("GET /api/v1/transactions/{id}", transactions.GetTransaction)

	mux.HandleFunc("GET /api/v1/accounts/{id}/balance", accounts.GetBalance)
	mux.HandleFunc("GET /api/v1/accounts/{id}/statement", accounts.GetStatement)

	return mux
}
