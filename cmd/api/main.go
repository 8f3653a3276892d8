package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brgate/pix-gateway/internal/acquirer"
	"github.com/brgate/pix-gateway/internal/config"
	"github.com/brgate/pix-gateway/internal/handler"
	"github.com/brgate/pix-gateway/internal/ledger"
	"github.com/brgate/pix-gateway/internal/logging"
	"github.com/brgate/pix-gateway/internal/middleware"
	"github.com/brgate/pix-gateway/internal/repository"
	"github.com/brgate/pix-gateway/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("pix-gateway", cfg.LogLevel, cfg.AppEnv)

	depositTier, err := cfg.GlobalDepositTier()
	if err != nil {
		slog.Error("invalid deposit fee configuration", "error", err)
		os.Exit(1)
	}
	withdrawalTier, err := cfg.GlobalWithdrawalTier()
	if err != nil {
		slog.Error("invalid withdrawal fee configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	cancel()
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	merchantRepo := repository.NewMerchantRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)
	splitRuleRepo := repository.NewSplitRuleRepository(db)
	splitExecRepo := repository.NewSplitExecutionRepository(db)
	eventRepo := repository.NewTransactionEventRepository(db)

	registry := acquirer.NewRegistry()
	timeout := time.Duration(cfg.AcquirerTimeoutS) * time.Second
	for name, baseURL := range cfg.AcquirerBaseURLs {
		registry.Register(acquirer.NewHTTPClient(name, baseURL, cfg.AcquirerAPIKey, timeout))
	}
	retry := acquirer.RetryPolicy{
		Timeout:    timeout,
		MaxRetries: uint64(cfg.AcquirerMaxRetries),
	}

	balances := ledger.New(accountRepo, ledgerRepo, slog.Default())
	gate := service.NewIdempotencyGate(db, idempotencyRepo, slog.Default())
	splits := service.NewSplitEngine(splitRuleRepo, splitExecRepo, accountRepo, balances, slog.Default())
	payments := service.NewPaymentService(db, gate, transactionRepo, eventRepo, balances, splits, slog.Default())
	deposits := service.NewDepositService(db, merchantRepo, accountRepo, transactionRepo, eventRepo, registry, retry, depositTier, slog.Default())
	withdrawals := service.NewWithdrawalService(db, merchantRepo, accountRepo, transactionRepo, eventRepo, balances, registry, retry, withdrawalTier, slog.Default())

	mux := handler.NewRouter(
		handler.NewHealthHandler(db),
		handler.NewWebhookHandler(payments, registry, cfg.WebhookSecret),
		handler.NewTransactionHandler(deposits, withdrawals, payments),
		handler.NewAccountHandler(accountRepo, ledgerRepo),
	)

	var root http.Handler = mux
	root = middleware.Recovery(root)
	root = middleware.Logging(root)
	root = middleware.Tracing(root)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr, "acquirers", registry.Names())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
