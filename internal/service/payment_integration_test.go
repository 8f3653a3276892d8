package service_test

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brgate/pix-gateway/internal/acquirer"
	"github.com/brgate/pix-gateway/internal/domain"
	"github.com/brgate/pix-gateway/internal/ledger"
	"github.com/brgate/pix-gateway/internal/repository"
	"github.com/brgate/pix-gateway/internal/service"
	"github.com/brgate/pix-gateway/internal/testutil"
)

type fakeAcquirer struct {
	name string

	mu              sync.Mutex
	withdrawals     int
	failWithdrawals bool
}

func (f *fakeAcquirer) Name() string { return f.name }

func (f *fakeAcquirer) CreateCharge(ctx context.Context, req acquirer.ChargeRequest) (*acquirer.ChargeResult, error) {
	return &acquirer.ChargeResult{
		ExternalID: uuid.NewString(),
		QRPayload:  "00020126580014BR.GOV.BCB.PIX",
	}, nil
}

func (f *fakeAcquirer) CreateWithdrawal(ctx context.Context, req acquirer.WithdrawalRequest) (*acquirer.WithdrawalResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWithdrawals {
		return nil, errors.New("connection refused")
	}
	f.withdrawals++
	return &acquirer.WithdrawalResult{
		ExternalID: uuid.NewString(),
		RawStatus:  "EM_PROCESSAMENTO",
	}, nil
}

func (f *fakeAcquirer) GetStatus(ctx context.Context, externalID string) (string, error) {
	return "CONCLUIDA", nil
}

type services struct {
	payments    *service.PaymentService
	deposits    *service.DepositService
	withdrawals *service.WithdrawalService
	accounts    *repository.AccountRepository
	fake        *fakeAcquirer
}

func setupServices(t *testing.T, db *sql.DB) services {
	t.Helper()

	merchantRepo := repository.NewMerchantRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)
	splitRuleRepo := repository.NewSplitRuleRepository(db)
	splitExecRepo := repository.NewSplitExecutionRepository(db)
	eventRepo := repository.NewTransactionEventRepository(db)

	fake := &fakeAcquirer{name: acquirer.Treeal}
	registry := acquirer.NewRegistry(fake)
	retry := acquirer.RetryPolicy{Timeout: 2 * time.Second, MaxRetries: 1}

	logger := slog.Default()
	balances := ledger.New(accountRepo, ledgerRepo, logger)
	gate := service.NewIdempotencyGate(db, idempotencyRepo, logger)
	splits := service.NewSplitEngine(splitRuleRepo, splitExecRepo, accountRepo, balances, logger)

	depositTier := domain.DepositFeeTier{
		Mode:       domain.DepositTierBasic,
		Percentage: mustDecimal(t, "5"),
	}
	withdrawalTier := domain.WithdrawalFeeTier{
		WebPercentage: mustDecimal(t, "5"),
		APIPercentage: mustDecimal(t, "3"),
	}

	return services{
		payments:    service.NewPaymentService(db, gate, transactionRepo, eventRepo, balances, splits, logger),
		deposits:    service.NewDepositService(db, merchantRepo, accountRepo, transactionRepo, eventRepo, registry, retry, depositTier, logger),
		withdrawals: service.NewWithdrawalService(db, merchantRepo, accountRepo, transactionRepo, eventRepo, balances, registry, retry, withdrawalTier, logger),
		accounts:    accountRepo,
		fake:        fake,
	}
}

func seedPendingDeposit(t *testing.T, db *sql.DB, accountID, merchantID uuid.UUID, gross, fee int64) *domain.Transaction {
	t.Helper()
	externalID := uuid.NewString()
	txn := &domain.Transaction{
		AccountID:  accountID,
		MerchantID: merchantID,
		Kind:       domain.TransactionKindDeposit,
		Status:     domain.StatusCreated,
		Acquirer:   acquirer.Treeal,
		ExternalID: &externalID,
		Channel:    domain.ChannelAPI,
		GrossCents: gross,
		FeeCents:   fee,
		NetCents:   gross - fee,
	}
	testutil.SeedTransaction(t, db, txn)
	return txn
}

func paidNotification(txn *domain.Transaction) domain.WebhookNotification {
	return domain.WebhookNotification{
		Acquirer:   txn.Acquirer,
		EventKey:   uuid.NewString(),
		ExternalID: *txn.ExternalID,
		RawStatus:  "CONCLUIDA",
	}
}

func TestHandleWebhook_DepositPaid_CreditsNetOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)
	ctx := context.Background()

	merchant := testutil.SeedMerchant(t, db, "Loja A")
	account := testutil.SeedAccount(t, db, merchant.ID, 0)
	txn := seedPendingDeposit(t, db, account.ID, merchant.ID, 10000, 500)

	n := paidNotification(txn)

	result, replayed, err := svc.payments.HandleWebhook(ctx, n)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, service.ResultProcessed, result.Status)
	assert.Equal(t, int64(9500), testutil.AccountBalance(t, db, account.ID))

	// same event redelivered five times: answered from the record, no
	// handler re-execution, no second credit
	for range 5 {
		result, replayed, err = svc.payments.HandleWebhook(ctx, n)
		require.NoError(t, err)
		assert.True(t, replayed)
		assert.Equal(t, service.ResultProcessed, result.Status)
	}
	assert.Equal(t, int64(9500), testutil.AccountBalance(t, db, account.ID))

	got, err := svc.payments.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, got.Status)
	assert.NotNil(t, got.PaidAt)
}

func TestHandleWebhook_NewEventOnPaidTransaction_AlreadyProcessed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)
	ctx := context.Background()

	merchant := testutil.SeedMerchant(t, db, "Loja B")
	account := testutil.SeedAccount(t, db, merchant.ID, 0)
	txn := seedPendingDeposit(t, db, account.ID, merchant.ID, 20000, 600)

	_, _, err := svc.payments.HandleWebhook(ctx, paidNotification(txn))
	require.NoError(t, err)
	require.Equal(t, int64(19400), testutil.AccountBalance(t, db, account.ID))

	// distinct event id, same paid status: different idempotency key, so the
	// handler runs, but the transaction state machine refuses a second credit
	result, replayed, err := svc.payments.HandleWebhook(ctx, paidNotification(txn))
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, service.ResultAlreadyProcessed, result.Status)
	assert.Equal(t, int64(19400), testutil.AccountBalance(t, db, account.ID))
}

func TestHandleWebhook_UnknownExternalID_IgnoredButRecorded(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)
	ctx := context.Background()

	n := domain.WebhookNotification{
		Acquirer:   acquirer.Treeal,
		EventKey:   uuid.NewString(),
		ExternalID: "does-not-exist",
		RawStatus:  "CONCLUIDA",
	}

	result, replayed, err := svc.payments.HandleWebhook(ctx, n)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, service.ResultIgnored, result.Status)

	result, replayed, err = svc.payments.HandleWebhook(ctx, n)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, service.ResultIgnored, result.Status)
}

func TestHandleWebhook_UnknownStatus_DefaultsToProcessing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)
	ctx := context.Background()

	merchant := testutil.SeedMerchant(t, db, "Loja C")
	account := testutil.SeedAccount(t, db, merchant.ID, 0)
	txn := seedPendingDeposit(t, db, account.ID, merchant.ID, 10000, 500)

	n := paidNotification(txn)
	n.RawStatus = "STATUS_NOBODY_HAS_SEEN"

	result, _, err := svc.payments.HandleWebhook(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, service.ResultProcessed, result.Status)

	// safe default never settles money
	assert.Equal(t, int64(0), testutil.AccountBalance(t, db, account.ID))
	got, err := svc.payments.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, got.Status)
}

func TestHandleWebhook_ConcurrentDeliveries_SingleCredit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)
	ctx := context.Background()

	merchant := testutil.SeedMerchant(t, db, "Loja D")
	account := testutil.SeedAccount(t, db, merchant.ID, 0)
	txn := seedPendingDeposit(t, db, account.ID, merchant.ID, 10000, 500)

	n := paidNotification(txn)

	const deliveries = 8
	var wg sync.WaitGroup
	results := make(chan error, deliveries)
	for range deliveries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.payments.HandleWebhook(ctx, n)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	for err := range results {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(9500), testutil.AccountBalance(t, db, account.ID))

	var entries int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM ledger_entries WHERE transaction_id = $1`, txn.ID,
	).Scan(&entries))
	assert.Equal(t, 1, entries)
}

func TestHandleWebhook_WithdrawalFailed_RefundsDebit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)
	ctx := context.Background()

	merchant := testutil.SeedMerchant(t, db, "Loja E")
	account := testutil.SeedAccount(t, db, merchant.ID, 50000)

	txn, err := svc.withdrawals.CreateWithdrawal(ctx, service.CreateWithdrawalInput{
		MerchantID:  merchant.ID,
		AmountCents: 10000,
		Channel:     domain.ChannelWeb,
		Acquirer:    acquirer.Treeal,
		PixKeyValue: "a@b.com",
		PixKeyType:  "email",
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusProcessing, txn.Status)
	// web 5% fee on top: 10000 + 500 debited
	require.Equal(t, int64(39500), testutil.AccountBalance(t, db, account.ID))

	result, _, err := svc.payments.HandleWebhook(ctx, domain.WebhookNotification{
		Acquirer:   acquirer.Treeal,
		EventKey:   uuid.NewString(),
		ExternalID: *txn.ExternalID,
		RawStatus:  "DEVOLVIDA",
	})
	require.NoError(t, err)
	assert.Equal(t, service.ResultProcessed, result.Status)

	assert.Equal(t, int64(50000), testutil.AccountBalance(t, db, account.ID))
	got, err := svc.payments.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRefunded, got.Status)
}

func TestHandleWebhook_DepositRefund_ReversesCredit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)
	ctx := context.Background()

	merchant := testutil.SeedMerchant(t, db, "Loja F")
	account := testutil.SeedAccount(t, db, merchant.ID, 0)
	txn := seedPendingDeposit(t, db, account.ID, merchant.ID, 10000, 500)

	_, _, err := svc.payments.HandleWebhook(ctx, paidNotification(txn))
	require.NoError(t, err)
	require.Equal(t, int64(9500), testutil.AccountBalance(t, db, account.ID))

	refund := domain.WebhookNotification{
		Acquirer:   txn.Acquirer,
		EventKey:   uuid.NewString(),
		ExternalID: *txn.ExternalID,
		RawStatus:  "DEVOLVIDA",
	}
	result, _, err := svc.payments.HandleWebhook(ctx, refund)
	require.NoError(t, err)
	assert.Equal(t, service.ResultProcessed, result.Status)
	assert.Equal(t, int64(0), testutil.AccountBalance(t, db, account.ID))

	// second refund event: transaction already Refunded, nothing moves
	refund.EventKey = uuid.NewString()
	result, _, err = svc.payments.HandleWebhook(ctx, refund)
	require.NoError(t, err)
	assert.Equal(t, service.ResultAlreadyProcessed, result.Status)
	assert.Equal(t, int64(0), testutil.AccountBalance(t, db, account.ID))
}

func TestHandleWebhook_StaleEventAfterTerminal_Ignored(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)
	ctx := context.Background()

	merchant := testutil.SeedMerchant(t, db, "Loja G")
	account := testutil.SeedAccount(t, db, merchant.ID, 0)
	txn := seedPendingDeposit(t, db, account.ID, merchant.ID, 10000, 500)

	_, _, err := svc.payments.HandleWebhook(ctx, paidNotification(txn))
	require.NoError(t, err)

	late := domain.WebhookNotification{
		Acquirer:   txn.Acquirer,
		EventKey:   uuid.NewString(),
		ExternalID: *txn.ExternalID,
		RawStatus:  "EM_PROCESSAMENTO",
	}
	result, _, err := svc.payments.HandleWebhook(ctx, late)
	require.NoError(t, err)
	assert.Equal(t, service.ResultIgnored, result.Status)

	got, err := svc.payments.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, got.Status)
}

func TestSplitDistribution_AtMostOncePerRule(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)
	ctx := context.Background()

	merchant := testutil.SeedMerchant(t, db, "Loja H")
	account := testutil.SeedAccount(t, db, merchant.ID, 0)

	manager := testutil.SeedMerchant(t, db, "Gestor")
	managerAccount := testutil.SeedAccount(t, db, manager.ID, 0)

	// manager gets 10% of the fee on every deposit
	testutil.SeedSplitRule(t, db, merchant.ID, manager.ID, "10", domain.TransactionKindDeposit, domain.SplitBasisFee)

	txn := seedPendingDeposit(t, db, account.ID, merchant.ID, 10000, 500)

	_, _, err := svc.payments.HandleWebhook(ctx, paidNotification(txn))
	require.NoError(t, err)

	assert.Equal(t, int64(9500), testutil.AccountBalance(t, db, account.ID))
	assert.Equal(t, int64(50), testutil.AccountBalance(t, db, managerAccount.ID))

	// a distinct paid event for the same transaction reaches the state
	// machine but the split execution key blocks a second payout
	_, _, err = svc.payments.HandleWebhook(ctx, paidNotification(txn))
	require.NoError(t, err)
	assert.Equal(t, int64(50), testutil.AccountBalance(t, db, managerAccount.ID))

	var execs int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM split_executions WHERE transaction_id = $1`, txn.ID,
	).Scan(&execs))
	assert.Equal(t, 1, execs)
}

func TestCreateWithdrawal_InsufficientBalance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)
	ctx := context.Background()

	merchant := testutil.SeedMerchant(t, db, "Loja I")
	account := testutil.SeedAccount(t, db, merchant.ID, 10000)

	// 10000 + 5% fee = 10500 needed, only 10000 available
	_, err := svc.withdrawals.CreateWithdrawal(ctx, service.CreateWithdrawalInput{
		MerchantID:  merchant.ID,
		AmountCents: 10000,
		Channel:     domain.ChannelWeb,
		Acquirer:    acquirer.Treeal,
		PixKeyValue: "a@b.com",
		PixKeyType:  "email",
	})
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Equal(t, int64(10000), testutil.AccountBalance(t, db, account.ID))
	assert.Equal(t, 0, svc.fake.withdrawals)
}

func TestCreateWithdrawal_AcquirerFailure_NoDebit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)
	ctx := context.Background()

	merchant := testutil.SeedMerchant(t, db, "Loja J")
	account := testutil.SeedAccount(t, db, merchant.ID, 50000)
	svc.fake.failWithdrawals = true

	_, err := svc.withdrawals.CreateWithdrawal(ctx, service.CreateWithdrawalInput{
		MerchantID:  merchant.ID,
		AmountCents: 10000,
		Channel:     domain.ChannelWeb,
		Acquirer:    acquirer.Treeal,
		PixKeyValue: "a@b.com",
		PixKeyType:  "email",
	})
	require.ErrorIs(t, err, domain.ErrAcquirerCallFailed)
	assert.Equal(t, int64(50000), testutil.AccountBalance(t, db, account.ID))
}

func TestCreateWithdrawal_AboveLimit_WaitsForApproval(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)
	ctx := context.Background()

	merchant := testutil.SeedMerchant(t, db, "Loja K")
	account := testutil.SeedAccount(t, db, merchant.ID, 100000)
	limit := int64(5000)
	testutil.SetAutoApprovalLimit(t, db, merchant.ID, &limit)

	txn, err := svc.withdrawals.CreateWithdrawal(ctx, service.CreateWithdrawalInput{
		MerchantID:  merchant.ID,
		AmountCents: 10000,
		Channel:     domain.ChannelAPI,
		Acquirer:    acquirer.Treeal,
		PixKeyValue: "a@b.com",
		PixKeyType:  "email",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaitingApproval, txn.Status)
	assert.Nil(t, txn.ExternalID)

	// nothing debited, nothing submitted
	assert.Equal(t, int64(100000), testutil.AccountBalance(t, db, account.ID))
	assert.Equal(t, 0, svc.fake.withdrawals)

	approved, err := svc.withdrawals.ApproveWithdrawal(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, approved.Status)
	require.NotNil(t, approved.ExternalID)

	// api 3% fee: 10000 + 300
	assert.Equal(t, int64(89700), testutil.AccountBalance(t, db, account.ID))
	assert.Equal(t, 1, svc.fake.withdrawals)

	// second approval attempt is rejected by the row-level state check
	_, err = svc.withdrawals.ApproveWithdrawal(ctx, txn.ID)
	require.ErrorIs(t, err, domain.ErrNotWaitingApproval)
	assert.Equal(t, 1, svc.fake.withdrawals)
}

func TestCreateWithdrawal_NilLimit_AlwaysAutomatic(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)
	ctx := context.Background()

	merchant := testutil.SeedMerchant(t, db, "Loja L")
	account := testutil.SeedAccount(t, db, merchant.ID, 10_000_000)

	txn, err := svc.withdrawals.CreateWithdrawal(ctx, service.CreateWithdrawalInput{
		MerchantID:  merchant.ID,
		AmountCents: 5_000_000,
		Channel:     domain.ChannelAPI,
		Acquirer:    acquirer.Treeal,
		PixKeyValue: "a@b.com",
		PixKeyType:  "email",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, txn.Status)
	assert.Equal(t, int64(10_000_000-5_000_000-150_000), testutil.AccountBalance(t, db, account.ID))
}

func TestConcurrentWithdrawals_CannotOverdraw(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)
	ctx := context.Background()

	merchant := testutil.SeedMerchant(t, db, "Loja M")
	account := testutil.SeedAccount(t, db, merchant.ID, 21000)

	// each withdrawal needs 10000 + 500; the balance covers two
	const attempts = 5
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.withdrawals.CreateWithdrawal(ctx, service.CreateWithdrawalInput{
				MerchantID:  merchant.ID,
				AmountCents: 10000,
				Channel:     domain.ChannelWeb,
				Acquirer:    acquirer.Treeal,
				PixKeyValue: "a@b.com",
				PixKeyType:  "email",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, rejected int
	for err := range errs {
		if err == nil {
			succeeded++
		} else if errors.Is(err, domain.ErrInsufficientBalance) {
			rejected++
		} else {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 2, succeeded)
	assert.Equal(t, attempts-2, rejected)
	assert.Equal(t, int64(0), testutil.AccountBalance(t, db, account.ID))
}

func TestCreateDeposit_PersonalizedFeeApplied(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)
	ctx := context.Background()

	merchant := testutil.SeedMerchant(t, db, "Loja N")
	testutil.SeedAccount(t, db, merchant.ID, 0)
	testutil.SetPersonalizedDepositFee(t, db, merchant.ID, "2", 100)

	txn, err := svc.deposits.CreateDeposit(ctx, service.CreateDepositInput{
		MerchantID:  merchant.ID,
		AmountCents: 10000,
		Acquirer:    acquirer.Treeal,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCreated, txn.Status)
	require.NotNil(t, txn.ExternalID)
	require.NotNil(t, txn.QRPayload)
	// 2% of 10000 + 100 fixed
	assert.Equal(t, int64(300), txn.FeeCents)
	assert.Equal(t, int64(9700), txn.NetCents)
	assert.Contains(t, txn.TierDescription, "PERSONALIZADA")
}

func TestReverse_AdminReversal(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupServices(t, db)
	ctx := context.Background()

	merchant := testutil.SeedMerchant(t, db, "Loja O")
	account := testutil.SeedAccount(t, db, merchant.ID, 0)
	txn := seedPendingDeposit(t, db, account.ID, merchant.ID, 10000, 500)

	_, _, err := svc.payments.HandleWebhook(ctx, paidNotification(txn))
	require.NoError(t, err)

	require.NoError(t, svc.payments.Reverse(ctx, txn.ID, domain.StatusRefunded, "customer dispute"))
	assert.Equal(t, int64(0), testutil.AccountBalance(t, db, account.ID))

	err = svc.payments.Reverse(ctx, txn.ID, domain.StatusRefunded, "again")
	require.ErrorIs(t, err, domain.ErrTransactionTerminal)
	assert.Equal(t, int64(0), testutil.AccountBalance(t, db, account.ID))
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}
