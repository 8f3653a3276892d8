package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/brgate/pix-gateway/internal/acquirer"
	"github.com/brgate/pix-gateway/internal/domain"
	"github.com/brgate/pix-gateway/internal/fees"
)

type CreateWithdrawalInput struct {
	MerchantID  uuid.UUID
	AmountCents int64
	Channel     domain.Channel
	Acquirer    string
	PixKeyValue string
	PixKeyType  string
	Description string
}

// WithdrawalService submits PIX payouts. A withdrawal below the merchant's
// auto-approval limit goes straight to the acquirer and is debited in the
// same database transaction; one above it parks in WaitingApproval with no
// money moved until an operator approves it. A nil limit means every
// withdrawal is automatic.
type WithdrawalService struct {
	db           *sql.DB
	merchants    merchantRepo
	accounts     accountRepo
	transactions transactionRepo
	events       transactionEventRepo
	ledger       balanceLedger
	registry     *acquirer.Registry
	retry        acquirer.RetryPolicy
	globalTier   domain.WithdrawalFeeTier
	logger       *slog.Logger
}

func NewWithdrawalService(
	db *sql.DB,
	merchants merchantRepo,
	accounts accountRepo,
	transactions transactionRepo,
	events transactionEventRepo,
	ledger balanceLedger,
	registry *acquirer.Registry,
	retry acquirer.RetryPolicy,
	globalTier domain.WithdrawalFeeTier,
	logger *slog.Logger,
) *WithdrawalService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WithdrawalService{
		db:           db,
		merchants:    merchants,
		accounts:     accounts,
		transactions: transactions,
		events:       events,
		ledger:       ledger,
		registry:     registry,
		retry:        retry,
		globalTier:   globalTier,
		logger:       logger,
	}
}

// CreateWithdrawal quotes the fee (charged on top of the requested amount),
// verifies the balance covers amount+fee under the account row lock, and
// either submits to the acquirer immediately or parks for manual approval.
// An acquirer failure or timeout rolls everything back: no debit without a
// successful submission.
func (s *WithdrawalService) CreateWithdrawal(ctx context.Context, in CreateWithdrawalInput) (*domain.Transaction, error) {
	if in.AmountCents <= 0 {
		return nil, fmt.Errorf("CreateWithdrawal: %w", domain.ErrInvalidAmount)
	}
	if in.PixKeyValue == "" || in.PixKeyType == "" {
		return nil, fmt.Errorf("CreateWithdrawal: pix key: %w", domain.ErrInvalidRequest)
	}

	merchant, err := s.merchants.GetByID(ctx, in.MerchantID)
	if err != nil {
		return nil, fmt.Errorf("CreateWithdrawal: %w", err)
	}
	if merchant.Status == domain.MerchantStatusBlocked {
		return nil, fmt.Errorf("CreateWithdrawal: %w", domain.ErrMerchantBlocked)
	}

	account, err := s.accounts.GetByMerchantID(ctx, merchant.ID)
	if err != nil {
		return nil, fmt.Errorf("CreateWithdrawal: %w", err)
	}

	client, err := s.registry.Resolve(in.Acquirer)
	if err != nil {
		return nil, fmt.Errorf("CreateWithdrawal: %w", err)
	}

	quote := fees.CalculateWithdrawal(in.AmountCents, in.Channel, s.globalTier, merchant)
	debit := quote.GrossCents + quote.FeeCents

	automatic := merchant.AutoApprovalLimitCents == nil || in.AmountCents <= *merchant.AutoApprovalLimitCents

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("CreateWithdrawal: begin tx: %w", err)
	}
	defer tx.Rollback()

	locked, err := s.accounts.GetForUpdate(ctx, tx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("CreateWithdrawal: %w", err)
	}
	if locked.BalanceCents < debit {
		return nil, fmt.Errorf("CreateWithdrawal: need %d, have %d: %w",
			debit, locked.BalanceCents, domain.ErrInsufficientBalance)
	}

	now := time.Now().UTC()
	txn := &domain.Transaction{
		ID:              uuid.New(),
		AccountID:       account.ID,
		MerchantID:      merchant.ID,
		Kind:            domain.TransactionKindWithdrawal,
		Status:          domain.StatusWaitingApproval,
		Acquirer:        client.Name(),
		Channel:         in.Channel,
		GrossCents:      quote.GrossCents,
		FeeCents:        quote.FeeCents,
		NetCents:        quote.NetCents,
		TierDescription: quote.TierDescription,
		PixKeyValue:     &in.PixKeyValue,
		PixKeyType:      &in.PixKeyType,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if in.Description != "" {
		txn.Description = &in.Description
	}

	if automatic {
		result, err := acquirer.CreateWithdrawalWithRetry(ctx, client, acquirer.WithdrawalRequest{
			AmountCents:    in.AmountCents,
			PixKeyValue:    in.PixKeyValue,
			PixKeyType:     in.PixKeyType,
			IdempotencyKey: txn.ID.String(),
			Description:    in.Description,
		}, s.retry)
		if err != nil {
			return nil, fmt.Errorf("CreateWithdrawal: %w", err)
		}
		txn.Status = domain.StatusProcessing
		txn.ExternalID = &result.ExternalID
	}

	if err := s.transactions.Create(ctx, tx, txn); err != nil {
		return nil, fmt.Errorf("CreateWithdrawal: %w", err)
	}
	if automatic {
		if _, err := s.ledger.Decrement(ctx, tx, account.ID, debit, reasonWithdrawalDebit, txn.ID); err != nil {
			return nil, fmt.Errorf("CreateWithdrawal: %w", err)
		}
	}

	event := &domain.TransactionEvent{
		ID:            uuid.New(),
		TransactionID: txn.ID,
		FromStatus:    domain.StatusCreated,
		ToStatus:      txn.Status,
		Actor:         "merchant",
		AmountCents:   txn.GrossCents,
		CreatedAt:     now,
	}
	if err := s.events.Create(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("CreateWithdrawal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("CreateWithdrawal: commit: %w", err)
	}

	s.logger.Info("withdrawal created",
		"transaction_id", txn.ID,
		"merchant_id", merchant.ID,
		"status", txn.Status,
		"automatic", automatic,
		"gross_cents", txn.GrossCents,
		"fee_cents", txn.FeeCents,
		"debit_cents", debit,
	)
	return txn, nil
}

// ApproveWithdrawal submits a parked withdrawal. The transaction row lock
// makes double approval impossible: the second caller sees Processing and
// gets ErrNotWaitingApproval. The debit happens here, in the same database
// transaction as the submission, using the quote frozen at creation.
func (s *WithdrawalService) ApproveWithdrawal(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ApproveWithdrawal: begin tx: %w", err)
	}
	defer tx.Rollback()

	txn, err := s.transactions.GetForUpdate(ctx, tx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("ApproveWithdrawal: %w", err)
	}
	if txn.Status != domain.StatusWaitingApproval {
		return nil, fmt.Errorf("ApproveWithdrawal: status %s: %w", txn.Status, domain.ErrNotWaitingApproval)
	}

	locked, err := s.accounts.GetForUpdate(ctx, tx, txn.AccountID)
	if err != nil {
		return nil, fmt.Errorf("ApproveWithdrawal: %w", err)
	}
	debit := txn.DebitCents()
	if locked.BalanceCents < debit {
		return nil, fmt.Errorf("ApproveWithdrawal: need %d, have %d: %w",
			debit, locked.BalanceCents, domain.ErrInsufficientBalance)
	}

	client, err := s.registry.Resolve(txn.Acquirer)
	if err != nil {
		return nil, fmt.Errorf("ApproveWithdrawal: %w", err)
	}

	var pixValue, pixType string
	if txn.PixKeyValue != nil {
		pixValue = *txn.PixKeyValue
	}
	if txn.PixKeyType != nil {
		pixType = *txn.PixKeyType
	}
	result, err := acquirer.CreateWithdrawalWithRetry(ctx, client, acquirer.WithdrawalRequest{
		AmountCents:    txn.GrossCents,
		PixKeyValue:    pixValue,
		PixKeyType:     pixType,
		IdempotencyKey: txn.ID.String(),
	}, s.retry)
	if err != nil {
		return nil, fmt.Errorf("ApproveWithdrawal: %w", err)
	}

	if _, err := s.ledger.Decrement(ctx, tx, txn.AccountID, debit, reasonWithdrawalDebit, txn.ID); err != nil {
		return nil, fmt.Errorf("ApproveWithdrawal: %w", err)
	}
	if err := s.transactions.SetExternalID(ctx, tx, txn.ID, result.ExternalID, nil); err != nil {
		return nil, fmt.Errorf("ApproveWithdrawal: %w", err)
	}
	if err := s.transactions.UpdateStatus(ctx, tx, txn.ID, domain.StatusProcessing, nil, nil); err != nil {
		return nil, fmt.Errorf("ApproveWithdrawal: %w", err)
	}

	event := &domain.TransactionEvent{
		ID:            uuid.New(),
		TransactionID: txn.ID,
		FromStatus:    domain.StatusWaitingApproval,
		ToStatus:      domain.StatusProcessing,
		Actor:         "admin",
		AmountCents:   txn.GrossCents,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.events.Create(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("ApproveWithdrawal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("ApproveWithdrawal: commit: %w", err)
	}

	txn.Status = domain.StatusProcessing
	txn.ExternalID = &result.ExternalID

	s.logger.Info("withdrawal approved",
		"transaction_id", txn.ID,
		"debit_cents", debit,
		"external_id", result.ExternalID,
	)
	return txn, nil
}
