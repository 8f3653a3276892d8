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

type CreateDepositInput struct {
	MerchantID    uuid.UUID
	AmountCents   int64
	Acquirer      string
	Description   string
	ExpirySeconds int
}

// DepositService creates PIX charges. The fee quote is computed and frozen at
// creation; settlement later credits exactly that quote's net, never a
// recomputed one.
type DepositService struct {
	db           *sql.DB
	merchants    merchantRepo
	accounts     accountRepo
	transactions transactionRepo
	events       transactionEventRepo
	registry     *acquirer.Registry
	retry        acquirer.RetryPolicy
	globalTier   domain.DepositFeeTier
	logger       *slog.Logger
}

func NewDepositService(
	db *sql.DB,
	merchants merchantRepo,
	accounts accountRepo,
	transactions transactionRepo,
	events transactionEventRepo,
	registry *acquirer.Registry,
	retry acquirer.RetryPolicy,
	globalTier domain.DepositFeeTier,
	logger *slog.Logger,
) *DepositService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DepositService{
		db:           db,
		merchants:    merchants,
		accounts:     accounts,
		transactions: transactions,
		events:       events,
		registry:     registry,
		retry:        retry,
		globalTier:   globalTier,
		logger:       logger,
	}
}

// CreateDeposit quotes the fee, asks the acquirer for a charge, and persists
// the transaction in Created with the acquirer's external id and QR payload.
// No balance moves here; the credit happens only when the paid webhook lands.
func (s *DepositService) CreateDeposit(ctx context.Context, in CreateDepositInput) (*domain.Transaction, error) {
	if in.AmountCents <= 0 {
		return nil, fmt.Errorf("CreateDeposit: %w", domain.ErrInvalidAmount)
	}

	merchant, err := s.merchants.GetByID(ctx, in.MerchantID)
	if err != nil {
		return nil, fmt.Errorf("CreateDeposit: %w", err)
	}
	if merchant.Status == domain.MerchantStatusBlocked {
		return nil, fmt.Errorf("CreateDeposit: %w", domain.ErrMerchantBlocked)
	}

	account, err := s.accounts.GetByMerchantID(ctx, merchant.ID)
	if err != nil {
		return nil, fmt.Errorf("CreateDeposit: %w", err)
	}

	client, err := s.registry.Resolve(in.Acquirer)
	if err != nil {
		return nil, fmt.Errorf("CreateDeposit: %w", err)
	}

	quote := fees.CalculateDeposit(in.AmountCents, s.globalTier, merchant)

	charge, err := acquirer.CreateChargeWithRetry(ctx, client, acquirer.ChargeRequest{
		AmountCents:   in.AmountCents,
		Description:   in.Description,
		ExpirySeconds: in.ExpirySeconds,
	}, s.retry)
	if err != nil {
		return nil, fmt.Errorf("CreateDeposit: %w", err)
	}

	now := time.Now().UTC()
	txn := &domain.Transaction{
		ID:              uuid.New(),
		AccountID:       account.ID,
		MerchantID:      merchant.ID,
		Kind:            domain.TransactionKindDeposit,
		Status:          domain.StatusCreated,
		Acquirer:        client.Name(),
		ExternalID:      &charge.ExternalID,
		Channel:         domain.ChannelAPI,
		GrossCents:      quote.GrossCents,
		FeeCents:        quote.FeeCents,
		NetCents:        quote.NetCents,
		TierDescription: quote.TierDescription,
		QRPayload:       &charge.QRPayload,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if in.Description != "" {
		txn.Description = &in.Description
	}

	if err := s.transactions.Create(ctx, nil, txn); err != nil {
		return nil, fmt.Errorf("CreateDeposit: %w", err)
	}

	s.logger.Info("deposit created",
		"transaction_id", txn.ID,
		"merchant_id", merchant.ID,
		"acquirer", txn.Acquirer,
		"gross_cents", txn.GrossCents,
		"fee_cents", txn.FeeCents,
		"net_cents", txn.NetCents,
		"tier", txn.TierDescription,
	)
	return txn, nil
}
