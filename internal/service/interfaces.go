package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/brgate/pix-gateway/internal/domain"
)

type transactionRepo interface {
	Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Transaction, error)
	GetByExternalIDForUpdate(ctx context.Context, tx *sql.Tx, acquirerName, externalID string) (*domain.Transaction, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.Status, failureReason *string, paidAt *time.Time) error
	SetExternalID(ctx context.Context, tx *sql.Tx, id uuid.UUID, externalID string, qrPayload *string) error
}

type merchantRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error)
}

type accountRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByMerchantID(ctx context.Context, merchantID uuid.UUID) (*domain.Account, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error)
}

type transactionEventRepo interface {
	Create(ctx context.Context, tx *sql.Tx, event *domain.TransactionEvent) error
}

type splitRuleRepo interface {
	GetActiveForPayer(ctx context.Context, tx *sql.Tx, payerID uuid.UUID, kind domain.TransactionKind) ([]domain.SplitRule, error)
}

type splitExecutionRepo interface {
	Create(ctx context.Context, tx *sql.Tx, exec *domain.SplitExecution) (bool, error)
}

type balanceLedger interface {
	Increment(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, amountCents int64, reason string, transactionID uuid.UUID) (*domain.LedgerEntry, error)
	Decrement(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, amountCents int64, reason string, transactionID uuid.UUID) (*domain.LedgerEntry, error)
}
