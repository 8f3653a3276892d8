// Package ledger is the only path that moves money. Every mutation locks the
// account row, rechecks the balance under the lock, updates it, and appends
// an immutable audit entry, all inside the transaction supplied by the
// caller, so either everything commits or nothing does.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/brgate/pix-gateway/internal/domain"
)

type accountRepo interface {
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error)
	UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, newBalance, newVersion int64) error
}

type entryRepo interface {
	Create(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error
}

type Ledger struct {
	accounts accountRepo
	entries  entryRepo
	logger   *slog.Logger
}

func New(accounts accountRepo, entries entryRepo, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{accounts: accounts, entries: entries, logger: logger}
}

// Increment credits amountCents to the account inside tx.
func (l *Ledger) Increment(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, amountCents int64, reason string, transactionID uuid.UUID) (*domain.LedgerEntry, error) {
	if amountCents < 0 {
		return nil, fmt.Errorf("Increment: %w", domain.ErrInvalidAmount)
	}

	account, err := l.accounts.GetForUpdate(ctx, tx, accountID)
	if err != nil {
		return nil, fmt.Errorf("Increment: %w", err)
	}

	entry, err := l.apply(ctx, tx, account, domain.EntryTypeCredit, amountCents, reason, transactionID)
	if err != nil {
		return nil, fmt.Errorf("Increment: %w", err)
	}
	return entry, nil
}

// Decrement debits amountCents from the account inside tx. It fails with
// ErrInsufficientBalance when the locked balance cannot cover the debit; the
// check runs against the balance read under the row lock, never a stale copy.
func (l *Ledger) Decrement(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, amountCents int64, reason string, transactionID uuid.UUID) (*domain.LedgerEntry, error) {
	if amountCents < 0 {
		return nil, fmt.Errorf("Decrement: %w", domain.ErrInvalidAmount)
	}

	account, err := l.accounts.GetForUpdate(ctx, tx, accountID)
	if err != nil {
		return nil, fmt.Errorf("Decrement: %w", err)
	}

	if account.BalanceCents < amountCents {
		return nil, fmt.Errorf("Decrement: have %d, need %d: %w",
			account.BalanceCents, amountCents, domain.ErrInsufficientBalance)
	}

	entry, err := l.apply(ctx, tx, account, domain.EntryTypeDebit, amountCents, reason, transactionID)
	if err != nil {
		return nil, fmt.Errorf("Decrement: %w", err)
	}
	return entry, nil
}

func (l *Ledger) apply(ctx context.Context, tx *sql.Tx, account *domain.Account, entryType domain.EntryType, amountCents int64, reason string, transactionID uuid.UUID) (*domain.LedgerEntry, error) {
	newBalance := account.BalanceCents + amountCents
	if entryType == domain.EntryTypeDebit {
		newBalance = account.BalanceCents - amountCents
	}

	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		AccountID:     account.ID,
		TransactionID: transactionID,
		EntryType:     entryType,
		AmountCents:   amountCents,
		Reason:        reason,
		BalanceBefore: account.BalanceCents,
		BalanceAfter:  newBalance,
		CreatedAt:     time.Now().UTC(),
	}
	if err := l.entries.Create(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("apply: entry: %w", err)
	}

	if err := l.accounts.UpdateBalance(ctx, tx, account.ID, newBalance, account.Version+1); err != nil {
		return nil, fmt.Errorf("apply: balance: %w", err)
	}

	l.logger.Info("balance mutated",
		"account_id", account.ID,
		"transaction_id", transactionID,
		"entry_type", entryType,
		"amount_cents", amountCents,
		"reason", reason,
		"balance_before", entry.BalanceBefore,
		"balance_after", entry.BalanceAfter,
	)
	return entry, nil
}
