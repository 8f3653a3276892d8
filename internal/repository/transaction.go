package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brgate/pix-gateway/internal/domain"
)

const transactionColumns = `id, account_id, merchant_id, kind, status, acquirer,
	external_id, channel, gross_cents, fee_cents, fee_acquirer_cents, net_cents,
	tier_description, pix_key_value, pix_key_type, qr_payload, description,
	failure_reason, created_at, updated_at, paid_at`

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error {
	_, err := r.exec(tx).ExecContext(ctx,
		`INSERT INTO transactions (
			id, account_id, merchant_id, kind, status, acquirer,
			external_id, channel, gross_cents, fee_cents, fee_acquirer_cents, net_cents,
			tier_description, pix_key_value, pix_key_type, qr_payload, description,
			failure_reason, created_at, updated_at, paid_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)`,
		t.ID, t.AccountID, t.MerchantID, t.Kind, t.Status, t.Acquirer,
		t.ExternalID, t.Channel, t.GrossCents, t.FeeCents, t.FeeAcquirerCents, t.NetCents,
		t.TierDescription, t.PixKeyValue, t.PixKeyType, t.QRPayload, t.Description,
		t.FailureReason, t.CreatedAt, t.UpdatedAt, t.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return t, nil
}

// GetForUpdate locks the transaction row so status-transition attempts on the
// same transaction serialize.
func (r *TransactionRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Transaction, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return t, nil
}

// GetByExternalIDForUpdate resolves the transaction an acquirer webhook
// refers to, locking it for the remainder of tx.
func (r *TransactionRepository) GetByExternalIDForUpdate(ctx context.Context, tx *sql.Tx, acquirerName, externalID string) (*domain.Transaction, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE acquirer = $1 AND external_id = $2 FOR UPDATE`,
		acquirerName, externalID,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByExternalIDForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByExternalIDForUpdate: %w", err)
	}
	return t, nil
}

func (r *TransactionRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.Status, failureReason *string, paidAt *time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET status = $1, failure_reason = $2, paid_at = COALESCE($3, paid_at), updated_at = now()
		WHERE id = $4`,
		status, failureReason, paidAt, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %w", domain.ErrNotFound)
	}
	return nil
}

// SetExternalID records the acquirer-assigned id and QR payload once the
// charge or withdrawal has been created on the acquirer side.
func (r *TransactionRepository) SetExternalID(ctx context.Context, tx *sql.Tx, id uuid.UUID, externalID string, qrPayload *string) error {
	res, err := r.exec(tx).ExecContext(ctx,
		`UPDATE transactions SET external_id = $1, qr_payload = COALESCE($2, qr_payload), updated_at = now()
		WHERE id = $3`,
		externalID, qrPayload, id,
	)
	if err != nil {
		return fmt.Errorf("SetExternalID: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("SetExternalID: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("SetExternalID: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *TransactionRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		accountID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByAccountID: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("GetByAccountID: scan: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByAccountID: rows: %w", err)
	}
	return txns, nil
}

// exec joins the caller's transaction when one is given.
func (r *TransactionRepository) exec(tx *sql.Tx) execer {
	if tx != nil {
		return tx
	}
	return r.db
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var t domain.Transaction
	err := s.Scan(
		&t.ID, &t.AccountID, &t.MerchantID, &t.Kind, &t.Status, &t.Acquirer,
		&t.ExternalID, &t.Channel, &t.GrossCents, &t.FeeCents, &t.FeeAcquirerCents, &t.NetCents,
		&t.TierDescription, &t.PixKeyValue, &t.PixKeyType, &t.QRPayload, &t.Description,
		&t.FailureReason, &t.CreatedAt, &t.UpdatedAt, &t.PaidAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
