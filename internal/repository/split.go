package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brgate/pix-gateway/internal/domain"
)

const splitRuleColumns = `id, payer_id, beneficiary_id, percentage, kind, basis,
	active, valid_from, valid_until, created_at`

type SplitRuleRepository struct {
	db *sql.DB
}

func NewSplitRuleRepository(db *sql.DB) *SplitRuleRepository {
	return &SplitRuleRepository{db: db}
}

func (r *SplitRuleRepository) Create(ctx context.Context, rule *domain.SplitRule) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO split_rules (
			id, payer_id, beneficiary_id, percentage, kind, basis,
			active, valid_from, valid_until, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rule.ID, rule.PayerID, rule.BeneficiaryID, rule.Percentage, rule.Kind, rule.Basis,
		rule.Active, rule.ValidFrom, rule.ValidUntil, rule.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// GetActiveForPayer returns the active rules for a payer and transaction
// kind. Validity windows are checked by the caller against the transaction's
// own timestamp, not now().
func (r *SplitRuleRepository) GetActiveForPayer(ctx context.Context, tx *sql.Tx, payerID uuid.UUID, kind domain.TransactionKind) ([]domain.SplitRule, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+splitRuleColumns+` FROM split_rules
		WHERE payer_id = $1 AND kind = $2 AND active ORDER BY created_at`,
		payerID, kind,
	)
	if err != nil {
		return nil, fmt.Errorf("GetActiveForPayer: %w", err)
	}
	defer rows.Close()

	var rules []domain.SplitRule
	for rows.Next() {
		rule, err := scanSplitRule(rows)
		if err != nil {
			return nil, fmt.Errorf("GetActiveForPayer: scan: %w", err)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetActiveForPayer: rows: %w", err)
	}
	return rules, nil
}

func scanSplitRule(s scanner) (*domain.SplitRule, error) {
	var rule domain.SplitRule
	var pct decimal.Decimal
	err := s.Scan(
		&rule.ID, &rule.PayerID, &rule.BeneficiaryID, &pct, &rule.Kind, &rule.Basis,
		&rule.Active, &rule.ValidFrom, &rule.ValidUntil, &rule.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rule.Percentage = pct
	return &rule, nil
}

type SplitExecutionRepository struct {
	db *sql.DB
}

func NewSplitExecutionRepository(db *sql.DB) *SplitExecutionRepository {
	return &SplitExecutionRepository{db: db}
}

// Create records a payout for a (transaction, rule) pair. The unique index on
// the pair makes a second distribution attempt a no-op; inserted is false
// when the row already existed.
func (r *SplitExecutionRepository) Create(ctx context.Context, tx *sql.Tx, exec *domain.SplitExecution) (inserted bool, err error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO split_executions (id, transaction_id, split_rule_id, beneficiary_id, amount_cents, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (transaction_id, split_rule_id) DO NOTHING`,
		exec.ID, exec.TransactionID, exec.SplitRuleID, exec.BeneficiaryID, exec.AmountCents, exec.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("Create: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Create: rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *SplitExecutionRepository) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]domain.SplitExecution, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, transaction_id, split_rule_id, beneficiary_id, amount_cents, created_at
		FROM split_executions WHERE transaction_id = $1 ORDER BY created_at`,
		transactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByTransactionID: %w", err)
	}
	defer rows.Close()

	var execs []domain.SplitExecution
	for rows.Next() {
		var e domain.SplitExecution
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.SplitRuleID, &e.BeneficiaryID, &e.AmountCents, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("GetByTransactionID: scan: %w", err)
		}
		execs = append(execs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByTransactionID: rows: %w", err)
	}
	return execs, nil
}
