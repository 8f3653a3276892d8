package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brgate/pix-gateway/internal/domain"
)

// SplitEngine pays referring managers and affiliates their percentage of each
// paid transaction. Executions are keyed on (transaction, rule), so calling
// Distribute twice for the same transaction credits nobody twice: the engine
// is idempotent on its own, independent of the webhook gate.
type SplitEngine struct {
	rules      splitRuleRepo
	executions splitExecutionRepo
	accounts   accountRepo
	ledger     balanceLedger
	logger     *slog.Logger
}

func NewSplitEngine(rules splitRuleRepo, executions splitExecutionRepo, accounts accountRepo, ledger balanceLedger, logger *slog.Logger) *SplitEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &SplitEngine{rules: rules, executions: executions, accounts: accounts, ledger: ledger, logger: logger}
}

var hundred = decimal.NewFromInt(100)

// Distribute runs inside the caller's transaction so split credits commit or
// roll back together with the payment that funds them.
func (e *SplitEngine) Distribute(ctx context.Context, tx *sql.Tx, txn *domain.Transaction) error {
	rules, err := e.rules.GetActiveForPayer(ctx, tx, txn.MerchantID, txn.Kind)
	if err != nil {
		return fmt.Errorf("Distribute: %w", err)
	}

	for _, rule := range rules {
		if !rule.AppliesAt(txn.CreatedAt) {
			continue
		}

		amount := e.splitAmount(&rule, txn)
		if amount <= 0 {
			continue
		}

		exec := &domain.SplitExecution{
			ID:            uuid.New(),
			TransactionID: txn.ID,
			SplitRuleID:   rule.ID,
			BeneficiaryID: rule.BeneficiaryID,
			AmountCents:   amount,
			CreatedAt:     time.Now().UTC(),
		}
		inserted, err := e.executions.Create(ctx, tx, exec)
		if err != nil {
			return fmt.Errorf("Distribute: execution: %w", err)
		}
		if !inserted {
			e.logger.Info("split already executed, skipping",
				"transaction_id", txn.ID,
				"split_rule_id", rule.ID,
			)
			continue
		}

		beneficiary, err := e.accounts.GetByMerchantID(ctx, rule.BeneficiaryID)
		if err != nil {
			return fmt.Errorf("Distribute: beneficiary account: %w", err)
		}
		if _, err := e.ledger.Increment(ctx, tx, beneficiary.ID, amount, "split:"+string(rule.Basis), txn.ID); err != nil {
			return fmt.Errorf("Distribute: credit beneficiary: %w", err)
		}

		e.logger.Info("split distributed",
			"transaction_id", txn.ID,
			"split_rule_id", rule.ID,
			"beneficiary_id", rule.BeneficiaryID,
			"basis", rule.Basis,
			"amount_cents", amount,
		)
	}

	return nil
}

// splitAmount applies the rule percentage to its configured basis. Both
// fee-based and gross-based rules exist in production.
func (e *SplitEngine) splitAmount(rule *domain.SplitRule, txn *domain.Transaction) int64 {
	base := txn.FeeCents
	if rule.Basis == domain.SplitBasisGross {
		base = txn.GrossCents
	}
	return decimal.NewFromInt(base).Mul(rule.Percentage).Div(hundred).Round(0).IntPart()
}
