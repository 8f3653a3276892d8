package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brgate/pix-gateway/internal/domain"
)

// SeedMerchant inserts an active merchant without personalized fees and
// returns it.
func SeedMerchant(t *testing.T, db *sql.DB, name string) *domain.Merchant {
	t.Helper()

	m := &domain.Merchant{
		ID:        uuid.New(),
		Name:      name,
		Document:  uuid.New().String(),
		Status:    domain.MerchantStatusActive,
		CreatedAt: time.Now().UTC(),
	}
	_, err := db.Exec(
		`INSERT INTO merchants (id, name, document, status, personalized_fees, created_at)
		 VALUES ($1, $2, $3, $4, FALSE, $5)`,
		m.ID, m.Name, m.Document, m.Status, m.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed merchant: %v", err)
	}
	return m
}

// SeedAccount opens an account for the merchant with the given opening
// balance.
func SeedAccount(t *testing.T, db *sql.DB, merchantID uuid.UUID, balanceCents int64) *domain.Account {
	t.Helper()

	a := &domain.Account{
		ID:           uuid.New(),
		MerchantID:   merchantID,
		BalanceCents: balanceCents,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := db.Exec(
		`INSERT INTO accounts (id, merchant_id, balance_cents, version, created_at)
		 VALUES ($1, $2, $3, 0, $4)`,
		a.ID, a.MerchantID, a.BalanceCents, a.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return a
}

// SeedTransaction inserts a transaction row directly, bypassing the services.
func SeedTransaction(t *testing.T, db *sql.DB, txn *domain.Transaction) {
	t.Helper()

	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	txn.UpdatedAt = txn.CreatedAt

	_, err := db.Exec(
		`INSERT INTO transactions (
			id, account_id, merchant_id, kind, status, acquirer, external_id, channel,
			gross_cents, fee_cents, fee_acquirer_cents, net_cents, tier_description,
			pix_key_value, pix_key_type, qr_payload, description, failure_reason,
			created_at, updated_at, paid_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		txn.ID, txn.AccountID, txn.MerchantID, txn.Kind, txn.Status, txn.Acquirer,
		txn.ExternalID, txn.Channel, txn.GrossCents, txn.FeeCents, txn.FeeAcquirerCents,
		txn.NetCents, txn.TierDescription, txn.PixKeyValue, txn.PixKeyType,
		txn.QRPayload, txn.Description, txn.FailureReason,
		txn.CreatedAt, txn.UpdatedAt, txn.PaidAt,
	)
	if err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
}

// SeedSplitRule inserts an active split rule paying beneficiary the given
// percentage of the payer's transactions.
func SeedSplitRule(t *testing.T, db *sql.DB, payerID, beneficiaryID uuid.UUID, pct string, kind domain.TransactionKind, basis domain.SplitBasis) *domain.SplitRule {
	t.Helper()

	percentage, err := decimal.NewFromString(pct)
	if err != nil {
		t.Fatalf("parse percentage: %v", err)
	}

	rule := &domain.SplitRule{
		ID:            uuid.New(),
		PayerID:       payerID,
		BeneficiaryID: beneficiaryID,
		Percentage:    percentage,
		Kind:          kind,
		Basis:         basis,
		Active:        true,
		CreatedAt:     time.Now().UTC(),
	}
	_, err = db.Exec(
		`INSERT INTO split_rules (id, payer_id, beneficiary_id, percentage, kind, basis, active, valid_from, valid_until, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, TRUE, NULL, NULL, $7)`,
		rule.ID, rule.PayerID, rule.BeneficiaryID, rule.Percentage, rule.Kind, rule.Basis, rule.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed split rule: %v", err)
	}
	return rule
}

// AccountBalance reads the current balance directly.
func AccountBalance(t *testing.T, db *sql.DB, accountID uuid.UUID) int64 {
	t.Helper()

	var balance int64
	if err := db.QueryRow(
		`SELECT balance_cents FROM accounts WHERE id = $1`, accountID,
	).Scan(&balance); err != nil {
		t.Fatalf("read balance: %v", err)
	}
	return balance
}

// SetPersonalizedDepositFee switches the merchant to a personalized basic
// deposit tier.
func SetPersonalizedDepositFee(t *testing.T, db *sql.DB, merchantID uuid.UUID, pct string, fixedCents int64) {
	t.Helper()

	_, err := db.Exec(
		`UPDATE merchants SET personalized_fees = TRUE, deposit_mode = 'basic',
		 deposit_pct = $1, deposit_fixed_cents = $2 WHERE id = $3`,
		pct, fixedCents, merchantID,
	)
	if err != nil {
		t.Fatalf("set personalized deposit fee: %v", err)
	}
}

// SetAutoApprovalLimit sets the merchant's withdrawal auto-approval ceiling.
// Pass nil to remove the limit.
func SetAutoApprovalLimit(t *testing.T, db *sql.DB, merchantID uuid.UUID, limitCents *int64) {
	t.Helper()

	_, err := db.Exec(
		`UPDATE merchants SET auto_approval_limit_cents = $1 WHERE id = $2`,
		limitCents, merchantID,
	)
	if err != nil {
		t.Fatalf("set auto approval limit: %v", err)
	}
}
