package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SplitBasis selects the amount the split percentage applies to. Both bases
// exist in production flows: referral splits on the fee, partnership splits
// on the gross.
type SplitBasis string

const (
	SplitBasisFee   SplitBasis = "fee"
	SplitBasisGross SplitBasis = "gross"
)

type SplitRule struct {
	ID            uuid.UUID
	PayerID       uuid.UUID
	BeneficiaryID uuid.UUID
	Percentage    decimal.Decimal
	Kind          TransactionKind
	Basis         SplitBasis
	Active        bool
	ValidFrom     *time.Time
	ValidUntil    *time.Time
	CreatedAt     time.Time
}

// AppliesAt reports whether the rule is in force at t.
func (r *SplitRule) AppliesAt(t time.Time) bool {
	if !r.Active {
		return false
	}
	if r.ValidFrom != nil && t.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidUntil != nil && !t.Before(*r.ValidUntil) {
		return false
	}
	return true
}

// SplitExecution records a payout actually made for a (transaction, rule)
// pair; the pair is unique so a second distribution attempt is a no-op.
type SplitExecution struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	SplitRuleID   uuid.UUID
	BeneficiaryID uuid.UUID
	AmountCents   int64
	CreatedAt     time.Time
}
