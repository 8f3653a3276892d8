package domain

import "github.com/shopspring/decimal"

type DepositTierMode string

const (
	// DepositTierBasic charges amount*pct/100 + fixed.
	DepositTierBasic DepositTierMode = "basic"
	// DepositTierFlexible charges a flat fee below the threshold and a
	// percentage fee at or above it.
	DepositTierFlexible DepositTierMode = "flexible"
)

type DepositFeeTier struct {
	Mode DepositTierMode

	// basic
	Percentage decimal.Decimal
	FixedCents int64

	// flexible
	ThresholdCents int64
	LowFixedCents  int64
	HighPercentage decimal.Decimal
}

type WithdrawalFeeTier struct {
	WebPercentage decimal.Decimal
	APIPercentage decimal.Decimal
	MinimumCents  int64
	FixedCents    int64
}

// FeeQuote is the result of a fee calculation, recorded on the transaction at
// creation time so the exact same figures authorize the eventual ledger move.
type FeeQuote struct {
	GrossCents       int64
	FeeCents         int64
	FeeAcquirerCents int64
	NetCents         int64
	TierDescription  string
}
