package domain

import (
	"time"

	"github.com/google/uuid"
)

type MerchantStatus string

const (
	MerchantStatusActive  MerchantStatus = "active"
	MerchantStatusBlocked MerchantStatus = "blocked"
)

// Merchant is a gateway customer. Fee personalization and the withdrawal
// auto-approval limit live here; a nil AutoApprovalLimitCents means no limit,
// which is distinct from a limit of zero.
type Merchant struct {
	ID                     uuid.UUID
	Name                   string
	Document               string
	Status                 MerchantStatus
	PersonalizedFees       bool
	DepositFee             *DepositFeeTier
	WithdrawalFee          *WithdrawalFeeTier
	AutoApprovalLimitCents *int64
	ReferrerID             *uuid.UUID
	CreatedAt              time.Time
}

// Account holds a merchant's available balance in BRL centavos. The balance
// is mutated only through ledger operations, never written directly by callers.
type Account struct {
	ID           uuid.UUID
	MerchantID   uuid.UUID
	BalanceCents int64
	Version      int64
	CreatedAt    time.Time
}
