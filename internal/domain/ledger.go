package domain

import (
	"time"

	"github.com/google/uuid"
)

type EntryType string

const (
	EntryTypeDebit  EntryType = "debit"
	EntryTypeCredit EntryType = "credit"
)

// LedgerEntry is an immutable audit row written alongside every balance
// mutation. BalanceBefore/After are captured under the account row lock.
type LedgerEntry struct {
	ID            uuid.UUID
	AccountID     uuid.UUID
	TransactionID uuid.UUID
	EntryType     EntryType
	AmountCents   int64
	Reason        string
	BalanceBefore int64
	BalanceAfter  int64
	CreatedAt     time.Time
}
