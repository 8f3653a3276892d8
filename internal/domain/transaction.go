package domain

import (
	"time"

	"github.com/google/uuid"
)

type TransactionKind string

const (
	TransactionKindDeposit    TransactionKind = "deposit"
	TransactionKindWithdrawal TransactionKind = "withdrawal"
)

// Status is the canonical, acquirer-agnostic transaction state.
type Status string

const (
	StatusCreated           Status = "created"
	StatusWaitingApproval   Status = "waiting_approval"
	StatusProcessing        Status = "processing"
	StatusPaid              Status = "paid"
	StatusFailed            Status = "failed"
	StatusCancelled         Status = "cancelled"
	StatusRefunded          Status = "refunded"
	StatusPartiallyRefunded Status = "partially_refunded"
	StatusChargeback        Status = "chargeback"
	StatusMediation         Status = "mediation"
)

// IsTerminal reports whether s closes the transaction. Terminal transactions
// only change through a compensating reversal.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusPaid, StatusFailed, StatusCancelled, StatusRefunded, StatusChargeback:
		return true
	default:
		return false
	}
}

// IsReversal reports whether s is a post-payment compensating state.
func (s Status) IsReversal() bool {
	switch s {
	case StatusRefunded, StatusPartiallyRefunded, StatusChargeback:
		return true
	default:
		return false
	}
}

// Channel identifies how a withdrawal was requested; the fee percentage
// differs between the web interface and the API.
type Channel string

const (
	ChannelWeb Channel = "web"
	ChannelAPI Channel = "api"
)

type Transaction struct {
	ID         uuid.UUID
	AccountID  uuid.UUID
	MerchantID uuid.UUID
	Kind       TransactionKind
	Status     Status
	Acquirer   string
	ExternalID *string
	Channel    Channel

	GrossCents       int64
	FeeCents         int64
	FeeAcquirerCents int64
	NetCents         int64
	TierDescription  string

	PixKeyValue *string
	PixKeyType  *string
	QRPayload   *string
	Description *string

	FailureReason *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PaidAt        *time.Time
}

// DebitCents is the total removed from the payer's account for a withdrawal:
// the recipient always receives GrossCents and the fee is debited on top.
func (t *Transaction) DebitCents() int64 {
	return t.GrossCents + t.FeeCents
}

// TransactionEvent is an audit row written on every status transition.
type TransactionEvent struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	FromStatus    Status
	ToStatus      Status
	Actor         string
	AmountCents   int64
	CreatedAt     time.Time
}
