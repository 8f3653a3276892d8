package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/brgate/pix-gateway/internal/acquirer"
	"github.com/brgate/pix-gateway/internal/domain"
)

// Ledger mutation reasons, stamped on every audit entry.
const (
	reasonDepositCredit    = "deposit:credit"
	reasonWithdrawalDebit  = "withdrawal:debit"
	reasonWithdrawalRefund = "withdrawal:refund"
	reasonDepositReversal  = "deposit:reversal"
)

// PaymentService reconciles acquirer webhook events into the ledger. Every
// money-moving entry point goes through the idempotency gate and the
// transaction row lock; there are no bypass paths.
type PaymentService struct {
	db           *sql.DB
	gate         *IdempotencyGate
	transactions transactionRepo
	events       transactionEventRepo
	ledger       balanceLedger
	splits       *SplitEngine
	logger       *slog.Logger
}

func NewPaymentService(
	db *sql.DB,
	gate *IdempotencyGate,
	transactions transactionRepo,
	events transactionEventRepo,
	ledger balanceLedger,
	splits *SplitEngine,
	logger *slog.Logger,
) *PaymentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentService{
		db:           db,
		gate:         gate,
		transactions: transactions,
		events:       events,
		ledger:       ledger,
		splits:       splits,
		logger:       logger,
	}
}

// HandleWebhook is the single entry point for normalized acquirer
// notifications. The gate makes redeliveries no-ops; the handler below runs
// inside the gate's transaction.
func (s *PaymentService) HandleWebhook(ctx context.Context, n domain.WebhookNotification) (Result, bool, error) {
	return s.gate.Admit(ctx, n.Acquirer, n.EventKey, func(ctx context.Context, tx *sql.Tx) (Result, error) {
		txn, err := s.transactions.GetByExternalIDForUpdate(ctx, tx, n.Acquirer, n.ExternalID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				s.logger.Warn("webhook for unknown transaction",
					"acquirer", n.Acquirer,
					"external_id", n.ExternalID,
				)
				return Result{Status: ResultIgnored, Detail: "unknown transaction"}, nil
			}
			return Result{}, fmt.Errorf("HandleWebhook: %w", err)
		}

		mapped, known := acquirer.MapStatus(n.Acquirer, n.RawStatus)
		if !known {
			s.logger.Warn("unknown acquirer status, using safe default",
				"acquirer", n.Acquirer,
				"raw_status", n.RawStatus,
				"transaction_id", txn.ID,
				"mapped", mapped,
			)
		}

		if n.ConfirmedCents != nil && *n.ConfirmedCents != txn.GrossCents {
			s.logger.Warn("webhook amount differs from transaction gross",
				"transaction_id", txn.ID,
				"gross_cents", txn.GrossCents,
				"confirmed_cents", *n.ConfirmedCents,
			)
		}

		return s.applyStatus(ctx, tx, txn, mapped, n.ConfirmedCents)
	})
}

// statusRank orders the pre-terminal pipeline so late out-of-order events
// (a "processing" after a "paid", a "created" after a "processing") never
// move a transaction backwards.
var statusRank = map[domain.Status]int{
	domain.StatusCreated:         0,
	domain.StatusWaitingApproval: 1,
	domain.StatusProcessing:      2,
}

func (s *PaymentService) applyStatus(ctx context.Context, tx *sql.Tx, txn *domain.Transaction, mapped domain.Status, confirmedCents *int64) (Result, error) {
	switch mapped {
	case domain.StatusPaid:
		return s.processPaid(ctx, tx, txn)
	case domain.StatusFailed, domain.StatusCancelled:
		return s.processFailure(ctx, tx, txn, mapped)
	case domain.StatusRefunded, domain.StatusChargeback:
		return s.processReversal(ctx, tx, txn, mapped)
	case domain.StatusPartiallyRefunded:
		return s.processPartialRefund(ctx, tx, txn, confirmedCents)
	case domain.StatusMediation:
		return s.processMediation(ctx, tx, txn)
	default:
		return s.advancePipeline(ctx, tx, txn, mapped)
	}
}

// processPaid settles a transaction. Deposits credit the net amount computed
// at creation; withdrawals either confirm a debit already taken (automatic
// flow) or take it now (manual flow confirmed straight by the acquirer).
// Exactly one credit/debit ever happens: a transaction already Paid is a
// no-op, and everything below shares the gate's transaction.
func (s *PaymentService) processPaid(ctx context.Context, tx *sql.Tx, txn *domain.Transaction) (Result, error) {
	if txn.Status == domain.StatusPaid {
		return Result{Status: ResultAlreadyProcessed, TransactionID: txn.ID.String(), Detail: "already paid"}, nil
	}
	if txn.Status.IsTerminal() {
		return s.stale(txn, domain.StatusPaid), nil
	}

	switch txn.Kind {
	case domain.TransactionKindDeposit:
		// a fee can swallow the whole deposit; a zero net settles with no
		// ledger entry
		if txn.NetCents > 0 {
			if _, err := s.ledger.Increment(ctx, tx, txn.AccountID, txn.NetCents, reasonDepositCredit, txn.ID); err != nil {
				return Result{}, fmt.Errorf("processPaid: credit: %w", err)
			}
		}
	case domain.TransactionKindWithdrawal:
		// StatusProcessing means the debit was already taken when the
		// withdrawal was submitted; anything earlier means it was not.
		if txn.Status != domain.StatusProcessing {
			if _, err := s.ledger.Decrement(ctx, tx, txn.AccountID, txn.DebitCents(), reasonWithdrawalDebit, txn.ID); err != nil {
				return Result{}, fmt.Errorf("processPaid: debit: %w", err)
			}
		}
	}

	now := time.Now().UTC()
	if err := s.transition(ctx, tx, txn, domain.StatusPaid, nil, &now); err != nil {
		return Result{}, fmt.Errorf("processPaid: %w", err)
	}

	paid := *txn
	paid.Status = domain.StatusPaid
	if err := s.splits.Distribute(ctx, tx, &paid); err != nil {
		return Result{}, fmt.Errorf("processPaid: %w", err)
	}

	return Result{Status: ResultProcessed, TransactionID: txn.ID.String()}, nil
}

// processFailure marks a failed or cancelled transaction. A withdrawal that
// had already been debited gets its full amount+fee back.
func (s *PaymentService) processFailure(ctx context.Context, tx *sql.Tx, txn *domain.Transaction, mapped domain.Status) (Result, error) {
	if txn.Status == mapped {
		return Result{Status: ResultAlreadyProcessed, TransactionID: txn.ID.String()}, nil
	}
	if txn.Status.IsTerminal() {
		return s.stale(txn, mapped), nil
	}

	if txn.Kind == domain.TransactionKindWithdrawal && txn.Status == domain.StatusProcessing {
		if _, err := s.ledger.Increment(ctx, tx, txn.AccountID, txn.DebitCents(), reasonWithdrawalRefund, txn.ID); err != nil {
			return Result{}, fmt.Errorf("processFailure: refund: %w", err)
		}
	}

	reason := string(mapped)
	if err := s.transition(ctx, tx, txn, mapped, &reason, nil); err != nil {
		return Result{}, fmt.Errorf("processFailure: %w", err)
	}
	return Result{Status: ResultProcessed, TransactionID: txn.ID.String()}, nil
}

// processReversal compensates a settled transaction: a refunded or
// charged-back deposit takes the credited net back out; a refunded
// withdrawal puts the debited amount+fee back. Only Paid transactions are
// reversed, and only once.
func (s *PaymentService) processReversal(ctx context.Context, tx *sql.Tx, txn *domain.Transaction, mapped domain.Status) (Result, error) {
	if txn.Status == mapped {
		return Result{Status: ResultAlreadyProcessed, TransactionID: txn.ID.String()}, nil
	}
	reversible := txn.Status == domain.StatusPaid || txn.Status == domain.StatusMediation
	// a withdrawal refund can land while still Processing: the debit was
	// already taken at submission, so the money must come back
	if txn.Kind == domain.TransactionKindWithdrawal && txn.Status == domain.StatusProcessing {
		reversible = true
	}
	if !reversible {
		if txn.Status.IsTerminal() {
			return s.stale(txn, mapped), nil
		}
		// refund notice for a transaction we never settled: record nothing
		return Result{Status: ResultIgnored, TransactionID: txn.ID.String(), Detail: "not settled"}, nil
	}

	switch txn.Kind {
	case domain.TransactionKindDeposit:
		if txn.NetCents > 0 {
			if _, err := s.ledger.Decrement(ctx, tx, txn.AccountID, txn.NetCents, reasonDepositReversal, txn.ID); err != nil {
				return Result{}, fmt.Errorf("processReversal: %w", err)
			}
		}
	case domain.TransactionKindWithdrawal:
		if _, err := s.ledger.Increment(ctx, tx, txn.AccountID, txn.DebitCents(), reasonWithdrawalRefund, txn.ID); err != nil {
			return Result{}, fmt.Errorf("processReversal: %w", err)
		}
	}

	reason := string(mapped)
	if err := s.transition(ctx, tx, txn, mapped, &reason, nil); err != nil {
		return Result{}, fmt.Errorf("processReversal: %w", err)
	}
	return Result{Status: ResultProcessed, TransactionID: txn.ID.String()}, nil
}

// processPartialRefund debits the confirmed partial amount from a settled
// deposit. The acquirer must say how much came back; without an amount there
// is nothing safe to move.
func (s *PaymentService) processPartialRefund(ctx context.Context, tx *sql.Tx, txn *domain.Transaction, confirmedCents *int64) (Result, error) {
	if txn.Status != domain.StatusPaid && txn.Status != domain.StatusPartiallyRefunded {
		if txn.Status.IsTerminal() {
			return s.stale(txn, domain.StatusPartiallyRefunded), nil
		}
		return Result{Status: ResultIgnored, TransactionID: txn.ID.String(), Detail: "not settled"}, nil
	}
	if txn.Kind != domain.TransactionKindDeposit {
		return Result{Status: ResultIgnored, TransactionID: txn.ID.String(), Detail: "partial refund on withdrawal"}, nil
	}
	if confirmedCents == nil || *confirmedCents <= 0 {
		s.logger.Warn("partial refund without amount, ignoring", "transaction_id", txn.ID)
		return Result{Status: ResultRejected, TransactionID: txn.ID.String(), Detail: "missing refund amount"}, nil
	}

	if _, err := s.ledger.Decrement(ctx, tx, txn.AccountID, *confirmedCents, reasonDepositReversal, txn.ID); err != nil {
		return Result{}, fmt.Errorf("processPartialRefund: %w", err)
	}
	if err := s.transition(ctx, tx, txn, domain.StatusPartiallyRefunded, nil, nil); err != nil {
		return Result{}, fmt.Errorf("processPartialRefund: %w", err)
	}
	return Result{Status: ResultProcessed, TransactionID: txn.ID.String()}, nil
}

// processMediation flags a dispute. No money moves until the mediation
// resolves into a refund or chargeback event.
func (s *PaymentService) processMediation(ctx context.Context, tx *sql.Tx, txn *domain.Transaction) (Result, error) {
	if txn.Status == domain.StatusMediation {
		return Result{Status: ResultAlreadyProcessed, TransactionID: txn.ID.String()}, nil
	}
	if txn.Status.IsTerminal() && txn.Status != domain.StatusPaid {
		return s.stale(txn, domain.StatusMediation), nil
	}
	if err := s.transition(ctx, tx, txn, domain.StatusMediation, nil, nil); err != nil {
		return Result{}, fmt.Errorf("processMediation: %w", err)
	}
	return Result{Status: ResultProcessed, TransactionID: txn.ID.String()}, nil
}

// advancePipeline applies a non-terminal status, forward only.
func (s *PaymentService) advancePipeline(ctx context.Context, tx *sql.Tx, txn *domain.Transaction, mapped domain.Status) (Result, error) {
	if txn.Status.IsTerminal() {
		return s.stale(txn, mapped), nil
	}
	if statusRank[mapped] <= statusRank[txn.Status] {
		return Result{Status: ResultIgnored, TransactionID: txn.ID.String(), Detail: "out of order"}, nil
	}
	if err := s.transition(ctx, tx, txn, mapped, nil, nil); err != nil {
		return Result{}, fmt.Errorf("advancePipeline: %w", err)
	}
	return Result{Status: ResultProcessed, TransactionID: txn.ID.String()}, nil
}

func (s *PaymentService) stale(txn *domain.Transaction, mapped domain.Status) Result {
	s.logger.Info("stale event for terminal transaction, ignoring",
		"transaction_id", txn.ID,
		"current_status", txn.Status,
		"event_status", mapped,
	)
	return Result{Status: ResultIgnored, TransactionID: txn.ID.String(), Detail: "transaction already terminal"}
}

// transition updates the status and writes the audit event in one place so
// every financial state change is logged with before/after and amounts.
func (s *PaymentService) transition(ctx context.Context, tx *sql.Tx, txn *domain.Transaction, to domain.Status, failureReason *string, paidAt *time.Time) error {
	if err := s.transactions.UpdateStatus(ctx, tx, txn.ID, to, failureReason, paidAt); err != nil {
		return fmt.Errorf("transition: %w", err)
	}

	event := &domain.TransactionEvent{
		ID:            uuid.New(),
		TransactionID: txn.ID,
		FromStatus:    txn.Status,
		ToStatus:      to,
		Actor:         "webhook",
		AmountCents:   txn.GrossCents,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.events.Create(ctx, tx, event); err != nil {
		return fmt.Errorf("transition: event: %w", err)
	}

	s.logger.Info("transaction status changed",
		"transaction_id", txn.ID,
		"kind", txn.Kind,
		"from", txn.Status,
		"to", to,
		"gross_cents", txn.GrossCents,
		"fee_cents", txn.FeeCents,
		"net_cents", txn.NetCents,
	)
	return nil
}

// Reverse is the explicit admin path for refunding or cancelling a settled
// transaction outside of a webhook. It holds the transaction row lock for
// the same guarantees the webhook path has; a transaction already reversed
// is not reversed twice.
func (s *PaymentService) Reverse(ctx context.Context, transactionID uuid.UUID, to domain.Status, reason string) error {
	if !to.IsReversal() && to != domain.StatusCancelled {
		return fmt.Errorf("Reverse: %s: %w", to, domain.ErrInvalidRequest)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Reverse: begin tx: %w", err)
	}
	defer tx.Rollback()

	txn, err := s.transactions.GetForUpdate(ctx, tx, transactionID)
	if err != nil {
		return fmt.Errorf("Reverse: %w", err)
	}
	if txn.Status == to {
		return fmt.Errorf("Reverse: %w", domain.ErrTransactionTerminal)
	}
	if txn.Status != domain.StatusPaid && txn.Status != domain.StatusMediation {
		return fmt.Errorf("Reverse: status %s: %w", txn.Status, domain.ErrTransactionTerminal)
	}

	switch txn.Kind {
	case domain.TransactionKindDeposit:
		if txn.NetCents > 0 {
			if _, err := s.ledger.Decrement(ctx, tx, txn.AccountID, txn.NetCents, reasonDepositReversal, txn.ID); err != nil {
				return fmt.Errorf("Reverse: %w", err)
			}
		}
	case domain.TransactionKindWithdrawal:
		if _, err := s.ledger.Increment(ctx, tx, txn.AccountID, txn.DebitCents(), reasonWithdrawalRefund, txn.ID); err != nil {
			return fmt.Errorf("Reverse: %w", err)
		}
	}

	fr := reason
	if err := s.transactions.UpdateStatus(ctx, tx, txn.ID, to, &fr, nil); err != nil {
		return fmt.Errorf("Reverse: %w", err)
	}
	event := &domain.TransactionEvent{
		ID:            uuid.New(),
		TransactionID: txn.ID,
		FromStatus:    txn.Status,
		ToStatus:      to,
		Actor:         "admin",
		AmountCents:   txn.GrossCents,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.events.Create(ctx, tx, event); err != nil {
		return fmt.Errorf("Reverse: event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Reverse: commit: %w", err)
	}

	s.logger.Info("transaction reversed",
		"transaction_id", txn.ID,
		"from", txn.Status,
		"to", to,
		"reason", reason,
	)
	return nil
}

func (s *PaymentService) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	txn, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	return txn, nil
}
