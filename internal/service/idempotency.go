package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brgate/pix-gateway/internal/domain"
)

// Result is what a webhook delivery gets back. It is serialized into the
// idempotency record so every redelivery of the same event receives an
// identical response.
type Result struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
	Detail        string `json:"detail,omitempty"`
}

const (
	ResultProcessed        = "processed"
	ResultAlreadyProcessed = "already_processed"
	ResultIgnored          = "ignored"
	ResultRejected         = "rejected"
)

type idempotencyRepo interface {
	GetForUpdate(ctx context.Context, tx *sql.Tx, acquirerName, eventKey string) (*domain.IdempotencyRecord, error)
	Get(ctx context.Context, acquirerName, eventKey string) (*domain.IdempotencyRecord, error)
	Create(ctx context.Context, tx *sql.Tx, rec *domain.IdempotencyRecord) error
}

// Handler runs the business logic for a webhook event inside the gate's
// transaction. Its side effects commit together with the idempotency record.
type Handler func(ctx context.Context, tx *sql.Tx) (Result, error)

// IdempotencyGate guarantees at-most-once execution per (acquirer, event key).
// The lookup, the handler, and the record write share one database
// transaction: there is no window where the handler's effects exist without
// the record, or the record without the effects.
type IdempotencyGate struct {
	db      *sql.DB
	records idempotencyRepo
	logger  *slog.Logger
}

func NewIdempotencyGate(db *sql.DB, records idempotencyRepo, logger *slog.Logger) *IdempotencyGate {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdempotencyGate{db: db, records: records, logger: logger}
}

// Admit runs handler at most once for the given event. Redeliveries return
// the stored result with replayed=true and never re-execute the handler.
//
// Two concurrent deliveries of an unseen event can both pass the lookup; the
// loser's record insert hits the unique index, the whole transaction rolls
// back (discarding any handler effects), and the winner's result is re-read
// and returned. Either way exactly one handler execution commits.
func (g *IdempotencyGate) Admit(ctx context.Context, acquirerName, eventKey string, handler Handler) (Result, bool, error) {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, false, fmt.Errorf("Admit: begin tx: %w", err)
	}
	defer tx.Rollback()

	rec, err := g.records.GetForUpdate(ctx, tx, acquirerName, eventKey)
	if err != nil {
		return Result{}, false, fmt.Errorf("Admit: %w", err)
	}
	if rec != nil {
		result, err := decodeResult(rec.Result)
		if err != nil {
			return Result{}, false, fmt.Errorf("Admit: stored result: %w", err)
		}
		g.logger.Info("duplicate webhook, returning stored result",
			"acquirer", acquirerName,
			"event_key", eventKey,
			"result", result.Status,
		)
		return result, true, nil
	}

	result, err := handler(ctx, tx)
	if err != nil {
		return Result{}, false, fmt.Errorf("Admit: handler: %w", err)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return Result{}, false, fmt.Errorf("Admit: marshal result: %w", err)
	}
	record := &domain.IdempotencyRecord{
		Acquirer:    acquirerName,
		EventKey:    eventKey,
		Result:      payload,
		FirstSeenAt: time.Now().UTC(),
	}
	if err := g.records.Create(ctx, tx, record); err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			tx.Rollback()
			return g.replayWinner(ctx, acquirerName, eventKey)
		}
		return Result{}, false, fmt.Errorf("Admit: record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Result{}, false, fmt.Errorf("Admit: commit: %w", err)
	}
	return result, false, nil
}

// replayWinner re-reads the record written by the delivery that won the
// insert race.
func (g *IdempotencyGate) replayWinner(ctx context.Context, acquirerName, eventKey string) (Result, bool, error) {
	rec, err := g.records.Get(ctx, acquirerName, eventKey)
	if err != nil {
		return Result{}, false, fmt.Errorf("replayWinner: %w", err)
	}
	result, err := decodeResult(rec.Result)
	if err != nil {
		return Result{}, false, fmt.Errorf("replayWinner: stored result: %w", err)
	}
	g.logger.Info("lost idempotency insert race, returning winner result",
		"acquirer", acquirerName,
		"event_key", eventKey,
		"result", result.Status,
	)
	return result, true, nil
}

func decodeResult(raw json.RawMessage) (Result, error) {
	var r Result
	if err := json.Unmarshal(raw, &r); err != nil {
		return Result{}, err
	}
	return r, nil
}
