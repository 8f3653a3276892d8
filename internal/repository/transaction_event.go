package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/brgate/pix-gateway/internal/domain"
)

// TransactionEventRepository is the audit trail of status transitions.
type TransactionEventRepository struct {
	db *sql.DB
}

func NewTransactionEventRepository(db *sql.DB) *TransactionEventRepository {
	return &TransactionEventRepository{db: db}
}

func (r *TransactionEventRepository) Create(ctx context.Context, tx *sql.Tx, event *domain.TransactionEvent) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transaction_events (id, transaction_id, from_status, to_status, actor, amount_cents, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.TransactionID, event.FromStatus, event.ToStatus, event.Actor, event.AmountCents, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *TransactionEventRepository) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]domain.TransactionEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, transaction_id, from_status, to_status, actor, amount_cents, created_at
		FROM transaction_events WHERE transaction_id = $1 ORDER BY created_at`,
		transactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByTransactionID: %w", err)
	}
	defer rows.Close()

	var events []domain.TransactionEvent
	for rows.Next() {
		var e domain.TransactionEvent
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.FromStatus, &e.ToStatus, &e.Actor, &e.AmountCents, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("GetByTransactionID: scan: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByTransactionID: rows: %w", err)
	}
	return events, nil
}
