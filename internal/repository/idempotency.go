package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/brgate/pix-gateway/internal/domain"
)

// IdempotencyRepository persists one row per processed webhook event. Rows
// are written inside the same transaction as the event's side effects and are
// never deleted.
type IdempotencyRepository struct {
	db *sql.DB
}

func NewIdempotencyRepository(db *sql.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

// GetForUpdate returns the record for (acquirer, eventKey) if one exists,
// locking it so a concurrent delivery of the same event blocks until this
// transaction finishes. nil, nil means the event has not been seen.
func (r *IdempotencyRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, acquirerName, eventKey string) (*domain.IdempotencyRecord, error) {
	var rec domain.IdempotencyRecord
	err := tx.QueryRowContext(ctx,
		`SELECT acquirer, event_key, result, first_seen_at
		FROM webhook_idempotency
		WHERE acquirer = $1 AND event_key = $2 FOR UPDATE`,
		acquirerName, eventKey,
	).Scan(&rec.Acquirer, &rec.EventKey, &rec.Result, &rec.FirstSeenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return &rec, nil
}

// Get is the unlocked read used after losing an insert race, to return the
// winner's result.
func (r *IdempotencyRepository) Get(ctx context.Context, acquirerName, eventKey string) (*domain.IdempotencyRecord, error) {
	var rec domain.IdempotencyRecord
	err := r.db.QueryRowContext(ctx,
		`SELECT acquirer, event_key, result, first_seen_at
		FROM webhook_idempotency
		WHERE acquirer = $1 AND event_key = $2`,
		acquirerName, eventKey,
	).Scan(&rec.Acquirer, &rec.EventKey, &rec.Result, &rec.FirstSeenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("Get: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &rec, nil
}

// Create inserts the record inside tx. A unique violation here means another
// delivery of the same event committed first; the caller maps that to
// ErrDuplicateKey and rolls back.
func (r *IdempotencyRepository) Create(ctx context.Context, tx *sql.Tx, rec *domain.IdempotencyRecord) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO webhook_idempotency (acquirer, event_key, result, first_seen_at)
		VALUES ($1, $2, $3, $4)`,
		rec.Acquirer, rec.EventKey, string(rec.Result), rec.FirstSeenAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrDuplicateKey)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}
