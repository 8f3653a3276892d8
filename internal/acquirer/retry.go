package acquirer

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/brgate/pix-gateway/internal/domain"
	"github.com/brgate/pix-gateway/internal/logging"
)

// RetryPolicy bounds outbound acquirer calls: each attempt runs under its own
// timeout, attempts back off exponentially, and the whole operation gives up
// after MaxRetries.
type RetryPolicy struct {
	Timeout    time.Duration
	MaxRetries uint64
}

// CreateWithdrawalWithRetry submits a withdrawal to the acquirer, retrying
// transient failures. The caller's idempotency key makes retries safe on the
// acquirer side; nothing is persisted locally until a result comes back.
func CreateWithdrawalWithRetry(ctx context.Context, client Client, req WithdrawalRequest, policy RetryPolicy) (*WithdrawalResult, error) {
	log := logging.FromContext(ctx)

	var result *WithdrawalResult
	attempt := 0

	operation := func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, policy.Timeout)
		defer cancel()

		res, err := client.CreateWithdrawal(callCtx, req)
		if err != nil {
			log.Warn("acquirer withdrawal attempt failed",
				"acquirer", client.Name(),
				"attempt", attempt,
				"error", err,
			)
			return err
		}
		result = res
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), policy.MaxRetries)
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("CreateWithdrawalWithRetry: %s: %w: %w", client.Name(), domain.ErrAcquirerCallFailed, err)
	}
	return result, nil
}

// CreateChargeWithRetry creates a charge on the acquirer with the same retry
// discipline as withdrawals.
func CreateChargeWithRetry(ctx context.Context, client Client, req ChargeRequest, policy RetryPolicy) (*ChargeResult, error) {
	log := logging.FromContext(ctx)

	var result *ChargeResult
	attempt := 0

	operation := func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, policy.Timeout)
		defer cancel()

		res, err := client.CreateCharge(callCtx, req)
		if err != nil {
			log.Warn("acquirer charge attempt failed",
				"acquirer", client.Name(),
				"attempt", attempt,
				"error", err,
			)
			return err
		}
		result = res
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), policy.MaxRetries)
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("CreateChargeWithRetry: %s: %w: %w", client.Name(), domain.ErrAcquirerCallFailed, err)
	}
	return result, nil
}
