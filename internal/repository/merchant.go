package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brgate/pix-gateway/internal/domain"
)

const merchantColumns = `id, name, document, status, personalized_fees,
	deposit_mode, deposit_pct, deposit_fixed_cents, deposit_threshold_cents,
	deposit_low_fixed_cents, deposit_high_pct,
	withdrawal_web_pct, withdrawal_api_pct, withdrawal_min_fee_cents, withdrawal_fixed_cents,
	auto_approval_limit_cents, referrer_id, created_at`

type MerchantRepository struct {
	db *sql.DB
}

func NewMerchantRepository(db *sql.DB) *MerchantRepository {
	return &MerchantRepository{db: db}
}

func (r *MerchantRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+merchantColumns+` FROM merchants WHERE id = $1`, id,
	)
	m, err := scanMerchant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return m, nil
}

func (r *MerchantRepository) Create(ctx context.Context, m *domain.Merchant) error {
	var (
		depositMode      *string
		depositPct       decimal.NullDecimal
		depositFixed     *int64
		depositThreshold *int64
		depositLowFixed  *int64
		depositHighPct   decimal.NullDecimal
		withdrawalWebPct decimal.NullDecimal
		withdrawalAPIPct decimal.NullDecimal
		withdrawalMinFee *int64
		withdrawalFixed  *int64
	)
	if m.DepositFee != nil {
		mode := string(m.DepositFee.Mode)
		depositMode = &mode
		depositPct = decimal.NewNullDecimal(m.DepositFee.Percentage)
		depositFixed = &m.DepositFee.FixedCents
		depositThreshold = &m.DepositFee.ThresholdCents
		depositLowFixed = &m.DepositFee.LowFixedCents
		depositHighPct = decimal.NewNullDecimal(m.DepositFee.HighPercentage)
	}
	if m.WithdrawalFee != nil {
		withdrawalWebPct = decimal.NewNullDecimal(m.WithdrawalFee.WebPercentage)
		withdrawalAPIPct = decimal.NewNullDecimal(m.WithdrawalFee.APIPercentage)
		withdrawalMinFee = &m.WithdrawalFee.MinimumCents
		withdrawalFixed = &m.WithdrawalFee.FixedCents
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO merchants (
			id, name, document, status, personalized_fees,
			deposit_mode, deposit_pct, deposit_fixed_cents, deposit_threshold_cents,
			deposit_low_fixed_cents, deposit_high_pct,
			withdrawal_web_pct, withdrawal_api_pct, withdrawal_min_fee_cents, withdrawal_fixed_cents,
			auto_approval_limit_cents, referrer_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		m.ID, m.Name, m.Document, m.Status, m.PersonalizedFees,
		depositMode, depositPct, depositFixed, depositThreshold,
		depositLowFixed, depositHighPct,
		withdrawalWebPct, withdrawalAPIPct, withdrawalMinFee, withdrawalFixed,
		m.AutoApprovalLimitCents, m.ReferrerID, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func scanMerchant(s scanner) (*domain.Merchant, error) {
	var m domain.Merchant
	var (
		depositMode      *string
		depositPct       decimal.NullDecimal
		depositFixed     *int64
		depositThreshold *int64
		depositLowFixed  *int64
		depositHighPct   decimal.NullDecimal
		withdrawalWebPct decimal.NullDecimal
		withdrawalAPIPct decimal.NullDecimal
		withdrawalMinFee *int64
		withdrawalFixed  *int64
		referrerID       uuid.NullUUID
	)

	err := s.Scan(
		&m.ID, &m.Name, &m.Document, &m.Status, &m.PersonalizedFees,
		&depositMode, &depositPct, &depositFixed, &depositThreshold,
		&depositLowFixed, &depositHighPct,
		&withdrawalWebPct, &withdrawalAPIPct, &withdrawalMinFee, &withdrawalFixed,
		&m.AutoApprovalLimitCents, &referrerID, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if depositMode != nil {
		tier := &domain.DepositFeeTier{Mode: domain.DepositTierMode(*depositMode)}
		if depositPct.Valid {
			tier.Percentage = depositPct.Decimal
		}
		if depositFixed != nil {
			tier.FixedCents = *depositFixed
		}
		if depositThreshold != nil {
			tier.ThresholdCents = *depositThreshold
		}
		if depositLowFixed != nil {
			tier.LowFixedCents = *depositLowFixed
		}
		if depositHighPct.Valid {
			tier.HighPercentage = depositHighPct.Decimal
		}
		m.DepositFee = tier
	}
	if withdrawalWebPct.Valid || withdrawalAPIPct.Valid {
		tier := &domain.WithdrawalFeeTier{}
		if withdrawalWebPct.Valid {
			tier.WebPercentage = withdrawalWebPct.Decimal
		}
		if withdrawalAPIPct.Valid {
			tier.APIPercentage = withdrawalAPIPct.Decimal
		}
		if withdrawalMinFee != nil {
			tier.MinimumCents = *withdrawalMinFee
		}
		if withdrawalFixed != nil {
			tier.FixedCents = *withdrawalFixed
		}
		m.WithdrawalFee = tier
	}
	if referrerID.Valid {
		m.ReferrerID = &referrerID.UUID
	}

	return &m, nil
}
