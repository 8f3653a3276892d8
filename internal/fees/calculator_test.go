package fees

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/brgate/pix-gateway/internal/domain"
)

func basicTier(pct string, fixed int64) domain.DepositFeeTier {
	return domain.DepositFeeTier{
		Mode:       domain.DepositTierBasic,
		Percentage: decimal.RequireFromString(pct),
		FixedCents: fixed,
	}
}

func flexibleTier(threshold, lowFixed int64, highPct string) domain.DepositFeeTier {
	return domain.DepositFeeTier{
		Mode:           domain.DepositTierFlexible,
		ThresholdCents: threshold,
		LowFixedCents:  lowFixed,
		HighPercentage: decimal.RequireFromString(highPct),
	}
}

func TestCalculateDeposit_GlobalBasic(t *testing.T) {
	// R$100.00 at 5% + R$0 fixed
	q := CalculateDeposit(10000, basicTier("5", 0), nil)

	assert.Equal(t, int64(500), q.FeeCents)
	assert.Equal(t, int64(9500), q.NetCents)
	assert.Equal(t, TagGlobalBasic, q.TierDescription)
	assert.Equal(t, q.GrossCents, q.FeeCents+q.NetCents)
}

func TestCalculateDeposit_FlexibleBelowThreshold(t *testing.T) {
	// R$50.00 under threshold R$100.00, flat R$5.00
	q := CalculateDeposit(5000, flexibleTier(10000, 500, "3"), nil)

	assert.Equal(t, int64(500), q.FeeCents)
	assert.Equal(t, int64(4500), q.NetCents)
	assert.Equal(t, TagGlobalFlexibleLow, q.TierDescription)
}

func TestCalculateDeposit_FlexibleAtOrAboveThreshold(t *testing.T) {
	// R$200.00 at 3%
	q := CalculateDeposit(20000, flexibleTier(10000, 500, "3"), nil)

	assert.Equal(t, int64(600), q.FeeCents)
	assert.Equal(t, int64(19400), q.NetCents)
	assert.Equal(t, TagGlobalFlexibleHigh, q.TierDescription)

	// exactly at the threshold uses the percentage branch
	q = CalculateDeposit(10000, flexibleTier(10000, 500, "3"), nil)
	assert.Equal(t, int64(300), q.FeeCents)
}

func TestCalculateDeposit_NetClampedToZero(t *testing.T) {
	// R$2.00 deposit with a R$5.00 flat fee: net clamps to zero, fee stands
	q := CalculateDeposit(200, flexibleTier(10000, 500, "3"), nil)

	assert.Equal(t, int64(500), q.FeeCents)
	assert.Equal(t, int64(0), q.NetCents)
	assert.GreaterOrEqual(t, q.FeeCents, q.GrossCents)
}

func TestCalculateDeposit_PersonalizedOverridesGlobal(t *testing.T) {
	merchant := &domain.Merchant{
		PersonalizedFees: true,
		DepositFee:       ptrTier(basicTier("2", 100)),
	}

	q := CalculateDeposit(10000, basicTier("5", 0), merchant)

	assert.Equal(t, int64(300), q.FeeCents) // 2% + R$1.00
	assert.Equal(t, int64(9700), q.NetCents)
	assert.Equal(t, TagPersonalizedBasic, q.TierDescription)
}

func TestCalculateDeposit_PersonalizedDisabledFallsBack(t *testing.T) {
	merchant := &domain.Merchant{
		PersonalizedFees: false,
		DepositFee:       ptrTier(basicTier("2", 100)),
	}

	q := CalculateDeposit(10000, basicTier("5", 0), merchant)

	assert.Equal(t, int64(500), q.FeeCents)
	assert.Equal(t, TagGlobalBasic, q.TierDescription)
}

func TestCalculateDeposit_RoundsHalfUp(t *testing.T) {
	// R$1.01 at 5% = 5.05 cents, rounds to 5
	q := CalculateDeposit(101, basicTier("5", 0), nil)
	assert.Equal(t, int64(5), q.FeeCents)

	// R$1.10 at 5% = 5.5 cents, rounds to 6
	q = CalculateDeposit(110, basicTier("5", 0), nil)
	assert.Equal(t, int64(6), q.FeeCents)
}

func withdrawalTier(webPct, apiPct string, minimum, fixed int64) domain.WithdrawalFeeTier {
	return domain.WithdrawalFeeTier{
		WebPercentage: decimal.RequireFromString(webPct),
		APIPercentage: decimal.RequireFromString(apiPct),
		MinimumCents:  minimum,
		FixedCents:    fixed,
	}
}

func TestCalculateWithdrawal_WebChannel(t *testing.T) {
	// R$100.00 via web at 5%, min 0, fixed 0: fee R$5.00, debit R$105.00
	q := CalculateWithdrawal(10000, domain.ChannelWeb, withdrawalTier("5", "3", 0, 0), nil)

	assert.Equal(t, int64(500), q.FeeCents)
	assert.Equal(t, int64(10000), q.NetCents) // recipient receives the full amount
	assert.Equal(t, TagGlobalWithdrawalWeb, q.TierDescription)
	assert.Equal(t, int64(10500), q.GrossCents+q.FeeCents)
}

func TestCalculateWithdrawal_APIChannelUsesAPIPct(t *testing.T) {
	q := CalculateWithdrawal(10000, domain.ChannelAPI, withdrawalTier("5", "3", 0, 0), nil)

	assert.Equal(t, int64(300), q.FeeCents)
	assert.Equal(t, TagGlobalWithdrawalAPI, q.TierDescription)
}

func TestCalculateWithdrawal_MinimumFeeApplies(t *testing.T) {
	// 3% of R$10.00 = R$0.30, below the R$1.00 minimum
	q := CalculateWithdrawal(1000, domain.ChannelAPI, withdrawalTier("5", "3", 100, 0), nil)
	assert.Equal(t, int64(100), q.FeeCents)
}

func TestCalculateWithdrawal_FixedFeeOnTopOfMinimum(t *testing.T) {
	q := CalculateWithdrawal(1000, domain.ChannelAPI, withdrawalTier("5", "3", 100, 50), nil)
	assert.Equal(t, int64(150), q.FeeCents)
}

func TestCalculateWithdrawal_Personalized(t *testing.T) {
	merchant := &domain.Merchant{
		PersonalizedFees: true,
		WithdrawalFee:    ptrWTier(withdrawalTier("2", "1", 0, 0)),
	}

	q := CalculateWithdrawal(10000, domain.ChannelWeb, withdrawalTier("5", "3", 0, 0), merchant)

	assert.Equal(t, int64(200), q.FeeCents)
	assert.Equal(t, TagPersonalizedWithdrawalWeb, q.TierDescription)
}

func TestWithAcquirerCost_DoesNotChangeTotals(t *testing.T) {
	q := CalculateDeposit(10000, basicTier("5", 0), nil)
	annotated := WithAcquirerCost(q, 120)

	assert.Equal(t, int64(120), annotated.FeeAcquirerCents)
	assert.Equal(t, q.FeeCents, annotated.FeeCents)
	assert.Equal(t, q.NetCents, annotated.NetCents)
}

func ptrTier(t domain.DepositFeeTier) *domain.DepositFeeTier        { return &t }
func ptrWTier(t domain.WithdrawalFeeTier) *domain.WithdrawalFeeTier { return &t }
