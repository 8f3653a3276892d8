// Package fees computes deposit and withdrawal fee quotes from tiered
// configuration. Calculators are pure: the quote they produce is recorded on
// the transaction at creation time and is the only set of figures that ever
// authorizes a ledger mutation for it.
package fees

import (
	"github.com/shopspring/decimal"

	"github.com/brgate/pix-gateway/internal/domain"
)

// Tier description tags, persisted on transactions for audit and reporting.
const (
	TagGlobalBasic               = "GLOBAL_BASICA_PERCENTUAL_FIXA"
	TagGlobalFlexibleLow         = "GLOBAL_FLEXIVEL_FIXA_BAIXA"
	TagGlobalFlexibleHigh        = "GLOBAL_FLEXIVEL_PERCENTUAL_ALTA"
	TagPersonalizedBasic         = "PERSONALIZADA_BASICA_PERCENTUAL_FIXA"
	TagPersonalizedFlexibleLow   = "PERSONALIZADA_FLEXIVEL_FIXA_BAIXA"
	TagPersonalizedFlexibleHigh  = "PERSONALIZADA_FLEXIVEL_PERCENTUAL_ALTA"
	TagGlobalWithdrawalWeb       = "GLOBAL_SAQUE_WEB"
	TagGlobalWithdrawalAPI       = "GLOBAL_SAQUE_API"
	TagPersonalizedWithdrawalWeb = "PERSONALIZADA_SAQUE_WEB"
	TagPersonalizedWithdrawalAPI = "PERSONALIZADA_SAQUE_API"
)

var hundred = decimal.NewFromInt(100)

// percentOf returns amount*pct/100 rounded to whole cents, half away from
// zero.
func percentOf(amountCents int64, pct decimal.Decimal) int64 {
	return decimal.NewFromInt(amountCents).Mul(pct).Div(hundred).Round(0).IntPart()
}

// CalculateDeposit resolves the tier (merchant personalized first, global
// otherwise) and produces the deposit quote. Net is gross minus fee, clamped
// to zero: a fee exceeding the deposited value zeroes the credit instead of
// producing a negative one.
func CalculateDeposit(amountCents int64, global domain.DepositFeeTier, merchant *domain.Merchant) domain.FeeQuote {
	tier := global
	personalized := false
	if merchant != nil && merchant.PersonalizedFees && merchant.DepositFee != nil {
		tier = *merchant.DepositFee
		personalized = true
	}

	var fee int64
	var tag string
	switch tier.Mode {
	case domain.DepositTierFlexible:
		if amountCents < tier.ThresholdCents {
			fee = tier.LowFixedCents
			tag = pick(personalized, TagPersonalizedFlexibleLow, TagGlobalFlexibleLow)
		} else {
			fee = percentOf(amountCents, tier.HighPercentage)
			tag = pick(personalized, TagPersonalizedFlexibleHigh, TagGlobalFlexibleHigh)
		}
	default:
		fee = percentOf(amountCents, tier.Percentage) + tier.FixedCents
		tag = pick(personalized, TagPersonalizedBasic, TagGlobalBasic)
	}

	net := amountCents - fee
	if net < 0 {
		net = 0
	}

	return domain.FeeQuote{
		GrossCents:      amountCents,
		FeeCents:        fee,
		NetCents:        net,
		TierDescription: tag,
	}
}

// CalculateWithdrawal produces the withdrawal quote. The fee is charged on
// top: the payer is debited gross+fee and the recipient receives the full
// gross amount, so Net equals Gross here.
func CalculateWithdrawal(amountCents int64, channel domain.Channel, global domain.WithdrawalFeeTier, merchant *domain.Merchant) domain.FeeQuote {
	tier := global
	personalized := false
	if merchant != nil && merchant.PersonalizedFees && merchant.WithdrawalFee != nil {
		tier = *merchant.WithdrawalFee
		personalized = true
	}

	pct := tier.WebPercentage
	tag := pick(personalized, TagPersonalizedWithdrawalWeb, TagGlobalWithdrawalWeb)
	if channel == domain.ChannelAPI {
		pct = tier.APIPercentage
		tag = pick(personalized, TagPersonalizedWithdrawalAPI, TagGlobalWithdrawalAPI)
	}

	fee := percentOf(amountCents, pct)
	if fee < tier.MinimumCents {
		fee = tier.MinimumCents
	}
	fee += tier.FixedCents

	return domain.FeeQuote{
		GrossCents:      amountCents,
		FeeCents:        fee,
		NetCents:        amountCents,
		TierDescription: tag,
	}
}

// WithAcquirerCost annotates a quote with the acquirer's share of the fee.
// The share is informational, for profit reporting; it never changes the fee
// total or the net amount.
func WithAcquirerCost(q domain.FeeQuote, acquirerCents int64) domain.FeeQuote {
	q.FeeAcquirerCents = acquirerCents
	return q
}

func pick(personalized bool, personalizedTag, globalTag string) string {
	if personalized {
		return personalizedTag
	}
	return globalTag
}
