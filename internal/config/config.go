package config

import (
	"fmt"

	env "github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"

	"github.com/brgate/pix-gateway/internal/domain"
)

// Config is loaded once at startup and passed by value into the services that
// need it; nothing mutates it afterwards.
type Config struct {
	DatabaseURL   string `env:"DATABASE_URL,required"`
	WebhookSecret string `env:"WEBHOOK_SECRET,required"`
	Port          int    `env:"PORT" envDefault:"8080"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv        string `env:"APP_ENV" envDefault:"production"`

	// Global deposit fee tier. Flexible mode kicks in when
	// DepositFlexible=true: below the threshold a flat fee applies, at or
	// above it a percentage fee.
	DepositFeePct         string `env:"DEPOSIT_FEE_PCT" envDefault:"5"`
	DepositFeeFixedCents  int64  `env:"DEPOSIT_FEE_FIXED_CENTS" envDefault:"0"`
	DepositFlexible       bool   `env:"DEPOSIT_FLEXIBLE" envDefault:"false"`
	DepositThresholdCents int64  `env:"DEPOSIT_THRESHOLD_CENTS" envDefault:"10000"`
	DepositLowFixedCents  int64  `env:"DEPOSIT_LOW_FIXED_CENTS" envDefault:"500"`
	DepositHighPct        string `env:"DEPOSIT_HIGH_PCT" envDefault:"3"`

	// Global withdrawal fee tier. Fee is charged on top of the amount.
	WithdrawalWebPct      string `env:"WITHDRAWAL_WEB_PCT" envDefault:"5"`
	WithdrawalAPIPct      string `env:"WITHDRAWAL_API_PCT" envDefault:"3"`
	WithdrawalMinFeeCents int64  `env:"WITHDRAWAL_MIN_FEE_CENTS" envDefault:"0"`
	WithdrawalFixedCents  int64  `env:"WITHDRAWAL_FIXED_CENTS" envDefault:"0"`

	AcquirerTimeoutS    int `env:"ACQUIRER_TIMEOUT_S" envDefault:"15"`
	AcquirerMaxRetries  int `env:"ACQUIRER_MAX_RETRIES" envDefault:"3"`
	ChargeExpirySeconds int `env:"CHARGE_EXPIRY_SECONDS" envDefault:"3600"`

	// Comma-separated name:url pairs, e.g. "treeal:https://api.treeal.com".
	// Only acquirers listed here get a registered client.
	AcquirerBaseURLs map[string]string `env:"ACQUIRER_BASE_URLS" envSeparator:","`
	AcquirerAPIKey   string            `env:"ACQUIRER_API_KEY"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// GlobalDepositTier materializes the deposit tier from the environment
// values. Invalid percentage strings fail here, at startup, not mid-request.
func (c *Config) GlobalDepositTier() (domain.DepositFeeTier, error) {
	pct, err := decimal.NewFromString(c.DepositFeePct)
	if err != nil {
		return domain.DepositFeeTier{}, fmt.Errorf("GlobalDepositTier: DEPOSIT_FEE_PCT: %w", err)
	}
	highPct, err := decimal.NewFromString(c.DepositHighPct)
	if err != nil {
		return domain.DepositFeeTier{}, fmt.Errorf("GlobalDepositTier: DEPOSIT_HIGH_PCT: %w", err)
	}

	mode := domain.DepositTierBasic
	if c.DepositFlexible {
		mode = domain.DepositTierFlexible
	}
	return domain.DepositFeeTier{
		Mode:           mode,
		Percentage:     pct,
		FixedCents:     c.DepositFeeFixedCents,
		ThresholdCents: c.DepositThresholdCents,
		LowFixedCents:  c.DepositLowFixedCents,
		HighPercentage: highPct,
	}, nil
}

func (c *Config) GlobalWithdrawalTier() (domain.WithdrawalFeeTier, error) {
	webPct, err := decimal.NewFromString(c.WithdrawalWebPct)
	if err != nil {
		return domain.WithdrawalFeeTier{}, fmt.Errorf("GlobalWithdrawalTier: WITHDRAWAL_WEB_PCT: %w", err)
	}
	apiPct, err := decimal.NewFromString(c.WithdrawalAPIPct)
	if err != nil {
		return domain.WithdrawalFeeTier{}, fmt.Errorf("GlobalWithdrawalTier: WITHDRAWAL_API_PCT: %w", err)
	}
	return domain.WithdrawalFeeTier{
		WebPercentage: webPct,
		APIPercentage: apiPct,
		MinimumCents:  c.WithdrawalMinFeeCents,
		FixedCents:    c.WithdrawalFixedCents,
	}, nil
}
