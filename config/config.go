// Package config loads service configuration from a config.env file and
// the process environment.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	paytypes "github.com/paywall402/paywall402/types"
)

// ServiceConfig is the raw environment-facing configuration.
type ServiceConfig struct {
	ListenAddr string `mapstructure:"LISTEN_ADDR"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
	DSN        string `mapstructure:"DSN"`

	RPCUrl           string `mapstructure:"RPC_URL"`
	PaymentTokenMint string `mapstructure:"PAYMENT_TOKEN_MINT"`
	SigningSecret    string `mapstructure:"SIGNING_SECRET"`

	VerificationMode string `mapstructure:"VERIFICATION_MODE"`
	TolerancePercent string `mapstructure:"TOLERANCE_PERCENT"`
	ToleranceFloor   string `mapstructure:"TOLERANCE_FLOOR"`
	CredentialTTL    string `mapstructure:"CREDENTIAL_TTL"`
	LedgerTimeout    string `mapstructure:"LEDGER_TIMEOUT"`

	// SweepSchedule is the cron spec for the expired-listing sweep.
	SweepSchedule string `mapstructure:"SWEEP_SCHEDULE"`
}

// Load reads config.env from the given path plus the environment.
func Load(path string) (*ServiceConfig, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing file is fine when everything comes from env.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("cannot read config: %w", err)
		}
	}

	var cfg ServiceConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal config: %w", err)
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = "@hourly"
	}

	return &cfg, nil
}

// CoreConfig converts the service config into the core's Config,
// applying defaults for anything unset.
func (c *ServiceConfig) CoreConfig() (*paytypes.Config, error) {
	core := &paytypes.Config{
		RPCUrl:           c.RPCUrl,
		PaymentTokenMint: c.PaymentTokenMint,
		SigningSecret:    c.SigningSecret,
		Mode:             paytypes.VerificationMode(c.VerificationMode),
	}

	if c.TolerancePercent != "" {
		pct, err := decimal.NewFromString(c.TolerancePercent)
		if err != nil {
			return nil, fmt.Errorf("invalid TOLERANCE_PERCENT: %w", err)
		}
		core.TolerancePercent = pct
	}

	if c.ToleranceFloor != "" {
		floor, err := decimal.NewFromString(c.ToleranceFloor)
		if err != nil {
			return nil, fmt.Errorf("invalid TOLERANCE_FLOOR: %w", err)
		}
		core.ToleranceFloor = floor
	}

	if c.CredentialTTL != "" {
		ttl, err := time.ParseDuration(c.CredentialTTL)
		if err != nil {
			return nil, fmt.Errorf("invalid CREDENTIAL_TTL: %w", err)
		}
		core.CredentialTTL = ttl
	}

	if c.LedgerTimeout != "" {
		timeout, err := time.ParseDuration(c.LedgerTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid LEDGER_TIMEOUT: %w", err)
		}
		core.LedgerTimeout = timeout
	}

	core.ApplyDefaults()
	if err := core.Validate(); err != nil {
		return nil, err
	}

	return core, nil
}
