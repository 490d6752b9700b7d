package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// MinGasMultiplier is the smallest safety buffer applied to gas estimates.
	MinGasMultiplier     = 1.1
	defaultGasMultiplier = 1.2
)

type LedgerConfig struct {
	GasMultiplier       float64       `koanf:"gas_multiplier" mapstructure:"gas_multiplier"`
	ConfirmationTimeout time.Duration `koanf:"confirmation_timeout" mapstructure:"confirmation_timeout"`
	PollInterval        time.Duration `koanf:"poll_interval" mapstructure:"poll_interval"`
}

type IssuanceConfig struct {
	LockTimeout       time.Duration `koanf:"lock_timeout" mapstructure:"lock_timeout"`
	SubmitVersionMint bool          `koanf:"submit_version_mint" mapstructure:"submit_version_mint"`
}

type PublisherConfig struct {
	GatewayURL string `koanf:"gateway_url" mapstructure:"gateway_url"`
}

type RecoveryConfig struct {
	StaleAfter time.Duration `koanf:"stale_after" mapstructure:"stale_after"`
	BatchSize  int           `koanf:"batch_size" mapstructure:"batch_size"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	Ledger      LedgerConfig    `koanf:"ledger" mapstructure:"ledger"`
	Issuance    IssuanceConfig  `koanf:"issuance" mapstructure:"issuance"`
	Publisher   PublisherConfig `koanf:"publisher" mapstructure:"publisher"`
	Recovery    RecoveryConfig  `koanf:"recovery" mapstructure:"recovery"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "certledger",
		Ledger: LedgerConfig{
			GasMultiplier:       defaultGasMultiplier,
			ConfirmationTimeout: 2 * time.Minute,
			PollInterval:        2 * time.Second,
		},
		Issuance: IssuanceConfig{
			LockTimeout: 30 * time.Second,
		},
		Publisher: PublisherConfig{
			GatewayURL: "https://gateway.pinata.cloud",
		},
		Recovery: RecoveryConfig{
			StaleAfter: 10 * time.Minute,
			BatchSize:  50,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Ledger.GasMultiplier != 0 && c.Ledger.GasMultiplier < MinGasMultiplier {
		return fmt.Errorf("core: ledger.gas_multiplier must be >= %.1f, got %.2f", MinGasMultiplier, c.Ledger.GasMultiplier)
	}
	if c.Ledger.ConfirmationTimeout < 0 {
		return fmt.Errorf("core: ledger.confirmation_timeout must be >= 0")
	}
	if c.Ledger.PollInterval < 0 {
		return fmt.Errorf("core: ledger.poll_interval must be >= 0")
	}
	if c.Issuance.LockTimeout < 0 {
		return fmt.Errorf("core: issuance.lock_timeout must be >= 0")
	}
	if gateway := strings.TrimSpace(c.Publisher.GatewayURL); gateway != "" {
		parsed, err := url.Parse(gateway)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("core: publisher.gateway_url is invalid: %q", gateway)
		}
	}
	if c.Recovery.BatchSize < 0 {
		return fmt.Errorf("core: recovery.batch_size must be >= 0")
	}
	return nil
}
