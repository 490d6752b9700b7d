package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-certledger/core"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "certledger"

type ctxKey string

const configContextKey ctxKey = "certledger.config"

type DatabaseConfig struct {
	Driver      string        `yaml:"driver"      envconfig:"DRIVER"`
	DSN         string        `yaml:"dsn"         envconfig:"DSN"`
	PingTimeout time.Duration `yaml:"pingTimeout" envconfig:"PING_TIMEOUT"`
	Debug       bool          `yaml:"debug"       envconfig:"DEBUG"`
	CacheTTL    time.Duration `yaml:"cacheTTL"    envconfig:"CACHE_TTL"`
}

func (c DatabaseConfig) GetDebug() bool {
	return c.Debug
}

func (c DatabaseConfig) GetDriver() string {
	return c.driverName()
}

func (c DatabaseConfig) GetServer() string {
	return c.DSN
}

func (c DatabaseConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.PingTimeout
}

func (c DatabaseConfig) GetOtelIdentifier() string {
	return "go-certledger"
}

// driverName maps the configured dialect to the database/sql driver name.
func (c DatabaseConfig) driverName() string {
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case "postgres", "postgresql", "pg":
		return "postgres"
	default:
		return "sqlite3"
	}
}

type LedgerConfig struct {
	RPCURL          string `yaml:"rpcUrl"          envconfig:"RPC_URL"`
	ContractAddress string `yaml:"contractAddress" envconfig:"CONTRACT_ADDRESS"`
	PrivateKey      string `yaml:"privateKey"      envconfig:"PRIVATE_KEY"`
}

type PublisherConfig struct {
	// Backend is "pinata" or "memory".
	Backend  string `yaml:"backend"  envconfig:"BACKEND"`
	Endpoint string `yaml:"endpoint" envconfig:"ENDPOINT"`
	JWT      string `yaml:"jwt"      envconfig:"JWT"`
}

type MetricsConfig struct {
	ListenAddress string `yaml:"listenAddress" envconfig:"ADDRESS"`
}

// Config is the CLI configuration. The engine section is handed to the core
// service as a raw map so its own defaults and validation apply.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"  envconfig:"DB"`
	Ledger    LedgerConfig    `yaml:"ledger"    envconfig:"LEDGER"`
	Publisher PublisherConfig `yaml:"publisher" envconfig:"PUBLISHER"`
	Metrics   MetricsConfig   `yaml:"metrics"   envconfig:"METRICS"`
	Engine    map[string]any  `yaml:"engine"    ignored:"true"`
}

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:      "sqlite",
			DSN:         "file:certledger.db?cache=shared&_foreign_keys=on",
			PingTimeout: 5 * time.Second,
			CacheTTL:    time.Minute,
		},
		Publisher: PublisherConfig{
			Backend: "pinata",
		},
		Engine: map[string]any{},
	}
}

// LoadConfig reads the YAML file when given and then applies environment
// overrides such as CERTLEDGER_DB_DSN or CERTLEDGER_LEDGER_PRIVATE_KEY.
func LoadConfig(configFile string) (*Config, error) {
	cfg := defaultConfig()
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if cfg.Engine == nil {
		cfg.Engine = map[string]any{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Publisher.Backend)) {
	case "", "pinata", "memory":
	default:
		return fmt.Errorf("invalid publisher backend %q (must be 'pinata' or 'memory')", c.Publisher.Backend)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database dsn is required")
	}
	return nil
}

// EngineConfig resolves the engine section through the core config pipeline.
func (c *Config) EngineConfig(ctx context.Context) (core.Config, error) {
	provider := core.NewCfgxConfigProvider(core.StaticRawConfigLoader{Values: c.Engine})
	return provider.Load(ctx, core.DefaultConfig())
}

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}
