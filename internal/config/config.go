// Package config loads and validates the client configuration from a
// YAML file, with defaults suitable for the Sepolia deployment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/custodex/custodex/internal/escrow"
)

// Config is the complete client configuration.
type Config struct {
	Chain     ChainConfig     `yaml:"chain"`
	Contracts ContractsConfig `yaml:"contracts"`
	Wallet    WalletConfig    `yaml:"wallet"`
	Polling   PollingConfig   `yaml:"polling"`
	Inbox     InboxConfig     `yaml:"inbox"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ChainConfig contains RPC endpoint settings.
type ChainConfig struct {
	RPCURL        string `yaml:"rpc_url"`
	ChainID       int64  `yaml:"chain_id"`
	ExplorerURL   string `yaml:"explorer_url"`
	MaxGasPrice   string `yaml:"max_gas_price_gwei"` // empty disables the cap
	Confirmations uint64 `yaml:"confirmations"`
}

// ContractsConfig holds the deployed contract addresses.
type ContractsConfig struct {
	Escrow string `yaml:"escrow"`
	Token  string `yaml:"token"`
}

// WalletConfig locates the signing key.
type WalletConfig struct {
	KeystoreDir  string `yaml:"keystore_dir"`
	Address      string `yaml:"address"`
	PasswordFile string `yaml:"password_file"` // empty falls back to the OS keyring
}

// PollingConfig tunes the transaction lifecycle.
type PollingConfig struct {
	Interval   time.Duration `yaml:"interval"`
	Timeout    time.Duration `yaml:"timeout"`
	GraceDelay time.Duration `yaml:"grace_delay"`
}

// InboxConfig tunes the payment snapshot refresh.
type InboxConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	LookbackBlocks  uint64        `yaml:"lookback_blocks"`
}

// LogConfig selects log output.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Chain: ChainConfig{
			RPCURL:        "https://ethereum-sepolia-rpc.publicnode.com",
			ChainID:       11155111,
			ExplorerURL:   "https://sepolia.etherscan.io",
			MaxGasPrice:   "100",
			Confirmations: 1,
		},
		Wallet: WalletConfig{
			KeystoreDir: filepath.Join(home, ".custodex", "keystore"),
		},
		Polling: PollingConfig{
			Interval:   1500 * time.Millisecond,
			Timeout:    10 * time.Minute,
			GraceDelay: 1500 * time.Millisecond,
		},
		Inbox: InboxConfig{
			RefreshInterval: 15 * time.Second,
			LookbackBlocks:  50_000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:9186",
		},
	}
}

// DefaultConfigPath returns the standard config file location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".custodex", "config.yaml")
}

// Load reads the configuration file, applying defaults for anything
// unset. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	path = expandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Wallet.KeystoreDir = expandPath(cfg.Wallet.KeystoreDir)
	cfg.Wallet.PasswordFile = expandPath(cfg.Wallet.PasswordFile)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration for values the client cannot run
// with.
func (c *Config) Validate() error {
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("chain rpc_url is required")
	}
	if c.Chain.ChainID <= 0 {
		return fmt.Errorf("invalid chain_id: %d", c.Chain.ChainID)
	}

	if c.Contracts.Escrow != "" && !escrow.ValidAddress(c.Contracts.Escrow) {
		return fmt.Errorf("invalid escrow contract address: %s", c.Contracts.Escrow)
	}
	if c.Contracts.Token != "" && !escrow.ValidAddress(c.Contracts.Token) {
		return fmt.Errorf("invalid token contract address: %s", c.Contracts.Token)
	}
	if c.Wallet.Address != "" && !escrow.ValidAddress(c.Wallet.Address) {
		return fmt.Errorf("invalid wallet address: %s", c.Wallet.Address)
	}

	if c.Polling.Interval <= 0 {
		return fmt.Errorf("polling interval must be positive")
	}
	if c.Polling.Timeout < c.Polling.Interval {
		return fmt.Errorf("polling timeout must be at least one interval")
	}
	if c.Inbox.RefreshInterval <= 0 {
		return fmt.Errorf("inbox refresh_interval must be positive")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}
	return nil
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" || !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
