package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EVMNetwork holds the connection settings for one EVM chain.
type EVMNetwork struct {
	RPCUrl   string  `mapstructure:"rpc_url" validate:"required,url"`
	ChainID  int64   `mapstructure:"chain_id" validate:"required"`
	GasPrice *int64  `mapstructure:"gas_price"`
	GasLimit *uint64 `mapstructure:"gas_limit"`
}

// Config holds the application configuration.
type Config struct {
	// Registry network for name resolution. The testnet flag selects
	// the Sepolia registry once at load time; resolvers never consult
	// the environment again.
	Testnet    bool   `mapstructure:"testnet"`
	MainnetRPC string `mapstructure:"mainnet_rpc" validate:"omitempty,url"`
	SepoliaRPC string `mapstructure:"sepolia_rpc" validate:"omitempty,url"`

	// Routing aggregator.
	LiFiBaseURL   string        `mapstructure:"lifi_base_url" validate:"required,url"`
	Slippage      float64       `mapstructure:"slippage" validate:"gt=0,lte=0.5"`
	QuoteDebounce time.Duration `mapstructure:"quote_debounce"`
	QuoteTimeout  time.Duration `mapstructure:"quote_timeout" validate:"required"`

	// Payer chain the CLI wallet is connected to, plus the default
	// chain assumed for merchants that record no preference.
	PayerChainID    int64 `mapstructure:"payer_chain_id" validate:"required"`
	FallbackChainID int64 `mapstructure:"fallback_chain_id" validate:"required"`

	// Wallet signing key for the pay/approve commands. Resolution-only
	// commands work without it.
	PrivateKey string `mapstructure:"private_key"`

	// Per-chain RPC endpoints for transaction submission and receipt
	// watching, keyed by chain name.
	Networks map[string]EVMNetwork `mapstructure:"networks" validate:"dive"`

	// Skip interactive confirmation prompts.
	AutoConfirm bool `mapstructure:"auto_confirm"`
}

// Load reads configuration from environment variables and an optional
// config file.
func Load() (*Config, error) {
	viper.SetConfigName(".paylink")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	// Set default values
	viper.SetDefault("testnet", false)
	viper.SetDefault("lifi_base_url", "https://li.quest/v1")
	viper.SetDefault("slippage", 0.03)
	viper.SetDefault("quote_debounce", 600*time.Millisecond)
	viper.SetDefault("quote_timeout", 20*time.Second)
	viper.SetDefault("payer_chain_id", 1)
	viper.SetDefault("fallback_chain_id", 11155111)

	// Read from environment variables
	viper.SetEnvPrefix("PAYLINK")
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	// Env-only values don't flow through Unmarshal unless bound.
	if v := viper.GetString("private_key"); v != "" {
		cfg.PrivateKey = v
	}
	if v := viper.GetString("mainnet_rpc"); v != "" {
		cfg.MainnetRPC = v
	}
	if v := viper.GetString("sepolia_rpc"); v != "" {
		cfg.SepoliaRPC = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for self-consistency.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// RegistryRPC returns the RPC endpoint for the name-registry network
// selected at load time. An empty string means the resolver should use
// a public default endpoint.
func (c *Config) RegistryRPC() string {
	if c.Testnet {
		return c.SepoliaRPC
	}
	return c.MainnetRPC
}

// NetworkByChainID finds the configured network for a chain id.
func (c *Config) NetworkByChainID(chainID int64) (EVMNetwork, error) {
	for _, n := range c.Networks {
		if n.ChainID == chainID {
			return n, nil
		}
	}
	return EVMNetwork{}, fmt.Errorf("no RPC endpoint configured for chain %d", chainID)
}
