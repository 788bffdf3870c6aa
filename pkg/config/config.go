package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the anchoring service.
type Config struct {
	Ethereum ProtocolConfig `mapstructure:"ethereum"`
	Zilliqa  ProtocolConfig `mapstructure:"zilliqa"`
	Tezos    ProtocolConfig `mapstructure:"tezos"`
	Gas      GasConfig      `mapstructure:"gas"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Receipts ReceiptsConfig `mapstructure:"receipts"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ProtocolConfig maps a network name to its profile.
type ProtocolConfig map[string]NetworkConfig

// NetworkConfig contains the per-network ledger profile. Admin keys are
// sourced from the environment (ANCHOR_<PROTOCOL>_<NETWORK>_ADMIN_KEY),
// never from the config file.
type NetworkConfig struct {
	RPC           string `mapstructure:"rpc"`
	ChainID       uint64 `mapstructure:"chain_id"`
	AdminAddress  string `mapstructure:"admin_address"`
	AdminKey      string `mapstructure:"admin_key"`
	Confirmations uint64 `mapstructure:"confirmations"`
	MetadataURL   string `mapstructure:"metadata_url"`
}

// GasConfig contains fee-market tuning applied by the submission pipeline.
type GasConfig struct {
	PriceMultiplier float64 `mapstructure:"price_multiplier"`
	LimitMultiplier float64 `mapstructure:"limit_multiplier"`
}

// NotifyConfig contains the failure-report mail sink configuration.
type NotifyConfig struct {
	SMTPAddr string `mapstructure:"smtp_addr"`
	From     string `mapstructure:"from"`
}

// ReceiptsConfig contains the redis-backed anchor receipt store configuration.
type ReceiptsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MetricsConfig contains metrics configuration.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("ANCHOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults seeds the built-in network profile table and ambient defaults.
func setDefaults(v *viper.Viper) {
	// Ethereum
	v.SetDefault("ethereum.mainnet.rpc", "wss://mainnet.infura.io/ws/v3/0bb844e98c654b5b809c37c6cdc2e7a0")
	v.SetDefault("ethereum.mainnet.chain_id", 1)
	v.SetDefault("ethereum.mainnet.admin_address", "0x375B50CA5a62D0fBBFe1fFaB1292748f5129E080")
	v.SetDefault("ethereum.mainnet.confirmations", 1)
	v.SetDefault("ethereum.ropsten.rpc", "wss://ropsten.infura.io/ws/v3/1f1ff2b3fca04f8d99f67d465c59e4ef")
	v.SetDefault("ethereum.ropsten.chain_id", 3)
	v.SetDefault("ethereum.ropsten.admin_address", "0xE42383137e7814B3D8E18AD77EF48B248B08c0e5")
	v.SetDefault("ethereum.ropsten.confirmations", 1)

	// Zilliqa
	v.SetDefault("zilliqa.mainnet.rpc", "https://api.zilliqa.com")
	v.SetDefault("zilliqa.mainnet.chain_id", 1)
	v.SetDefault("zilliqa.mainnet.admin_address", "0x2Dd2468C5A03A9fe146391537e92Af56f1370C10")
	v.SetDefault("zilliqa.mainnet.confirmations", 1)
	v.SetDefault("zilliqa.testnet.rpc", "https://dev-api.zilliqa.com")
	v.SetDefault("zilliqa.testnet.chain_id", 333)
	v.SetDefault("zilliqa.testnet.admin_address", "zil169fv6udyu50d6ts0jhar6uq0tt5up38txsfzw7")
	v.SetDefault("zilliqa.testnet.confirmations", 1)

	// Tezos
	v.SetDefault("tezos.mainnet.rpc", "https://mainnet.api.tez.ie")
	v.SetDefault("tezos.mainnet.admin_address", "tz1domubojGkHCxxX9VXnjvmXZkncFUKLviz")
	v.SetDefault("tezos.mainnet.confirmations", 3)
	v.SetDefault("tezos.mainnet.metadata_url", "https://bafybeig27fkx3douw43ice5jicekof5jquj7tjgodsopmyqvgcfe4llqui.ipfs.infura-ipfs.io")
	v.SetDefault("tezos.ghostnet.rpc", "https://rpc.ghostnet.teztnets.xyz")
	v.SetDefault("tezos.ghostnet.admin_address", "tz1U8KLnQ6iSsisss3bQxcEHLzCfy8cS51W3")
	v.SetDefault("tezos.ghostnet.confirmations", 3)
	v.SetDefault("tezos.ghostnet.metadata_url", "https://bafybeig27fkx3douw43ice5jicekof5jquj7tjgodsopmyqvgcfe4llqui.ipfs.infura-ipfs.io")

	v.SetDefault("gas.price_multiplier", 1)
	v.SetDefault("gas.limit_multiplier", 1)

	v.SetDefault("receipts.enabled", false)
	v.SetDefault("receipts.addr", "127.0.0.1:6379")
	v.SetDefault("receipts.db", 0)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", "0.0.0.0:9090")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for protocol, networks := range map[string]ProtocolConfig{
		"ethereum": c.Ethereum,
		"zilliqa":  c.Zilliqa,
		"tezos":    c.Tezos,
	} {
		for network, nc := range networks {
			if nc.RPC == "" {
				return fmt.Errorf("%s.%s.rpc is required", protocol, network)
			}
			if nc.AdminAddress == "" {
				return fmt.Errorf("%s.%s.admin_address is required", protocol, network)
			}
			if nc.Confirmations == 0 {
				return fmt.Errorf("%s.%s.confirmations must be positive", protocol, network)
			}
		}
	}
	if c.Gas.PriceMultiplier <= 0 {
		return fmt.Errorf("gas.price_multiplier must be positive")
	}
	if c.Gas.LimitMultiplier <= 0 {
		return fmt.Errorf("gas.limit_multiplier must be positive")
	}
	if c.Receipts.Enabled && c.Receipts.Addr == "" {
		return fmt.Errorf("receipts.addr is required when receipts are enabled")
	}
	return nil
}
