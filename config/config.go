package config

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/briansoule/poa-bridge/pkg/clients/evm"
)

// HomeConfig describes the PoA chain withdrawals are paid out on.
type HomeConfig struct {
	RPCUrl               string        `mapstructure:"rpc_url" validate:"required,url"`
	BridgeContract       string        `mapstructure:"bridge_contract" validate:"required,eth_addr"`
	ChainID              uint64        `mapstructure:"chain_id" validate:"required"`
	GasLimit             uint64        `mapstructure:"gas_limit" validate:"required"`
	DefaultGasPrice      uint64        `mapstructure:"default_gas_price" validate:"required"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	StateRefreshInterval time.Duration `mapstructure:"state_refresh_interval"`
	MaxRetry             uint          `mapstructure:"max_retry"`
	RetryDelay           time.Duration `mapstructure:"retry_delay"`
}

// ForeignConfig describes the chain where authorities collect
// withdrawal signatures.
type ForeignConfig struct {
	RPCUrl         string        `mapstructure:"rpc_url" validate:"required,url"`
	BridgeContract string        `mapstructure:"bridge_contract" validate:"required,eth_addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	Confirmations  uint64        `mapstructure:"confirmations"`
	StartBlock     uint64        `mapstructure:"start_block"`
}

// AccountConfig holds the authority key. Either the plain hex key or
// the encrypted key plus nonce must be set.
type AccountConfig struct {
	PrivateKey          string `mapstructure:"private_key"`
	EncryptedPrivateKey string `mapstructure:"encrypted_private_key"`
	KeyNonce            string `mapstructure:"key_nonce"`
}

type Config struct {
	AppName     string        `mapstructure:"app_name"`
	Home        HomeConfig    `mapstructure:"home" validate:"required"`
	Foreign     ForeignConfig `mapstructure:"foreign" validate:"required"`
	Account     AccountConfig `mapstructure:"account"`
	DatabaseURL string        `mapstructure:"database_url" validate:"required"`
}

var GlobalConfig *Config

// Load reads the bridge configuration file, applies defaults,
// validates it and stores the result in GlobalConfig.
func Load(configPath string) error {
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()

	viper.SetDefault("home.request_timeout", 10*time.Second)
	viper.SetDefault("home.state_refresh_interval", 5*time.Second)
	viper.SetDefault("home.max_retry", 3)
	viper.SetDefault("home.retry_delay", time.Second)
	viper.SetDefault("foreign.request_timeout", 10*time.Second)
	viper.SetDefault("foreign.poll_interval", time.Second)
	viper.SetDefault("foreign.confirmations", 12)

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = viper.GetString("DATABASE_URL")
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Account.PrivateKey == "" && cfg.Account.EncryptedPrivateKey == "" {
		return fmt.Errorf("invalid config: either account.private_key or account.encrypted_private_key must be set")
	}

	GlobalConfig = &cfg
	return nil
}

// RelayKey returns the authority signing key, decrypting it when only
// the encrypted form is configured.
func (c *Config) RelayKey() (*ecdsa.PrivateKey, error) {
	if c.Account.PrivateKey != "" {
		return evm.ParsePrivateKey(c.Account.PrivateKey)
	}
	return evm.DecryptPrivateKey(c.AppName, c.Account.EncryptedPrivateKey, c.Account.KeyNonce)
}
