// Package config loads and validates the backend configuration from a JSON
// file, filling in defaults for anything the file leaves out.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
)

const adminKeyEnv = "VOTEREUM_ADMIN_PRIVATE_KEY"

// Config holds all runtime settings for the voting backend.
type Config struct {
	// Log config
	LogLevel  int    `json:"log_level"`  // zerolog levels: -1 = trace, 0 = debug, 1 = info, ...
	LogFormat string `json:"log_format"` // "json" or "console"

	// HTTP server
	Port int `json:"port"`

	// Off-chain record store
	DataDir      string `json:"data_dir"`
	DatabaseFile string `json:"database_file"`

	// Ledger connection
	RPCURL          string `json:"rpc_url"`
	ChainID         int64  `json:"chain_id"`
	FactoryAddress  string `json:"factory_address"`
	AdminPrivateKey string `json:"admin_private_key"` // hex; VOTEREUM_ADMIN_PRIVATE_KEY overrides

	// Confirmation and retry behaviour
	ConfirmTimeoutSeconds int `json:"confirm_timeout_seconds"`
	MaxReadRetries        int `json:"max_read_retries"`
	RetryBackoffSeconds   int `json:"retry_backoff_seconds"`

	// Reconciler
	ReconcileIntervalSeconds int `json:"reconcile_interval_seconds"`
	ReconcileMaxAttempts     int `json:"reconcile_max_attempts"`

	// Election creation policy
	AllowPastStart bool `json:"allow_past_start"`
}

// Load reads the config file at path, or returns defaults when path is empty.
// The admin private key may come from the environment instead of the file.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if key := os.Getenv(adminKeyEnv); key != "" {
		cfg.AdminPrivateKey = key
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.LogLevel < -1 || cfg.LogLevel > 5 {
		return fmt.Errorf("log level must be between -1 and 5")
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}

	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.DatabaseFile == "" {
		cfg.DatabaseFile = "votereum.db"
	}

	if cfg.RPCURL == "" {
		cfg.RPCURL = "http://localhost:8545"
	}
	if cfg.ChainID == 0 {
		cfg.ChainID = 1337
	}
	if cfg.FactoryAddress != "" && !common.IsHexAddress(cfg.FactoryAddress) {
		return fmt.Errorf("factory_address %q is not a valid address", cfg.FactoryAddress)
	}

	if cfg.ConfirmTimeoutSeconds == 0 {
		cfg.ConfirmTimeoutSeconds = 90
	}
	if cfg.MaxReadRetries == 0 {
		cfg.MaxReadRetries = 3
	}
	if cfg.RetryBackoffSeconds == 0 {
		cfg.RetryBackoffSeconds = 1
	}

	if cfg.ReconcileIntervalSeconds == 0 {
		cfg.ReconcileIntervalSeconds = 30
	}
	if cfg.ReconcileMaxAttempts == 0 {
		cfg.ReconcileMaxAttempts = 10
	}

	return nil
}
