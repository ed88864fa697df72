package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "votereum.db", cfg.DatabaseFile)
	assert.Equal(t, "http://localhost:8545", cfg.RPCURL)
	assert.Equal(t, int64(1337), cfg.ChainID)
	assert.Equal(t, 90, cfg.ConfirmTimeoutSeconds)
	assert.Equal(t, 30, cfg.ReconcileIntervalSeconds)
	assert.Equal(t, 10, cfg.ReconcileMaxAttempts)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"port": 9090,
		"log_format": "json",
		"rpc_url": "http://ledger:8545",
		"chain_id": 31337,
		"factory_address": "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"
	}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "http://ledger:8545", cfg.RPCURL)
	assert.Equal(t, int64(31337), cfg.ChainID)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"bad log format":      `{"log_format": "xml"}`,
		"bad log level":       `{"log_level": 9}`,
		"bad factory address": `{"factory_address": "not-an-address"}`,
		"bad json":            `{`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestAdminKeyFromEnvironment(t *testing.T) {
	t.Setenv("VOTEREUM_ADMIN_PRIVATE_KEY", "deadbeef")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", cfg.AdminPrivateKey)
}
