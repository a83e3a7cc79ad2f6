package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "lottery.conf")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `{
		"blockchain": {"rpc_url": "http://localhost:8545", "contract_address": "0x1111111111111111111111111111111111111111"}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1.15, cfg.Blockchain.GasMultiplier)
	require.Equal(t, 10, cfg.EventManager.ContractConfigIntervalSec)
	require.Equal(t, 180, cfg.Operator.TxTimeoutSeconds)
}

func TestLoad_MissingRequiredField(t *testing.T) {
	path := writeTempConfig(t, `{}`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeTempConfig(t, `{
		"blockchain": {"rpc_url": "http://localhost:8545", "contract_address": "0x1111111111111111111111111111111111111111"}
	}`)
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("BLOCKCHAIN_GAS_MULTIPLIER", "1.5")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9999, cfg.Server.Port)
	require.Equal(t, 1.5, cfg.Blockchain.GasMultiplier)
}
