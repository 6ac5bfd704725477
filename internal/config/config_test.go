// =================================
// File: internal/config/config_test.go
// =================================
package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "wallets_file: wallets.yaml\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(1_000_000), cfg.Engine.ReserveFloor())
	assert.Equal(t, uint64(DefaultMaxFeeBps), cfg.Engine.MaxFeeBps)
	assert.Equal(t, 24*time.Hour, cfg.Engine.TimelockDuration())
	assert.Equal(t, uint64(DefaultSlippageBps), cfg.Client.SlippageBps)
	assert.Equal(t, 30*time.Second, cfg.Client.ConfirmTimeout())
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, "wallets.yaml", cfg.WalletsFile)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
engine:
  min_seed_reserve: "5000000000"
  max_fee_bps: 300
  timelock_duration_ms: 3600000
client:
  slippage_bps: 100
  confirm_timeout_ms: 5000
workers: 2
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	want, _ := new(big.Int).SetString("5000000000", 10)
	assert.Equal(t, want, cfg.Engine.ReserveFloor())
	assert.Equal(t, uint64(300), cfg.Engine.MaxFeeBps)
	assert.Equal(t, time.Hour, cfg.Engine.TimelockDuration())
	assert.Equal(t, uint64(100), cfg.Client.SlippageBps)
	assert.Equal(t, 5*time.Second, cfg.Client.ConfirmTimeout())
	assert.Equal(t, 2, cfg.Workers)
}

func TestLoadConfigPools(t *testing.T) {
	path := writeConfig(t, `
pools:
  - name: Curve Token
    symbol: CRV
    decimals: 9
    curve: linear
    base_price: "100000"
    price_increment: "100"
    max_supply: "10000000"
    fee_bps: 50
    seed_reserve: "1000000"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Pools, 1)

	p := cfg.Pools[0]
	assert.Equal(t, "CRV", p.Symbol)
	assert.Equal(t, "linear", p.Curve)
	assert.Equal(t, big.NewInt(100_000), Amount(p.BasePrice))
	assert.Equal(t, uint64(50), p.FeeBps)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeConfig(t, "wallets_file: from-file.yaml\n")
	t.Setenv("CURVED_WALLETS_FILE", "from-env.yaml")
	t.Setenv("CURVED_METRICS_ADDR", ":9100")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.yaml", cfg.WalletsFile)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad reserve", "engine:\n  min_seed_reserve: \"abc\"\n"},
		{"zero reserve", "engine:\n  min_seed_reserve: \"0\"\n"},
		{"fee over 100%", "engine:\n  max_fee_bps: 10001\n"},
		{"slippage at 100%", "client:\n  slippage_bps: 10000\n"},
		{"negative workers", "workers: -1\n"},
		{"zero confirm timeout", "client:\n  confirm_timeout_ms: 0\n"},
		{"pool bad curve", `
pools:
  - name: Curve Token
    symbol: CRV
    curve: parabolic
    base_price: "100000"
    max_supply: "10000000"
    seed_reserve: "1000000"
`},
		{"pool bad amount", `
pools:
  - name: Curve Token
    symbol: CRV
    curve: linear
    base_price: "lots"
    max_supply: "10000000"
    seed_reserve: "1000000"
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
