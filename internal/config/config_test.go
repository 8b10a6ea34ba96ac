package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "stakeplan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultNetwork, cfg.Network)
	assert.Equal(t, DefaultRefreshCron, cfg.Daemon.RefreshCron)
	assert.Equal(t, DefaultMetricsAddr, cfg.Daemon.MetricsAddr)
	assert.Empty(t, cfg.Database.SQLitePath)

	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.True(t, policy.FeeEpsilon.Equal(decimal.New(1, -6)))
	assert.Zero(t, policy.MaxPools)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
network: kovan
backend_url: http://localhost:3000
allocation:
  fee_epsilon: "0.0001"
  max_pools: 3
daemon:
  refresh_cron: "@every 1m"
  reference_amount: "2500.50"
database:
  sqlite_path: data/plans.db
`)
	t.Setenv("STAKEPLAN_MAX_POOLS", "5")
	t.Setenv("STAKEPLAN_METRICS_ADDR", "127.0.0.1:9100")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "kovan", cfg.Network)
	assert.Equal(t, "http://localhost:3000", cfg.BackendURL)
	assert.Equal(t, "data/plans.db", cfg.Database.SQLitePath)
	assert.Equal(t, "127.0.0.1:9100", cfg.Daemon.MetricsAddr)

	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, "0.0001", policy.FeeEpsilon.String())
	assert.Equal(t, 5, policy.MaxPools)

	amount, err := cfg.ReferenceAmount()
	require.NoError(t, err)
	assert.Equal(t, "2500.5", amount.String())
}

func TestLoadBadInput(t *testing.T) {
	_, err := Load(writeConfig(t, "network: [unterminated"))
	assert.Error(t, err)

	t.Setenv("STAKEPLAN_MAX_POOLS", "lots")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative max pools", func(c *Config) { c.Allocation.MaxPools = -1 }},
		{"bad fee epsilon", func(c *Config) { c.Allocation.FeeEpsilon = "tiny" }},
		{"negative fee epsilon", func(c *Config) { c.Allocation.FeeEpsilon = "-0.1" }},
		{"zero fee epsilon", func(c *Config) { c.Allocation.FeeEpsilon = "0" }},
		{"bad cron", func(c *Config) { c.Daemon.RefreshCron = "every tuesday" }},
		{"zero reference amount", func(c *Config) { c.Daemon.ReferenceAmount = "0" }},
		{"no network", func(c *Config) { c.Network = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
