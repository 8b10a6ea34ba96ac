package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/TxnLab/stakeplan/internal/lib/allocation"
)

const (
	DefaultNetwork         = "mainnet"
	DefaultRefreshCron     = "0 */10 * * * *"
	DefaultReferenceAmount = "100000"
	DefaultMetricsAddr     = ":8080"
)

// CronParser parses the (seconds first) refresh schedule.
var CronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Config holds the settings which aren't worth passing as flags every time - allocation policy,
// the daemon schedule and plan history storage.
type Config struct {
	Network    string `yaml:"network"`
	BackendURL string `yaml:"backend_url"`
	Allocation struct {
		// decimal string, ie: "0.000001"
		FeeEpsilon string `yaml:"fee_epsilon"`
		MaxPools   int    `yaml:"max_pools"`
	} `yaml:"allocation"`
	Daemon struct {
		RefreshCron     string `yaml:"refresh_cron"`
		ReferenceAmount string `yaml:"reference_amount"`
		MetricsAddr     string `yaml:"metrics_addr"`
	} `yaml:"daemon"`
	Database struct {
		// empty disables plan history
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
}

// Load reads config from a YAML file (a missing file is fine), then applies environment variable
// overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.Network == "" {
		cfg.Network = DefaultNetwork
	}
	if cfg.Daemon.RefreshCron == "" {
		cfg.Daemon.RefreshCron = DefaultRefreshCron
	}
	if cfg.Daemon.ReferenceAmount == "" {
		cfg.Daemon.ReferenceAmount = DefaultReferenceAmount
	}
	if cfg.Daemon.MetricsAddr == "" {
		cfg.Daemon.MetricsAddr = DefaultMetricsAddr
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("STAKEPLAN_NETWORK"); v != "" {
		c.Network = v
	}
	if v := os.Getenv("STAKEPLAN_BACKEND_URL"); v != "" {
		c.BackendURL = v
	}
	if v := os.Getenv("STAKEPLAN_FEE_EPSILON"); v != "" {
		c.Allocation.FeeEpsilon = v
	}
	if v := os.Getenv("STAKEPLAN_MAX_POOLS"); v != "" {
		maxPools, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("STAKEPLAN_MAX_POOLS: %w", err)
		}
		c.Allocation.MaxPools = maxPools
	}
	if v := os.Getenv("STAKEPLAN_REFRESH_CRON"); v != "" {
		c.Daemon.RefreshCron = v
	}
	if v := os.Getenv("STAKEPLAN_REFERENCE_AMOUNT"); v != "" {
		c.Daemon.ReferenceAmount = v
	}
	if v := os.Getenv("STAKEPLAN_METRICS_ADDR"); v != "" {
		c.Daemon.MetricsAddr = v
	}
	if v := os.Getenv("STAKEPLAN_SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	return nil
}

// Validate checks that all settings are usable.
func (c *Config) Validate() error {
	if c.Network == "" {
		return fmt.Errorf("network is required")
	}
	if c.Allocation.MaxPools < 0 {
		return fmt.Errorf("allocation.max_pools must not be negative")
	}
	if _, err := c.feeEpsilon(); err != nil {
		return err
	}
	if _, err := CronParser.Parse(c.Daemon.RefreshCron); err != nil {
		return fmt.Errorf("daemon.refresh_cron %q: %w", c.Daemon.RefreshCron, err)
	}
	if _, err := c.ReferenceAmount(); err != nil {
		return err
	}
	return nil
}

// Policy returns the allocation policy described by the config.
func (c *Config) Policy() (allocation.Policy, error) {
	policy := allocation.DefaultPolicy()
	eps, err := c.feeEpsilon()
	if err != nil {
		return policy, err
	}
	// unset keeps the default
	if c.Allocation.FeeEpsilon != "" {
		policy.FeeEpsilon = eps
	}
	policy.MaxPools = c.Allocation.MaxPools
	return policy, nil
}

// ReferenceAmount is the amount the daemon plans for on each catalog refresh.
func (c *Config) ReferenceAmount() (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(c.Daemon.ReferenceAmount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("daemon.reference_amount %q: %w", c.Daemon.ReferenceAmount, err)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("daemon.reference_amount must be positive")
	}
	return amount, nil
}

func (c *Config) feeEpsilon() (decimal.Decimal, error) {
	if c.Allocation.FeeEpsilon == "" {
		return decimal.Zero, nil
	}
	eps, err := decimal.NewFromString(c.Allocation.FeeEpsilon)
	if err != nil {
		return decimal.Zero, fmt.Errorf("allocation.fee_epsilon %q: %w", c.Allocation.FeeEpsilon, err)
	}
	if !eps.IsPositive() {
		return decimal.Zero, fmt.Errorf("allocation.fee_epsilon must be positive, got %s", eps)
	}
	return eps, nil
}
