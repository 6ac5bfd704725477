// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full engine configuration loaded from file plus environment
// overrides. Amount fields are decimal strings in base units so they survive
// values beyond int64.
type Config struct {
	Engine EngineConfig `mapstructure:"engine"`
	Client ClientConfig `mapstructure:"client"`
	Log    LogConfig    `mapstructure:"log"`

	// WalletsFile points at the YAML keystore; overridable via env.
	WalletsFile string `mapstructure:"wallets_file"`
	// TasksFile points at the YAML trade task list.
	TasksFile string `mapstructure:"tasks_file"`
	// MetricsAddr exposes Prometheus metrics when non-empty, e.g. ":9090".
	MetricsAddr string `mapstructure:"metrics_addr"`
	Workers     int    `mapstructure:"workers"`

	// Pools are created and seeded at startup.
	Pools []PoolSpec `mapstructure:"pools"`
}

// PoolSpec declares one pool to bootstrap. Amount fields are decimal
// strings in base units.
type PoolSpec struct {
	Name           string `mapstructure:"name"`
	Symbol         string `mapstructure:"symbol"`
	Decimals       uint8  `mapstructure:"decimals"`
	Curve          string `mapstructure:"curve"`
	BasePrice      string `mapstructure:"base_price"`
	PriceIncrement string `mapstructure:"price_increment"`
	GrowthRateBps  uint64 `mapstructure:"growth_rate_bps"`
	MaxSupply      string `mapstructure:"max_supply"`
	FeeBps         uint64 `mapstructure:"fee_bps"`
	SeedReserve    string `mapstructure:"seed_reserve"`
}

// EngineConfig holds the pool-side parameters.
type EngineConfig struct {
	MinSeedReserve     string `mapstructure:"min_seed_reserve"`
	MaxFeeBps          uint64 `mapstructure:"max_fee_bps"`
	TimelockDurationMS int    `mapstructure:"timelock_duration_ms"`
}

// ClientConfig holds the trading-client parameters.
type ClientConfig struct {
	SlippageBps      uint64 `mapstructure:"slippage_bps"`
	ConfirmTimeoutMS int    `mapstructure:"confirm_timeout_ms"`
	QuoteTimeoutMS   int    `mapstructure:"quote_timeout_ms"`
	TradeDeadlineMS  int    `mapstructure:"trade_deadline_ms"`
}

// LogConfig controls file logging. Console output is always on.
type LogConfig struct {
	Directory string `mapstructure:"directory"`
	Debug     bool   `mapstructure:"debug"`
}

const (
	DefaultMinSeedReserve   = "1000000"
	DefaultMaxFeeBps        = 1_000
	DefaultTimelockMS       = 86_400_000 // 24h
	DefaultSlippageBps      = 50
	DefaultConfirmTimeoutMS = 30_000
	DefaultQuoteTimeoutMS   = 10_000
	DefaultTradeDeadlineMS  = 120_000
	DefaultWorkers          = 5
)

// LoadConfig reads the YAML file at path, applies CURVED_* environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"engine.min_seed_reserve":     DefaultMinSeedReserve,
		"engine.max_fee_bps":          DefaultMaxFeeBps,
		"engine.timelock_duration_ms": DefaultTimelockMS,
		"client.slippage_bps":         DefaultSlippageBps,
		"client.confirm_timeout_ms":   DefaultConfirmTimeoutMS,
		"client.quote_timeout_ms":     DefaultQuoteTimeoutMS,
		"client.trade_deadline_ms":    DefaultTradeDeadlineMS,
		"workers":                     DefaultWorkers,
		"log.directory":               "logs",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvironmentVariables(v, &cfg)

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	reserve, ok := new(big.Int).SetString(cfg.Engine.MinSeedReserve, 10)
	if !ok || reserve.Sign() <= 0 {
		return errors.New("invalid engine.min_seed_reserve")
	}
	if cfg.Engine.MaxFeeBps == 0 || cfg.Engine.MaxFeeBps > 10_000 {
		return errors.New("engine.max_fee_bps must be in (0, 10000]")
	}
	if cfg.Engine.TimelockDurationMS <= 0 {
		return errors.New("invalid engine.timelock_duration_ms")
	}
	if cfg.Client.SlippageBps >= 10_000 {
		return errors.New("client.slippage_bps must be below 10000")
	}
	if cfg.Client.ConfirmTimeoutMS <= 0 {
		return errors.New("invalid client.confirm_timeout_ms")
	}
	if cfg.Client.QuoteTimeoutMS <= 0 {
		return errors.New("invalid client.quote_timeout_ms")
	}
	if cfg.Client.TradeDeadlineMS <= 0 {
		return errors.New("invalid client.trade_deadline_ms")
	}
	if cfg.Workers < 0 {
		return errors.New("invalid workers count")
	}
	for _, p := range cfg.Pools {
		if err := validatePoolSpec(&p); err != nil {
			return err
		}
	}
	return nil
}

func validatePoolSpec(p *PoolSpec) error {
	if p.Name == "" || p.Symbol == "" {
		return errors.New("pool name and symbol are required")
	}
	if p.Curve != "linear" && p.Curve != "exponential" {
		return errors.New("pool curve must be linear or exponential")
	}
	for _, field := range []string{p.BasePrice, p.MaxSupply, p.SeedReserve} {
		if v, ok := new(big.Int).SetString(field, 10); !ok || v.Sign() <= 0 {
			return errors.New("pool amounts must be positive integers")
		}
	}
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) {
	v.AutomaticEnv()
	v.SetEnvPrefix("CURVED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if wallets := v.GetString("WALLETS_FILE"); wallets != "" {
		cfg.WalletsFile = wallets
	}
	if tasks := v.GetString("TASKS_FILE"); tasks != "" {
		cfg.TasksFile = tasks
	}
	if metrics := v.GetString("METRICS_ADDR"); metrics != "" {
		cfg.MetricsAddr = metrics
	}
}

// Amount parses a decimal base-unit amount string, returning zero for
// anything unparsable. Callers should have validated the string first.
func Amount(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}

// ReserveFloor parses the configured minimum seed reserve. Validation
// already guaranteed the string parses.
func (c *EngineConfig) ReserveFloor() *big.Int {
	reserve, _ := new(big.Int).SetString(c.MinSeedReserve, 10)
	return reserve
}

// TimelockDuration returns the fee-change delay as a duration.
func (c *EngineConfig) TimelockDuration() time.Duration {
	return time.Duration(c.TimelockDurationMS) * time.Millisecond
}

// ConfirmTimeout returns the confirmation wait bound.
func (c *ClientConfig) ConfirmTimeout() time.Duration {
	return time.Duration(c.ConfirmTimeoutMS) * time.Millisecond
}

// QuoteTimeout returns the quote retry window.
func (c *ClientConfig) QuoteTimeout() time.Duration {
	return time.Duration(c.QuoteTimeoutMS) * time.Millisecond
}

// TradeDeadline returns how long a submitted trade stays valid.
func (c *ClientConfig) TradeDeadline() time.Duration {
	return time.Duration(c.TradeDeadlineMS) * time.Millisecond
}
