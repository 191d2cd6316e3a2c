package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	General    GeneralConfig    `toml:"general"`
	Schedule   ScheduleConfig   `toml:"schedule"`
	Exchange   ExchangeConfig   `toml:"exchange"`
	Strategy   StrategyConfig   `toml:"strategy"`
	Risk       RiskConfig       `toml:"risk"`
	Models     ModelsConfig     `toml:"models"`
	Settlement SettlementConfig `toml:"settlement"`
}

type GeneralConfig struct {
	DBPath      string `toml:"db_path" validate:"required"`
	LogLevel    string `toml:"log_level" validate:"oneof=debug info warn error"`
	MetricsAddr string `toml:"metrics_addr"`
}

type ScheduleConfig struct {
	Interval            Duration `toml:"interval"`
	PerformanceInterval Duration `toml:"performance_interval"`
	RecordTolerance     Duration `toml:"record_tolerance"`
}

type ExchangeConfig struct {
	Name          string   `toml:"name" validate:"oneof=paper polymarket manifold"`
	Mode          string   `toml:"mode" validate:"oneof=paper live"`
	MaxMarkets    int      `toml:"max_markets" validate:"gt=0"`
	FocusQuery    string   `toml:"focus_query"`
	GammaSeriesID string   `toml:"gamma_series_id"`
	UserAgent     string   `toml:"user_agent"`
	HTTPTimeout   Duration `toml:"http_timeout"`
}

type StrategyConfig struct {
	MinEdge             float64 `toml:"min_edge" validate:"gte=0,lte=1"`
	MaxPositionFraction float64 `toml:"max_position_fraction" validate:"gte=0,lte=1"`
	KellyFraction       float64 `toml:"kelly_fraction" validate:"gte=0,lte=1"`
	MinLiquidityUSD     float64 `toml:"min_liquidity_usd" validate:"gte=0"`
	MaxConcurrency      int     `toml:"max_concurrency" validate:"gte=1"`
	ExecuteTopN         int     `toml:"execute_top_n" validate:"gte=0"`
}

type RiskConfig struct {
	MaxDailyLossFraction float64 `toml:"max_daily_loss_fraction" validate:"gte=0,lte=1"`
	MaxOpenPositions     int     `toml:"max_open_positions" validate:"gte=0"`
}

type ModelsConfig struct {
	BTCVolLookbackDays     int                 `toml:"btc_vol_lookback_days" validate:"gte=2"`
	BTCDriftMu             float64             `toml:"btc_drift_mu"`
	BTC15mLookbackMinutes  int                 `toml:"btc_15m_lookback_minutes" validate:"gte=3"`
	RainDefaultWindowHours int                 `toml:"rain_default_window_hours" validate:"gt=0"`
	LocationsFile          string              `toml:"locations_file"`
	Locations              map[string]Location `toml:"locations"`
	ChainlinkFeedID        string              `toml:"chainlink_feed_id" validate:"required"`
	ChainlinkDecimals      int32               `toml:"chainlink_decimals" validate:"gte=0,lte=36"`
}

// Location is a named point for rain questions.
type Location struct {
	Lat float64 `toml:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `toml:"lon" validate:"gte=-180,lte=180"`
}

type SettlementConfig struct {
	Backend       string `toml:"backend" validate:"oneof=sqlite redis"`
	RedisAddr     string `toml:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db" validate:"gte=0"`
}

// Duration wraps time.Duration for TOML unmarshaling.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// ErrInvalid marks configuration problems detected at startup.
var ErrInvalid = errors.New("invalid configuration")

// Load builds the configuration from defaults, the TOML file at path, a .env
// file and POLYTRADER_* environment variables, then validates it. A missing
// file is only an error when required is set.
func Load(path string, required bool) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// .env is optional.
	_ = godotenv.Load()
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field ranges and the rules that span sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", e.Namespace(), e.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if c.Schedule.Interval.Duration <= 0 {
		return fmt.Errorf("%w: schedule.interval must be positive", ErrInvalid)
	}
	if c.Schedule.PerformanceInterval.Duration <= 0 {
		return fmt.Errorf("%w: schedule.performance_interval must be positive", ErrInvalid)
	}
	if c.Exchange.Mode == "live" && !c.Exchange.SupportsExecution() {
		return fmt.Errorf("%w: exchange %q is read-only and cannot run in live mode", ErrInvalid, c.Exchange.Name)
	}
	return nil
}

// SupportsExecution reports whether orders can be placed on the configured
// exchange.
func (e ExchangeConfig) SupportsExecution() bool {
	return e.Name == "paper"
}

// PaperTrading reports whether opportunities should be turned into simulated
// fills.
func (c *Config) PaperTrading() bool {
	return c.Exchange.Mode == "paper" && c.Exchange.Name == "paper"
}

func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			DBPath:   "./data/polytrader.db",
			LogLevel: "info",
		},
		Schedule: ScheduleConfig{
			Interval:            Duration{600 * time.Second},
			PerformanceInterval: Duration{1 * time.Hour},
			RecordTolerance:     Duration{10 * time.Second},
		},
		Exchange: ExchangeConfig{
			Name:        "paper",
			Mode:        "paper",
			MaxMarkets:  1000,
			UserAgent:   "polytrader/0.1",
			HTTPTimeout: Duration{20 * time.Second},
		},
		Strategy: StrategyConfig{
			MinEdge:             0.08,
			MaxPositionFraction: 0.06,
			KellyFraction:       0.25,
			MinLiquidityUSD:     200,
			MaxConcurrency:      8,
			ExecuteTopN:         3,
		},
		Risk: RiskConfig{
			MaxDailyLossFraction: 0.10,
			MaxOpenPositions:     20,
		},
		Models: ModelsConfig{
			BTCVolLookbackDays:     30,
			BTC15mLookbackMinutes:  240,
			RainDefaultWindowHours: 24,
			LocationsFile:          "./data/locations.json",
			ChainlinkFeedID:        "0x00039d9e45394f473ab1f050a1b963e6b05351e52d71e507509ada0c95ed75b8",
			ChainlinkDecimals:      18,
		},
		Settlement: SettlementConfig{
			Backend: "sqlite",
		},
	}
}
