package config

import (
	"os"
	"strconv"
	"time"
)

// applyEnvOverrides overwrites fields from POLYTRADER_* variables that are
// set and parse cleanly. Unparseable values are ignored.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.General.DBPath, "POLYTRADER_DB_PATH")
	setStr(&cfg.General.LogLevel, "POLYTRADER_LOG_LEVEL")
	setStr(&cfg.General.MetricsAddr, "POLYTRADER_METRICS_ADDR")

	setDuration(&cfg.Schedule.Interval, "POLYTRADER_INTERVAL")
	setDuration(&cfg.Schedule.PerformanceInterval, "POLYTRADER_PERFORMANCE_INTERVAL")
	setDuration(&cfg.Schedule.RecordTolerance, "POLYTRADER_RECORD_TOLERANCE")

	setStr(&cfg.Exchange.Name, "POLYTRADER_EXCHANGE")
	setStr(&cfg.Exchange.Mode, "POLYTRADER_MODE")
	setInt(&cfg.Exchange.MaxMarkets, "POLYTRADER_MAX_MARKETS")
	setStr(&cfg.Exchange.FocusQuery, "POLYTRADER_FOCUS_QUERY")
	setStr(&cfg.Exchange.GammaSeriesID, "POLYTRADER_GAMMA_SERIES_ID")
	setStr(&cfg.Exchange.UserAgent, "POLYTRADER_USER_AGENT")

	setFloat64(&cfg.Strategy.MinEdge, "POLYTRADER_MIN_EDGE")
	setFloat64(&cfg.Strategy.MaxPositionFraction, "POLYTRADER_MAX_POSITION_FRACTION")
	setFloat64(&cfg.Strategy.KellyFraction, "POLYTRADER_KELLY_FRACTION")
	setFloat64(&cfg.Strategy.MinLiquidityUSD, "POLYTRADER_MIN_LIQUIDITY_USD")

	setFloat64(&cfg.Risk.MaxDailyLossFraction, "POLYTRADER_MAX_DAILY_LOSS_FRACTION")
	setInt(&cfg.Risk.MaxOpenPositions, "POLYTRADER_MAX_OPEN_POSITIONS")

	setInt(&cfg.Models.BTCVolLookbackDays, "POLYTRADER_BTC_VOL_LOOKBACK_DAYS")
	setFloat64(&cfg.Models.BTCDriftMu, "POLYTRADER_BTC_DRIFT_MU")
	setInt(&cfg.Models.BTC15mLookbackMinutes, "POLYTRADER_BTC_15M_LOOKBACK_MINUTES")
	setStr(&cfg.Models.LocationsFile, "POLYTRADER_LOCATIONS_FILE")
	setStr(&cfg.Models.ChainlinkFeedID, "POLYTRADER_CHAINLINK_FEED_ID")

	setStr(&cfg.Settlement.Backend, "POLYTRADER_SETTLEMENT_BACKEND")
	setStr(&cfg.Settlement.RedisAddr, "POLYTRADER_REDIS_ADDR")
	setStr(&cfg.Settlement.RedisPassword, "POLYTRADER_REDIS_PASSWORD")
	setInt(&cfg.Settlement.RedisDB, "POLYTRADER_REDIS_DB")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
