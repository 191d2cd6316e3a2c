package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"polytrader/internal/config"
	"polytrader/internal/db"
	"polytrader/internal/execution"
	"polytrader/internal/fairvalue"
	"polytrader/internal/feeds"
	"polytrader/internal/market"
	"polytrader/internal/metrics"
	"polytrader/internal/performance"
	"polytrader/internal/risk"
	"polytrader/internal/scheduler"
	"polytrader/internal/settlement"
)

func main() {
	// Parse CLI flags.
	configPath := flag.String("config", "config.toml", "Path to the TOML config file")
	once := flag.Bool("once", false, "Run a single cycle and exit")
	recordOnly := flag.Bool("record-start-prices", false, "Only record interval start prices for markets starting now, then exit")
	flag.Parse()

	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})
	if p := os.Getenv("POLYTRADER_CONFIG_PATH"); p != "" && !explicit {
		*configPath = p
		explicit = true
	}

	cfg, err := config.Load(*configPath, explicit)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Set up structured logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.General.LogLevel),
	})))

	slog.Info("polytrader starting", "exchange", cfg.Exchange.Name, "mode", cfg.Exchange.Mode)

	// Graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, *once, *recordOnly); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("polytrader failed", "error", err)
		os.Exit(1)
	}

	slog.Info("polytrader stopped")
}

func run(ctx context.Context, cfg *config.Config, once, recordOnly bool) error {
	// Initialize database.
	database, err := db.Open(cfg.General.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		return err
	}
	slog.Info("database initialized", "path", cfg.General.DBPath)

	starts, closeStarts, err := openStartPrices(ctx, cfg.Settlement, database)
	if err != nil {
		return err
	}
	defer closeStarts()

	timeout := feeds.WithTimeout(cfg.Exchange.HTTPTimeout.Duration)
	binance := feeds.NewBinanceClient(timeout)
	coingecko := feeds.NewCoinGeckoClient(timeout)
	chainlink := feeds.NewChainlinkClient(cfg.Models.ChainlinkDecimals, timeout)
	nws := feeds.NewNWSClient(timeout, feeds.WithUserAgent(cfg.Exchange.UserAgent))

	source, err := newSource(cfg.Exchange)
	if err != nil {
		return err
	}

	recorder := settlement.NewRecorder(starts, chainlink, cfg.Models.ChainlinkFeedID, cfg.Schedule.RecordTolerance.Duration)
	m := metrics.New()

	if recordOnly {
		markets, err := source.ListMarkets(ctx, cfg.Exchange.MaxMarkets)
		if err != nil {
			return fmt.Errorf("listing markets: %w", err)
		}
		n, err := recorder.RecordStartPrices(ctx, markets, time.Now().UTC())
		if err != nil {
			return err
		}
		slog.Info("start prices recorded", "count", n)
		return nil
	}

	locations, err := loadLocations(cfg.Models)
	if err != nil {
		return err
	}
	slog.Info("locations loaded", "count", len(locations))

	router := fairvalue.NewRouter(
		fairvalue.NewIntervalEstimator(fairvalue.IntervalConfig{
			Candles:         binance,
			Stream:          chainlink,
			Starts:          starts,
			FeedID:          cfg.Models.ChainlinkFeedID,
			LookbackMinutes: cfg.Models.BTC15mLookbackMinutes,
		}),
		fairvalue.NewFifteenMinuteEstimator(binance, cfg.Models.BTC15mLookbackMinutes),
		fairvalue.NewThresholdEstimator(coingecko, coingecko, cfg.Models.BTCVolLookbackDays, cfg.Models.BTCDriftMu, nil),
		fairvalue.NewRainEstimator(nws, locations, time.Duration(cfg.Models.RainDefaultWindowHours)*time.Hour, nil),
	)

	riskMgr := risk.NewManager(cfg.Risk)
	if err := riskMgr.LoadToday(ctx, database, time.Now().UTC()); err != nil {
		return err
	}

	var executor *execution.Executor
	if cfg.PaperTrading() {
		executor = execution.NewExecutor(source, riskMgr, database)
	}

	sched := scheduler.New(
		source, router, recorder, executor,
		scheduler.NewJournal(database), performance.NewTracker(database), m, cfg,
	)

	if cfg.General.MetricsAddr != "" {
		srv := serveMetrics(cfg.General.MetricsAddr, m)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if once {
		opps, err := sched.RunOnce(ctx)
		if err != nil {
			return err
		}
		slog.Info("single cycle finished", "opportunities", len(opps))
		return nil
	}
	return sched.Run(ctx)
}

func newSource(cfg config.ExchangeConfig) (market.Source, error) {
	switch cfg.Name {
	case "paper":
		return market.NewPaper(), nil
	case "polymarket":
		return market.NewPolymarket(market.PolymarketConfig{
			SeriesID:  cfg.GammaSeriesID,
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.HTTPTimeout.Duration,
		}), nil
	case "manifold":
		return market.NewManifold(nil), nil
	default:
		return nil, fmt.Errorf("%w: unknown exchange %q", config.ErrInvalid, cfg.Name)
	}
}

// openStartPrices returns the configured start-price cache and a function
// that releases it.
func openStartPrices(ctx context.Context, cfg config.SettlementConfig, database *sql.DB) (settlement.Cache, func(), error) {
	if cfg.Backend != "redis" {
		return settlement.NewSQLiteCache(database), func() {}, nil
	}
	rc, err := settlement.NewRedisCache(ctx, settlement.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, nil, err
	}
	slog.Info("redis start-price cache connected", "addr", cfg.RedisAddr)
	return rc, func() { _ = rc.Close() }, nil
}

func loadLocations(cfg config.ModelsConfig) (fairvalue.Locations, error) {
	fromFile, err := fairvalue.LoadLocationsFile(cfg.LocationsFile)
	if err != nil {
		return nil, err
	}
	inline := make(map[string]feeds.Point, len(cfg.Locations))
	for name, loc := range cfg.Locations {
		inline[name] = feeds.Point{Lat: loc.Lat, Lon: loc.Lon}
	}
	return fromFile.Merge(fairvalue.NewLocations(inline)), nil
}

func serveMetrics(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		slog.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
