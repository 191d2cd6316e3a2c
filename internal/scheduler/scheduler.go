package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"polytrader/internal/config"
	"polytrader/internal/execution"
	"polytrader/internal/fairvalue"
	"polytrader/internal/market"
	"polytrader/internal/metrics"
	"polytrader/internal/performance"
	"polytrader/internal/strategy"
)

// Router picks the estimator for a market.
type Router interface {
	Route(m strategy.Market) (fairvalue.Model, fairvalue.Estimator)
}

// StartPriceRecorder captures interval start prices at the top of a cycle.
type StartPriceRecorder interface {
	RecordStartPrices(ctx context.Context, markets []strategy.Market, now time.Time) (int, error)
}

const logTopN = 10

// Scheduler orchestrates the poll cycle.
type Scheduler struct {
	source   market.Source
	router   Router
	recorder StartPriceRecorder
	executor *execution.Executor
	journal  *Journal
	tracker  *performance.Tracker
	metrics  *metrics.Metrics
	cfg      *config.Config
	now      func() time.Time
}

// New creates a Scheduler. recorder and executor may be nil; executor is
// only used in paper mode against a source that supports execution.
func New(
	source market.Source,
	router Router,
	recorder StartPriceRecorder,
	executor *execution.Executor,
	journal *Journal,
	tracker *performance.Tracker,
	m *metrics.Metrics,
	cfg *config.Config,
) *Scheduler {
	return &Scheduler{
		source:   source,
		router:   router,
		recorder: recorder,
		executor: executor,
		journal:  journal,
		tracker:  tracker,
		metrics:  m,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run executes a cycle immediately and then one per interval until the
// context is cancelled. Cycle failures are logged and the loop continues;
// only a configuration error stops it.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("scheduler starting",
		"source", s.source.Name(),
		"interval", s.cfg.Schedule.Interval.Duration,
		"performance_interval", s.cfg.Schedule.PerformanceInterval.Duration,
		"mode", s.cfg.Exchange.Mode,
	)

	if err := s.runCycle(ctx); err != nil {
		return err
	}

	cycleTicker := time.NewTicker(s.cfg.Schedule.Interval.Duration)
	perfTicker := time.NewTicker(s.cfg.Schedule.PerformanceInterval.Duration)
	defer cycleTicker.Stop()
	defer perfTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler shutting down")
			return ctx.Err()
		case <-cycleTicker.C:
			if err := s.runCycle(ctx); err != nil {
				return err
			}
		case <-perfTicker.C:
			s.runPerformanceReport(ctx)
		}
	}
}

// runCycle runs one cycle, swallowing everything except configuration
// errors.
func (s *Scheduler) runCycle(ctx context.Context) error {
	_, err := s.RunOnce(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, market.ErrExecutionUnsupported) {
		slog.Error("configuration error, stopping", "error", err)
		return err
	}
	if ctx.Err() == nil {
		slog.Error("trading cycle failed", "error", err)
	}
	return nil
}

// RunOnce runs a single poll cycle and returns the opportunities found,
// sorted by edge descending. A panic inside the cycle is returned as an
// error.
func (s *Scheduler) RunOnce(ctx context.Context) (opps []strategy.Opportunity, err error) {
	start := time.Now()
	cycleID := uuid.NewString()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle %s panicked: %v", cycleID, r)
		}
		if s.metrics != nil {
			s.metrics.RecordCycle(err == nil, time.Since(start))
		}
	}()

	slog.Info("starting trading cycle", "cycle", cycleID)

	markets, err := s.source.ListMarkets(ctx, s.cfg.Exchange.MaxMarkets)
	if err != nil {
		return nil, fmt.Errorf("listing markets: %w", err)
	}
	if q := s.cfg.Exchange.FocusQuery; q != "" {
		markets = market.FilterByQuestion(markets, q)
	}

	s.recordStartPrices(ctx, markets)

	ids := make([]string, len(markets))
	for i, m := range markets {
		ids[i] = m.ID
	}
	quotes, err := s.source.Quotes(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetching quotes: %w", err)
	}
	byID := make(map[string]strategy.Quote, len(quotes))
	for _, q := range quotes {
		byID[q.MarketID] = q
	}

	slog.Info("markets scanned", "markets", len(markets), "quoted", len(quotes))

	quoted := make([]strategy.Market, 0, len(markets))
	for _, m := range markets {
		if _, ok := byID[m.ID]; ok {
			quoted = append(quoted, m)
		}
	}

	fvs, err := s.estimate(ctx, quoted)
	if err != nil {
		return nil, err
	}

	params := strategy.Params{
		MinEdge:             s.cfg.Strategy.MinEdge,
		MaxPositionFraction: s.cfg.Strategy.MaxPositionFraction,
		KellyFraction:       s.cfg.Strategy.KellyFraction,
		MinLiquidityUSD:     s.cfg.Strategy.MinLiquidityUSD,
	}
	for i, m := range quoted {
		o, ok := strategy.FindOpportunity(m, byID[m.ID], fvs[i], params)
		if !ok {
			continue
		}
		opps = append(opps, o)
		if s.metrics != nil {
			s.metrics.RecordOpportunity(string(o.Side))
		}
	}

	sort.SliceStable(opps, func(i, j int) bool { return opps[i].Edge > opps[j].Edge })

	for i, o := range opps {
		if i == logTopN {
			break
		}
		slog.Info("opportunity", "rank", i+1, "detail", o.String())
	}

	now := s.now()
	if err := s.journal.RecordOpportunities(ctx, cycleID, opps, now); err != nil {
		slog.Error("journaling opportunities failed", "error", err)
	}

	executed := 0
	if s.executes() {
		results, err := s.executor.Execute(ctx, cycleID, s.topForExecution(opps))
		if err != nil {
			return opps, err
		}
		for _, r := range results {
			if r.Success {
				executed++
				if s.metrics != nil {
					s.metrics.RecordFill(s.source.Name())
				}
			}
		}
	}

	slog.Info("trading cycle complete",
		"cycle", cycleID,
		"markets", len(quoted),
		"opportunities", len(opps),
		"executed", executed,
		"duration", time.Since(start),
	)
	return opps, nil
}

// estimate computes a fair value for every market concurrently. Results are
// positional.
func (s *Scheduler) estimate(ctx context.Context, markets []strategy.Market) ([]strategy.FairValue, error) {
	fvs := make([]strategy.FairValue, len(markets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Strategy.MaxConcurrency)

	for i, m := range markets {
		i, m := i, m
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("estimating %s: panic: %v", m.ID, r)
				}
			}()

			model, est := s.router.Route(m)
			fv := est.Estimate(gctx, m)
			fvs[i] = fv

			degraded := fv.Confidence <= 0.1
			if degraded {
				slog.Debug("degraded estimate", "market", m.ID, "model", model, "confidence", fv.Confidence, "rationale", fv.Rationale)
			}
			if s.metrics != nil {
				s.metrics.RecordEstimate(string(model), fv.Confidence, degraded)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fvs, nil
}

// executes reports whether this cycle should place orders: paper mode on a
// source that can fill them.
func (s *Scheduler) executes() bool {
	return s.executor != nil && s.cfg.Exchange.Mode == "paper" && s.source.SupportsExecution()
}

// topForExecution returns the best opportunities with a positive size.
func (s *Scheduler) topForExecution(opps []strategy.Opportunity) []strategy.Opportunity {
	n := s.cfg.Strategy.ExecuteTopN
	out := make([]strategy.Opportunity, 0, n)
	for _, o := range opps {
		if len(out) == n {
			break
		}
		if o.SuggestedFraction > 0 {
			out = append(out, o)
		}
	}
	return out
}

func (s *Scheduler) recordStartPrices(ctx context.Context, markets []strategy.Market) {
	if s.recorder == nil {
		return
	}
	n, err := s.recorder.RecordStartPrices(ctx, markets, s.now())
	if err != nil {
		slog.Warn("start price recording failed", "error", err)
		return
	}
	if n > 0 && s.metrics != nil {
		s.metrics.RecordStartPrices(n)
	}
}

func (s *Scheduler) runPerformanceReport(ctx context.Context) {
	if s.tracker == nil {
		return
	}
	report, err := s.tracker.Generate(ctx, time.Time{})
	if err != nil {
		slog.Error("performance report failed", "error", err)
		return
	}
	performance.LogReport(report)
}
