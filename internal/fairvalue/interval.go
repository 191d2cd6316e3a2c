package fairvalue

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"polytrader/internal/feeds"
	"polytrader/internal/quant"
	"polytrader/internal/settlement"
	"polytrader/internal/strategy"
)

const intervalConfidence = 0.30

// IntervalEstimator prices the recurring "Bitcoin Up or Down" markets,
// which resolve Up when the settlement price at close is at or above the
// price at the interval start. YES is taken to be the first outcome, Up.
type IntervalEstimator struct {
	candles         CandleSource
	stream          StreamSource // optional
	starts          StartPrices  // optional
	feedID          string
	lookbackMinutes int
	now             clock
}

// IntervalConfig wires an IntervalEstimator. Stream and Starts may be nil.
type IntervalConfig struct {
	Candles         CandleSource
	Stream          StreamSource
	Starts          StartPrices
	FeedID          string
	LookbackMinutes int
	Now             func() time.Time
}

// NewIntervalEstimator creates an IntervalEstimator.
func NewIntervalEstimator(cfg IntervalConfig) *IntervalEstimator {
	if cfg.LookbackMinutes <= 0 {
		cfg.LookbackMinutes = 240
	}
	if cfg.FeedID == "" {
		cfg.FeedID = feeds.BTCUSDFeedID
	}
	return &IntervalEstimator{
		candles:         cfg.Candles,
		stream:          cfg.Stream,
		starts:          cfg.Starts,
		feedID:          cfg.FeedID,
		lookbackMinutes: cfg.LookbackMinutes,
		now:             cfg.Now,
	}
}

func (e *IntervalEstimator) Estimate(ctx context.Context, m strategy.Market) strategy.FairValue {
	if !IsIntervalMarket(m.Question) {
		return neutral(m, 0, "not a bitcoin up or down market")
	}
	if !m.HasInterval() {
		return neutral(m, 0.05, "missing start/close time")
	}
	now := e.now.now()
	if !now.Before(m.CloseTime) {
		return neutral(m, 0, "market closed")
	}

	candles, err := e.candles.Klines(ctx, btcSymbol, "1m", maxKlineLimit)
	if err != nil {
		slog.Debug("candles unavailable", "market", m.ID, "error", err)
	}

	start, startSrc := e.startPrice(ctx, m, candles)
	spot, spotSrc := e.currentPrice(ctx, m, candles, now)

	switch {
	case start <= 0 && spot <= 0:
		return neutral(m, 0.05, "price data unavailable")
	case start <= 0:
		return neutral(m, 0.1, fmt.Sprintf("partial price data: start unavailable, spot=%.2f (%s)", spot, spotSrc))
	case spot <= 0:
		return neutral(m, 0.1, fmt.Sprintf("partial price data: start=%.2f (%s), spot unavailable", start, startSrc))
	}

	remaining := max(m.CloseTime.Sub(now), time.Second)
	sigma, ok := quant.VolOrFallback(lastN(closesOf(candles), e.lookbackMinutes), quant.MinutesPerYear)
	volNote := ""
	if !ok {
		volNote = " (fallback)"
	}

	pUp := quant.ProbFinishUp(spot, start, sigma, quant.YearFraction(remaining))

	return strategy.FairValue{
		MarketID:   m.ID,
		PYes:       clamp01(pUp),
		Confidence: intervalConfidence,
		Rationale: fmt.Sprintf("start=%.2f (%s), spot=%.2f (%s), rem=%.1fm, sigma~%.2f ann%s",
			start, startSrc, spot, spotSrc, remaining.Minutes(), sigma, volNote),
	}
}

// startPrice prefers the recorded settlement price, then the open of the
// first candle at or after the start, then the earliest candle's open.
func (e *IntervalEstimator) startPrice(ctx context.Context, m strategy.Market, candles []feeds.Candle) (float64, string) {
	if e.starts != nil {
		px, ok, err := e.starts.Get(ctx, m.ID, settlement.StartKey(m.StartTime))
		if err != nil {
			slog.Debug("start price cache read failed", "market", m.ID, "error", err)
		} else if ok && px > 0 {
			return px, "recorded"
		}
	}
	if len(candles) == 0 {
		return 0, ""
	}
	for _, c := range candles {
		if !c.OpenTime.Before(m.StartTime) {
			return c.Open, "binance open"
		}
	}
	return candles[0].Open, "binance earliest open"
}

// currentPrice prefers a fresh streaming report and falls back to the latest
// candle close.
func (e *IntervalEstimator) currentPrice(ctx context.Context, m strategy.Market, candles []feeds.Candle, now time.Time) (float64, string) {
	if e.stream != nil {
		rep, err := e.stream.LatestPrice(ctx, e.feedID)
		switch {
		case err != nil:
			slog.Debug("stream price unavailable", "market", m.ID, "error", err)
		case !rep.Fresh(now):
			slog.Debug("stream price stale", "market", m.ID, "valid_from", rep.ValidFrom)
		case rep.Price > 0 && !math.IsInf(rep.Price, 0):
			return rep.Price, "chainlink"
		}
	}
	if len(candles) == 0 {
		return 0, ""
	}
	return candles[len(candles)-1].Close, "binance close"
}
