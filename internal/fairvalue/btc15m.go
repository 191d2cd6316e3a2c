package fairvalue

import (
	"context"
	"fmt"
	"log/slog"

	"polytrader/internal/feeds"
	"polytrader/internal/quant"
	"polytrader/internal/strategy"
)

const (
	fifteenMinuteConfidence = 0.25
	minCandles              = 50
	maxKlineLimit           = 1000
)

// FifteenMinuteEstimator prices generic "BTC up/down in 15 minutes"
// questions from recent 1m Binance candles under zero-drift GBM. The
// result sits just below 0.5 for "up" since the GBM median is below spot.
type FifteenMinuteEstimator struct {
	candles         CandleSource
	lookbackMinutes int
}

// NewFifteenMinuteEstimator creates a FifteenMinuteEstimator.
func NewFifteenMinuteEstimator(candles CandleSource, lookbackMinutes int) *FifteenMinuteEstimator {
	if lookbackMinutes <= 0 {
		lookbackMinutes = 240
	}
	return &FifteenMinuteEstimator{candles: candles, lookbackMinutes: lookbackMinutes}
}

func (e *FifteenMinuteEstimator) Estimate(ctx context.Context, m strategy.Market) strategy.FairValue {
	q, ok := ParseFifteenMinute(m.Question)
	if !ok {
		return neutral(m, 0, "not a BTC 15m up/down market")
	}

	candles, err := e.candles.Klines(ctx, btcSymbol, "1m", min(maxKlineLimit, e.lookbackMinutes))
	if err != nil {
		slog.Debug("candles unavailable", "market", m.ID, "error", err)
		return neutral(m, 0.05, "candles unavailable")
	}
	if len(candles) < minCandles {
		return neutral(m, 0.1, fmt.Sprintf("insufficient candles (%d)", len(candles)))
	}

	closes := closesOf(candles)
	s0 := closes[len(closes)-1]
	sigma, _ := quant.VolOrFallback(closes, quant.MinutesPerYear)

	pUp := quant.ProbAbove(s0, s0, sigma, quant.YearFraction(q.Horizon), 0)
	pYes := pUp
	if q.Direction == Down {
		pYes = 1 - pUp
	}

	return strategy.FairValue{
		MarketID:   m.ID,
		PYes:       clamp01(pYes),
		Confidence: fifteenMinuteConfidence,
		Rationale:  fmt.Sprintf("Binance BTCUSDT 1m; s0=%.0f; sigma~%.2f ann; horizon=%s", s0, sigma, q.Horizon),
	}
}

func closesOf(candles []feeds.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// lastN returns the trailing n elements of xs.
func lastN(xs []float64, n int) []float64 {
	if n <= 0 || n >= len(xs) {
		return xs
	}
	return xs[len(xs)-n:]
}

