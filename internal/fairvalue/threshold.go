package fairvalue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"polytrader/internal/quant"
	"polytrader/internal/strategy"
)

const (
	thresholdConfidence         = 0.45
	thresholdFallbackConfidence = 0.2
)

// ThresholdEstimator prices "BTC above/below $K by date" under GBM, with
// spot from CoinGecko and volatility realized over the chart lookback,
// annualized at the cadence the chart was returned in.
type ThresholdEstimator struct {
	spot         SpotSource
	chart        ChartSource
	lookbackDays int
	drift        float64
	now          clock
}

// NewThresholdEstimator creates a ThresholdEstimator.
func NewThresholdEstimator(spot SpotSource, chart ChartSource, lookbackDays int, drift float64, now func() time.Time) *ThresholdEstimator {
	if lookbackDays <= 0 {
		lookbackDays = 30
	}
	return &ThresholdEstimator{spot: spot, chart: chart, lookbackDays: lookbackDays, drift: drift, now: now}
}

func (e *ThresholdEstimator) Estimate(ctx context.Context, m strategy.Market) strategy.FairValue {
	q, ok := ParseThreshold(m.Question)
	if !ok {
		return neutral(m, 0, "not a BTC threshold market")
	}

	now := e.now.now()
	if !q.Expiry.After(now) {
		return neutral(m, 0, "expired")
	}

	s0, err := e.spot.SpotUSD(ctx, btcCoinID)
	if err != nil {
		slog.Debug("spot unavailable", "market", m.ID, "error", err)
		return neutral(m, 0.05, "spot unavailable")
	}

	var prices []float64
	periods := float64(quant.HoursPerYear)
	if pts, err := e.chart.MarketChart(ctx, btcCoinID, e.lookbackDays); err != nil {
		slog.Debug("price history unavailable", "market", m.ID, "error", err)
	} else {
		prices = make([]float64, len(pts))
		times := make([]time.Time, len(pts))
		for i, p := range pts {
			prices[i] = p.Price
			times[i] = p.Time
		}
		// Long lookbacks come back daily, short ones hourly.
		if ppy, ok := quant.PeriodsPerYear(times); ok {
			periods = ppy
		}
	}

	sigma, ok := quant.VolOrFallback(prices, periods)
	conf := thresholdConfidence
	volNote := fmt.Sprintf("realized vol %.2f ann", sigma)
	if !ok {
		conf = thresholdFallbackConfidence
		volNote = fmt.Sprintf("fallback sigma %.2f", sigma)
	}

	t := quant.YearFraction(q.Expiry.Sub(now))
	pAbove := quant.ProbAbove(s0, q.Strike, sigma, t, e.drift)
	pYes := pAbove
	if q.Direction == Below {
		pYes = 1 - pAbove
	}

	return strategy.FairValue{
		MarketID:   m.ID,
		PYes:       clamp01(pYes),
		Confidence: conf,
		Rationale:  fmt.Sprintf("CoinGecko spot=%.0f, strike=%.0f %s, T=%.3fy, %s", s0, q.Strike, q.Direction, t, volNote),
	}
}
