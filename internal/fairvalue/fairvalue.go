// Package fairvalue turns market questions and external signals into a
// probability that the market resolves YES, with a heuristic confidence.
//
// Estimators never fail. Missing or malformed inputs degrade to p=0.5 with
// a low confidence and a rationale that names what was missing.
package fairvalue

import (
	"context"
	"time"

	"polytrader/internal/feeds"
	"polytrader/internal/strategy"
)

// Estimator produces a fair value for one market.
type Estimator interface {
	Estimate(ctx context.Context, m strategy.Market) strategy.FairValue
}

// CandleSource supplies exchange klines, oldest first.
type CandleSource interface {
	Klines(ctx context.Context, symbol, interval string, limit int) ([]feeds.Candle, error)
}

// SpotSource supplies a current USD spot price.
type SpotSource interface {
	SpotUSD(ctx context.Context, coinID string) (float64, error)
}

// ChartSource supplies historical prices, oldest first.
type ChartSource interface {
	MarketChart(ctx context.Context, coinID string, days int) ([]feeds.PricePoint, error)
}

// StreamSource supplies the latest low-latency streaming price.
type StreamSource interface {
	LatestPrice(ctx context.Context, feedID string) (feeds.StreamReport, error)
}

// ForecastSource supplies a probability-of-precipitation series for a point.
type ForecastSource interface {
	PrecipitationForecast(ctx context.Context, p feeds.Point) ([]feeds.PoP, error)
}

// StartPrices reads recorded interval start prices.
type StartPrices interface {
	Get(ctx context.Context, marketID, startKey string) (float64, bool, error)
}

const (
	btcSymbol = "BTCUSDT"
	btcCoinID = "bitcoin"
)

func neutral(m strategy.Market, confidence float64, rationale string) strategy.FairValue {
	return strategy.FairValue{MarketID: m.ID, PYes: 0.5, Confidence: confidence, Rationale: rationale}
}

func clamp01(p float64) float64 {
	return strategy.Clamp(p, 0, 1)
}

type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

// Baseline is the no-information estimate used for unclassified markets.
type Baseline struct{}

func (Baseline) Estimate(_ context.Context, m strategy.Market) strategy.FairValue {
	return neutral(m, 0.2, "no information")
}
