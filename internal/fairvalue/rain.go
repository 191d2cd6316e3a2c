package fairvalue

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"polytrader/internal/strategy"
)

const rainConfidence = 0.55

// RainEstimator prices rain questions from the NWS probability of
// precipitation: the maximum PoP over the target window, taken as is.
type RainEstimator struct {
	forecast      ForecastSource
	locations     Locations
	defaultWindow time.Duration
	now           clock
}

// NewRainEstimator creates a RainEstimator. defaultWindow is the look-ahead
// used when the question names no date.
func NewRainEstimator(forecast ForecastSource, locations Locations, defaultWindow time.Duration, now func() time.Time) *RainEstimator {
	if defaultWindow <= 0 {
		defaultWindow = 24 * time.Hour
	}
	return &RainEstimator{forecast: forecast, locations: locations, defaultWindow: defaultWindow, now: now}
}

func (e *RainEstimator) Estimate(ctx context.Context, m strategy.Market) strategy.FairValue {
	q, ok := ParseRain(m.Question)
	if !ok {
		return neutral(m, 0, "not a rain market")
	}

	point, ok := e.locations.Resolve(q.Location)
	if !ok {
		return neutral(m, 0.05, fmt.Sprintf("rain market but location unresolved: %q", q.Location))
	}

	var start, end time.Time
	if !q.Date.IsZero() {
		start = q.Date
		end = start.Add(24 * time.Hour)
	} else {
		start = e.now.now()
		end = start.Add(e.defaultWindow)
	}

	pops, err := e.forecast.PrecipitationForecast(ctx, point)
	if err != nil {
		slog.Debug("forecast unavailable", "market", m.ID, "error", err)
		return neutral(m, 0.05, "NWS forecast unavailable")
	}

	maxPoP := math.Inf(-1)
	n := 0
	for _, p := range pops {
		if !p.Overlaps(start, end) {
			continue
		}
		maxPoP = math.Max(maxPoP, p.Percent)
		n++
	}
	if n == 0 {
		return neutral(m, 0.05, "no NWS forecast values in window")
	}

	return strategy.FairValue{
		MarketID:   m.ID,
		PYes:       clamp01(maxPoP / 100),
		Confidence: rainConfidence,
		Rationale:  fmt.Sprintf("NWS max PoP %.0f%% over %d values from %s", maxPoP, n, start.Format(time.RFC3339)),
	}
}
