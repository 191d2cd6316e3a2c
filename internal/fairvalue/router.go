package fairvalue

import (
	"context"

	"polytrader/internal/strategy"
)

// Model names one estimator family.
type Model string

const (
	ModelInterval      Model = "btc_updown_interval"
	ModelFifteenMinute Model = "btc_15m"
	ModelThreshold     Model = "btc_threshold"
	ModelRain          Model = "rain"
	ModelBaseline      Model = "baseline"
)

// Router dispatches each market to exactly one estimator. First match wins:
// interval series, then 15m up/down, then threshold, then rain, then the
// baseline.
type Router struct {
	interval      Estimator
	fifteenMinute Estimator
	threshold     Estimator
	rain          Estimator
	baseline      Estimator
}

// NewRouter creates a Router over the four family estimators.
func NewRouter(interval, fifteenMinute, threshold, rain Estimator) *Router {
	return &Router{
		interval:      interval,
		fifteenMinute: fifteenMinute,
		threshold:     threshold,
		rain:          rain,
		baseline:      Baseline{},
	}
}

// Route picks the estimator for m.
func (r *Router) Route(m strategy.Market) (Model, Estimator) {
	switch Classify(m.Question).(type) {
	case IntervalQuestion:
		return ModelInterval, r.interval
	case FifteenMinuteQuestion:
		return ModelFifteenMinute, r.fifteenMinute
	case ThresholdQuestion:
		return ModelThreshold, r.threshold
	case RainQuestion:
		return ModelRain, r.rain
	default:
		return ModelBaseline, r.baseline
	}
}

// Estimate routes m and returns its fair value.
func (r *Router) Estimate(ctx context.Context, m strategy.Market) strategy.FairValue {
	_, e := r.Route(m)
	return e.Estimate(ctx, m)
}
