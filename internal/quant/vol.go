// Package quant holds the pure numeric primitives behind the fair value
// models: realized volatility and lognormal threshold probabilities.
package quant

import (
	"errors"
	"math"
	"sort"
	"time"
)

// Sampling cadences, as periods per year, for the feeds we estimate from.
const (
	MinutesPerYear = 60 * 24 * 365
	HoursPerYear   = 24 * 365
)

// FallbackVol is the annualized volatility assumed for BTC when no usable
// series is available.
const FallbackVol = 0.8

// ErrVolUnavailable is returned when a series cannot support a volatility
// estimate: too few points, too few valid returns, or zero variance.
var ErrVolUnavailable = errors.New("realized volatility unavailable")

// RealizedVol annualizes the sample standard deviation of consecutive log
// returns of prices. Pairs with a non-positive price are skipped.
func RealizedVol(prices []float64, periodsPerYear float64) (float64, error) {
	if len(prices) < 3 {
		return 0, ErrVolUnavailable
	}

	rets := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		a, b := prices[i-1], prices[i]
		if a <= 0 || b <= 0 {
			continue
		}
		rets = append(rets, math.Log(b/a))
	}
	if len(rets) < 2 {
		return 0, ErrVolUnavailable
	}

	var sum float64
	for _, r := range rets {
		sum += r
	}
	mean := sum / float64(len(rets))

	var ss float64
	for _, r := range rets {
		d := r - mean
		ss += d * d
	}
	variance := ss / float64(len(rets)-1)
	if !(variance > 0) || math.IsInf(variance, 0) {
		return 0, ErrVolUnavailable
	}

	return math.Sqrt(variance) * math.Sqrt(periodsPerYear), nil
}

// VolOrFallback returns the realized volatility of prices, or FallbackVol
// with ok=false when it is unavailable.
func VolOrFallback(prices []float64, periodsPerYear float64) (sigma float64, ok bool) {
	v, err := RealizedVol(prices, periodsPerYear)
	if err != nil {
		return FallbackVol, false
	}
	return v, true
}

// PeriodsPerYear infers the sampling cadence of a series from the median gap
// between consecutive timestamps. ok is false when no positive gap exists.
func PeriodsPerYear(times []time.Time) (float64, bool) {
	gaps := make([]float64, 0, len(times))
	for i := 1; i < len(times); i++ {
		if d := times[i].Sub(times[i-1]).Seconds(); d > 0 {
			gaps = append(gaps, d)
		}
	}
	if len(gaps) == 0 {
		return 0, false
	}
	sort.Float64s(gaps)
	median := gaps[len(gaps)/2]
	if len(gaps)%2 == 0 {
		median = (gaps[len(gaps)/2-1] + gaps[len(gaps)/2]) / 2
	}
	return secondsPerYear / median, true
}
