package quant

import (
	"math"
	"time"
)

const secondsPerYear = 365 * 24 * 3600

// YearFraction converts a duration to years on a 365-day calendar.
func YearFraction(d time.Duration) float64 {
	return d.Seconds() / secondsPerYear
}

// NormCDF is the standard normal cumulative distribution function.
func NormCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// ProbAbove returns P(S_T > K) for a geometric Brownian motion starting at
// s0 with drift mu and annualized volatility sigma, t years out:
//
//	ln S_T ~ N(ln s0 + (mu - sigma²/2)t, sigma²t)
//
// Degenerate inputs return 0.5.
func ProbAbove(s0, k, sigma, t, mu float64) float64 {
	if s0 <= 0 || k <= 0 || sigma <= 0 || t <= 0 {
		return 0.5
	}
	sigT := sigma * math.Sqrt(t)
	z := (math.Log(k/s0) - (mu-0.5*sigma*sigma)*t) / sigT
	return clamp01(1 - NormCDF(z))
}

// ProbFinishUp returns P(S_end >= start) from the current spot under zero
// drift, t years before the end of the interval.
func ProbFinishUp(spot, start, sigma, t float64) float64 {
	return ProbAbove(spot, start, sigma, t, 0)
}

func clamp01(p float64) float64 {
	if math.IsNaN(p) {
		return 0.5
	}
	return math.Max(0, math.Min(1, p))
}
