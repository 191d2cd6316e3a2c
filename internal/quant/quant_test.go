package quant

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestRealizedVol_ConstantSeriesUnavailable(t *testing.T) {
	_, err := RealizedVol([]float64{100, 100, 100, 100}, MinutesPerYear)
	if !errors.Is(err, ErrVolUnavailable) {
		t.Errorf("expected ErrVolUnavailable, got %v", err)
	}
}

func TestRealizedVol_TooFewPoints(t *testing.T) {
	for _, prices := range [][]float64{nil, {100}, {100, 101}} {
		if _, err := RealizedVol(prices, HoursPerYear); !errors.Is(err, ErrVolUnavailable) {
			t.Errorf("expected ErrVolUnavailable for %v, got %v", prices, err)
		}
	}
}

func TestRealizedVol_SkipsNonPositive(t *testing.T) {
	// Only one valid return remains.
	if _, err := RealizedVol([]float64{100, 0, -5, 101}, HoursPerYear); !errors.Is(err, ErrVolUnavailable) {
		t.Errorf("expected ErrVolUnavailable, got %v", err)
	}
}

func TestRealizedVol_KnownValue(t *testing.T) {
	// Alternating +r/-r returns: mean 0, sample variance = n/(n-1) * r².
	r := 0.01
	prices := []float64{100}
	for i := 0; i < 4; i++ {
		sign := 1.0
		if i%2 == 1 {
			sign = -1
		}
		prices = append(prices, prices[len(prices)-1]*math.Exp(sign*r))
	}
	got, err := RealizedVol(prices, 1)
	if err != nil {
		t.Fatal(err)
	}
	want := math.Sqrt(4.0 / 3.0 * r * r)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("expected %v, got %v", want, got)
	}

	scaled, _ := RealizedVol(prices, 100)
	if math.Abs(scaled-want*10) > 1e-9 {
		t.Errorf("expected sqrt(periods) scaling, got %v", scaled)
	}
}

func TestPeriodsPerYear(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	series := func(n int, step time.Duration) []time.Time {
		out := make([]time.Time, n)
		for i := range out {
			out[i] = start.Add(time.Duration(i) * step)
		}
		return out
	}

	tests := []struct {
		name  string
		times []time.Time
		want  float64
		ok    bool
	}{
		{"hourly", series(48, time.Hour), HoursPerYear, true},
		{"daily", series(365, 24*time.Hour), 365, true},
		{"minute", series(10, time.Minute), MinutesPerYear, true},
		{"one gap off", append(series(5, 24*time.Hour), start.Add(97*time.Hour)), 365, true},
		{"empty", nil, 0, false},
		{"no positive gap", []time.Time{start, start, start.Add(-time.Hour)}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PeriodsPerYear(tt.times)
			if ok != tt.ok || math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("PeriodsPerYear = %v, %v; want %v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestVolOrFallback(t *testing.T) {
	sigma, ok := VolOrFallback([]float64{1, 1, 1}, MinutesPerYear)
	if ok || sigma != FallbackVol {
		t.Errorf("expected fallback %v, got %v ok=%v", FallbackVol, sigma, ok)
	}
}

func TestProbAbove_AtSpotBelowHalf(t *testing.T) {
	for _, sigma := range []float64{0.05, 0.3, 0.8, 2} {
		for _, years := range []float64{1.0 / 35040, 0.01, 0.5, 3} {
			p := ProbAbove(50000, 50000, sigma, years, 0)
			if !(p < 0.5) {
				t.Errorf("sigma=%v t=%v: expected P < 0.5, got %v", sigma, years, p)
			}
		}
	}
}

func TestProbAbove_DecreasingInStrike(t *testing.T) {
	prev := 1.0
	for k := 20000.0; k <= 200000; k += 5000 {
		p := ProbAbove(60000, k, 0.8, 0.25, 0)
		if p > prev {
			t.Fatalf("P(S_T > %v) = %v rose above %v", k, p, prev)
		}
		prev = p
	}
	if lo, hi := ProbAbove(60000, 70000, 0.8, 0.25, 0), ProbAbove(60000, 50000, 0.8, 0.25, 0); !(lo < hi) {
		t.Errorf("expected strict decrease, got %v >= %v", lo, hi)
	}
}

func TestProbAbove_Degenerate(t *testing.T) {
	cases := [][4]float64{
		{0, 1, 1, 1},
		{1, 0, 1, 1},
		{1, 1, 0, 1},
		{1, 1, 1, 0},
		{-1, 1, 1, 1},
	}
	for _, c := range cases {
		if p := ProbAbove(c[0], c[1], c[2], c[3], 0); p != 0.5 {
			t.Errorf("ProbAbove%v = %v, expected 0.5", c, p)
		}
	}
}

func TestProbAbove_DriftRaisesProbability(t *testing.T) {
	flat := ProbAbove(100, 110, 0.5, 1, 0)
	up := ProbAbove(100, 110, 0.5, 1, 0.2)
	if !(up > flat) {
		t.Errorf("expected positive drift to raise P, got %v <= %v", up, flat)
	}
}

func TestProbFinishUp(t *testing.T) {
	// Spot well above the start price with little time left.
	p := ProbFinishUp(101000, 100000, 0.5, YearFraction(2*time.Minute))
	if p < 0.95 {
		t.Errorf("expected near-certain up, got %v", p)
	}
	if got := ProbFinishUp(100, 100, 0.5, 0); got != 0.5 {
		t.Errorf("expected 0.5 at expiry, got %v", got)
	}
}

func TestNormCDF(t *testing.T) {
	if math.Abs(NormCDF(0)-0.5) > 1e-15 {
		t.Error("Phi(0) != 0.5")
	}
	if math.Abs(NormCDF(1.96)-0.9750021) > 1e-6 {
		t.Errorf("Phi(1.96) = %v", NormCDF(1.96))
	}
}
