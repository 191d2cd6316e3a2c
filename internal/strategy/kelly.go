package strategy

const priceEpsilon = 1e-6

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Kelly returns the full-Kelly bankroll fraction for a binary contract that
// pays 1 when correct, bought at price with true probability p.
//
// With net odds b = (1-price)/price and q = 1-p, f* = (b*p - q)/b, floored
// at zero. The price is clamped away from 0 and 1 first.
func Kelly(p, price float64) float64 {
	price = Clamp(price, priceEpsilon, 1-priceEpsilon)
	b := (1 - price) / price
	q := 1 - p
	f := (b*p - q) / b
	if f < 0 {
		return 0
	}
	return f
}
