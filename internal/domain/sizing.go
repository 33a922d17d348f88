package domain

// sizing.go holds pure position-sizing math. Everything here is a free
// function over float64 so the allocator stays trivially unit-testable.

const (
	// ThrottleNominal is the fractional-Kelly constant used in normal
	// conditions; ThrottleDrawdown replaces it once drawdown exceeds
	// DrawdownThreshold.
	ThrottleNominal   = 0.33
	ThrottleDrawdown  = 0.20
	DrawdownThreshold = 0.10
)

// FullKelly computes the full Kelly fraction f* = (b*p - q) / b where
// b = odds-1, p = win probability, q = 1-p. Returns 0 for degenerate
// inputs (p outside (0,1) or non-positive net odds); the result may
// still exceed 1; callers cap it.
func FullKelly(p, decimalOdds float64) float64 {
	b := decimalOdds - 1
	if b <= 0 || p <= 0 || p >= 1 {
		return 0
	}
	q := 1 - p
	f := (b*p - q) / b
	if f < 0 {
		return 0
	}
	return f
}

// ExpectedValue is the expected profit per unit staked on the modeled
// side: p*b - (1-p).
func ExpectedValue(p, decimalOdds float64) float64 {
	b := decimalOdds - 1
	return p*b - (1 - p)
}

// Edge is the model probability minus the market-implied probability.
func Edge(modelProb, marketProb float64) float64 {
	return modelProb - marketProb
}

// Drawdown is the fractional decline of current from peak. Returns 0
// when peak is not positive or current is at/above peak.
func Drawdown(current, peak float64) float64 {
	if peak <= 0 || current >= peak {
		return 0
	}
	return (peak - current) / peak
}

// GlobalThrottle returns the process-wide fractional-Kelly multiplier
// for the cycle: the reduced constant under heavy drawdown, the nominal
// one otherwise. Computed once per cycle, not per signal.
func GlobalThrottle(current, peak float64) float64 {
	if Drawdown(current, peak) > DrawdownThreshold {
		return ThrottleDrawdown
	}
	return ThrottleNominal
}
