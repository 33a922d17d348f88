package domain

// Signal is a candidate trade derived from an Instrument plus a model
// probability estimate. It lives only within one cycle.
type Signal struct {
	Instrument Instrument

	ModelProb   float64 // model-estimated probability of the outcome
	MarketProb  float64 // market-implied probability (= price)
	DecimalOdds float64 // 1 / price
	Confidence  float64 // model confidence, 0-100

	// Filled by the edge filter.
	EV   float64 // expected profit per unit staked
	Edge float64 // ModelProb - MarketProb
}

// Allocation is a sized order ready for execution.
type Allocation struct {
	InstrumentID  string
	Venue         Venue
	Category      string
	Stake         float64 // USD
	KellyFraction float64 // full Kelly before throttle/multipliers
	EV            float64
	Edge          float64
}
