package domain

import "time"

// Venue identifies the exchange an instrument trades on.
type Venue string

const (
	VenueKalshi   Venue = "kalshi"
	VenueCoinbase Venue = "coinbase"
)

// Instrument is an immutable per-cycle snapshot of a tradable market.
// Price is probability-style (0-1) for prediction markets; spot venues
// normalize their quotes into the same range before handing them to the
// pipeline (see adapters).
type Instrument struct {
	Venue       Venue
	ID          string
	Description string  // free text, used for category inference
	Price       float64 // current tradable price
	Liquidity   float64 // optional, 0 when the venue doesn't report one
	FetchedAt   time.Time
}

// OrderReceipt is what a venue returns for an accepted order.
type OrderReceipt struct {
	VenueOrderID string
	FilledPrice  float64 // 0 when the venue doesn't echo a price
	PlacedAt     time.Time
}
