package ports

import (
	"context"

	"github.com/prognocap/alphaengine/internal/domain"
)

// VenueClient abstracts one trading venue. The pipeline is venue-agnostic
// above this line; implementations must bound their own call latency so a
// slow venue cannot stall the single-worker cycle loop indefinitely.
type VenueClient interface {
	// Name returns the venue identifier used to route allocations.
	Name() domain.Venue

	// ListActiveInstruments returns the venue's currently tradable
	// instruments with fresh prices. A transient failure may surface as
	// an error or an empty list; the pipeline tolerates both.
	ListActiveInstruments(ctx context.Context) ([]domain.Instrument, error)

	// PlaceOrder submits an order for amountUSD on the given instrument.
	// Idempotency is the venue's responsibility; the engine never retries.
	PlaceOrder(ctx context.Context, instrumentID string, amountUSD float64) (domain.OrderReceipt, error)
}
