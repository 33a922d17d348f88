package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prognocap/alphaengine/internal/domain"
	"github.com/prognocap/alphaengine/internal/ports"
)

// Executor routes allocations to venue clients and is the only writer of
// bankroll state. Each order succeeds or fails on its own; one rejected
// order never blocks the rest of the batch.
type Executor struct {
	venues   map[domain.Venue]ports.VenueClient
	bankroll *Bankroll
	journal  ports.Journal
	notifier ports.Notifier
	log      *slog.Logger
}

func NewExecutor(
	venues map[domain.Venue]ports.VenueClient,
	bankroll *Bankroll,
	journal ports.Journal,
	notifier ports.Notifier,
	log *slog.Logger,
) *Executor {
	return &Executor{
		venues:   venues,
		bankroll: bankroll,
		journal:  journal,
		notifier: notifier,
		log:      log.With("component", "executor"),
	}
}

// ExecResult summarizes one execution batch.
type ExecResult struct {
	Executed    int
	Failed      int
	TotalStaked float64
	Positions   []domain.Position
}

// Execute places each allocation in rank order. Stakes are rounded down
// to whole cents before hitting the wire so the venue never sees
// sub-cent amounts.
func (e *Executor) Execute(ctx context.Context, cycle int64, allocs []domain.Allocation) ExecResult {
	var res ExecResult

	for _, al := range allocs {
		stake := roundDownCents(al.Stake)
		if stake <= 0 {
			continue
		}

		pos, err := e.placeOne(ctx, cycle, al, stake)
		if err != nil {
			res.Failed++
			e.log.Error("order failed",
				"venue", al.Venue, "instrument", al.InstrumentID,
				"stake", stake, "error", err)
			e.notify(ctx, ports.EventOrderFailed, map[string]any{
				"venue":      al.Venue,
				"instrument": al.InstrumentID,
				"stake":      stake,
				"error":      err.Error(),
			})
			continue
		}

		res.Executed++
		res.TotalStaked += stake
		res.Positions = append(res.Positions, pos)
	}

	return res
}

func (e *Executor) placeOne(ctx context.Context, cycle int64, al domain.Allocation, stake float64) (domain.Position, error) {
	client, ok := e.venues[al.Venue]
	if !ok {
		return domain.Position{}, fmt.Errorf("engine.Executor: no client for venue %q", al.Venue)
	}

	receipt, err := client.PlaceOrder(ctx, al.InstrumentID, stake)
	if err != nil {
		return domain.Position{}, fmt.Errorf("engine.Executor: place order: %w", err)
	}

	pos := domain.Position{
		ID:           uuid.NewString(),
		InstrumentID: al.InstrumentID,
		Venue:        al.Venue,
		Category:     al.Category,
		Stake:        stake,
		OpenedCycle:  cycle,
		OpenedAt:     time.Now().UTC(),
	}
	e.bankroll.ApplyFill(pos)

	e.log.Info("order placed",
		"venue", al.Venue, "instrument", al.InstrumentID,
		"category", al.Category, "stake", stake,
		"kelly_fraction", al.KellyFraction, "ev", al.EV,
		"venue_order_id", receipt.VenueOrderID)

	if err := e.journal.SavePosition(ctx, pos); err != nil {
		e.log.Error("journal save position failed", "position", pos.ID, "error", err)
	}
	e.notify(ctx, ports.EventOrderPlaced, map[string]any{
		"venue":      al.Venue,
		"instrument": al.InstrumentID,
		"category":   al.Category,
		"stake":      stake,
	})

	return pos, nil
}

func (e *Executor) notify(ctx context.Context, kind ports.EventKind, payload any) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, kind, payload); err != nil {
		e.log.Warn("notify failed", "kind", kind, "error", err)
	}
}

func roundDownCents(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).RoundDown(2).Float64()
	return f
}
