package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prognocap/alphaengine/internal/application/allocator"
	"github.com/prognocap/alphaengine/internal/application/signals"
	"github.com/prognocap/alphaengine/internal/domain"
	"github.com/prognocap/alphaengine/internal/ports"
	"github.com/prognocap/alphaengine/internal/risk"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeVenue serves a fixed instrument list and scripts per-instrument
// order outcomes.
type fakeVenue struct {
	name        domain.Venue
	instruments []domain.Instrument
	listErr     error

	mu       sync.Mutex
	orders   []string
	failNext map[string]error
}

func (v *fakeVenue) Name() domain.Venue { return v.name }

func (v *fakeVenue) ListActiveInstruments(context.Context) ([]domain.Instrument, error) {
	return v.instruments, v.listErr
}

func (v *fakeVenue) PlaceOrder(_ context.Context, instrumentID string, amountUSD float64) (domain.OrderReceipt, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.failNext[instrumentID]; err != nil {
		return domain.OrderReceipt{}, err
	}
	v.orders = append(v.orders, instrumentID)
	return domain.OrderReceipt{
		VenueOrderID: "ord-" + instrumentID,
		FilledPrice:  amountUSD,
		PlacedAt:     time.Now(),
	}, nil
}

type memJournal struct {
	mu        sync.Mutex
	cycles    []ports.CycleRecord
	positions []domain.Position
}

func (j *memJournal) SaveCycle(_ context.Context, rec ports.CycleRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cycles = append(j.cycles, rec)
	return nil
}

func (j *memJournal) SavePosition(_ context.Context, pos domain.Position) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.positions = append(j.positions, pos)
	return nil
}

func (j *memJournal) GetOpenPositions(context.Context) ([]domain.Position, error) { return nil, nil }
func (j *memJournal) Close() error                                                { return nil }

type memNotifier struct {
	mu     sync.Mutex
	events []ports.EventKind
}

func (n *memNotifier) Notify(_ context.Context, kind ports.EventKind, _ any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, kind)
	return nil
}

func nbaInstrument(id string, price float64) domain.Instrument {
	return domain.Instrument{
		Venue:       domain.VenueKalshi,
		ID:          id,
		Description: "NBA game " + id,
		Price:       price,
		Liquidity:   5000,
		FetchedAt:   time.Now(),
	}
}

func permissiveTable() *risk.Table {
	return risk.NewTable(map[string]risk.Policy{
		"nba": {MaxStake: 100, MinConfidence: 50, MinEdge: 0.01, MaxDailyTrades: 20, KellyMultiplier: 1.0, Enabled: true},
	})
}

// newTestEngine wires a full engine around the given venue. The baseline
// model tilt guarantees positive edges on every instrument.
func newTestEngine(t *testing.T, bankroll *Bankroll, venues ...ports.VenueClient) (*Engine, *memJournal, *memNotifier) {
	t.Helper()
	log := discard()

	journal := &memJournal{}
	notifier := &memNotifier{}

	byName := make(map[domain.Venue]ports.VenueClient, len(venues))
	for _, v := range venues {
		byName[v.Name()] = v
	}

	gen := signals.NewGenerator(signals.BaselineModel{Tilt: 0.25, Confidence: 80}, log)
	filter := signals.NewFilter(0.01, log)
	alloc := allocator.New(permissiveTable(), allocator.Config{
		MaxExposureFraction: 0.10,
		CycleBudgetFraction: 0.50,
	}, log)
	exec := NewExecutor(byName, bankroll, journal, notifier, log)

	return New(venues, gen, filter, alloc, exec, bankroll, journal, notifier, log), journal, notifier
}

func TestRunOnce_HappyPath(t *testing.T) {
	venue := &fakeVenue{
		name: domain.VenueKalshi,
		instruments: []domain.Instrument{
			nbaInstrument("m1", 0.60),
			nbaInstrument("m2", 0.65),
		},
	}
	bankroll := NewBankroll(1000)
	eng, journal, _ := newTestEngine(t, bankroll, venue)

	res, err := eng.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), res.Cycle)
	assert.Equal(t, 2, res.Instruments)
	assert.Equal(t, 2, res.Executed)
	assert.Zero(t, res.Failed)
	assert.InDelta(t, 1000-res.TotalStaked, res.Bankroll, 1e-9)
	assert.Len(t, journal.cycles, 1)
	assert.Len(t, journal.positions, 2)
}

func TestRunOnce_PartialExecutionFailure(t *testing.T) {
	venue := &fakeVenue{
		name: domain.VenueKalshi,
		instruments: []domain.Instrument{
			nbaInstrument("m1", 0.60),
			nbaInstrument("m2", 0.60),
			nbaInstrument("m3", 0.60),
		},
		failNext: map[string]error{"m2": errors.New("venue rejected order")},
	}
	bankroll := NewBankroll(1000)
	eng, journal, notifier := newTestEngine(t, bankroll, venue)

	res, err := eng.RunOnce(context.Background())
	require.NoError(t, err, "one rejected order never fails the cycle")

	assert.Equal(t, 2, res.Executed)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Positions, 2)

	// Only filled stakes leave the bankroll.
	var staked float64
	for _, p := range res.Positions {
		staked += p.Stake
	}
	assert.InDelta(t, 1000-staked, bankroll.Current(), 1e-9)
	assert.Len(t, journal.positions, 2)
	assert.Contains(t, notifier.events, ports.EventOrderFailed)
	assert.Contains(t, notifier.events, ports.EventOrderPlaced)
}

func TestRunOnce_VenueOutageTolerated(t *testing.T) {
	down := &fakeVenue{name: domain.VenueKalshi, listErr: errors.New("503")}
	up := &fakeVenue{
		name:        domain.VenueCoinbase,
		instruments: []domain.Instrument{nbaInstrument("m1", 0.60)},
	}
	up.instruments[0].Venue = domain.VenueCoinbase

	bankroll := NewBankroll(1000)
	eng, _, _ := newTestEngine(t, bankroll, down, up)

	res, err := eng.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Error(t, res.VenueErrors[domain.VenueKalshi])
	assert.Equal(t, 1, res.Instruments)
	assert.Equal(t, 1, res.Executed)
}

func TestRunOnce_NoDuplicatePositionsAcrossCycles(t *testing.T) {
	venue := &fakeVenue{
		name:        domain.VenueKalshi,
		instruments: []domain.Instrument{nbaInstrument("m1", 0.60)},
	}
	bankroll := NewBankroll(1000)
	eng, _, _ := newTestEngine(t, bankroll, venue)

	first, err := eng.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Executed)

	second, err := eng.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Executed, "an instrument already held is never re-entered")
	assert.Equal(t, 1, bankroll.OpenPositionCount())
}

func TestRunOnce_EmptyMarketIsQuiet(t *testing.T) {
	venue := &fakeVenue{name: domain.VenueKalshi}
	bankroll := NewBankroll(1000)
	eng, journal, _ := newTestEngine(t, bankroll, venue)

	res, err := eng.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Zero(t, res.Instruments)
	assert.Zero(t, res.Executed)
	assert.Equal(t, 1000.0, bankroll.Current())
	require.Len(t, journal.cycles, 1, "empty cycles still journal")
}

func TestExecutor_RoundsStakesDownToCents(t *testing.T) {
	venue := &fakeVenue{name: domain.VenueKalshi}
	bankroll := NewBankroll(1000)
	journal := &memJournal{}
	exec := NewExecutor(map[domain.Venue]ports.VenueClient{domain.VenueKalshi: venue}, bankroll, journal, nil, discard())

	res := exec.Execute(context.Background(), 1, []domain.Allocation{
		{InstrumentID: "m1", Venue: domain.VenueKalshi, Category: "nba", Stake: 12.3456},
	})

	require.Equal(t, 1, res.Executed)
	assert.Equal(t, 12.34, res.Positions[0].Stake)
	assert.InDelta(t, 1000-12.34, bankroll.Current(), 1e-9)
}

func TestExecutor_UnknownVenueFails(t *testing.T) {
	bankroll := NewBankroll(1000)
	exec := NewExecutor(map[domain.Venue]ports.VenueClient{}, bankroll, &memJournal{}, nil, discard())

	res := exec.Execute(context.Background(), 1, []domain.Allocation{
		{InstrumentID: "m1", Venue: "unknown", Category: "nba", Stake: 10},
	})

	assert.Zero(t, res.Executed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1000.0, bankroll.Current())
}
