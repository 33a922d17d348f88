package engine

import (
	"time"

	"github.com/prognocap/alphaengine/internal/application/allocator"
	"github.com/prognocap/alphaengine/internal/domain"
)

// resetWindow is how far into the UTC day the daily reset may still
// fire. A cycle landing anywhere in this window triggers the reset for
// that calendar day exactly once.
const resetWindow = 120 * time.Second

// Bankroll is the engine's single piece of mutable trading state. It is
// not safe for concurrent use; the scheduler guarantees one cycle at a
// time and only the executor mutates it.
type Bankroll struct {
	current      float64
	peak         float64
	positions    map[string]domain.Position
	tradesToday  map[string]int
	lastResetDay string // YYYY-MM-DD in UTC
}

func NewBankroll(initial float64) *Bankroll {
	return &Bankroll{
		current:     initial,
		peak:        initial,
		positions:   make(map[string]domain.Position),
		tradesToday: make(map[string]int),
	}
}

// Restore seeds open positions loaded from the journal on startup.
func (b *Bankroll) Restore(positions []domain.Position) {
	for _, p := range positions {
		b.positions[p.InstrumentID] = p
	}
}

func (b *Bankroll) Current() float64 { return b.current }
func (b *Bankroll) Peak() float64    { return b.peak }

func (b *Bankroll) OpenPositionCount() int { return len(b.positions) }

// Snapshot returns the read-only view the allocator sizes against.
// Maps are copied so a cycle in flight never sees mid-cycle mutation.
func (b *Bankroll) Snapshot() allocator.Snapshot {
	open := make(map[string]bool, len(b.positions))
	for id := range b.positions {
		open[id] = true
	}
	trades := make(map[string]int, len(b.tradesToday))
	for cat, n := range b.tradesToday {
		trades[cat] = n
	}
	return allocator.Snapshot{
		Current:       b.current,
		Peak:          b.peak,
		OpenPositions: open,
		TradesToday:   trades,
	}
}

// ApplyFill debits the stake and records the opened position.
func (b *Bankroll) ApplyFill(pos domain.Position) {
	b.current -= pos.Stake
	b.positions[pos.InstrumentID] = pos
	b.tradesToday[pos.Category]++
}

// Settle closes a position and credits the payout. Current above peak
// ratchets the peak up; it never comes back down.
func (b *Bankroll) Settle(instrumentID string, payout float64) {
	if _, ok := b.positions[instrumentID]; !ok {
		return
	}
	delete(b.positions, instrumentID)
	b.current += payout
	if b.current > b.peak {
		b.peak = b.current
	}
}

// Drawdown is the fractional decline from peak.
func (b *Bankroll) Drawdown() float64 {
	return domain.Drawdown(b.current, b.peak)
}

// MaybeDailyReset rebases the peak to the current bankroll and clears
// the per-category trade counters when now falls in the first
// resetWindow of a UTC day not yet reset. Returns true when the reset
// fired. Taking now as a parameter keeps midnight behavior testable.
func (b *Bankroll) MaybeDailyReset(now time.Time) bool {
	utc := now.UTC()
	day := utc.Format("2006-01-02")
	if day == b.lastResetDay {
		return false
	}
	midnight := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	if utc.Sub(midnight) > resetWindow {
		// Missed the window (e.g. process started mid-day). Mark the day
		// so tomorrow's window works, but keep today's state.
		b.lastResetDay = day
		return false
	}
	b.peak = b.current
	b.tradesToday = make(map[string]int)
	b.lastResetDay = day
	return true
}
