// Package allocator sizes stakes for ranked signals using fractional
// Kelly under per-category risk policy and bankroll-wide caps.
package allocator

import (
	"log/slog"

	"github.com/prognocap/alphaengine/internal/domain"
	"github.com/prognocap/alphaengine/internal/risk"
)

// minStakeUSD is the venue order minimum; anything smaller is not worth
// the fees and gets discarded.
const minStakeUSD = 1.0

// Snapshot is the read-only bankroll view the allocator sizes against.
// The executor owns the live state; the allocator never mutates anything.
type Snapshot struct {
	Current       float64
	Peak          float64
	OpenPositions map[string]bool // instrument ID -> held
	TradesToday   map[string]int  // category -> executed trades since the daily reset
}

// Config bounds the allocator beyond per-category policy.
type Config struct {
	// MaxExposureFraction caps any single stake as a fraction of the
	// current bankroll.
	MaxExposureFraction float64
	// CycleBudgetFraction caps the sum of all stakes in one cycle as a
	// fraction of the current bankroll.
	CycleBudgetFraction float64
}

// Allocator converts filtered signals into sized allocations. It is a
// pure ranking pass: signals arrive sorted by EV and are considered in
// that order until the cycle budget runs out.
type Allocator struct {
	policies *risk.Table
	cfg      Config
	log      *slog.Logger
}

func New(policies *risk.Table, cfg Config, log *slog.Logger) *Allocator {
	return &Allocator{policies: policies, cfg: cfg, log: log.With("component", "allocator")}
}

// Allocate sizes stakes for the given signals against the snapshot.
// The drawdown throttle is computed once for the whole cycle.
func (a *Allocator) Allocate(sigs []domain.Signal, snap Snapshot) []domain.Allocation {
	if snap.Current <= 0 {
		return nil
	}

	throttle := domain.GlobalThrottle(snap.Current, snap.Peak)
	budget := snap.Current * a.cfg.CycleBudgetFraction
	plannedByCategory := make(map[string]int)

	out := make([]domain.Allocation, 0, len(sigs))

	for _, s := range sigs {
		if budget < minStakeUSD {
			break
		}
		if snap.OpenPositions[s.Instrument.ID] {
			continue
		}

		category := risk.Categorize(s.Instrument.Description)
		pol := a.policies.Get(category)
		if !pol.Enabled {
			continue
		}
		if s.Confidence < pol.MinConfidence || s.Edge < pol.MinEdge {
			continue
		}
		if pol.MaxDailyTrades > 0 {
			done := snap.TradesToday[category] + plannedByCategory[category]
			if done >= pol.MaxDailyTrades {
				continue
			}
		}

		f := domain.FullKelly(s.ModelProb, s.DecimalOdds)
		if f <= 0 {
			continue
		}
		f *= throttle * pol.KellyMultiplier

		stake := snap.Current * f
		stake = min(stake, pol.MaxStake)
		stake = min(stake, snap.Current*a.cfg.MaxExposureFraction)
		stake = min(stake, budget)
		if stake < minStakeUSD {
			continue
		}

		out = append(out, domain.Allocation{
			InstrumentID:  s.Instrument.ID,
			Venue:         s.Instrument.Venue,
			Category:      category,
			Stake:         stake,
			KellyFraction: f,
			EV:            s.EV,
			Edge:          s.Edge,
		})
		budget -= stake
		plannedByCategory[category]++
	}

	a.log.Debug("allocation pass complete",
		"signals", len(sigs), "allocations", len(out), "throttle", throttle)
	return out
}
