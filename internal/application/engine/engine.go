// Package engine orchestrates the trading cycle: fetch instruments from
// every venue, score and filter signals, size allocations, execute
// orders, and persist the outcome.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prognocap/alphaengine/internal/application/allocator"
	"github.com/prognocap/alphaengine/internal/application/signals"
	"github.com/prognocap/alphaengine/internal/domain"
	"github.com/prognocap/alphaengine/internal/ports"
)

// CycleResult contains everything produced by one trading cycle.
type CycleResult struct {
	Cycle       int64
	Instruments int
	Signals     int
	Candidates  int
	Allocations int
	Executed    int
	Failed      int
	TotalStaked float64
	Bankroll    float64
	Peak        float64
	Throttle    float64
	DailyReset  bool
	VenueErrors map[domain.Venue]error
	Positions   []domain.Position
	Elapsed     time.Duration
}

// Engine runs the fetch-score-allocate-execute pipeline. It assumes the
// caller serializes RunOnce calls; the scheduler enforces that.
type Engine struct {
	venues    []ports.VenueClient
	generator *signals.Generator
	filter    *signals.Filter
	alloc     *allocator.Allocator
	executor  *Executor
	bankroll  *Bankroll
	journal   ports.Journal
	notifier  ports.Notifier
	log       *slog.Logger

	cycle int64
}

func New(
	venues []ports.VenueClient,
	generator *signals.Generator,
	filter *signals.Filter,
	alloc *allocator.Allocator,
	executor *Executor,
	bankroll *Bankroll,
	journal ports.Journal,
	notifier ports.Notifier,
	log *slog.Logger,
) *Engine {
	return &Engine{
		venues:    venues,
		generator: generator,
		filter:    filter,
		alloc:     alloc,
		executor:  executor,
		bankroll:  bankroll,
		journal:   journal,
		notifier:  notifier,
		log:       log.With("component", "engine"),
	}
}

// RunOnce executes one cycle. Orchestrates: daily reset → fetch →
// signals → filter → allocate → execute → persist. A venue outage costs
// that venue's instruments, never the cycle.
func (e *Engine) RunOnce(ctx context.Context) (*CycleResult, error) {
	start := time.Now()
	e.cycle++

	result := &CycleResult{Cycle: e.cycle, VenueErrors: make(map[domain.Venue]error)}

	// 1. Daily housekeeping.
	if e.bankroll.MaybeDailyReset(start) {
		result.DailyReset = true
		e.log.Info("daily trade counters reset", "day", start.UTC().Format("2006-01-02"))
		e.notify(ctx, ports.EventDailyReset, map[string]any{
			"day":      start.UTC().Format("2006-01-02"),
			"bankroll": e.bankroll.Current(),
		})
	}

	// 2. Discovery: fetch all venues concurrently.
	instruments := e.fetchInstruments(ctx, result)
	result.Instruments = len(instruments)

	// 3. Scoring and filtering.
	sigs := e.generator.Generate(ctx, instruments)
	result.Signals = len(sigs)

	candidates := e.filter.Apply(sigs)
	result.Candidates = len(candidates)

	// 4. Sizing against a snapshot taken before any order goes out.
	snap := e.bankroll.Snapshot()
	result.Throttle = domain.GlobalThrottle(snap.Current, snap.Peak)

	allocs := e.alloc.Allocate(candidates, snap)
	result.Allocations = len(allocs)

	// 5. Execution. The executor mutates the bankroll per fill.
	exec := e.executor.Execute(ctx, e.cycle, allocs)
	result.Executed = exec.Executed
	result.Failed = exec.Failed
	result.TotalStaked = exec.TotalStaked
	result.Positions = exec.Positions

	result.Bankroll = e.bankroll.Current()
	result.Peak = e.bankroll.Peak()
	result.Elapsed = time.Since(start)

	// 6. Persistence. Journal errors are logged, never fatal.
	if err := e.journal.SaveCycle(ctx, ports.CycleRecord{
		Cycle:       result.Cycle,
		RanAt:       start.UTC(),
		Instruments: result.Instruments,
		Signals:     result.Signals,
		Allocations: result.Allocations,
		Executed:    result.Executed,
		Failed:      result.Failed,
		TotalStaked: result.TotalStaked,
		Bankroll:    result.Bankroll,
		Peak:        result.Peak,
		Throttle:    result.Throttle,
		DailyReset:  result.DailyReset,
	}); err != nil {
		e.log.Error("journal save cycle failed", "cycle", result.Cycle, "error", err)
	}

	e.log.Info("cycle complete",
		"cycle", result.Cycle,
		"instruments", result.Instruments,
		"candidates", result.Candidates,
		"executed", result.Executed,
		"failed", result.Failed,
		"staked", result.TotalStaked,
		"bankroll", result.Bankroll,
		"elapsed", result.Elapsed.Round(time.Millisecond))

	return result, nil
}

// fetchInstruments queries every venue in parallel and merges the
// results. Failed venues are recorded on the result and skipped.
func (e *Engine) fetchInstruments(ctx context.Context, result *CycleResult) []domain.Instrument {
	type fetch struct {
		venue       domain.Venue
		instruments []domain.Instrument
		err         error
	}

	ch := make(chan fetch, len(e.venues))
	var wg sync.WaitGroup
	for _, vc := range e.venues {
		wg.Add(1)
		go func(vc ports.VenueClient) {
			defer wg.Done()
			list, err := vc.ListActiveInstruments(ctx)
			ch <- fetch{venue: vc.Name(), instruments: list, err: err}
		}(vc)
	}
	wg.Wait()
	close(ch)

	var merged []domain.Instrument
	for f := range ch {
		if f.err != nil {
			result.VenueErrors[f.venue] = f.err
			e.log.Warn("venue fetch failed", "venue", f.venue, "error", f.err)
			continue
		}
		merged = append(merged, f.instruments...)
		e.log.Debug("venue fetch ok", "venue", f.venue, "instruments", len(f.instruments))
	}
	return merged
}

func (e *Engine) notify(ctx context.Context, kind ports.EventKind, payload any) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, kind, payload); err != nil {
		e.log.Warn("notify failed", "kind", kind, "error", err)
	}
}
