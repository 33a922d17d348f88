package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prognocap/alphaengine/internal/ports"
)

// CycleRunner is the slice of Engine the scheduler drives.
type CycleRunner interface {
	RunOnce(ctx context.Context) (*CycleResult, error)
}

// Scheduler drives the engine on a fixed interval. Overlapping ticks are
// skipped rather than queued: if a cycle is still running when the next
// tick fires, the tick is dropped and logged.
type Scheduler struct {
	engine   CycleRunner
	notifier ports.Notifier
	interval time.Duration
	log      *slog.Logger

	running atomic.Bool
}

func NewScheduler(engine CycleRunner, notifier ports.Notifier, interval time.Duration, log *slog.Logger) *Scheduler {
	return &Scheduler{
		engine:   engine,
		notifier: notifier,
		interval: interval,
		log:      log.With("component", "scheduler"),
	}
}

// Run executes cycles until ctx is cancelled. The first cycle fires
// immediately, then every interval. Returns ctx.Err() on shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler started", "interval", s.interval)

	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one guarded cycle. A panic inside the pipeline is contained
// here so a single poisoned cycle cannot take the process down.
func (s *Scheduler) tick(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("previous cycle still running, skipping tick")
		return
	}
	defer s.running.Store(false)

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("cycle panicked", "panic", fmt.Sprintf("%v", r))
			s.notifyError(ctx, fmt.Sprintf("panic: %v", r))
		}
	}()

	if _, err := s.engine.RunOnce(ctx); err != nil {
		s.log.Error("cycle failed", "error", err)
		s.notifyError(ctx, err.Error())
	}
}

func (s *Scheduler) notifyError(ctx context.Context, msg string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, ports.EventCycleError, map[string]any{"error": msg}); err != nil {
		s.log.Warn("notify failed", "error", err)
	}
}
