package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type scriptedRunner struct {
	calls   atomic.Int32
	block   chan struct{} // when set, RunOnce parks until closed
	panicIt bool
	err     error
}

func (r *scriptedRunner) RunOnce(context.Context) (*CycleResult, error) {
	r.calls.Add(1)
	if r.panicIt {
		panic("poisoned cycle")
	}
	if r.block != nil {
		<-r.block
	}
	return &CycleResult{}, r.err
}

func TestScheduler_SkipsOverlappingTicks(t *testing.T) {
	runner := &scriptedRunner{block: make(chan struct{})}
	s := NewScheduler(runner, nil, time.Hour, discard())

	done := make(chan struct{})
	go func() {
		s.tick(context.Background())
		close(done)
	}()

	// Wait for the first tick to park inside RunOnce.
	assert.Eventually(t, func() bool { return runner.calls.Load() == 1 },
		time.Second, 5*time.Millisecond)

	// A tick arriving mid-cycle is dropped, not queued.
	s.tick(context.Background())
	assert.Equal(t, int32(1), runner.calls.Load())

	close(runner.block)
	<-done

	s.tick(context.Background())
	assert.Equal(t, int32(2), runner.calls.Load(), "guard releases after the cycle ends")
}

func TestScheduler_RecoverFromPanic(t *testing.T) {
	runner := &scriptedRunner{panicIt: true}
	notifier := &memNotifier{}
	s := NewScheduler(runner, notifier, time.Hour, discard())

	assert.NotPanics(t, func() { s.tick(context.Background()) })
	assert.Equal(t, int32(1), runner.calls.Load())

	// The guard must release even after a panic.
	runner.panicIt = false
	s.tick(context.Background())
	assert.Equal(t, int32(2), runner.calls.Load())
}

func TestScheduler_NotifiesOnCycleError(t *testing.T) {
	runner := &scriptedRunner{err: errors.New("venue down")}
	notifier := &memNotifier{}
	s := NewScheduler(runner, notifier, time.Hour, discard())

	s.tick(context.Background())

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.NotEmpty(t, notifier.events)
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	runner := &scriptedRunner{}
	s := NewScheduler(runner, nil, 10*time.Millisecond, discard())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	// Let the immediate cycle plus at least one tick land.
	assert.Eventually(t, func() bool { return runner.calls.Load() >= 2 },
		time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
