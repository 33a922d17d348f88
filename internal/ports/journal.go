package ports

import (
	"context"
	"time"

	"github.com/prognocap/alphaengine/internal/domain"
)

// CycleRecord is the per-cycle summary persisted by the journal.
type CycleRecord struct {
	Cycle        int64
	RanAt        time.Time
	Instruments  int
	Signals      int
	Allocations  int
	Executed     int
	Failed       int
	TotalStaked  float64
	Bankroll     float64
	Peak         float64
	Throttle     float64
	DailyReset   bool
}

// Journal persists trading history. Journal failures are logged and
// never abort a cycle.
type Journal interface {
	SaveCycle(ctx context.Context, rec CycleRecord) error
	SavePosition(ctx context.Context, pos domain.Position) error
	GetOpenPositions(ctx context.Context) ([]domain.Position, error)
	Close() error
}
