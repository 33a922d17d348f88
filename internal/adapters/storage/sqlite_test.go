package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prognocap/alphaengine/internal/domain"
	"github.com/prognocap/alphaengine/internal/ports"
)

func newJournal(t *testing.T) *SQLiteJournal {
	t.Helper()
	j, err := NewSQLiteJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func pos(id, instrument string, stake float64) domain.Position {
	return domain.Position{
		ID:           id,
		InstrumentID: instrument,
		Venue:        domain.VenueKalshi,
		Category:     "nba",
		Stake:        stake,
		OpenedCycle:  1,
		OpenedAt:     time.Now().UTC().Truncate(time.Second),
	}
}

func TestSaveAndListOpenPositions(t *testing.T) {
	j := newJournal(t)
	ctx := context.Background()

	require.NoError(t, j.SavePosition(ctx, pos("p1", "NBA-LAL", 25)))
	require.NoError(t, j.SavePosition(ctx, pos("p2", "NBA-BOS", 10)))

	open, err := j.GetOpenPositions(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "NBA-LAL", open[0].InstrumentID)
	assert.Equal(t, domain.VenueKalshi, open[0].Venue)
	assert.Equal(t, 25.0, open[0].Stake)
}

func TestSettlePosition(t *testing.T) {
	j := newJournal(t)
	ctx := context.Background()

	require.NoError(t, j.SavePosition(ctx, pos("p1", "NBA-LAL", 25)))
	require.NoError(t, j.SettlePosition(ctx, "p1", 40.32))

	open, err := j.GetOpenPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	// Settling twice is an error, not a silent overwrite.
	assert.Error(t, j.SettlePosition(ctx, "p1", 40.32))
	assert.Error(t, j.SettlePosition(ctx, "ghost", 1))
}

func TestSaveCycleAndRecent(t *testing.T) {
	j := newJournal(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		require.NoError(t, j.SaveCycle(ctx, ports.CycleRecord{
			Cycle:       int64(i),
			RanAt:       base.Add(time.Duration(i) * time.Minute),
			Instruments: 100 + i,
			Executed:    i,
			TotalStaked: float64(i) * 10,
			Bankroll:    1000 - float64(i)*10,
			Peak:        1000,
			Throttle:    0.33,
			DailyReset:  i == 1,
		}))
	}

	recent, err := j.RecentCycles(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(3), recent[0].Cycle, "newest first")
	assert.Equal(t, int64(2), recent[1].Cycle)
	assert.Equal(t, 0.33, recent[0].Throttle)
}

func TestDuplicatePositionIDRejected(t *testing.T) {
	j := newJournal(t)
	ctx := context.Background()

	require.NoError(t, j.SavePosition(ctx, pos("p1", "NBA-LAL", 25)))
	assert.Error(t, j.SavePosition(ctx, pos("p1", "NBA-LAL", 25)))
}
