// Package storage persists the trading journal to SQLite (pure Go, no
// CGo). Cycles are append-only summaries; positions live until settled
// and are pruned long after.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/prognocap/alphaengine/internal/domain"
	"github.com/prognocap/alphaengine/internal/ports"
)

const schema = `
-- One row per trading cycle
CREATE TABLE IF NOT EXISTS cycles (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    cycle        INTEGER  NOT NULL,
    ran_at       DATETIME NOT NULL,
    instruments  INTEGER  NOT NULL DEFAULT 0,
    signals      INTEGER  NOT NULL DEFAULT 0,
    allocations  INTEGER  NOT NULL DEFAULT 0,
    executed     INTEGER  NOT NULL DEFAULT 0,
    failed       INTEGER  NOT NULL DEFAULT 0,
    total_staked REAL     NOT NULL DEFAULT 0,
    bankroll     REAL     NOT NULL DEFAULT 0,
    peak         REAL     NOT NULL DEFAULT 0,
    throttle     REAL     NOT NULL DEFAULT 0,
    daily_reset  INTEGER  NOT NULL DEFAULT 0
);

-- One row per opened position
CREATE TABLE IF NOT EXISTS positions (
    id            TEXT PRIMARY KEY,
    instrument_id TEXT     NOT NULL,
    venue         TEXT     NOT NULL,
    category      TEXT     NOT NULL,
    stake         REAL     NOT NULL,
    opened_cycle  INTEGER  NOT NULL,
    opened_at     DATETIME NOT NULL,
    settled_at    DATETIME,
    payout        REAL
);

CREATE INDEX IF NOT EXISTS idx_cycles_at   ON cycles(ran_at DESC);
CREATE INDEX IF NOT EXISTS idx_pos_open    ON positions(settled_at) WHERE settled_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_pos_instr   ON positions(instrument_id);
`

const (
	retentionCycles   = 30 * 24 * time.Hour
	retentionSettled  = 90 * 24 * time.Hour
)

// SQLiteJournal implements ports.Journal.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal opens (or creates) the database at path, applies the
// schema and prunes aged rows. Use ":memory:" for tests.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteJournal: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteJournal: apply schema: %w", err)
	}

	j := &SQLiteJournal{db: db}
	j.pruneOld(context.Background())
	return j, nil
}

func (j *SQLiteJournal) SaveCycle(ctx context.Context, rec ports.CycleRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO cycles (cycle, ran_at, instruments, signals, allocations,
		                    executed, failed, total_staked, bankroll, peak,
		                    throttle, daily_reset)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Cycle, rec.RanAt, rec.Instruments, rec.Signals, rec.Allocations,
		rec.Executed, rec.Failed, rec.TotalStaked, rec.Bankroll, rec.Peak,
		rec.Throttle, rec.DailyReset,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveCycle: %w", err)
	}
	return nil
}

func (j *SQLiteJournal) SavePosition(ctx context.Context, pos domain.Position) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO positions (id, instrument_id, venue, category, stake, opened_cycle, opened_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		pos.ID, pos.InstrumentID, string(pos.Venue), pos.Category,
		pos.Stake, pos.OpenedCycle, pos.OpenedAt,
	)
	if err != nil {
		return fmt.Errorf("storage.SavePosition: %w", err)
	}
	return nil
}

// SettlePosition marks a position settled with its payout.
func (j *SQLiteJournal) SettlePosition(ctx context.Context, positionID string, payout float64) error {
	res, err := j.db.ExecContext(ctx, `
		UPDATE positions SET settled_at = ?, payout = ? WHERE id = ? AND settled_at IS NULL`,
		time.Now().UTC(), payout, positionID,
	)
	if err != nil {
		return fmt.Errorf("storage.SettlePosition: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.SettlePosition: position %s not open", positionID)
	}
	return nil
}

// GetOpenPositions returns every position without a settlement, used to
// rebuild state on startup.
func (j *SQLiteJournal) GetOpenPositions(ctx context.Context) ([]domain.Position, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, instrument_id, venue, category, stake, opened_cycle, opened_at
		FROM positions WHERE settled_at IS NULL ORDER BY opened_at`)
	if err != nil {
		return nil, fmt.Errorf("storage.GetOpenPositions: %w", err)
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		var p domain.Position
		var venue string
		if err := rows.Scan(&p.ID, &p.InstrumentID, &venue, &p.Category,
			&p.Stake, &p.OpenedCycle, &p.OpenedAt); err != nil {
			return nil, fmt.Errorf("storage.GetOpenPositions: scan: %w", err)
		}
		p.Venue = domain.Venue(venue)
		out = append(out, p)
	}
	return out, rows.Err()
}

// RecentCycles returns the last n cycle summaries, newest first.
func (j *SQLiteJournal) RecentCycles(ctx context.Context, n int) ([]ports.CycleRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT cycle, ran_at, instruments, signals, allocations, executed,
		       failed, total_staked, bankroll, peak, throttle, daily_reset
		FROM cycles ORDER BY ran_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentCycles: %w", err)
	}
	defer rows.Close()

	var out []ports.CycleRecord
	for rows.Next() {
		var r ports.CycleRecord
		if err := rows.Scan(&r.Cycle, &r.RanAt, &r.Instruments, &r.Signals,
			&r.Allocations, &r.Executed, &r.Failed, &r.TotalStaked,
			&r.Bankroll, &r.Peak, &r.Throttle, &r.DailyReset); err != nil {
			return nil, fmt.Errorf("storage.RecentCycles: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) Close() error { return j.db.Close() }

// pruneOld removes aged cycles and long-settled positions. Failures are
// logged upstream as absence of effect; pruning is best effort.
func (j *SQLiteJournal) pruneOld(ctx context.Context) {
	now := time.Now().UTC()
	j.db.ExecContext(ctx, `DELETE FROM cycles WHERE ran_at < ?`, now.Add(-retentionCycles))
	j.db.ExecContext(ctx, `DELETE FROM positions WHERE settled_at IS NOT NULL AND settled_at < ?`, now.Add(-retentionSettled))
}
