package domain

import "time"

// Position is an open entry in the ledger, created on successful order
// placement. Keyed uniquely by InstrumentID: an instrument with an open
// position is excluded from further allocation until externally removed.
// Settlement and closing are tracked outside this engine.
type Position struct {
	ID           string // local tracking UUID
	InstrumentID string
	Venue        Venue
	Category     string
	Stake        float64
	OpenedCycle  int64
	OpenedAt     time.Time
}
