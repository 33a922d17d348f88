package ports

import "context"

// EventKind classifies notifications emitted by the engine.
type EventKind string

const (
	EventOrderPlaced EventKind = "order_placed"
	EventOrderFailed EventKind = "order_failed"
	EventDailyReset  EventKind = "daily_reset"
	EventCycleError  EventKind = "cycle_error"
)

// Notifier is a fire-and-forget event sink (SMS gateway, webhook,
// console). A notifier error must never affect trading logic; callers
// log it and move on.
type Notifier interface {
	Notify(ctx context.Context, kind EventKind, payload any) error
}
