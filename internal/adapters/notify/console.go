// Package notify holds the Notifier implementations: console output for
// operators watching the process and a webhook for everything else.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/prognocap/alphaengine/internal/application/engine"
	"github.com/prognocap/alphaengine/internal/ports"
)

// Console implements ports.Notifier on a writer, one line per event.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole writes to stdout. With table enabled, cycle summaries
// render as a position table instead of a single line.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter targets an arbitrary writer, for tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

func (c *Console) Notify(_ context.Context, kind ports.EventKind, payload any) error {
	now := time.Now().Format("15:04:05")

	switch kind {
	case ports.EventOrderPlaced:
		fmt.Fprintf(c.out, "[%s] ORDER %s\n", now, compactPayload(payload))
	case ports.EventOrderFailed:
		fmt.Fprintf(c.out, "[%s] ORDER FAILED %s\n", now, compactPayload(payload))
	case ports.EventDailyReset:
		fmt.Fprintf(c.out, "[%s] DAILY RESET %s\n", now, compactPayload(payload))
	case ports.EventCycleError:
		fmt.Fprintf(c.out, "[%s] CYCLE ERROR %s\n", now, compactPayload(payload))
	default:
		fmt.Fprintf(c.out, "[%s] %s %s\n", now, kind, compactPayload(payload))
	}
	return nil
}

// PrintCycle renders a cycle summary: a compact line by default, the
// full position table when table mode is on.
func (c *Console) PrintCycle(res *engine.CycleResult) {
	now := time.Now().Format("15:04:05")

	if !c.table || len(res.Positions) == 0 {
		fmt.Fprintf(c.out, "[%s] cycle %d | %d mkts → %d cand → %d exec (%d fail) | staked $%.2f | bank $%.2f (peak $%.2f, throttle %.2f)\n",
			now, res.Cycle, res.Instruments, res.Candidates,
			res.Executed, res.Failed, res.TotalStaked,
			res.Bankroll, res.Peak, res.Throttle)
		return
	}

	fmt.Fprintf(c.out, "\n[%s] cycle %d — %d positions opened, $%.2f staked\n",
		now, res.Cycle, res.Executed, res.TotalStaked)

	tbl := tablewriter.NewWriter(c.out)
	tbl.Header("#", "Venue", "Instrument", "Cat", "Stake", "Opened")
	for i, pos := range res.Positions {
		tbl.Append(
			fmt.Sprintf("%d", i+1),
			string(pos.Venue),
			truncate(pos.InstrumentID, 28),
			pos.Category,
			fmt.Sprintf("$%.2f", pos.Stake),
			pos.OpenedAt.Format("15:04:05"),
		)
	}
	tbl.Render()

	fmt.Fprintf(c.out, "  bank $%.2f | peak $%.2f | throttle %.2f\n\n",
		res.Bankroll, res.Peak, res.Throttle)
}

func compactPayload(payload any) string {
	m, ok := payload.(map[string]any)
	if !ok {
		return fmt.Sprintf("%v", payload)
	}
	s := ""
	for _, k := range []string{"venue", "instrument", "category", "stake", "bankroll", "day", "error"} {
		if v, found := m[k]; found {
			if s != "" {
				s += " "
			}
			s += fmt.Sprintf("%s=%v", k, v)
		}
	}
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
