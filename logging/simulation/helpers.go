package simulation

import (
	"context"

	"github.com/arthurgeek/croptails/logging"
)

const (
	// EventTickBudgetOverrun is emitted when one loop iteration exceeds the tick budget.
	EventTickBudgetOverrun logging.EventType = "simulation.tick_budget_overrun"
	// EventCatchupClamped is emitted when the loop discards backlog beyond the catch-up limit.
	EventCatchupClamped logging.EventType = "simulation.catchup_clamped"
	// EventCommandDropped is emitted when the command buffer rejects a command.
	EventCommandDropped logging.EventType = "simulation.command_dropped"
)

// TickBudgetOverrunPayload captures timing details for a tick budget breach.
type TickBudgetOverrunPayload struct {
	DurationMillis int64   `json:"durationMillis"`
	BudgetMillis   int64   `json:"budgetMillis"`
	Ratio          float64 `json:"ratio"`
	Streak         uint64  `json:"streak"`
}

// TickBudgetOverrun publishes a warning when the simulation exceeds the configured tick budget.
func TickBudgetOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetOverrunPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTickBudgetOverrun,
		Tick:     tick,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  payload,
		Extra:    extra,
	})
}

// CatchupClampedPayload records how many fixed steps were skipped.
type CatchupClampedPayload struct {
	Executed int `json:"executed"`
	Skipped  int `json:"skipped"`
}

// CatchupClamped publishes a warning when backlog is discarded.
func CatchupClamped(ctx context.Context, pub logging.Publisher, tick uint64, payload CatchupClampedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCatchupClamped,
		Tick:     tick,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  payload,
		Extra:    extra,
	})
}

// CommandDroppedPayload identifies the rejected command.
type CommandDroppedPayload struct {
	CommandType string `json:"commandType"`
	Reason      string `json:"reason"`
}

// CommandDropped publishes a warning for a command the buffer refused.
func CommandDropped(ctx context.Context, pub logging.Publisher, tick uint64, payload CommandDroppedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCommandDropped,
		Tick:     tick,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  payload,
		Extra:    extra,
	})
}
