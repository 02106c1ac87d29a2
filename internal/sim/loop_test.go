package sim

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthurgeek/croptails/internal/nav"
	"github.com/arthurgeek/croptails/internal/telemetry"
	"github.com/arthurgeek/croptails/logging/simulation"
	"github.com/arthurgeek/croptails/logging/sinks"
)

func newTestLoop(t *testing.T, cfg LoopConfig, hooks LoopHooks, deps Deps) *Loop {
	t.Helper()
	world := NewWorld(Config{}, []*nav.Region{pasture()}, deps)
	loop := NewLoop(world, cfg, hooks)
	require.NotNil(t, loop)
	return loop
}

func TestPumpRunsFixedSteps(t *testing.T) {
	var deltas []float64
	memory := sinks.NewMemorySink()
	registry := telemetry.NewRegistry(nil)
	loop := newTestLoop(t, LoopConfig{TickRate: 10, CatchupMaxTicks: 4}, LoopHooks{
		AfterStep: func(result LoopStepResult) { deltas = append(deltas, result.Delta) },
	}, Deps{Publisher: memory, Metrics: registry})

	ctx := context.Background()
	assert.Equal(t, 2, loop.Pump(ctx, 250*time.Millisecond))
	assert.Equal(t, 1, loop.Pump(ctx, 60*time.Millisecond))
	assert.Equal(t, 0, loop.Pump(ctx, 5*time.Millisecond))
	assert.Equal(t, 4, loop.Pump(ctx, time.Second), "catch-up is clamped")
	assert.Equal(t, 0, loop.Pump(ctx, 0))

	require.Len(t, deltas, 7)
	for _, dt := range deltas {
		assert.Equal(t, 0.1, dt)
	}
	assert.Equal(t, uint64(7), loop.Latest().Tick)

	clamped := memory.EventsOfType(simulation.EventCatchupClamped)
	require.Len(t, clamped, 1)
	assert.Equal(t, simulation.CatchupClampedPayload{Executed: 4, Skipped: 6}, clamped[0].Payload)
	assert.Equal(t, uint64(7), registry.Snapshot()[telemetry.MetricTicks])
	assert.Equal(t, uint64(1), registry.Snapshot()[telemetry.MetricCatchupClamped])
}

func TestEnqueueEnforcesLimits(t *testing.T) {
	var drops []string
	loop := newTestLoop(t, LoopConfig{CommandCapacity: 2, PerActorLimit: 2}, LoopHooks{
		OnCommandDrop: func(reason string, _ Command) { drops = append(drops, reason) },
	}, Deps{})

	player := func(actor string, x float64) Command {
		return Command{ActorID: actor, Type: CommandPlayerPosition, Player: &PlayerCommand{X: x, Y: 2}}
	}
	ok, _ := loop.Enqueue(player("a", 1))
	require.True(t, ok)
	ok, _ = loop.Enqueue(player("a", 5))
	require.True(t, ok)
	ok, reason := loop.Enqueue(player("a", 9))
	assert.False(t, ok)
	assert.Equal(t, CommandRejectQueueLimit, reason)

	edit := func(actor, id string) Command {
		cmd := addObstacle(id)
		cmd.ActorID = actor
		return cmd
	}
	ok, _ = loop.Enqueue(edit("b", "one"))
	require.True(t, ok)
	ok, _ = loop.Enqueue(edit("c", "two"))
	require.True(t, ok)
	ok, reason = loop.Enqueue(edit("d", "three"))
	assert.False(t, ok)
	assert.Equal(t, CommandRejectQueueFull, reason)
	assert.Equal(t, []string{CommandRejectQueueLimit, CommandRejectQueueFull}, drops)
	assert.Equal(t, 3, loop.Pending(), "two edits plus one coalesced position")

	result := loop.Advance(context.Background())
	assert.Len(t, result.Commands, 3)
	require.NotNil(t, result.Snapshot.Player)
	assert.Equal(t, 5.0, result.Snapshot.Player.X)
	assert.Zero(t, loop.Pending())

	ok, _ = loop.Enqueue(player("a", 1))
	assert.True(t, ok, "per-actor counts reset after a step")
}

func TestQueueWarningHook(t *testing.T) {
	var warnings []int
	loop := newTestLoop(t, LoopConfig{CommandCapacity: 10, WarningStep: 2}, LoopHooks{
		OnQueueWarning: func(length int) { warnings = append(warnings, length) },
	}, Deps{})
	for i := 0; i < 5; i++ {
		loop.Enqueue(Command{Type: CommandPlayerPosition, Player: &PlayerCommand{}})
	}
	assert.Empty(t, warnings, "coalesced positions never build a backlog")
	for i := 0; i < 4; i++ {
		loop.Enqueue(addObstacle(fmt.Sprintf("o%d", i)))
	}
	assert.Equal(t, []int{2, 4}, warnings)
}

func TestRunStopsOnCancel(t *testing.T) {
	loop := newTestLoop(t, LoopConfig{TickRate: 100}, LoopHooks{}, Deps{})
	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	err := loop.Run(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Greater(t, loop.Latest().Tick, uint64(0))
}

func TestNewLoopRequiresWorld(t *testing.T) {
	assert.Nil(t, NewLoop(nil, LoopConfig{}, LoopHooks{}))
}
