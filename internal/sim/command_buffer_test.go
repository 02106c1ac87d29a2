package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthurgeek/croptails/internal/geom"
	"github.com/arthurgeek/croptails/internal/nav"
	"github.com/arthurgeek/croptails/internal/telemetry"
)

func addObstacle(id string) Command {
	obs := nav.RectObstacle(geom.Rect{Width: 1, Height: 1})
	obs.ID = id
	return Command{Type: CommandAddObstacle, Obstacle: &obs}
}

func playerAt(x, y float64) Command {
	return Command{ActorID: "p", Type: CommandPlayerPosition, Player: &PlayerCommand{X: x, Y: y}}
}

func TestCommandBufferKeepsEditOrder(t *testing.T) {
	buffer := NewCommandBuffer(3, nil)
	for _, id := range []string{"a", "b", "c"} {
		require.True(t, buffer.Push(addObstacle(id)))
	}
	assert.False(t, buffer.Push(addObstacle("overflow")))

	drained := buffer.Drain()
	require.Len(t, drained, 3)
	for i, id := range []string{"a", "b", "c"} {
		assert.Equal(t, id, drained[i].Obstacle.ID)
	}

	require.True(t, buffer.Push(addObstacle("d")))
	require.True(t, buffer.Push(Command{Type: CommandRemoveObstacle, RemoveObstacle: &RemoveObstacleCommand{ID: "a"}}))
	again := buffer.Drain()
	require.Len(t, again, 2)
	assert.Equal(t, CommandAddObstacle, again[0].Type)
	assert.Equal(t, CommandRemoveObstacle, again[1].Type)
}

func TestCommandBufferCoalescesPlayerPositions(t *testing.T) {
	registry := telemetry.NewRegistry(nil)
	buffer := NewCommandBuffer(1, registry)

	require.True(t, buffer.Push(playerAt(1, 1)))
	require.True(t, buffer.Push(addObstacle("wall")))
	require.True(t, buffer.Push(playerAt(2, 2)))
	require.True(t, buffer.Push(playerAt(3, 3)), "positions never fill the buffer")
	assert.False(t, buffer.Push(addObstacle("late")))
	assert.Equal(t, 2, buffer.Len())

	snapshot := registry.Snapshot()
	assert.Equal(t, uint64(2), snapshot[telemetry.MetricCommandCoalesced])
	assert.Equal(t, uint64(1), snapshot[telemetry.MetricCommandOverflow])
	assert.Equal(t, uint64(2), snapshot[telemetry.MetricCommandQueueDepth])

	drained := buffer.Drain()
	require.Len(t, drained, 2)
	assert.Equal(t, "wall", drained[0].Obstacle.ID)
	assert.Equal(t, &PlayerCommand{X: 3, Y: 3}, drained[1].Player, "the newest position wins")

	assert.Equal(t, uint64(0), registry.Snapshot()[telemetry.MetricCommandQueueDepth])
	assert.Nil(t, buffer.Drain())
	assert.Equal(t, 1, buffer.Capacity())
}

func TestNilCommandBuffer(t *testing.T) {
	var buffer *CommandBuffer
	assert.False(t, buffer.Push(playerAt(0, 0)))
	assert.Nil(t, buffer.Drain())
	assert.Zero(t, buffer.Len())
	assert.Zero(t, buffer.Capacity())
}
