package sim

import (
	"sync"

	"github.com/arthurgeek/croptails/internal/telemetry"
)

// CommandBuffer stages commands between ticks. Obstacle edits queue in arrival
// order up to the capacity. Player positions never take a slot: the world only
// reads the newest one, so a later position replaces a staged one.
type CommandBuffer struct {
	mu       sync.Mutex
	edits    []Command
	capacity int
	player   *Command
	metrics  telemetry.Metrics
}

// NewCommandBuffer bounds obstacle edits to capacity.
func NewCommandBuffer(capacity int, metrics telemetry.Metrics) *CommandBuffer {
	if capacity < 1 {
		capacity = 1
	}
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	return &CommandBuffer{
		edits:    make([]Command, 0, capacity),
		capacity: capacity,
		metrics:  metrics,
	}
}

// Capacity reports how many obstacle edits fit before Push refuses.
func (b *CommandBuffer) Capacity() int {
	if b == nil {
		return 0
	}
	return b.capacity
}

// Push stages cmd. It returns false only when an obstacle edit finds the
// buffer full.
func (b *CommandBuffer) Push(cmd Command) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if cmd.Type == CommandPlayerPosition {
		if b.player != nil {
			b.metrics.Add(telemetry.MetricCommandCoalesced, 1)
		}
		b.player = &cmd
		b.metrics.Store(telemetry.MetricCommandQueueDepth, uint64(b.lenLocked()))
		return true
	}

	if len(b.edits) == b.capacity {
		b.metrics.Add(telemetry.MetricCommandOverflow, 1)
		return false
	}
	b.edits = append(b.edits, cmd)
	b.metrics.Store(telemetry.MetricCommandQueueDepth, uint64(b.lenLocked()))
	return true
}

// Drain returns the staged obstacle edits in arrival order followed by the
// newest player position, and empties the buffer.
func (b *CommandBuffer) Drain() []Command {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.lenLocked()
	if n == 0 {
		return nil
	}
	commands := make([]Command, 0, n)
	commands = append(commands, b.edits...)
	if b.player != nil {
		commands = append(commands, *b.player)
	}

	clear(b.edits)
	b.edits = b.edits[:0]
	b.player = nil
	b.metrics.Store(telemetry.MetricCommandQueueDepth, 0)
	return commands
}

// Len reports the number of commands the next Drain would return.
func (b *CommandBuffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lenLocked()
}

func (b *CommandBuffer) lenLocked() int {
	n := len(b.edits)
	if b.player != nil {
		n++
	}
	return n
}
