package sim

import (
	"context"
	"sync"
	"time"

	"github.com/arthurgeek/croptails/internal/telemetry"
	"github.com/arthurgeek/croptails/logging"
	logsim "github.com/arthurgeek/croptails/logging/simulation"
)

const (
	// CommandRejectQueueLimit indicates a command was dropped due to per-actor
	// queue throttling.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the global command buffer is saturated.
	CommandRejectQueueFull = "queue_full"

	DefaultTickRate        = 64
	DefaultCatchupMaxTicks = 4
	DefaultCommandCapacity = 256
)

// LoopConfig tunes the command buffer and tick loop orchestration.
type LoopConfig struct {
	TickRate        int
	CatchupMaxTicks int
	CommandCapacity int
	PerActorLimit   int
	WarningStep     int
}

func (c LoopConfig) normalized() LoopConfig {
	if c.TickRate <= 0 {
		c.TickRate = DefaultTickRate
	}
	if c.CatchupMaxTicks <= 0 {
		c.CatchupMaxTicks = DefaultCatchupMaxTicks
	}
	if c.CommandCapacity <= 0 {
		c.CommandCapacity = DefaultCommandCapacity
	}
	return c
}

// LoopHooks observe loop progress. All hooks run on the loop goroutine.
type LoopHooks struct {
	AfterStep      func(LoopStepResult)
	OnCommandDrop  func(reason string, cmd Command)
	OnQueueWarning func(length int)
}

// LoopStepResult describes one fixed step.
type LoopStepResult struct {
	Tick     uint64
	Delta    float64
	Snapshot Snapshot
	Commands []Command
	Duration time.Duration
	Budget   time.Duration
}

// Loop stages commands from any goroutine and advances the world with a
// fixed timestep.
type Loop struct {
	world  *World
	buffer *CommandBuffer
	hooks  LoopHooks
	config LoopConfig
	deps   Deps

	dt          float64
	step        time.Duration
	accumulator time.Duration
	overruns    uint64

	queueMu       sync.Mutex
	perActorCount map[string]int
	dropCounts    map[string]uint64

	latestMu sync.RWMutex
	latest   Snapshot
}

// NewLoop wraps world with a command buffer that coalesces player positions.
func NewLoop(world *World, cfg LoopConfig, hooks LoopHooks) *Loop {
	if world == nil {
		return nil
	}
	cfg = cfg.normalized()
	deps := world.deps
	if deps.Clock == nil {
		deps.Clock = logging.ClockFunc(time.Now)
	}
	return &Loop{
		world:         world,
		buffer:        NewCommandBuffer(cfg.CommandCapacity, deps.Metrics),
		hooks:         hooks,
		config:        cfg,
		deps:          deps,
		dt:            1 / float64(cfg.TickRate),
		step:          time.Second / time.Duration(cfg.TickRate),
		perActorCount: make(map[string]int),
		dropCounts:    make(map[string]uint64),
		latest:        world.Snapshot(),
	}
}

// FixedDelta is the simulated seconds advanced by every step.
func (l *Loop) FixedDelta() float64 {
	return l.dt
}

// Pending reports the number of staged commands.
func (l *Loop) Pending() int {
	if l == nil {
		return 0
	}
	return l.buffer.Len()
}

// Latest returns the snapshot of the most recent step. Safe for concurrent use.
func (l *Loop) Latest() Snapshot {
	l.latestMu.RLock()
	defer l.latestMu.RUnlock()
	return l.latest
}

// Enqueue stages a command, enforcing per-actor throttling and capacity limits.
func (l *Loop) Enqueue(cmd Command) (bool, string) {
	if l == nil {
		return false, CommandRejectQueueFull
	}
	reason := ""
	l.queueMu.Lock()
	if l.config.PerActorLimit > 0 && cmd.ActorID != "" {
		count := l.perActorCount[cmd.ActorID]
		if count >= l.config.PerActorLimit {
			reason = CommandRejectQueueLimit
		} else {
			l.perActorCount[cmd.ActorID] = count + 1
		}
	}
	length := 0
	if reason == "" {
		if !l.buffer.Push(cmd) {
			reason = CommandRejectQueueFull
		} else {
			length = l.buffer.Len()
		}
	}
	var dropCount uint64
	if reason != "" {
		dropCount = l.incrementDropLocked(cmd.ActorID)
	}
	l.queueMu.Unlock()

	if reason != "" {
		l.reportDrop(reason, cmd, dropCount)
		return false, reason
	}
	if l.config.WarningStep > 0 && length >= l.config.WarningStep && length%l.config.WarningStep == 0 {
		if l.hooks.OnQueueWarning != nil {
			l.hooks.OnQueueWarning(length)
		}
	}
	return true, ""
}

// Advance executes a single fixed step using the staged commands.
func (l *Loop) Advance(ctx context.Context) LoopStepResult {
	commands := l.drainCommands()
	start := l.deps.Clock.Now()
	snapshot := l.world.Step(ctx, l.dt, commands)
	duration := l.deps.Clock.Now().Sub(start)

	l.latestMu.Lock()
	l.latest = snapshot
	l.latestMu.Unlock()

	result := LoopStepResult{
		Tick:     snapshot.Tick,
		Delta:    l.dt,
		Snapshot: snapshot,
		Commands: commands,
		Duration: duration,
		Budget:   l.step,
	}
	l.checkBudget(ctx, result)
	if l.hooks.AfterStep != nil {
		l.hooks.AfterStep(result)
	}
	return result
}

// Pump adds elapsed wall-clock time to the accumulator and runs every fixed
// step it now covers, up to CatchupMaxTicks. Backlog beyond that limit is
// discarded rather than simulated with a larger delta.
func (l *Loop) Pump(ctx context.Context, elapsed time.Duration) int {
	if elapsed > 0 {
		l.accumulator += elapsed
	}
	due := int(l.accumulator / l.step)
	steps := due
	if steps > l.config.CatchupMaxTicks {
		steps = l.config.CatchupMaxTicks
	}
	for i := 0; i < steps; i++ {
		l.Advance(ctx)
	}
	if steps > 1 {
		l.deps.Metrics.Add(telemetry.MetricCatchupSteps, uint64(steps-1))
	}
	if due > steps {
		l.accumulator %= l.step
		l.deps.Metrics.Add(telemetry.MetricCatchupClamped, 1)
		logsim.CatchupClamped(ctx, l.deps.Publisher, l.world.Tick(), logsim.CatchupClampedPayload{
			Executed: steps,
			Skipped:  due - steps,
		}, nil)
	} else {
		l.accumulator -= time.Duration(steps) * l.step
	}
	return steps
}

// Run drives the fixed-timestep loop until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	if l == nil {
		return nil
	}
	ticker := time.NewTicker(l.step)
	defer ticker.Stop()

	last := l.deps.Clock.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := l.deps.Clock.Now()
			l.Pump(ctx, now.Sub(last))
			last = now
		}
	}
}

func (l *Loop) checkBudget(ctx context.Context, result LoopStepResult) {
	if result.Duration <= result.Budget {
		l.overruns = 0
		return
	}
	l.overruns++
	logsim.TickBudgetOverrun(ctx, l.deps.Publisher, result.Tick, logsim.TickBudgetOverrunPayload{
		DurationMillis: result.Duration.Milliseconds(),
		BudgetMillis:   result.Budget.Milliseconds(),
		Ratio:          float64(result.Duration) / float64(result.Budget),
		Streak:         l.overruns,
	}, nil)
}

func (l *Loop) drainCommands() []Command {
	l.queueMu.Lock()
	defer l.queueMu.Unlock()
	commands := l.buffer.Drain()
	if len(l.perActorCount) > 0 {
		l.perActorCount = make(map[string]int)
	}
	return commands
}

func (l *Loop) incrementDropLocked(actorID string) uint64 {
	if actorID == "" {
		actorID = "anonymous"
	}
	count := l.dropCounts[actorID] + 1
	l.dropCounts[actorID] = count
	return count
}

// reportDrop logs on powers of two so a flooding client cannot flood the log.
func (l *Loop) reportDrop(reason string, cmd Command, count uint64) {
	if reason == CommandRejectQueueLimit {
		l.deps.Metrics.Add(telemetry.MetricCommandRateLimited, 1)
	}
	if l.hooks.OnCommandDrop != nil {
		l.hooks.OnCommandDrop(reason, cmd)
	}
	if count > 0 && count&(count-1) == 0 {
		l.deps.Logger.Printf(
			"[backpressure] dropping command actor=%s type=%s reason=%s count=%d",
			cmd.ActorID, cmd.Type, reason, count,
		)
		logsim.CommandDropped(context.Background(), l.deps.Publisher, l.Latest().Tick, logsim.CommandDroppedPayload{
			CommandType: string(cmd.Type),
			Reason:      reason,
		}, map[string]any{"actor": cmd.ActorID, "count": count})
	}
}
