package sim

import (
	"context"
	"fmt"

	"github.com/arthurgeek/croptails/internal/geom"
	"github.com/arthurgeek/croptails/internal/nav"
	"github.com/arthurgeek/croptails/internal/telemetry"
	"github.com/arthurgeek/croptails/internal/wander"
	"github.com/arthurgeek/croptails/logging"
	lognav "github.com/arthurgeek/croptails/logging/navigation"
)

// Deps carries the ambient collaborators of a world and its loop.
type Deps struct {
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	Logger    telemetry.Logger
	Clock     logging.Clock
}

func (d Deps) normalized() Deps {
	if d.Publisher == nil {
		d.Publisher = logging.NopPublisher()
	}
	if d.Metrics == nil {
		d.Metrics = telemetry.NopMetrics()
	}
	if d.Logger == nil {
		d.Logger = telemetry.LoggerFunc(nil)
	}
	return d
}

// MeshInfo describes the build state of one region's navmesh.
type MeshInfo struct {
	Region     string `json:"region"`
	Status     string `json:"status"`
	Generation uint64 `json:"generation"`
}

// World owns every agent and runs the ordered tick pipeline. It is not safe
// for concurrent use; only the loop goroutine touches it.
type World struct {
	cfg  Config
	deps Deps
	tick uint64

	agents    []*wander.Agent
	regions   []*nav.Region
	meshes    []*nav.Mesh
	obstacles *nav.Obstacles
	resolver  *wander.Resolver
	machine   *wander.Machine
	steering  wander.Steering
	player    *geom.Vec2
	orphaned  int
}

// NewWorld builds meshes for every region and schedules their first build.
func NewWorld(cfg Config, regions []*nav.Region, deps Deps) *World {
	cfg = cfg.Normalized()
	deps = deps.normalized()
	w := &World{
		cfg:       cfg,
		deps:      deps,
		regions:   append([]*nav.Region(nil), regions...),
		obstacles: nav.NewObstacles(),
		steering:  wander.NewSteering(cfg.SeparationRadius, cfg.SeparationStrength),
	}

	source := make(wander.MeshMap, len(regions))
	for _, region := range regions {
		mesh := nav.NewMesh(region, nav.MeshConfig{
			AgentRadius: cfg.AgentRadius,
			CellSize:    cfg.CellSize,
			OnBuilt:     w.meshBuilt,
		})
		w.meshes = append(w.meshes, mesh)
		source[region.ID] = mesh
	}
	w.resolver = wander.NewResolver(regions, deps.Publisher)
	w.machine = wander.NewMachine(cfg.ArrivalThreshold, source, deps.Publisher)
	for _, mesh := range w.meshes {
		w.obstacles.Attach(mesh)
	}
	return w
}

func (w *World) meshBuilt(info nav.BuildInfo) {
	w.deps.Metrics.Add(telemetry.MetricMeshBuilds, 1)
	lognav.MeshBuilt(context.Background(), w.deps.Publisher, logging.RegionRef(info.RegionID), lognav.MeshBuiltPayload{
		Generation:     info.Generation,
		WalkableCells:  info.Walkable,
		TotalCells:     info.Cells,
		Obstacles:      info.Obstacles,
		DurationMillis: float64(info.Duration.Microseconds()) / 1000,
	}, nil)
}

// Config returns the normalized configuration.
func (w *World) Config() Config {
	return w.cfg
}

// Tick returns the number of completed steps.
func (w *World) Tick() uint64 {
	return w.tick
}

// Spawn adds an idle agent. Its ID and random stream derive from the world
// seed and the spawn order, so identical spawn sequences replay identically.
func (w *World) Spawn(species string, position geom.Vec2, cfg wander.WanderConfig, cycles wander.WalkCycles) *wander.Agent {
	id := wander.AgentID(w.cfg.Seed, len(w.agents), species)
	agent := wander.NewAgent(id, species, position, cfg, cycles, wander.NewDeterministicRNG(w.cfg.Seed, id))
	w.agents = append(w.agents, agent)
	return agent
}

// Agents returns the live agents in spawn order.
func (w *World) Agents() []*wander.Agent {
	return w.agents
}

// SetPlayer updates the player position used for separation.
func (w *World) SetPlayer(position geom.Vec2) {
	p := position
	w.player = &p
}

// AddObstacle registers an obstacle and schedules mesh rebuilds.
func (w *World) AddObstacle(obs nav.Obstacle) string {
	id := w.obstacles.Add(obs)
	w.deps.Metrics.Store(telemetry.MetricObstacles, uint64(w.obstacles.Len()))
	return id
}

// RemoveObstacle drops an obstacle and schedules mesh rebuilds.
func (w *World) RemoveObstacle(id string) bool {
	removed := w.obstacles.Remove(id)
	w.deps.Metrics.Store(telemetry.MetricObstacles, uint64(w.obstacles.Len()))
	return removed
}

// Obstacles exposes the registry; it is safe for concurrent readers.
func (w *World) Obstacles() *nav.Obstacles {
	return w.obstacles
}

// Meshes reports the build state of every region's navmesh. It is safe for
// concurrent readers.
func (w *World) Meshes() []MeshInfo {
	out := make([]MeshInfo, 0, len(w.meshes))
	for _, mesh := range w.meshes {
		out = append(out, MeshInfo{
			Region:     mesh.Region().ID,
			Status:     mesh.Status().String(),
			Generation: mesh.Generation(),
		})
	}
	return out
}

// WaitForMeshes blocks until every mesh has been built once.
func (w *World) WaitForMeshes(ctx context.Context) error {
	for _, mesh := range w.meshes {
		if err := mesh.Wait(ctx); err != nil {
			return fmt.Errorf("wait for %s navmesh: %w", mesh.Region().ID, err)
		}
	}
	return nil
}

// Step runs one fixed tick: staged commands, region membership, the state
// machine, steering, then integration.
func (w *World) Step(ctx context.Context, dt float64, commands []Command) Snapshot {
	w.tick++
	w.apply(commands)

	_, orphaned := w.resolver.Resolve(ctx, w.tick, w.agents)
	w.orphaned += orphaned

	stats := w.machine.Tick(ctx, w.tick, dt, w.agents)
	w.steering.Apply(w.agents, w.player)
	for _, a := range w.agents {
		a.Position = a.Position.Add(a.Velocity.Scale(dt))
	}

	w.record(stats)
	return w.Snapshot()
}

func (w *World) apply(commands []Command) {
	for _, cmd := range commands {
		switch cmd.Type {
		case CommandPlayerPosition:
			if cmd.Player != nil {
				w.SetPlayer(geom.Vec2{X: cmd.Player.X, Y: cmd.Player.Y})
			}
		case CommandAddObstacle:
			if cmd.Obstacle != nil {
				w.AddObstacle(*cmd.Obstacle)
			}
		case CommandRemoveObstacle:
			if cmd.RemoveObstacle != nil && !w.RemoveObstacle(cmd.RemoveObstacle.ID) {
				w.deps.Logger.Printf("remove obstacle %s: not registered", cmd.RemoveObstacle.ID)
			}
		}
	}
}

func (w *World) record(stats wander.TickStats) {
	walking := 0
	for _, a := range w.agents {
		if a.State() == wander.StateWalking {
			walking++
		}
	}
	w.deps.Metrics.Add(telemetry.MetricTicks, 1)
	w.deps.Metrics.Store(telemetry.MetricAgentsWalking, uint64(walking))
	w.deps.Metrics.Store(telemetry.MetricAgentsIdle, uint64(len(w.agents)-walking))
	w.deps.Metrics.Store(telemetry.MetricAgentsUnassigned, uint64(w.orphaned))
	if stats.PathFailures > 0 {
		w.deps.Metrics.Add(telemetry.MetricPathFailures, uint64(stats.PathFailures))
	}
}

// Snapshot captures the current world state.
func (w *World) Snapshot() Snapshot {
	snap := Snapshot{Tick: w.tick, Agents: make([]AgentSnapshot, 0, len(w.agents))}
	for _, a := range w.agents {
		snap.Agents = append(snap.Agents, snapshotAgent(a))
	}
	if w.player != nil {
		p := *w.player
		snap.Player = &p
	}
	return snap
}
