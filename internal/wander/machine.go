package wander

import (
	"context"

	"github.com/arthurgeek/croptails/internal/geom"
	"github.com/arthurgeek/croptails/internal/nav"
	"github.com/arthurgeek/croptails/logging"
	lognav "github.com/arthurgeek/croptails/logging/navigation"
)

// DefaultArrivalThreshold is the distance at which a waypoint counts as reached.
const DefaultArrivalThreshold = 2.0

// NavMesh answers path queries for one region.
type NavMesh interface {
	Status() nav.Status
	Path(from, to geom.Vec2) ([]geom.Vec2, bool)
}

// MeshSource maps regions to their navmesh.
type MeshSource interface {
	MeshFor(region *nav.Region) NavMesh
}

// MeshMap is a MeshSource keyed by region ID.
type MeshMap map[string]NavMesh

// MeshFor returns the mesh registered under the region's ID.
func (m MeshMap) MeshFor(region *nav.Region) NavMesh {
	if region == nil {
		return nil
	}
	return m[region.ID]
}

// TickStats summarises the transitions of one machine tick.
type TickStats struct {
	WalksStarted int
	IdlesEntered int
	PathFailures int
}

// Machine drives the idle/walk state of every agent.
type Machine struct {
	arrival   float64
	meshes    MeshSource
	publisher logging.Publisher
}

// NewMachine builds a machine; a non-positive threshold uses the default.
func NewMachine(arrivalThreshold float64, meshes MeshSource, publisher logging.Publisher) *Machine {
	if arrivalThreshold <= 0 {
		arrivalThreshold = DefaultArrivalThreshold
	}
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Machine{arrival: arrivalThreshold, meshes: meshes, publisher: publisher}
}

// Tick runs the three machine phases in order: idle timers, idle to walk
// transitions, then waypoint arrival.
func (m *Machine) Tick(ctx context.Context, tick uint64, dt float64, agents []*Agent) TickStats {
	var stats TickStats

	for _, a := range agents {
		if a.idle != nil {
			a.idle.Remaining -= dt
		}
	}

	for _, a := range agents {
		if a.idle == nil || !a.idle.Elapsed() || a.region == nil {
			continue
		}
		if m.startWalk(ctx, tick, a) {
			stats.WalksStarted++
		} else {
			stats.PathFailures++
		}
	}

	for _, a := range agents {
		if a.walk == nil {
			continue
		}
		idled, failed := m.advance(ctx, tick, a)
		if idled {
			stats.IdlesEntered++
		}
		if failed {
			stats.PathFailures++
		}
	}
	return stats
}

func (m *Machine) startWalk(ctx context.Context, tick uint64, a *Agent) bool {
	path, ok := m.query(ctx, tick, a, 0)
	if !ok {
		return false
	}
	target := RandomInt(a.rng, a.Cycles.Min, a.Cycles.Max)
	speed := RandomRange(a.rng, a.Wander.MinSpeed, a.Wander.MaxSpeed)
	a.enterWalk(path, target, speed)

	dest := path.Destination()
	lognav.WalkStarted(ctx, m.publisher, tick, logging.AgentRef(a.ID), lognav.WalkStartedPayload{
		Region:      a.region.ID,
		TargetX:     dest.X,
		TargetY:     dest.Y,
		Waypoints:   path.Len(),
		Speed:       speed,
		CycleTarget: target,
	}, nil)
	return true
}

// advance handles arrival for a walking agent. Each exhausted path bumps the
// cycle counter exactly once, even when the follow-up query keeps failing.
func (m *Machine) advance(ctx context.Context, tick uint64, a *Agent) (idled, failed bool) {
	walk := a.walk
	if !walk.repath {
		if waypoint, ok := walk.Path.Current(); ok && a.Position.Dist(waypoint) <= m.arrival {
			walk.Path.Advance()
		}
		if !walk.Path.Done() {
			return false, false
		}
		walk.Progress.Current++
		if walk.Progress.Current >= walk.Progress.Target {
			duration := a.enterIdle()
			lognav.IdleEntered(ctx, m.publisher, tick, logging.AgentRef(a.ID), lognav.IdleEnteredPayload{
				DurationSeconds: duration,
				Cycles:          walk.Progress.Current,
			}, nil)
			return true, false
		}
		walk.repath = true
	}

	path, ok := m.query(ctx, tick, a, walk.Progress.Current)
	if !ok {
		return false, true
	}
	walk.Path = path
	walk.repath = false
	return false, false
}

// query samples a fresh destination in the agent's region and asks the mesh
// for a route to it.
func (m *Machine) query(ctx context.Context, tick uint64, a *Agent, cycle int) (*nav.Path, bool) {
	var mesh NavMesh
	if m.meshes != nil {
		mesh = m.meshes.MeshFor(a.region)
	}
	if mesh == nil || mesh.Status() != nav.StatusBuilt {
		m.retry(ctx, tick, a, lognav.ReasonMeshPending, cycle)
		return nil, false
	}
	target := a.region.RandomPoint(a.rng)
	waypoints, ok := mesh.Path(a.Position, target)
	if !ok || len(waypoints) == 0 {
		m.retry(ctx, tick, a, lognav.ReasonNoPath, cycle)
		return nil, false
	}
	a.retries = 0
	return nav.NewPath(waypoints, target), true
}

// retry counts a failed query and reports the first failure of a streak and
// every power of two after it.
func (m *Machine) retry(ctx context.Context, tick uint64, a *Agent, reason string, cycle int) {
	a.retries++
	if a.retries&(a.retries-1) != 0 {
		return
	}
	lognav.PathRetry(ctx, m.publisher, tick, logging.AgentRef(a.ID), lognav.PathRetryPayload{
		Reason:   reason,
		Cycle:    cycle,
		Attempts: a.retries,
	}, nil)
}
