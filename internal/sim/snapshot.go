package sim

import (
	"github.com/arthurgeek/croptails/internal/geom"
	"github.com/arthurgeek/croptails/internal/wander"
)

// AgentSnapshot is the per-tick steering output of one agent.
type AgentSnapshot struct {
	ID          string               `json:"id"`
	Species     string               `json:"species"`
	Position    geom.Vec2            `json:"position"`
	Velocity    geom.Vec2            `json:"velocity"`
	Facing      wander.Facing        `json:"facing"`
	State       wander.State         `json:"state"`
	Region      string               `json:"region,omitempty"`
	Waypoints   []geom.Vec2          `json:"waypoints,omitempty"`
	Destination *geom.Vec2           `json:"destination,omitempty"`
	Progress    *wander.WalkProgress `json:"progress,omitempty"`
}

// Snapshot captures the world after a tick.
type Snapshot struct {
	Tick   uint64          `json:"tick"`
	Agents []AgentSnapshot `json:"agents"`
	Player *geom.Vec2      `json:"player,omitempty"`
}

func snapshotAgent(a *wander.Agent) AgentSnapshot {
	out := AgentSnapshot{
		ID:       a.ID,
		Species:  a.Species,
		Position: a.Position,
		Velocity: a.Velocity,
		Facing:   a.Facing,
		State:    a.State(),
	}
	if region := a.Region(); region != nil {
		out.Region = region.ID
	}
	if walk := a.Walk(); walk != nil {
		out.Waypoints = walk.Path.Waypoints()
		dest := walk.Path.Destination()
		out.Destination = &dest
		progress := walk.Progress
		out.Progress = &progress
	}
	return out
}
