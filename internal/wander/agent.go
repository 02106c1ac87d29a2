package wander

import (
	"math/rand"

	"github.com/arthurgeek/croptails/internal/geom"
	"github.com/arthurgeek/croptails/internal/nav"
)

// WanderConfig bounds how long an agent idles and how fast it walks.
type WanderConfig struct {
	MinIdleTime float64 `json:"min_idle_time" yaml:"min_idle_time" jsonschema:"minimum=0,description=Shortest idle period in seconds"`
	MaxIdleTime float64 `json:"max_idle_time" yaml:"max_idle_time" jsonschema:"minimum=0,description=Longest idle period in seconds"`
	MinSpeed    float64 `json:"min_speed" yaml:"min_speed" jsonschema:"minimum=0,description=Slowest walking speed in world units per second"`
	MaxSpeed    float64 `json:"max_speed" yaml:"max_speed" jsonschema:"minimum=0,description=Fastest walking speed in world units per second"`
}

// DefaultWanderConfig returns the tuning used when a species sets none.
func DefaultWanderConfig() WanderConfig {
	return WanderConfig{MinIdleTime: 1, MaxIdleTime: 5, MinSpeed: 5, MaxSpeed: 10}
}

// WalkCycles bounds how many consecutive paths an agent walks before idling.
type WalkCycles struct {
	Min int `json:"min" yaml:"min" jsonschema:"minimum=0"`
	Max int `json:"max" yaml:"max" jsonschema:"minimum=0"`
}

// DefaultWalkCycles returns the cycle range used when a species sets none.
func DefaultWalkCycles() WalkCycles {
	return WalkCycles{Min: 2, Max: 6}
}

// WalkProgress counts completed paths within one walking episode.
type WalkProgress struct {
	Current int `json:"current"`
	Target  int `json:"target"`
}

// IdleState is the idle timer of a resting agent.
type IdleState struct {
	Duration  float64
	Remaining float64
}

// Elapsed reports whether the idle period has run out.
func (s *IdleState) Elapsed() bool {
	return s == nil || s.Remaining <= 0
}

// WalkState is the per-episode data of a walking agent.
type WalkState struct {
	Path     *nav.Path
	Progress WalkProgress
	Speed    float64

	// repath is set once an exhausted path has been counted and a
	// replacement is still outstanding.
	repath bool
}

// Exhausted reports whether the agent has no waypoint left to steer towards.
func (s *WalkState) Exhausted() bool {
	return s == nil || s.Path.Done()
}

// State is the coarse behaviour of an agent.
type State string

const (
	StateIdle    State = "idle"
	StateWalking State = "walking"
)

// Facing is the horizontal direction a sprite should face.
type Facing string

const (
	FacingRight Facing = "right"
	FacingLeft  Facing = "left"
)

// Agent is a wandering animal. It holds either an idle timer or a walk block,
// never both.
type Agent struct {
	ID       string
	Species  string
	Position geom.Vec2
	Velocity geom.Vec2
	Facing   Facing
	Wander   WanderConfig
	Cycles   WalkCycles

	region   *nav.Region
	resolved bool
	idle     *IdleState
	walk     *WalkState
	rng      *rand.Rand

	// retries is the length of the current run of failed path queries.
	retries uint64
}

// NewAgent spawns an idle agent whose first idle period is sampled from
// wander. A nil rng is replaced with one derived from the agent ID.
func NewAgent(id, species string, position geom.Vec2, wander WanderConfig, cycles WalkCycles, rng *rand.Rand) *Agent {
	if rng == nil {
		rng = NewDeterministicRNG(DefaultSeed, id)
	}
	a := &Agent{
		ID:       id,
		Species:  species,
		Position: position,
		Facing:   FacingRight,
		Wander:   wander,
		Cycles:   cycles,
		rng:      rng,
	}
	a.enterIdle()
	return a
}

// State reports whether the agent is walking or idle.
func (a *Agent) State() State {
	if a.walk != nil {
		return StateWalking
	}
	return StateIdle
}

// Idle returns the idle timer, or nil while walking.
func (a *Agent) Idle() *IdleState {
	return a.idle
}

// Walk returns the walk block, or nil while idle.
func (a *Agent) Walk() *WalkState {
	return a.walk
}

// Region returns the assigned region, or nil.
func (a *Agent) Region() *nav.Region {
	return a.region
}

// RegionResolved reports whether membership resolution already ran for the agent.
func (a *Agent) RegionResolved() bool {
	return a.resolved
}

// AssignRegion binds the agent to region. Assignment happens once; later
// calls are ignored.
func (a *Agent) AssignRegion(region *nav.Region) {
	if a.resolved {
		return
	}
	a.region = region
	a.resolved = true
}

func (a *Agent) markUnassigned() {
	a.resolved = true
}

// RNG exposes the agent's private random source.
func (a *Agent) RNG() *rand.Rand {
	return a.rng
}

func (a *Agent) enterIdle() float64 {
	duration := RandomRange(a.rng, a.Wander.MinIdleTime, a.Wander.MaxIdleTime)
	a.walk = nil
	a.idle = &IdleState{Duration: duration, Remaining: duration}
	a.Velocity = geom.Vec2{}
	return duration
}

func (a *Agent) enterWalk(path *nav.Path, target int, speed float64) {
	a.idle = nil
	a.walk = &WalkState{
		Path:     path,
		Progress: WalkProgress{Current: 0, Target: target},
		Speed:    speed,
	}
}
