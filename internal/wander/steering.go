package wander

import (
	"github.com/arthurgeek/croptails/internal/geom"
)

const (
	DefaultSeparationRadius   = 25.0
	DefaultSeparationStrength = 3.0
)

// Steering blends path following with separation from nearby agents and the
// player. Every agent scans every other agent, so cost grows quadratically
// with the population.
type Steering struct {
	Radius   float64
	Strength float64
}

// NewSteering falls back to the default radius and strength when they are out of range.
func NewSteering(radius, strength float64) Steering {
	if radius <= 0 {
		radius = DefaultSeparationRadius
	}
	if strength < 0 {
		strength = DefaultSeparationStrength
	}
	return Steering{Radius: radius, Strength: strength}
}

// Separation sums the push away from every neighbour strictly inside radius.
// Coincident neighbours contribute nothing.
func Separation(position geom.Vec2, neighbors []geom.Vec2, radius float64) geom.Vec2 {
	var push geom.Vec2
	for _, other := range neighbors {
		offset := position.Sub(other)
		dist := offset.Len()
		if dist <= 0 || dist >= radius {
			continue
		}
		push = push.Add(offset.Normalize().Scale(1 - dist/radius))
	}
	return push
}

// Vector returns the raw steering vector before normalisation.
func (s Steering) Vector(position, waypoint geom.Vec2, neighbors []geom.Vec2) geom.Vec2 {
	pathDir := waypoint.Sub(position).NormalizeOrZero()
	return pathDir.Add(Separation(position, neighbors, s.Radius).Scale(s.Strength))
}

// Apply sets velocity and facing for every agent. Neighbour positions are
// snapshotted before any agent is updated. Idle agents and walkers without a
// current waypoint stop.
func (s Steering) Apply(agents []*Agent, player *geom.Vec2) {
	positions := make([]geom.Vec2, len(agents))
	for i, a := range agents {
		positions[i] = a.Position
	}
	neighbors := make([]geom.Vec2, 0, len(agents))

	for i, a := range agents {
		if a.walk == nil {
			a.Velocity = geom.Vec2{}
			continue
		}
		waypoint, ok := a.walk.Path.Current()
		if !ok {
			a.Velocity = geom.Vec2{}
			continue
		}

		neighbors = neighbors[:0]
		for j, pos := range positions {
			if j != i {
				neighbors = append(neighbors, pos)
			}
		}
		if player != nil {
			neighbors = append(neighbors, *player)
		}

		steer := s.Vector(positions[i], waypoint, neighbors)
		a.Velocity = steer.NormalizeOrZero().Scale(a.walk.Speed)

		switch dx := waypoint.X - positions[i].X; {
		case dx > 0:
			a.Facing = FacingRight
		case dx < 0:
			a.Facing = FacingLeft
		}
	}
}
