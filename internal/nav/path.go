package nav

import "github.com/arthurgeek/croptails/internal/geom"

// Path tracks the waypoints an agent still has to visit. Waypoints are
// consumed strictly in order.
type Path struct {
	waypoints   []geom.Vec2
	destination geom.Vec2
}

// NewPath clones the waypoints so callers may reuse their slice.
func NewPath(waypoints []geom.Vec2, destination geom.Vec2) *Path {
	copied := make([]geom.Vec2, len(waypoints))
	copy(copied, waypoints)
	return &Path{waypoints: copied, destination: destination}
}

// Current returns the next unvisited waypoint.
func (p *Path) Current() (geom.Vec2, bool) {
	if p == nil || len(p.waypoints) == 0 {
		return geom.Vec2{}, false
	}
	return p.waypoints[0], true
}

// Advance drops the current waypoint and reports whether the path is now
// complete. Advancing an empty path is a no-op that returns true.
func (p *Path) Advance() bool {
	if p == nil {
		return true
	}
	if len(p.waypoints) > 0 {
		p.waypoints[0] = geom.Vec2{}
		p.waypoints = p.waypoints[1:]
	}
	return len(p.waypoints) == 0
}

// Len reports the number of remaining waypoints.
func (p *Path) Len() int {
	if p == nil {
		return 0
	}
	return len(p.waypoints)
}

// Done reports whether every waypoint has been visited.
func (p *Path) Done() bool {
	return p.Len() == 0
}

// Destination returns the sampled target the path was computed for.
func (p *Path) Destination() geom.Vec2 {
	if p == nil {
		return geom.Vec2{}
	}
	return p.destination
}

// Waypoints returns a copy of the remaining waypoints.
func (p *Path) Waypoints() []geom.Vec2 {
	if p == nil || len(p.waypoints) == 0 {
		return nil
	}
	copied := make([]geom.Vec2, len(p.waypoints))
	copy(copied, p.waypoints)
	return copied
}
