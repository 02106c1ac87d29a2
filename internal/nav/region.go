package nav

import (
	"errors"
	"math"
	"math/rand"

	"github.com/arthurgeek/croptails/internal/geom"
)

const (
	// DefaultEdgeMargin keeps sampled targets clear of region edges. It must
	// stay at or above the navmesh agent radius or paths can clip obstacles.
	DefaultEdgeMargin = 5.0

	// randomPointAttempts bounds rejection sampling before the centroid
	// fallback kicks in.
	randomPointAttempts = 100
)

// ErrDegenerateRegion reports a polygon with fewer than three vertices.
var ErrDegenerateRegion = errors.New("nav: region needs at least 3 vertices")

// Region is a simple polygon describing a walkable area for wandering agents.
// Vertices are world-space and immutable once the region is created.
type Region struct {
	ID         string
	Name       string
	EdgeMargin float64

	vertices []geom.Vec2
}

// NewRegion copies the provided vertices into a new region. A margin of zero
// or less selects DefaultEdgeMargin.
func NewRegion(id string, vertices []geom.Vec2, edgeMargin float64) *Region {
	if edgeMargin <= 0 {
		edgeMargin = DefaultEdgeMargin
	}
	copied := make([]geom.Vec2, len(vertices))
	copy(copied, vertices)
	return &Region{ID: id, Name: id, EdgeMargin: edgeMargin, vertices: copied}
}

// Validate reports ErrDegenerateRegion for polygons that cannot enclose area.
func (r *Region) Validate() error {
	if r == nil || len(r.vertices) < 3 {
		return ErrDegenerateRegion
	}
	return nil
}

// Vertices returns a copy of the polygon outline.
func (r *Region) Vertices() []geom.Vec2 {
	if r == nil {
		return nil
	}
	copied := make([]geom.Vec2, len(r.vertices))
	copy(copied, r.vertices)
	return copied
}

// Contains reports whether point lies inside the polygon using the odd-even
// ray casting rule. Degenerate polygons contain nothing.
func (r *Region) Contains(point geom.Vec2) bool {
	if r == nil {
		return false
	}
	n := len(r.vertices)
	if n < 3 {
		return false
	}

	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		vi := r.vertices[i]
		vj := r.vertices[j]
		if (vi.Y > point.Y) != (vj.Y > point.Y) &&
			point.X < (vj.X-vi.X)*(point.Y-vi.Y)/(vj.Y-vi.Y)+vi.X {
			inside = !inside
		}
		j = i
	}
	return inside
}

// DistanceToEdge returns the minimum distance from point to any polygon edge.
func (r *Region) DistanceToEdge(point geom.Vec2) float64 {
	if r == nil || len(r.vertices) == 0 {
		return math.Inf(1)
	}
	n := len(r.vertices)
	minDist := math.Inf(1)
	for i := 0; i < n; i++ {
		a := r.vertices[i]
		b := r.vertices[(i+1)%n]
		if d := geom.PointSegmentDistance(point, a, b); d < minDist {
			minDist = d
		}
	}
	return minDist
}

// Bounds returns the axis-aligned bounding box of the polygon.
func (r *Region) Bounds() (geom.Vec2, geom.Vec2) {
	if r == nil || len(r.vertices) == 0 {
		return geom.Vec2{}, geom.Vec2{}
	}
	min := geom.Vec2{X: math.Inf(1), Y: math.Inf(1)}
	max := geom.Vec2{X: math.Inf(-1), Y: math.Inf(-1)}
	for _, v := range r.vertices {
		min.X = math.Min(min.X, v.X)
		min.Y = math.Min(min.Y, v.Y)
		max.X = math.Max(max.X, v.X)
		max.Y = math.Max(max.Y, v.Y)
	}
	return min, max
}

// Centroid returns the unweighted mean of the vertices.
func (r *Region) Centroid() geom.Vec2 {
	if r == nil || len(r.vertices) == 0 {
		return geom.Vec2{}
	}
	var sum geom.Vec2
	for _, v := range r.vertices {
		sum = sum.Add(v)
	}
	return sum.Scale(1 / float64(len(r.vertices)))
}

// RandomPoint samples a point inside the polygon that keeps EdgeMargin
// clearance from every edge. After randomPointAttempts rejected samples it
// falls back to the vertex centroid, which may violate the margin (or lie
// outside a concave polygon). Degenerate polygons return the origin.
func (r *Region) RandomPoint(rng *rand.Rand) geom.Vec2 {
	p, _ := r.SamplePoint(rng)
	return p
}

// SamplePoint behaves like RandomPoint and additionally reports whether the
// point came from rejection sampling (true) or from a fallback (false).
func (r *Region) SamplePoint(rng *rand.Rand) (geom.Vec2, bool) {
	if r == nil || len(r.vertices) < 3 {
		return geom.Vec2{}, false
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	min, max := r.Bounds()
	for i := 0; i < randomPointAttempts; i++ {
		candidate := geom.Vec2{
			X: min.X + rng.Float64()*(max.X-min.X),
			Y: min.Y + rng.Float64()*(max.Y-min.Y),
		}
		if r.Contains(candidate) && r.DistanceToEdge(candidate) >= r.EdgeMargin {
			return candidate, true
		}
	}
	return r.Centroid(), false
}
