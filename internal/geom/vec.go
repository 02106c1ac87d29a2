package geom

import "math"

// Vec2 represents a 2D point or direction in world units.
type Vec2 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Zero is the origin.
var Zero = Vec2{}

func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}
}

func (v Vec2) Scale(s float64) Vec2 {
	return Vec2{X: v.X * s, Y: v.Y * s}
}

func (v Vec2) Dot(o Vec2) float64 {
	return v.X*o.X + v.Y*o.Y
}

// Len returns the euclidean length of the vector.
func (v Vec2) Len() float64 {
	return math.Hypot(v.X, v.Y)
}

// LenSq returns the squared length of the vector.
func (v Vec2) LenSq() float64 {
	return v.X*v.X + v.Y*v.Y
}

// Dist returns the distance between two points.
func (v Vec2) Dist(o Vec2) float64 {
	return math.Hypot(v.X-o.X, v.Y-o.Y)
}

// Normalize returns the unit vector in the direction of v. The zero vector
// normalizes to itself.
func (v Vec2) Normalize() Vec2 {
	return v.NormalizeOrZero()
}

// NormalizeOrZero returns the unit vector, or the zero vector when v has no
// finite, non-zero length.
func (v Vec2) NormalizeOrZero() Vec2 {
	length := v.Len()
	if length == 0 || math.IsNaN(length) || math.IsInf(length, 0) {
		return Vec2{}
	}
	return Vec2{X: v.X / length, Y: v.Y / length}
}

// IsZero reports whether both components are zero.
func (v Vec2) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

// Clamp limits value to the range [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// PointSegmentDistance returns the distance from p to the segment ab,
// projecting p onto the segment and clamping the projection to [0, 1].
func PointSegmentDistance(p, a, b Vec2) float64 {
	ab := b.Sub(a)
	ap := p.Sub(a)
	lenSq := ab.LenSq()
	if lenSq == 0 {
		return ap.Len()
	}
	t := Clamp(ap.Dot(ab)/lenSq, 0, 1)
	closest := a.Add(ab.Scale(t))
	return p.Dist(closest)
}

// Rect is an axis-aligned rectangle anchored at its top-left corner.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Min returns the top-left corner.
func (r Rect) Min() Vec2 {
	return Vec2{X: r.X, Y: r.Y}
}

// Max returns the bottom-right corner.
func (r Rect) Max() Vec2 {
	return Vec2{X: r.X + r.Width, Y: r.Y + r.Height}
}

// CircleRectOverlap reports whether a circle intersects the rectangle.
func CircleRectOverlap(center Vec2, radius float64, r Rect) bool {
	closestX := Clamp(center.X, r.X, r.X+r.Width)
	closestY := Clamp(center.Y, r.Y, r.Y+r.Height)
	dx := center.X - closestX
	dy := center.Y - closestY
	return dx*dx+dy*dy < radius*radius
}
