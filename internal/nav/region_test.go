package nav

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthurgeek/croptails/internal/geom"
)

func square(size float64) []geom.Vec2 {
	return []geom.Vec2{{X: 0, Y: 0}, {X: size, Y: 0}, {X: size, Y: size}, {X: 0, Y: size}}
}

// windingNumber is an independent containment check used as a reference.
func windingNumber(vertices []geom.Vec2, p geom.Vec2) int {
	wn := 0
	n := len(vertices)
	for i := 0; i < n; i++ {
		a := vertices[i]
		b := vertices[(i+1)%n]
		cross := (b.X-a.X)*(p.Y-a.Y) - (p.X-a.X)*(b.Y-a.Y)
		if a.Y <= p.Y {
			if b.Y > p.Y && cross > 0 {
				wn++
			}
		} else if b.Y <= p.Y && cross < 0 {
			wn--
		}
	}
	return wn
}

func TestRegionContainsMatchesReference(t *testing.T) {
	shapes := map[string][]geom.Vec2{
		"square": square(10),
		"l-shape": {
			{X: 0, Y: 0}, {X: 20, Y: 0}, {X: 20, Y: 8}, {X: 8, Y: 8}, {X: 8, Y: 20}, {X: 0, Y: 20},
		},
		"triangle": {{X: -5, Y: -5}, {X: 15, Y: 0}, {X: 2, Y: 12}},
	}
	rng := rand.New(rand.NewSource(42))
	for name, vertices := range shapes {
		region := NewRegion(name, vertices, 1)
		for i := 0; i < 2000; i++ {
			p := geom.Vec2{X: rng.Float64()*40 - 10, Y: rng.Float64()*40 - 10}
			want := windingNumber(vertices, p) != 0
			if region.DistanceToEdge(p) < 1e-9 {
				continue
			}
			if got := region.Contains(p); got != want {
				t.Fatalf("%s: expected Contains(%v)=%v, got %v", name, p, want, got)
			}
		}
	}
}

func TestDegenerateRegion(t *testing.T) {
	region := NewRegion("line", []geom.Vec2{{X: 0, Y: 0}, {X: 10, Y: 0}}, 1)
	require.ErrorIs(t, region.Validate(), ErrDegenerateRegion)
	assert.False(t, region.Contains(geom.Vec2{X: 5, Y: 0}))

	p, sampled := region.SamplePoint(rand.New(rand.NewSource(1)))
	assert.False(t, sampled)
	assert.Equal(t, geom.Vec2{}, p)

	var nilRegion *Region
	assert.False(t, nilRegion.Contains(geom.Vec2{}))
	assert.Equal(t, geom.Vec2{}, nilRegion.RandomPoint(nil))
}

func TestRandomPointRespectsMargin(t *testing.T) {
	region := NewRegion("square", square(10), 1)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		p, sampled := region.SamplePoint(rng)
		if !sampled {
			continue
		}
		if p.X <= 1 || p.X >= 9 || p.Y <= 1 || p.Y >= 9 {
			t.Fatalf("expected point inside (1,9), got %v", p)
		}
	}
}

func TestRandomPointMarginProperty(t *testing.T) {
	vertices := []geom.Vec2{
		{X: 0, Y: 0}, {X: 60, Y: 0}, {X: 60, Y: 30}, {X: 30, Y: 30}, {X: 30, Y: 60}, {X: 0, Y: 60},
	}
	region := NewRegion("concave", vertices, DefaultEdgeMargin)
	rng := rand.New(rand.NewSource(99))
	for i := 0; i < 500; i++ {
		p, sampled := region.SamplePoint(rng)
		require.True(t, sampled)
		require.True(t, region.Contains(p))
		require.GreaterOrEqual(t, region.DistanceToEdge(p), DefaultEdgeMargin)
	}
}

func TestRandomPointFallsBackToCentroid(t *testing.T) {
	region := NewRegion("tiny", square(4), 5)
	p, sampled := region.SamplePoint(rand.New(rand.NewSource(3)))
	assert.False(t, sampled)
	assert.Equal(t, geom.Vec2{X: 2, Y: 2}, p)
}

func TestNewRegionDefaultsMargin(t *testing.T) {
	region := NewRegion("r", square(10), 0)
	assert.Equal(t, DefaultEdgeMargin, region.EdgeMargin)
}

func TestDistanceToEdge(t *testing.T) {
	region := NewRegion("square", square(10), 1)
	assert.InDelta(t, 2.0, region.DistanceToEdge(geom.Vec2{X: 2, Y: 5}), 1e-9)
	assert.InDelta(t, 5.0, region.DistanceToEdge(geom.Vec2{X: 5, Y: 5}), 1e-9)
	assert.InDelta(t, math.Sqrt2, region.DistanceToEdge(geom.Vec2{X: 11, Y: 11}), 1e-9)
}

func TestBoundsAndCentroid(t *testing.T) {
	region := NewRegion("square", square(10), 1)
	min, max := region.Bounds()
	assert.Equal(t, geom.Vec2{X: 0, Y: 0}, min)
	assert.Equal(t, geom.Vec2{X: 10, Y: 10}, max)
	assert.Equal(t, geom.Vec2{X: 5, Y: 5}, region.Centroid())
}
