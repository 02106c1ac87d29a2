package wander

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthurgeek/croptails/internal/geom"
	"github.com/arthurgeek/croptails/internal/nav"
)

// walker builds a walking agent whose only waypoint is waypoint.
func walker(id string, pos, waypoint geom.Vec2, speed float64) *Agent {
	a := NewAgent(id, "cow", pos, WanderConfig{}, WalkCycles{Min: 1, Max: 1}, nil)
	a.enterWalk(nav.NewPath([]geom.Vec2{waypoint}, waypoint), 1, speed)
	return a
}

func TestSeparationPushesAgentsApart(t *testing.T) {
	a := walker("a", geom.Vec2{X: 0, Y: 0}, geom.Vec2{X: 0, Y: 0}, 4)
	b := walker("b", geom.Vec2{X: 10, Y: 0}, geom.Vec2{X: 10, Y: 0}, 4)
	steering := NewSteering(25, 3)

	raw := steering.Vector(a.Position, a.Position, []geom.Vec2{b.Position})
	assert.InDelta(t, 3.0*(1-10.0/25.0), raw.Len(), 1e-9)
	assert.InDelta(t, -1.8, raw.X, 1e-9)

	steering.Apply([]*Agent{a, b}, nil)
	assert.InDelta(t, -4.0, a.Velocity.X, 1e-9)
	assert.InDelta(t, 0.0, a.Velocity.Y, 1e-9)
	assert.InDelta(t, 4.0, b.Velocity.X, 1e-9)
	assert.InDelta(t, 0.0, b.Velocity.Y, 1e-9)
}

func TestSeparationIsSymmetric(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 200; i++ {
		p := geom.Vec2{X: rng.Float64() * 40, Y: rng.Float64() * 40}
		q := geom.Vec2{X: rng.Float64() * 40, Y: rng.Float64() * 40}
		pq := Separation(p, []geom.Vec2{q}, DefaultSeparationRadius)
		qp := Separation(q, []geom.Vec2{p}, DefaultSeparationRadius)
		if math.Abs(pq.X+qp.X) > 1e-9 || math.Abs(pq.Y+qp.Y) > 1e-9 {
			t.Fatalf("expected equal and opposite pushes, got %v and %v", pq, qp)
		}
	}
}

func TestSeparationIgnoresCoincidentAndDistant(t *testing.T) {
	p := geom.Vec2{X: 5, Y: 5}
	assert.Equal(t, geom.Vec2{}, Separation(p, []geom.Vec2{p}, 25))
	assert.Equal(t, geom.Vec2{}, Separation(p, []geom.Vec2{{X: 30, Y: 5}}, 25))
	assert.Equal(t, geom.Vec2{}, Separation(p, []geom.Vec2{{X: 5, Y: 30}}, 25), "boundary is exclusive")
}

func TestPlayerContributesToSeparation(t *testing.T) {
	a := walker("a", geom.Vec2{X: 0, Y: 0}, geom.Vec2{X: 0, Y: 0}, 2)
	player := geom.Vec2{X: 0, Y: 5}
	NewSteering(25, 3).Apply([]*Agent{a}, &player)
	assert.InDelta(t, 0.0, a.Velocity.X, 1e-9)
	assert.InDelta(t, -2.0, a.Velocity.Y, 1e-9)
}

func TestIdleAndExhaustedAgentsStop(t *testing.T) {
	idle := NewAgent("idle", "cow", geom.Vec2{}, WanderConfig{}, WalkCycles{}, nil)
	idle.Velocity = geom.Vec2{X: 3}
	done := walker("done", geom.Vec2{X: 1}, geom.Vec2{X: 1}, 4)
	done.Walk().Path.Advance()
	done.Velocity = geom.Vec2{X: 3}

	NewSteering(25, 3).Apply([]*Agent{idle, done}, nil)
	assert.Equal(t, geom.Vec2{}, idle.Velocity)
	assert.Equal(t, geom.Vec2{}, done.Velocity)
}

func TestFacingFollowsWaypoint(t *testing.T) {
	a := walker("a", geom.Vec2{X: 10, Y: 0}, geom.Vec2{X: 0, Y: 0}, 5)
	steering := NewSteering(25, 3)
	steering.Apply([]*Agent{a}, nil)
	require.Equal(t, FacingLeft, a.Facing)
	assert.InDelta(t, -5.0, a.Velocity.X, 1e-9)

	vertical := walker("v", geom.Vec2{X: 0, Y: 0}, geom.Vec2{X: 0, Y: 10}, 5)
	vertical.Facing = FacingLeft
	steering.Apply([]*Agent{vertical}, nil)
	assert.Equal(t, FacingLeft, vertical.Facing, "pure vertical motion keeps facing")
}
