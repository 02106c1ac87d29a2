package nav

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/arthurgeek/croptails/internal/geom"
)

// ObstacleKind enumerates the supported obstacle shapes.
type ObstacleKind string

const (
	ObstacleRect   ObstacleKind = "rect"
	ObstacleCircle ObstacleKind = "circle"
)

// obstacleNamespace scopes deterministic obstacle identifiers.
var obstacleNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("croptails/obstacle"))

// Obstacle is a collider carved out of every navmesh.
type Obstacle struct {
	ID     string       `json:"id"`
	Kind   ObstacleKind `json:"kind"`
	Rect   geom.Rect    `json:"rect"`
	Center geom.Vec2    `json:"center"`
	Radius float64      `json:"radius"`
}

// RectObstacle builds a rectangular obstacle.
func RectObstacle(r geom.Rect) Obstacle {
	return Obstacle{Kind: ObstacleRect, Rect: r}
}

// CircleObstacle builds a circular obstacle.
func CircleObstacle(center geom.Vec2, radius float64) Obstacle {
	return Obstacle{Kind: ObstacleCircle, Center: center, Radius: radius}
}

// Blocks reports whether a disc of the given radius centred on point touches
// the obstacle.
func (o Obstacle) Blocks(point geom.Vec2, radius float64) bool {
	switch o.Kind {
	case ObstacleCircle:
		limit := o.Radius + radius
		return point.Sub(o.Center).LenSq() < limit*limit
	default:
		return geom.CircleRectOverlap(point, radius, o.Rect)
	}
}

// Obstacles is the registry of navigation obstacles. Every change schedules a
// rebuild of each attached mesh.
type Obstacles struct {
	mu     sync.Mutex
	items  map[string]Obstacle
	order  []string
	meshes []*Mesh
	seq    uint64
}

// NewObstacles constructs an empty registry.
func NewObstacles() *Obstacles {
	return &Obstacles{items: make(map[string]Obstacle)}
}

// Attach registers a mesh and schedules a build against the current obstacle set.
func (o *Obstacles) Attach(mesh *Mesh) {
	if o == nil || mesh == nil {
		return
	}
	o.mu.Lock()
	o.meshes = append(o.meshes, mesh)
	snapshot := o.snapshotLocked()
	o.mu.Unlock()
	mesh.Rebuild(snapshot)
}

// Add registers an obstacle and returns its identifier. Obstacles without an
// ID receive a deterministic one derived from the registration order.
func (o *Obstacles) Add(obs Obstacle) string {
	if o == nil {
		return ""
	}
	o.mu.Lock()
	o.seq++
	if obs.ID == "" {
		obs.ID = uuid.NewSHA1(obstacleNamespace, []byte(fmt.Sprintf("%d", o.seq))).String()
	}
	if obs.Kind == "" {
		obs.Kind = ObstacleRect
	}
	if _, exists := o.items[obs.ID]; !exists {
		o.order = append(o.order, obs.ID)
	}
	o.items[obs.ID] = obs
	snapshot, meshes := o.snapshotLocked(), o.meshesLocked()
	o.mu.Unlock()

	for _, mesh := range meshes {
		mesh.Rebuild(snapshot)
	}
	return obs.ID
}

// Remove drops an obstacle, reporting whether it was registered.
func (o *Obstacles) Remove(id string) bool {
	if o == nil {
		return false
	}
	o.mu.Lock()
	if _, exists := o.items[id]; !exists {
		o.mu.Unlock()
		return false
	}
	delete(o.items, id)
	for i, existing := range o.order {
		if existing == id {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	snapshot, meshes := o.snapshotLocked(), o.meshesLocked()
	o.mu.Unlock()

	for _, mesh := range meshes {
		mesh.Rebuild(snapshot)
	}
	return true
}

// Snapshot returns the registered obstacles in registration order.
func (o *Obstacles) Snapshot() []Obstacle {
	if o == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Len reports the number of registered obstacles.
func (o *Obstacles) Len() int {
	if o == nil {
		return 0
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

func (o *Obstacles) snapshotLocked() []Obstacle {
	if len(o.order) == 0 {
		return nil
	}
	out := make([]Obstacle, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.items[id])
	}
	return out
}

func (o *Obstacles) meshesLocked() []*Mesh {
	return append([]*Mesh(nil), o.meshes...)
}
