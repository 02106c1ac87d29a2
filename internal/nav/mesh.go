package nav

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/arthurgeek/croptails/internal/geom"
)

const (
	// DefaultAgentRadius is the clearance baked into every navmesh.
	DefaultAgentRadius = 3.0
	// DefaultCellSize is the edge length of a navmesh grid cell in world units.
	DefaultCellSize = 4.0
)

// Status reports whether a mesh can answer path queries.
type Status int

const (
	StatusPending Status = iota
	StatusBuilt
)

func (s Status) String() string {
	switch s {
	case StatusBuilt:
		return "built"
	default:
		return "pending"
	}
}

// BuildInfo describes a finished mesh build.
type BuildInfo struct {
	RegionID   string
	Generation uint64
	Walkable   int
	Cells      int
	Obstacles  int
	Duration   time.Duration
}

// MeshConfig tunes mesh rasterization.
type MeshConfig struct {
	AgentRadius float64
	CellSize    float64
	// OnBuilt runs on the build goroutine after a new grid is published.
	OnBuilt func(BuildInfo)
}

func (c MeshConfig) normalized() MeshConfig {
	if c.AgentRadius <= 0 {
		c.AgentRadius = DefaultAgentRadius
	}
	if c.CellSize <= 0 {
		c.CellSize = DefaultCellSize
	}
	return c
}

// Mesh is the navigation mesh of one region. Builds run asynchronously and
// the finished grid is published under the lock; path queries never block on
// a build.
type Mesh struct {
	region *Region
	cfg    MeshConfig

	mu         sync.RWMutex
	grid       *navGrid
	status     Status
	generation uint64
	built      uint64
	obstacles  []Obstacle
	ready      chan struct{}

	group singleflight.Group
}

// NewMesh creates a pending mesh for region. Nothing is built until Rebuild
// is called, usually through Obstacles.Attach.
func NewMesh(region *Region, cfg MeshConfig) *Mesh {
	return &Mesh{
		region: region,
		cfg:    cfg.normalized(),
		status: StatusPending,
		ready:  make(chan struct{}),
	}
}

// Region returns the polygon the mesh was derived from.
func (m *Mesh) Region() *Region {
	if m == nil {
		return nil
	}
	return m.region
}

// Status reports the current build status.
func (m *Mesh) Status() Status {
	if m == nil {
		return StatusPending
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Generation returns the generation of the most recently published grid.
func (m *Mesh) Generation() uint64 {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.built
}

// Path computes a waypoint list from one point to another. It fails while the
// mesh is pending, when the target is not walkable, or when no route exists.
func (m *Mesh) Path(from, to geom.Vec2) ([]geom.Vec2, bool) {
	if m == nil {
		return nil, false
	}
	m.mu.RLock()
	grid, status := m.grid, m.status
	m.mu.RUnlock()
	if status != StatusBuilt || grid == nil {
		return nil, false
	}
	return grid.findPath(from, to)
}

// Rebuild marks the mesh pending and schedules a build against obstacles.
// Concurrent requests coalesce into one in-flight build which loops until it
// has published the newest obstacle set.
func (m *Mesh) Rebuild(obstacles []Obstacle) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.obstacles = append([]Obstacle(nil), obstacles...)
	m.generation++
	if m.status == StatusBuilt {
		m.status = StatusPending
		m.ready = make(chan struct{})
	}
	m.mu.Unlock()

	go func() {
		for m.Status() != StatusBuilt {
			_, _, _ = m.group.Do("build", m.buildLatest)
		}
	}()
}

func (m *Mesh) buildLatest() (any, error) {
	for {
		m.mu.RLock()
		gen, obstacles := m.generation, m.obstacles
		current := m.status == StatusBuilt
		m.mu.RUnlock()
		if current {
			return nil, nil
		}

		start := time.Now()
		grid := newNavGrid(m.region, obstacles, m.cfg.AgentRadius, m.cfg.CellSize)
		elapsed := time.Since(start)

		m.mu.Lock()
		if m.status == StatusBuilt && m.built == m.generation {
			// A build from the same burst already published.
			grid = m.grid
			m.mu.Unlock()
			return grid, nil
		}
		if gen != m.generation {
			m.mu.Unlock()
			continue
		}
		m.grid = grid
		m.status = StatusBuilt
		m.built = gen
		close(m.ready)
		m.mu.Unlock()

		if m.cfg.OnBuilt != nil {
			regionID := ""
			if m.region != nil {
				regionID = m.region.ID
			}
			m.cfg.OnBuilt(BuildInfo{
				RegionID:   regionID,
				Generation: gen,
				Walkable:   grid.open,
				Cells:      grid.cols * grid.rows,
				Obstacles:  len(obstacles),
				Duration:   elapsed,
			})
		}
		return grid, nil
	}
}

// Wait blocks until the mesh is built or ctx is done. It is meant for startup
// and tests; the simulation tick only polls Status.
func (m *Mesh) Wait(ctx context.Context) error {
	if m == nil {
		return context.Canceled
	}
	for {
		m.mu.RLock()
		status, ready := m.status, m.ready
		m.mu.RUnlock()
		if status == StatusBuilt {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ready:
		}
	}
}
