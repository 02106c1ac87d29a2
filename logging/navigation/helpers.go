package navigation

import (
	"context"

	"github.com/arthurgeek/croptails/logging"
)

const (
	// EventRegionUnassigned is emitted once for an agent whose spawn point lies outside every region.
	EventRegionUnassigned logging.EventType = "navigation.region_unassigned"
	// EventWalkStarted is emitted when an idle agent starts a walking episode.
	EventWalkStarted logging.EventType = "navigation.walk_started"
	// EventIdleEntered is emitted when a walking agent finishes its cycles.
	EventIdleEntered logging.EventType = "navigation.idle_entered"
	// EventPathRetry is emitted on the first failed path query of a streak and then on powers of two.
	EventPathRetry logging.EventType = "navigation.path_retry"
	// EventMeshBuilt is emitted when a navmesh finishes building.
	EventMeshBuilt logging.EventType = "navigation.mesh_built"
)

// RegionUnassignedPayload records where the orphaned agent spawned.
type RegionUnassignedPayload struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Regions int     `json:"regions"`
}

// RegionUnassigned publishes a warning for an agent left without a region.
func RegionUnassigned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RegionUnassignedPayload, extra map[string]any) {
	publish(ctx, pub, EventRegionUnassigned, logging.SeverityWarn, tick, actor, payload, extra)
}

// WalkStartedPayload describes a new walking episode.
type WalkStartedPayload struct {
	Region      string  `json:"region"`
	TargetX     float64 `json:"targetX"`
	TargetY     float64 `json:"targetY"`
	Waypoints   int     `json:"waypoints"`
	Speed       float64 `json:"speed"`
	CycleTarget int     `json:"cycleTarget"`
}

// WalkStarted publishes a debug event when an agent leaves idle.
func WalkStarted(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload WalkStartedPayload, extra map[string]any) {
	publish(ctx, pub, EventWalkStarted, logging.SeverityDebug, tick, actor, payload, extra)
}

// IdleEnteredPayload describes the idle period an agent just started.
type IdleEnteredPayload struct {
	DurationSeconds float64 `json:"durationSeconds"`
	Cycles          int     `json:"cycles"`
}

// IdleEntered publishes a debug event when an agent returns to idle.
func IdleEntered(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload IdleEnteredPayload, extra map[string]any) {
	publish(ctx, pub, EventIdleEntered, logging.SeverityDebug, tick, actor, payload, extra)
}

// PathRetryPayload captures why a path could not be produced.
type PathRetryPayload struct {
	Reason   string `json:"reason"`
	Cycle    int    `json:"cycle"`
	Attempts uint64 `json:"attempts"`
}

const (
	ReasonMeshPending = "mesh_pending"
	ReasonNoPath      = "no_path"
)

// PathRetry publishes a debug event for a failed path query.
func PathRetry(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PathRetryPayload, extra map[string]any) {
	publish(ctx, pub, EventPathRetry, logging.SeverityDebug, tick, actor, payload, extra)
}

// MeshBuiltPayload reports the outcome of a navmesh build.
type MeshBuiltPayload struct {
	Generation     uint64  `json:"generation"`
	WalkableCells  int     `json:"walkableCells"`
	TotalCells     int     `json:"totalCells"`
	Obstacles      int     `json:"obstacles"`
	DurationMillis float64 `json:"durationMillis"`
}

// MeshBuilt publishes an info event for a finished navmesh build.
func MeshBuilt(ctx context.Context, pub logging.Publisher, region logging.EntityRef, payload MeshBuiltPayload, extra map[string]any) {
	publish(ctx, pub, EventMeshBuilt, logging.SeverityInfo, 0, region, payload, extra)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, tick uint64, actor logging.EntityRef, payload any, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryNavigation,
		Payload:  payload,
		Extra:    extra,
	})
}
