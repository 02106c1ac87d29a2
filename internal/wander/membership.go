package wander

import (
	"context"

	"github.com/arthurgeek/croptails/internal/nav"
	"github.com/arthurgeek/croptails/logging"
	lognav "github.com/arthurgeek/croptails/logging/navigation"
)

// Resolver assigns each new agent to the first registered region containing
// its spawn position.
type Resolver struct {
	regions   []*nav.Region
	publisher logging.Publisher
}

func NewResolver(regions []*nav.Region, publisher logging.Publisher) *Resolver {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Resolver{regions: append([]*nav.Region(nil), regions...), publisher: publisher}
}

// Regions returns the regions in registration order.
func (r *Resolver) Regions() []*nav.Region {
	return append([]*nav.Region(nil), r.regions...)
}

// Resolve runs membership for agents that have not been resolved yet and
// reports how many were assigned and how many were left without a region.
// Unassigned agents are warned about once and then stay idle.
func (r *Resolver) Resolve(ctx context.Context, tick uint64, agents []*Agent) (assigned, orphaned int) {
	for _, a := range agents {
		if a.resolved {
			continue
		}
		if region := r.find(a); region != nil {
			a.AssignRegion(region)
			assigned++
			continue
		}
		a.markUnassigned()
		orphaned++
		lognav.RegionUnassigned(ctx, r.publisher, tick, logging.AgentRef(a.ID), lognav.RegionUnassignedPayload{
			X:       a.Position.X,
			Y:       a.Position.Y,
			Regions: len(r.regions),
		}, map[string]any{"species": a.Species})
	}
	return assigned, orphaned
}

func (r *Resolver) find(a *Agent) *nav.Region {
	for _, region := range r.regions {
		if region.Contains(a.Position) {
			return region
		}
	}
	return nil
}
