package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/metric"
)

const (
	MetricTicks              = "croptails.sim.ticks"
	MetricCatchupSteps       = "croptails.sim.catchup_steps"
	MetricCatchupClamped     = "croptails.sim.catchup_clamped"
	MetricAgentsWalking      = "croptails.agents.walking"
	MetricAgentsIdle         = "croptails.agents.idle"
	MetricAgentsUnassigned   = "croptails.agents.unassigned"
	MetricPathFailures       = "croptails.nav.path_failures"
	MetricMeshBuilds         = "croptails.nav.mesh_builds"
	MetricObstacles          = "croptails.nav.obstacles"
	MetricCommandQueueDepth  = "croptails.commands.depth"
	MetricCommandOverflow    = "croptails.commands.overflow"
	MetricCommandCoalesced   = "croptails.commands.coalesced"
	MetricCommandRateLimited = "croptails.commands.rate_limited"
	MetricWebsocketClients   = "croptails.ws.clients"
)

// Registry records metrics on an OpenTelemetry meter and keeps an in-memory
// copy for the diagnostics endpoint. Add keys become counters and Store keys
// become gauges.
type Registry struct {
	meter metric.Meter

	mu       sync.Mutex
	values   map[string]uint64
	counters map[string]metric.Int64Counter
	gauges   map[string]metric.Int64Gauge
}

// NewRegistry records against meter. A nil meter keeps values in memory only.
func NewRegistry(meter metric.Meter) *Registry {
	return &Registry{
		meter:    meter,
		values:   make(map[string]uint64),
		counters: make(map[string]metric.Int64Counter),
		gauges:   make(map[string]metric.Int64Gauge),
	}
}

func (r *Registry) Add(key string, delta uint64) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.values[key] += delta
	counter := r.counter(key)
	r.mu.Unlock()
	if counter != nil {
		counter.Add(context.Background(), int64(delta))
	}
}

func (r *Registry) Store(key string, value uint64) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.values[key] = value
	gauge := r.gauge(key)
	r.mu.Unlock()
	if gauge != nil {
		gauge.Record(context.Background(), int64(value))
	}
}

// Snapshot copies the current in-memory values.
func (r *Registry) Snapshot() map[string]uint64 {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]uint64, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

func (r *Registry) counter(key string) metric.Int64Counter {
	if r.meter == nil {
		return nil
	}
	if c, ok := r.counters[key]; ok {
		return c
	}
	c, err := r.meter.Int64Counter(key)
	if err != nil {
		return nil
	}
	r.counters[key] = c
	return c
}

func (r *Registry) gauge(key string) metric.Int64Gauge {
	if r.meter == nil {
		return nil
	}
	if g, ok := r.gauges[key]; ok {
		return g
	}
	g, err := r.meter.Int64Gauge(key)
	if err != nil {
		return nil
	}
	r.gauges[key] = g
	return g
}
