package logging

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const (
	minSinkBuffer  = 32
	maxSinkBackoff = 30 * time.Second
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

type NamedSink struct {
	Name string
	Sink Sink
}

// Router filters events by category threshold and hands them to one worker
// per sink. Publish never blocks the tick: a sink that falls behind loses
// events and the loss is counted per category.
type Router struct {
	cfg      Config
	clock    Clock
	fallback *log.Logger

	mu      sync.RWMutex
	closed  bool
	workers []*sinkWorker
	wg      sync.WaitGroup

	statsMu  sync.Mutex
	stats    map[string]*CategoryStats
	filtered uint64
}

// CategoryStats counts what happened to the events of one category.
type CategoryStats struct {
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
}

// RouterStats is surfaced on the diagnostics endpoint.
type RouterStats struct {
	EventsTotal  uint64                   `json:"eventsTotal"`
	DroppedTotal uint64                   `json:"droppedTotal"`
	Filtered     uint64                   `json:"filtered"`
	Categories   map[string]CategoryStats `json:"categories,omitempty"`
}

// NewRouter starts one worker per sink. Nil sinks are skipped.
func NewRouter(clock Clock, cfg Config, namedSinks []NamedSink) (*Router, error) {
	if clock == nil {
		clock = ClockFunc(time.Now)
	}
	buffer := cfg.BufferSize
	if buffer < minSinkBuffer {
		buffer = minSinkBuffer
	}
	if len(cfg.Fields) > 0 {
		fields := make(map[string]any, len(cfg.Fields))
		for k, v := range cfg.Fields {
			fields[k] = v
		}
		cfg.Fields = fields
	}

	r := &Router{
		cfg:      cfg,
		clock:    clock,
		fallback: log.NewWithOptions(os.Stderr, log.Options{Prefix: "events", ReportTimestamp: true}),
		stats:    make(map[string]*CategoryStats),
	}
	for _, named := range namedSinks {
		if named.Sink == nil {
			continue
		}
		w := &sinkWorker{
			name:     named.Name,
			sink:     named.Sink,
			events:   make(chan Event, buffer),
			fallback: r.fallback,
		}
		r.workers = append(r.workers, w)
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			w.run()
		}()
	}
	return r, nil
}

// Publish stamps event with the router clock and the configured fields and
// queues it for every sink.
func (r *Router) Publish(_ context.Context, event Event) {
	if event.Type == "" {
		return
	}
	category := event.Category
	if category == "" {
		category = CategorySystem
	}
	if event.Severity < r.cfg.Threshold(category) {
		r.statsMu.Lock()
		r.filtered++
		r.statsMu.Unlock()
		return
	}
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	event = mergeFields(event, r.cfg.Fields)

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return
	}
	dropped := 0
	for _, w := range r.workers {
		if !w.offer(event) {
			dropped++
		}
	}
	r.mu.RUnlock()

	r.statsMu.Lock()
	stats := r.stats[category]
	if stats == nil {
		stats = &CategoryStats{}
		r.stats[category] = stats
	}
	stats.Published++
	stats.Dropped += uint64(dropped)
	total := stats.Dropped
	r.statsMu.Unlock()

	// Report the first drop of a category and every power of two after it.
	if dropped > 0 && total&(total-1) == 0 {
		r.fallback.Warn("sink backlog full", "category", category, "type", event.Type, "tick", event.Tick, "dropped", total)
	}
}

// Close stops accepting events, lets every worker drain its backlog and
// closes the sinks. Repeated calls return nil.
func (r *Router) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	for _, w := range r.workers {
		close(w.events)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	var firstErr error
	for _, w := range r.workers {
		if err := w.sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stats copies the per-category counters.
func (r *Router) Stats() RouterStats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	out := RouterStats{Filtered: r.filtered, Categories: make(map[string]CategoryStats, len(r.stats))}
	for category, stats := range r.stats {
		out.Categories[category] = *stats
		out.EventsTotal += stats.Published
		out.DroppedTotal += stats.Dropped
	}
	return out
}

// Sink returns the sink registered under name, or nil.
func (r *Router) Sink(name string) Sink {
	for _, w := range r.workers {
		if w.name == name {
			return w.sink
		}
	}
	return nil
}

type sinkWorker struct {
	name     string
	sink     Sink
	events   chan Event
	fallback *log.Logger
}

func (w *sinkWorker) offer(event Event) bool {
	select {
	case w.events <- cloneEvent(event):
		return true
	default:
		return false
	}
}

// run writes until the channel is closed. After a failed write the worker
// waits before the next one, doubling the pause up to maxSinkBackoff.
func (w *sinkWorker) run() {
	var backoff time.Duration
	for event := range w.events {
		if backoff > 0 {
			time.Sleep(backoff)
		}
		if err := w.sink.Write(event); err != nil {
			backoff = min(max(2*backoff, time.Second), maxSinkBackoff)
			w.fallback.Error("sink write failed", "sink", w.name, "err", err, "retry", backoff)
			continue
		}
		backoff = 0
	}
}
