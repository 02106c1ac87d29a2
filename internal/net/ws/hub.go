package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/arthurgeek/croptails/internal/sim"
	"github.com/arthurgeek/croptails/internal/telemetry"
	"github.com/arthurgeek/croptails/logging"
	lognet "github.com/arthurgeek/croptails/logging/network"
)

const (
	defaultSendBuffer   = 8
	defaultWriteTimeout = 2 * time.Second

	reasonClosed      = "closed"
	reasonWriteFailed = "write_failed"
	reasonHubShutdown = "shutdown"
)

// frameMessage is broadcast to every subscriber after each tick.
type frameMessage struct {
	Type string `json:"type"`
	sim.Snapshot
}

// EncodeFrame renders a snapshot as a websocket frame payload.
func EncodeFrame(snapshot sim.Snapshot) ([]byte, error) {
	if snapshot.Agents == nil {
		snapshot.Agents = []sim.AgentSnapshot{}
	}
	return json.Marshal(frameMessage{Type: "frame", Snapshot: snapshot})
}

// HubConfig tunes subscriber fan-out.
type HubConfig struct {
	SendBuffer   int
	WriteTimeout time.Duration
	Logger       telemetry.Logger
	Metrics      telemetry.Metrics
	Publisher    logging.Publisher
}

// Hub fans tick frames out to every connected subscriber. Each subscriber has
// its own writer goroutine, so a slow client only loses its own frames.
type Hub struct {
	cfg HubConfig

	mu      sync.Mutex
	clients map[string]*subscriber
	dropped uint64
	tick    uint64
}

type subscriber struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// NewHub constructs an empty hub.
func NewHub(cfg HubConfig) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.LoggerFunc(nil)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NopMetrics()
	}
	if cfg.Publisher == nil {
		cfg.Publisher = logging.NopPublisher()
	}
	return &Hub{cfg: cfg, clients: make(map[string]*subscriber)}
}

// Clients reports the number of live subscribers.
func (h *Hub) Clients() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped reports how many frames were skipped because a subscriber's queue
// was full.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Broadcast encodes snapshot once and queues it for every subscriber without
// blocking the caller.
func (h *Hub) Broadcast(snapshot sim.Snapshot) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.tick = snapshot.Tick
	empty := len(h.clients) == 0
	h.mu.Unlock()
	if empty {
		return
	}

	data, err := EncodeFrame(snapshot)
	if err != nil {
		h.cfg.Logger.Printf("failed to encode frame for tick %d: %v", snapshot.Tick, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.clients {
		select {
		case sub.send <- data:
		default:
			h.dropped++
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	if h == nil {
		return
	}
	h.mu.Lock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	h.mu.Unlock()
	for _, id := range ids {
		h.unsubscribe(id, reasonHubShutdown)
	}
}

func (h *Hub) subscribe(id string, conn *websocket.Conn) *subscriber {
	sub := &subscriber{
		id:   id,
		conn: conn,
		send: make(chan []byte, h.cfg.SendBuffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[id] = sub
	count, tick := len(h.clients), h.tick
	h.mu.Unlock()
	h.cfg.Metrics.Store(telemetry.MetricWebsocketClients, uint64(count))
	lognet.SubscriberJoined(context.Background(), h.cfg.Publisher, tick, logging.PlayerRef(id), lognet.SubscriberPayload{Clients: count}, nil)

	go h.writePump(sub)
	return sub
}

// unsubscribe removes the subscriber and stops its writer. Repeated calls are
// no-ops.
func (h *Hub) unsubscribe(id, reason string) {
	h.mu.Lock()
	sub, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	count, tick := len(h.clients), h.tick
	h.mu.Unlock()
	if !ok {
		return
	}
	close(sub.done)
	sub.conn.Close()
	h.cfg.Metrics.Store(telemetry.MetricWebsocketClients, uint64(count))
	lognet.SubscriberLeft(context.Background(), h.cfg.Publisher, tick, logging.PlayerRef(id), lognet.SubscriberPayload{Clients: count, Reason: reason}, nil)
}

// queue sends a direct reply to one subscriber. It reports false when the
// subscriber is gone or backed up.
func (h *Hub) queue(sub *subscriber, data []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[sub.id]; !ok {
		return false
	}
	select {
	case sub.send <- data:
		return true
	default:
		return false
	}
}

func (h *Hub) writePump(sub *subscriber) {
	for {
		select {
		case <-sub.done:
			return
		case data := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.cfg.Logger.Printf("write failed for %s: %v", sub.id, err)
				h.unsubscribe(sub.id, reasonWriteFailed)
				return
			}
		}
	}
}
