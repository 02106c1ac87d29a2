package ws

import (
	"encoding/json"
	nethttp "net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/arthurgeek/croptails/internal/sim"
	"github.com/arthurgeek/croptails/internal/telemetry"
)

// Simulation is the part of the tick loop a websocket session talks to.
type Simulation interface {
	Latest() sim.Snapshot
	Enqueue(cmd sim.Command) (bool, string)
}

type clientMessage struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type commandRejectMessage struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
	Tick   uint64 `json:"tick,omitempty"`
}

type welcomeMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type HandlerConfig struct {
	Logger telemetry.Logger
	// ReadLimit caps the size of a single client message in bytes.
	ReadLimit int64
}

type Handler struct {
	hub      *Hub
	sim      Simulation
	logger   telemetry.Logger
	upgrader websocket.Upgrader
	limit    int64
}

func NewHandler(hub *Hub, simulation Simulation, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	limit := cfg.ReadLimit
	if limit <= 0 {
		limit = 4096
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		hub:      hub,
		sim:      simulation,
		logger:   logger,
		upgrader: upgrader,
		limit:    limit,
	}
}

// Handle upgrades the request, sends a welcome and the latest frame, then
// turns player messages into loop commands until the client disconnects.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed: %v", err)
		return
	}
	conn.SetReadLimit(h.limit)

	id := uuid.NewString()
	sub := h.hub.subscribe(id, conn)
	defer h.hub.unsubscribe(id, reasonClosed)

	if data, err := json.Marshal(welcomeMessage{Type: "welcome", ID: id}); err == nil {
		h.hub.queue(sub, data)
	}
	if h.sim != nil {
		if data, err := EncodeFrame(h.sim.Latest()); err == nil {
			h.hub.queue(sub, data)
		}
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", id, err)
			continue
		}

		switch msg.Type {
		case "player":
			h.handlePlayer(sub, msg)
		default:
			h.logger.Printf("discarding unknown message type %q from %s", msg.Type, id)
		}
	}
}

func (h *Handler) handlePlayer(sub *subscriber, msg clientMessage) {
	if h.sim == nil {
		return
	}
	cmd := sim.Command{
		ActorID:  sub.id,
		Type:     sim.CommandPlayerPosition,
		IssuedAt: time.Now(),
		Player:   &sim.PlayerCommand{X: msg.X, Y: msg.Y},
	}
	ok, reason := h.sim.Enqueue(cmd)
	if ok {
		return
	}
	data, err := json.Marshal(commandRejectMessage{
		Type:   "commandReject",
		Reason: reason,
		Tick:   h.sim.Latest().Tick,
	})
	if err != nil {
		return
	}
	h.hub.queue(sub, data)
}
