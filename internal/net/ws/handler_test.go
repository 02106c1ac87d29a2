package ws

import (
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthurgeek/croptails/internal/geom"
	"github.com/arthurgeek/croptails/internal/sim"
	"github.com/arthurgeek/croptails/internal/telemetry"
	"github.com/arthurgeek/croptails/internal/wander"
	"github.com/arthurgeek/croptails/logging"
	"github.com/arthurgeek/croptails/logging/network"
	"github.com/arthurgeek/croptails/logging/sinks"
)

type stubSimulation struct {
	mu       sync.Mutex
	latest   sim.Snapshot
	commands []sim.Command
	reject   string
}

func (s *stubSimulation) Latest() sim.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

func (s *stubSimulation) Enqueue(cmd sim.Command) (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject != "" {
		return false, s.reject
	}
	s.commands = append(s.commands, cmd)
	return true, ""
}

func (s *stubSimulation) Commands() []sim.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sim.Command(nil), s.commands...)
}

func dial(t *testing.T, hub *Hub, simulation Simulation) *websocket.Conn {
	t.Helper()
	handler := NewHandler(hub, simulation, HandlerConfig{})
	srv := httptest.NewServer(nethttp.HandlerFunc(handler.Handle))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if resp != nil {
		t.Cleanup(func() { resp.Body.Close() })
	}
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(payload, &out))
	return out
}

func TestEncodeFrame(t *testing.T) {
	dest := geom.Vec2{X: 9, Y: 9}
	data, err := EncodeFrame(sim.Snapshot{
		Tick: 12,
		Agents: []sim.AgentSnapshot{{
			ID:          "a",
			Species:     "cow",
			Position:    geom.Vec2{X: 1, Y: 2},
			Facing:      wander.FacingLeft,
			State:       wander.StateWalking,
			Destination: &dest,
		}},
		Player: &geom.Vec2{X: 3, Y: 4},
	})
	require.NoError(t, err)

	var frame struct {
		Type   string              `json:"type"`
		Tick   uint64              `json:"tick"`
		Agents []sim.AgentSnapshot `json:"agents"`
		Player *geom.Vec2          `json:"player"`
	}
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.Equal(t, "frame", frame.Type)
	assert.Equal(t, uint64(12), frame.Tick)
	require.Len(t, frame.Agents, 1)
	assert.Equal(t, "cow", frame.Agents[0].Species)
	assert.Equal(t, &dest, frame.Agents[0].Destination)
	assert.Equal(t, &geom.Vec2{X: 3, Y: 4}, frame.Player)

	empty, err := EncodeFrame(sim.Snapshot{})
	require.NoError(t, err)
	assert.Contains(t, string(empty), `"agents":[]`)
}

func TestHandleSendsWelcomeAndLatestFrame(t *testing.T) {
	simulation := &stubSimulation{latest: sim.Snapshot{Tick: 5}}
	registry := telemetry.NewRegistry(nil)
	hub := NewHub(HubConfig{Metrics: registry})
	conn := dial(t, hub, simulation)

	welcome := readJSON(t, conn)
	assert.Equal(t, "welcome", welcome["type"])
	assert.NotEmpty(t, welcome["id"])

	frame := readJSON(t, conn)
	assert.Equal(t, "frame", frame["type"])
	assert.Equal(t, float64(5), frame["tick"])

	assert.Equal(t, 1, hub.Clients())
	assert.Equal(t, uint64(1), registry.Snapshot()[telemetry.MetricWebsocketClients])
}

func TestHandleEnqueuesPlayerPosition(t *testing.T) {
	simulation := &stubSimulation{}
	hub := NewHub(HubConfig{})
	conn := dial(t, hub, simulation)
	welcome := readJSON(t, conn)
	readJSON(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "player", "x": 12.5, "y": -3}))

	require.Eventually(t, func() bool { return len(simulation.Commands()) == 1 }, 5*time.Second, 10*time.Millisecond)
	cmd := simulation.Commands()[0]
	assert.Equal(t, sim.CommandPlayerPosition, cmd.Type)
	assert.Equal(t, welcome["id"], cmd.ActorID)
	assert.Equal(t, &sim.PlayerCommand{X: 12.5, Y: -3}, cmd.Player)
}

func TestHandleReportsRejectedCommands(t *testing.T) {
	simulation := &stubSimulation{reject: sim.CommandRejectQueueLimit, latest: sim.Snapshot{Tick: 3}}
	hub := NewHub(HubConfig{})
	conn := dial(t, hub, simulation)
	readJSON(t, conn)
	readJSON(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "player", "x": 1, "y": 1}))
	reject := readJSON(t, conn)
	assert.Equal(t, "commandReject", reject["type"])
	assert.Equal(t, sim.CommandRejectQueueLimit, reject["reason"])
	assert.Equal(t, float64(3), reject["tick"])
}

func TestBroadcastReachesSubscribers(t *testing.T) {
	hub := NewHub(HubConfig{})
	first := dial(t, hub, nil)
	second := dial(t, hub, nil)
	readJSON(t, first)
	readJSON(t, second)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, 5*time.Second, 10*time.Millisecond)

	hub.Broadcast(sim.Snapshot{Tick: 42})
	for _, conn := range []*websocket.Conn{first, second} {
		frame := readJSON(t, conn)
		assert.Equal(t, "frame", frame["type"])
		assert.Equal(t, float64(42), frame["tick"])
	}
}

func TestHubUnsubscribesOnDisconnect(t *testing.T) {
	registry := telemetry.NewRegistry(nil)
	memory := sinks.NewMemorySink()
	hub := NewHub(HubConfig{Metrics: registry, Publisher: memory})
	conn := dial(t, hub, nil)
	welcome := readJSON(t, conn)
	require.Equal(t, 1, hub.Clients())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return len(memory.EventsOfType(network.EventSubscriberLeft)) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Zero(t, hub.Clients())
	assert.Equal(t, uint64(0), registry.Snapshot()[telemetry.MetricWebsocketClients])

	joined := memory.EventsOfType(network.EventSubscriberJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, logging.PlayerRef(welcome["id"].(string)), joined[0].Actor)
	assert.Equal(t, network.SubscriberPayload{Clients: 1}, joined[0].Payload)
	left := memory.EventsOfType(network.EventSubscriberLeft)
	require.Len(t, left, 1)
	assert.Equal(t, network.SubscriberPayload{Clients: 0, Reason: reasonClosed}, left[0].Payload)

	hub.Broadcast(sim.Snapshot{Tick: 1})
	hub.Close()
}

func TestNilHub(t *testing.T) {
	var hub *Hub
	assert.Zero(t, hub.Clients())
	hub.Broadcast(sim.Snapshot{})
	hub.Close()
}
