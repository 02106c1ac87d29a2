package net

import (
	"encoding/json"
	"io"
	"math"
	nethttp "net/http"
	"time"

	"github.com/google/uuid"

	"github.com/arthurgeek/croptails/internal/geom"
	"github.com/arthurgeek/croptails/internal/nav"
	"github.com/arthurgeek/croptails/internal/net/ws"
	"github.com/arthurgeek/croptails/internal/sim"
	"github.com/arthurgeek/croptails/internal/telemetry"
	"github.com/arthurgeek/croptails/internal/wander"
	"github.com/arthurgeek/croptails/logging"
)

type HTTPHandlerConfig struct {
	Loop    *sim.Loop
	World   *sim.World
	Hub     *ws.Hub
	Metrics *telemetry.Registry
	Router  *logging.Router
	Logger  telemetry.Logger
}

type obstacleRequest struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Radius float64 `json:"radius"`
}

func (r obstacleRequest) obstacle() (nav.Obstacle, bool) {
	switch {
	case r.Radius > 0:
		return nav.CircleObstacle(geom.Vec2{X: r.X, Y: r.Y}, r.Radius), true
	case r.Width > 0 && r.Height > 0:
		return nav.RectObstacle(geom.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}), true
	default:
		return nav.Obstacle{}, false
	}
}

type commandResponse struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
	Tick   uint64 `json:"tick"`
}

func NewHTTPHandler(cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string               `json:"status"`
			ServerTime int64                `json:"serverTime"`
			Tick       uint64               `json:"tick"`
			TickRate   int                  `json:"tickRate"`
			Agents     int                  `json:"agents"`
			Walking    int                  `json:"walking"`
			Pending    int                  `json:"pendingCommands"`
			Meshes     []sim.MeshInfo       `json:"meshes"`
			Obstacles  int                  `json:"obstacles"`
			Clients    int                  `json:"websocketClients"`
			Metrics    map[string]uint64    `json:"metrics,omitempty"`
			Logging    *logging.RouterStats `json:"logging,omitempty"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			Meshes:     []sim.MeshInfo{},
			Clients:    cfg.Hub.Clients(),
			Metrics:    cfg.Metrics.Snapshot(),
		}
		if cfg.Loop != nil {
			latest := cfg.Loop.Latest()
			payload.Tick = latest.Tick
			payload.TickRate = int(math.Round(1 / cfg.Loop.FixedDelta()))
			payload.Agents = len(latest.Agents)
			for _, agent := range latest.Agents {
				if agent.State == wander.StateWalking {
					payload.Walking++
				}
			}
			payload.Pending = cfg.Loop.Pending()
		}
		if cfg.World != nil {
			payload.Meshes = cfg.World.Meshes()
			payload.Obstacles = cfg.World.Obstacles().Len()
		}
		if cfg.Router != nil {
			stats := cfg.Router.Stats()
			payload.Logging = &stats
		}

		writeJSON(w, nethttp.StatusOK, payload)
	})

	mux.HandleFunc("/obstacles", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if cfg.Loop == nil || cfg.World == nil {
			httpError(w, "simulation unavailable", nethttp.StatusServiceUnavailable)
			return
		}
		switch r.Method {
		case nethttp.MethodGet:
			writeJSON(w, nethttp.StatusOK, struct {
				Obstacles []nav.Obstacle `json:"obstacles"`
			}{Obstacles: cfg.World.Obstacles().Snapshot()})

		case nethttp.MethodPost:
			if r.Body == nil {
				httpError(w, "invalid payload", nethttp.StatusBadRequest)
				return
			}
			defer r.Body.Close()
			var req obstacleRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
				httpError(w, "invalid payload", nethttp.StatusBadRequest)
				return
			}
			obs, ok := req.obstacle()
			if !ok {
				httpError(w, "obstacle needs a positive radius or width and height", nethttp.StatusBadRequest)
				return
			}
			obs.ID = uuid.NewString()
			enqueue(w, cfg.Loop, logger, sim.Command{
				Type:     sim.CommandAddObstacle,
				IssuedAt: time.Now(),
				Obstacle: &obs,
			}, obs.ID)

		case nethttp.MethodDelete:
			id := r.URL.Query().Get("id")
			if id == "" {
				httpError(w, "missing id", nethttp.StatusBadRequest)
				return
			}
			enqueue(w, cfg.Loop, logger, sim.Command{
				Type:           sim.CommandRemoveObstacle,
				IssuedAt:       time.Now(),
				RemoveObstacle: &sim.RemoveObstacleCommand{ID: id},
			}, id)

		default:
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
		}
	})

	if cfg.Hub != nil {
		var simulation ws.Simulation
		if cfg.Loop != nil {
			simulation = cfg.Loop
		}
		handler := ws.NewHandler(cfg.Hub, simulation, ws.HandlerConfig{Logger: logger})
		mux.HandleFunc("/ws", handler.Handle)
	}

	return mux
}

func enqueue(w nethttp.ResponseWriter, loop *sim.Loop, logger telemetry.Logger, cmd sim.Command, id string) {
	cmd.OriginTick = loop.Latest().Tick
	if ok, reason := loop.Enqueue(cmd); !ok {
		logger.Printf("rejected %s command: %s", cmd.Type, reason)
		httpError(w, reason, nethttp.StatusServiceUnavailable)
		return
	}
	writeJSON(w, nethttp.StatusAccepted, commandResponse{Status: "queued", ID: id, Tick: cmd.OriginTick})
}

func writeJSON(w nethttp.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	data, _ := json.Marshal(struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}{Status: "error", Error: message})
	w.Write(data)
}
