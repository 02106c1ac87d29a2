package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	charmlog "github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	servernet "github.com/arthurgeek/croptails/internal/net"
	"github.com/arthurgeek/croptails/internal/net/ws"
	"github.com/arthurgeek/croptails/internal/sim"
	"github.com/arthurgeek/croptails/internal/species"
	"github.com/arthurgeek/croptails/internal/telemetry"
	"github.com/arthurgeek/croptails/internal/tiledmap"
	"github.com/arthurgeek/croptails/logging"
	loggingSinks "github.com/arthurgeek/croptails/logging/sinks"
)

// Server is a fully wired simulation with its HTTP surface.
type Server struct {
	World   *sim.World
	Loop    *sim.Loop
	Hub     *ws.Hub
	Router  *logging.Router
	Metrics *telemetry.Registry
	Handler http.Handler

	logger   telemetry.Logger
	shutdown telemetry.Shutdown
}

// Options overrides process-level collaborators, mainly for tests.
type Options struct {
	Version string
	// Console receives the human readable event stream. Defaults to stdout.
	Console io.Writer
	// Logger receives operational logs. Defaults to a stderr charm logger.
	Logger *charmlog.Logger
}

// Build loads the map and species tuning, spawns every agent and waits for
// the first navmesh builds. The loop is not started.
func Build(ctx context.Context, cfg Config, opts Options) (*Server, error) {
	charm := opts.Logger
	if charm == nil {
		charm = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
			Prefix:          "croptails",
			ReportTimestamp: true,
		})
		if level, err := charmlog.ParseLevel(cfg.LogLevel); err == nil {
			charm.SetLevel(level)
		}
	}
	logger := telemetry.WrapLogger(charm)

	shutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, opts.Version, cfg.OTELInsecure)
	if err != nil {
		return nil, err
	}
	metrics := telemetry.NewRegistry(telemetry.Meter("github.com/arthurgeek/croptails"))

	router, err := newRouter(cfg, opts)
	if err != nil {
		_ = shutdown(context.Background())
		return nil, err
	}

	srv := &Server{
		Router:   router,
		Metrics:  metrics,
		logger:   logger,
		shutdown: shutdown,
	}
	if err := srv.populate(ctx, cfg); err != nil {
		srv.Close(context.Background())
		return nil, err
	}
	return srv, nil
}

func newRouter(cfg Config, opts Options) (*logging.Router, error) {
	categories, err := logging.ParseCategoryLevels(cfg.LogCategories)
	if err != nil {
		return nil, err
	}
	logConfig := logging.DefaultConfig()
	logConfig.MinimumSeverity = logging.ParseSeverity(cfg.LogLevel)
	logConfig.Categories = categories
	logConfig.BufferSize = cfg.LogBuffer
	logConfig.Fields = map[string]any{"service": cfg.ServiceName, "map": filepath.Base(cfg.MapPath)}
	logConfig.JSON.FilePath = cfg.LogJSON

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	named := []logging.NamedSink{{
		Name: "console",
		Sink: loggingSinks.NewConsoleSink(console, logConfig.Console),
	}}
	if logConfig.JSON.FilePath != "" {
		file, err := os.OpenFile(logConfig.JSON.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open json event log: %w", err)
		}
		named = append(named, logging.NamedSink{
			Name: "json",
			Sink: loggingSinks.NewJSON(file, logConfig.JSON.FlushInterval),
		})
	}

	router, err := logging.NewRouter(logging.ClockFunc(time.Now), logConfig, named)
	if err != nil {
		return nil, fmt.Errorf("failed to construct logging router: %w", err)
	}
	return router, nil
}

func (s *Server) populate(ctx context.Context, cfg Config) error {
	catalog, err := species.Load(cfg.SpeciesPath)
	if err != nil {
		return err
	}
	known := func(name string) bool {
		_, err := catalog.Lookup(name)
		return err == nil
	}

	simCfg := sim.DefaultConfig()
	simCfg.Seed = cfg.Seed

	m, err := tiledmap.Load(cfg.MapPath, simCfg.EdgeMargin, known)
	if err != nil {
		return err
	}
	if err := m.Validate(); errors.Is(err, tiledmap.ErrNoRegions) {
		s.logger.Printf("map %s has no navigation regions; every agent will stay idle", cfg.MapPath)
	}

	s.World = sim.NewWorld(simCfg, m.Regions, sim.Deps{
		Publisher: s.Router,
		Metrics:   s.Metrics,
		Logger:    s.logger,
		Clock:     logging.ClockFunc(time.Now),
	})
	for _, obs := range m.Obstacles {
		s.World.AddObstacle(obs)
	}
	for _, spawn := range m.Spawns {
		tuning, err := catalog.Lookup(spawn.Species)
		if err != nil {
			return fmt.Errorf("spawn at %v: %w", spawn.Position, err)
		}
		s.World.Spawn(spawn.Species, spawn.Position, tuning.Wander, tuning.Cycles)
	}
	if m.Player != nil {
		s.World.SetPlayer(*m.Player)
	}

	waitCtx, cancel := context.WithTimeout(ctx, cfg.MeshTimeout)
	defer cancel()
	if err := s.World.WaitForMeshes(waitCtx); err != nil {
		return err
	}
	s.logger.Printf("loaded %s: %d regions, %d obstacles, %d agents",
		cfg.MapPath, len(m.Regions), len(m.Obstacles), len(s.World.Agents()))

	s.Hub = ws.NewHub(ws.HubConfig{Logger: s.logger, Metrics: s.Metrics, Publisher: s.Router})
	s.Loop = sim.NewLoop(s.World, sim.LoopConfig{
		TickRate:        cfg.TickRate,
		CatchupMaxTicks: cfg.CatchupMaxTicks,
		CommandCapacity: cfg.CommandCapacity,
		PerActorLimit:   cfg.PerActorLimit,
		WarningStep:     cfg.CommandCapacity / 4,
	}, sim.LoopHooks{
		AfterStep: func(result sim.LoopStepResult) {
			s.Hub.Broadcast(result.Snapshot)
		},
		OnQueueWarning: func(length int) {
			s.logger.Printf("[backpressure] command queue length=%d capacity=%d", length, cfg.CommandCapacity)
		},
	})
	s.Handler = servernet.NewHTTPHandler(servernet.HTTPHandlerConfig{
		Loop:    s.Loop,
		World:   s.World,
		Hub:     s.Hub,
		Metrics: s.Metrics,
		Router:  s.Router,
		Logger:  s.logger,
	})
	return nil
}

// Close disconnects subscribers, flushes the event log and stops exporters.
func (s *Server) Close(ctx context.Context) error {
	s.Hub.Close()
	var errs []error
	if s.Router != nil {
		if err := s.Router.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close logging router: %w", err))
		}
	}
	if s.shutdown != nil {
		if err := s.shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Run builds the server, then drives the tick loop and serves HTTP until ctx
// is cancelled or either fails.
func Run(ctx context.Context, cfg Config, opts Options) error {
	srv, err := Build(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if cerr := srv.Close(closeCtx); cerr != nil {
			srv.logger.Printf("shutdown: %v", cerr)
		}
	}()
	return srv.Serve(ctx, cfg)
}

// Serve runs the loop and the HTTP listener in one errgroup.
func (s *Server) Serve(ctx context.Context, cfg Config) error {
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Loop.Run(gctx)
	})
	g.Go(func() error {
		s.logger.Printf("server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}
