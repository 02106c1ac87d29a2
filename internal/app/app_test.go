package app

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthurgeek/croptails/internal/geom"
	"github.com/arthurgeek/croptails/internal/species"
	"github.com/arthurgeek/croptails/internal/telemetry"
	lognav "github.com/arthurgeek/croptails/logging/navigation"
)

const farmTMX = `<?xml version="1.0" encoding="UTF-8"?>
<map version="1.10" tiledversion="1.10.2" orientation="orthogonal" renderorder="right-down" width="20" height="15" tilewidth="16" tileheight="16" infinite="0" nextlayerid="4" nextobjectid="9">
 <objectgroup id="1" name="Navigation">
  <object id="1" name="pasture" type="NavigationRegion" x="16" y="16">
   <polygon points="0,0 200,0 200,160 0,160"/>
  </object>
 </objectgroup>
 <objectgroup id="2" name="Obstacles">
  <object id="2" x="100" y="60" width="16" height="16"/>
 </objectgroup>
 <objectgroup id="3" name="Entities">
  <object id="3" type="Chicken" x="40" y="50"/>
  <object id="4" type="Cow" x="150" y="120"/>
  <object id="5" type="Cow" x="400" y="400"/>
  <object id="6" name="Player" x="30" y="30"/>
 </objectgroup>
</map>
`

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	mapPath := filepath.Join(dir, "farm.tmx")
	require.NoError(t, os.WriteFile(mapPath, []byte(farmTMX), 0o644))
	return Config{
		Addr:            "127.0.0.1:0",
		ShutdownTimeout: 2 * time.Second,
		MapPath:         mapPath,
		Seed:            "app-test",
		TickRate:        64,
		CatchupMaxTicks: 4,
		CommandCapacity: 16,
		PerActorLimit:   4,
		MeshTimeout:     5 * time.Second,
		LogLevel:        "debug",
		LogJSON:         filepath.Join(dir, "events.jsonl"),
		LogBuffer:       256,
		ServiceName:     "croptails-test",
	}
}

func quietOptions() Options {
	return Options{Version: "test", Console: io.Discard, Logger: charmlog.New(io.Discard)}
}

func TestBuildWiresWorldFromMap(t *testing.T) {
	cfg := testConfig(t)
	srv, err := Build(context.Background(), cfg, quietOptions())
	require.NoError(t, err)

	agents := srv.World.Agents()
	require.Len(t, agents, 3)
	assert.Equal(t, species.Chicken, agents[0].Species)
	assert.Equal(t, species.Cow, agents[1].Species)
	assert.Equal(t, 1, srv.World.Obstacles().Len())
	assert.Equal(t, "map-2", srv.World.Obstacles().Snapshot()[0].ID)
	require.NotNil(t, srv.World.Snapshot().Player)
	assert.Equal(t, geom.Vec2{X: 30, Y: 30}, *srv.World.Snapshot().Player)

	meshes := srv.World.Meshes()
	require.Len(t, meshes, 1)
	assert.Equal(t, "built", meshes[0].Status)

	// The third cow stands outside every region.
	srv.Loop.Advance(context.Background())
	assert.Equal(t, uint64(1), srv.Metrics.Snapshot()[telemetry.MetricAgentsUnassigned])

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, srv.Close(context.Background()))

	file, err := os.Open(cfg.LogJSON)
	require.NoError(t, err)
	defer file.Close()
	var types []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var event struct {
			Type  string         `json:"type"`
			Extra map[string]any `json:"extra"`
		}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &event))
		types = append(types, event.Type)
		assert.Equal(t, "farm.tmx", event.Extra["map"])
	}
	assert.Contains(t, types, string(lognav.EventRegionUnassigned))
}

func TestBuildFailsOnMissingSpeciesFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.SpeciesPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := Build(context.Background(), cfg, quietOptions())
	require.Error(t, err)
}

func TestBuildFailsOnMissingMap(t *testing.T) {
	cfg := testConfig(t)
	cfg.MapPath = filepath.Join(t.TempDir(), "nope.tmx")
	_, err := Build(context.Background(), cfg, quietOptions())
	require.Error(t, err)
}

func TestServeStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	srv, err := Build(context.Background(), cfg, quietOptions())
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close(context.Background()) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, cfg) }()

	require.Eventually(t, func() bool { return srv.Loop.Latest().Tick > 0 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancellation")
	}
}
