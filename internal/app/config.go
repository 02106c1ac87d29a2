package app

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/arthurgeek/croptails/internal/sim"
	"github.com/arthurgeek/croptails/internal/wander"
	"github.com/arthurgeek/croptails/logging"
)

// Config holds the process configuration.
type Config struct {
	// Server settings.
	Addr            string
	ShutdownTimeout time.Duration

	// World settings.
	MapPath     string // Tiled .tmx map with navigation regions and spawns.
	SpeciesPath string // Optional YAML species tuning; defaults apply when empty.
	Seed        string

	// Loop settings.
	TickRate        int
	CatchupMaxTicks int
	CommandCapacity int
	PerActorLimit   int
	MeshTimeout     time.Duration // Upper bound on the initial navmesh builds.

	// Logging settings.
	LogLevel      string
	LogCategories string // Per-category overrides such as "navigation=debug".
	LogJSON       string // Path of the newline-delimited event log; empty disables it.
	LogBuffer     int

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string
}

// LoadConfig reads an optional .env file and then the environment.
func LoadConfig() (Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	cfg := Config{
		Addr:            envStr("CROPTAILS_ADDR", ":8080"),
		ShutdownTimeout: envDuration("CROPTAILS_SHUTDOWN_TIMEOUT", 5*time.Second),
		MapPath:         envStr("CROPTAILS_MAP", ""),
		SpeciesPath:     envStr("CROPTAILS_SPECIES", ""),
		Seed:            envStr("CROPTAILS_SEED", wander.DefaultSeed),
		TickRate:        envInt("CROPTAILS_TICK_RATE", sim.DefaultTickRate),
		CatchupMaxTicks: envInt("CROPTAILS_CATCHUP_MAX_TICKS", sim.DefaultCatchupMaxTicks),
		CommandCapacity: envInt("CROPTAILS_COMMAND_CAPACITY", sim.DefaultCommandCapacity),
		PerActorLimit:   envInt("CROPTAILS_PER_ACTOR_LIMIT", 8),
		LogLevel:        envStr("CROPTAILS_LOG_LEVEL", "info"),
		LogCategories:   envStr("CROPTAILS_LOG_CATEGORIES", ""),
		LogJSON:         envStr("CROPTAILS_LOG_JSON", ""),
		LogBuffer:       envInt("CROPTAILS_LOG_BUFFER", 512),
		MeshTimeout:     envDuration("CROPTAILS_MESH_TIMEOUT", 10*time.Second),
		OTELEndpoint:    envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:    envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:     envStr("OTEL_SERVICE_NAME", "croptails"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.MapPath == "" {
		return fmt.Errorf("config: CROPTAILS_MAP is required")
	}
	if c.Addr == "" {
		return fmt.Errorf("config: CROPTAILS_ADDR must not be empty")
	}
	if c.TickRate <= 0 {
		return fmt.Errorf("config: CROPTAILS_TICK_RATE must be positive")
	}
	if c.CatchupMaxTicks <= 0 {
		return fmt.Errorf("config: CROPTAILS_CATCHUP_MAX_TICKS must be positive")
	}
	if c.CommandCapacity <= 0 {
		return fmt.Errorf("config: CROPTAILS_COMMAND_CAPACITY must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("config: CROPTAILS_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.MeshTimeout <= 0 {
		return fmt.Errorf("config: CROPTAILS_MESH_TIMEOUT must be positive")
	}
	if _, err := logging.ParseCategoryLevels(c.LogCategories); err != nil {
		return fmt.Errorf("config: CROPTAILS_LOG_CATEGORIES: %w", err)
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
