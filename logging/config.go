package logging

import (
	"fmt"
	"strings"
	"time"
)

// Config controls which events reach the sinks.
type Config struct {
	// BufferSize is the per-sink backlog. Events beyond it are dropped.
	BufferSize      int
	MinimumSeverity Severity
	// Categories overrides MinimumSeverity for one event category, for
	// example navigation at debug to trace a single herd.
	Categories map[string]Severity
	// Fields are attached to every event that does not already set them.
	Fields  map[string]any
	JSON    JSONConfig
	Console ConsoleConfig
}

type JSONConfig struct {
	FilePath      string
	FlushInterval time.Duration
}

type ConsoleConfig struct {
	ReportTimestamp bool
}

func DefaultConfig() Config {
	return Config{
		BufferSize:      512,
		MinimumSeverity: SeverityInfo,
		Console:         ConsoleConfig{ReportTimestamp: true},
		JSON:            JSONConfig{FlushInterval: 2 * time.Second},
	}
}

// Threshold returns the lowest severity forwarded for category.
func (c Config) Threshold(category string) Severity {
	if severity, ok := c.Categories[category]; ok {
		return severity
	}
	return c.MinimumSeverity
}

// ParseCategoryLevels reads "navigation=debug,network=warn" into per-category
// thresholds. Unknown categories are rejected so typos surface at startup.
func ParseCategoryLevels(spec string) (map[string]Severity, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	levels := make(map[string]Severity)
	for _, pair := range strings.Split(spec, ",") {
		category, level, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("category level %q: want category=level", pair)
		}
		category = strings.ToLower(strings.TrimSpace(category))
		if !knownCategory(category) {
			return nil, fmt.Errorf("category level %q: unknown category %q", pair, category)
		}
		levels[category] = ParseSeverity(strings.TrimSpace(level))
	}
	return levels, nil
}

func knownCategory(category string) bool {
	switch category {
	case CategoryNavigation, CategorySimulation, CategoryNetwork, CategorySystem:
		return true
	}
	return false
}
