package sim

import (
	"github.com/arthurgeek/croptails/internal/nav"
	"github.com/arthurgeek/croptails/internal/wander"
)

// Config tunes navigation and steering for a world.
type Config struct {
	Seed               string
	ArrivalThreshold   float64
	SeparationRadius   float64
	SeparationStrength float64
	EdgeMargin         float64
	AgentRadius        float64
	CellSize           float64
}

// DefaultConfig returns the stock navigation tuning.
func DefaultConfig() Config {
	return Config{
		Seed:               wander.DefaultSeed,
		ArrivalThreshold:   wander.DefaultArrivalThreshold,
		SeparationRadius:   wander.DefaultSeparationRadius,
		SeparationStrength: wander.DefaultSeparationStrength,
		EdgeMargin:         nav.DefaultEdgeMargin,
		AgentRadius:        nav.DefaultAgentRadius,
		CellSize:           nav.DefaultCellSize,
	}
}

// Normalized fills unset or non-positive fields from DefaultConfig.
func (c Config) Normalized() Config {
	def := DefaultConfig()
	if c.Seed == "" {
		c.Seed = def.Seed
	}
	if c.ArrivalThreshold <= 0 {
		c.ArrivalThreshold = def.ArrivalThreshold
	}
	if c.SeparationRadius <= 0 {
		c.SeparationRadius = def.SeparationRadius
	}
	if c.SeparationStrength <= 0 {
		c.SeparationStrength = def.SeparationStrength
	}
	if c.EdgeMargin <= 0 {
		c.EdgeMargin = def.EdgeMargin
	}
	if c.AgentRadius <= 0 {
		c.AgentRadius = def.AgentRadius
	}
	if c.CellSize <= 0 {
		c.CellSize = def.CellSize
	}
	return c
}
