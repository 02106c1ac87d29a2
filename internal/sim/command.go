package sim

import (
	"time"

	"github.com/arthurgeek/croptails/internal/nav"
)

// CommandType enumerates the supported simulation commands.
type CommandType string

const (
	CommandPlayerPosition CommandType = "PlayerPosition"
	CommandAddObstacle    CommandType = "AddObstacle"
	CommandRemoveObstacle CommandType = "RemoveObstacle"
)

// PlayerCommand carries the latest player position.
type PlayerCommand struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RemoveObstacleCommand names the obstacle to drop.
type RemoveObstacleCommand struct {
	ID string `json:"id"`
}

// Command represents an intent captured for processing on the next tick.
type Command struct {
	OriginTick     uint64                 `json:"originTick"`
	ActorID        string                 `json:"actorId"`
	Type           CommandType            `json:"type"`
	IssuedAt       time.Time              `json:"issuedAt"`
	Player         *PlayerCommand         `json:"player,omitempty"`
	Obstacle       *nav.Obstacle          `json:"obstacle,omitempty"`
	RemoveObstacle *RemoveObstacleCommand `json:"removeObstacle,omitempty"`
}
