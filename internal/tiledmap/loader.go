// Package tiledmap extracts navigation regions, obstacles and spawn points
// from Tiled .tmx maps.
package tiledmap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lafriks/go-tiled"

	"github.com/arthurgeek/croptails/internal/geom"
	"github.com/arthurgeek/croptails/internal/nav"
)

const (
	regionMarker  = "navigationregion"
	obstacleGroup = "obstacles"
	playerMarker  = "player"
)

// ErrNoRegions reports a map without any navigation region.
var ErrNoRegions = errors.New("tiledmap: map has no navigation regions")

// Spawn is an animal placed on the map.
type Spawn struct {
	Species  string
	Position geom.Vec2
}

// Map is the navigation view of a Tiled map. Coordinates are Tiled pixels
// with y pointing down.
type Map struct {
	Width     float64
	Height    float64
	Regions   []*nav.Region
	Obstacles []nav.Obstacle
	Spawns    []Spawn
	Player    *geom.Vec2
}

// Validate reports ErrNoRegions for maps no agent could wander in.
func (m *Map) Validate() error {
	if m == nil || len(m.Regions) == 0 {
		return ErrNoRegions
	}
	return nil
}

// Load parses a .tmx file. known decides which object names or types are
// species spawns; a nil func accepts none.
func Load(path string, edgeMargin float64, known func(name string) bool) (*Map, error) {
	tm, err := tiled.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load tiled map %s: %w", path, err)
	}
	return FromTiled(tm, edgeMargin, known), nil
}

// FromTiled converts an already parsed map.
func FromTiled(tm *tiled.Map, edgeMargin float64, known func(name string) bool) *Map {
	out := &Map{
		Width:  float64(tm.Width * tm.TileWidth),
		Height: float64(tm.Height * tm.TileHeight),
	}
	for _, group := range tm.ObjectGroups {
		inObstacles := strings.EqualFold(group.Name, obstacleGroup)
		for _, obj := range group.Objects {
			switch {
			case matches(obj, regionMarker) && len(obj.Polygons) > 0:
				out.Regions = append(out.Regions, regionFrom(obj, edgeMargin))
			case inObstacles:
				out.Obstacles = append(out.Obstacles, obstacleFrom(obj))
			case matches(obj, playerMarker):
				pos := geom.Vec2{X: obj.X, Y: obj.Y}
				out.Player = &pos
			default:
				if name, ok := speciesOf(obj, known); ok {
					out.Spawns = append(out.Spawns, Spawn{Species: name, Position: geom.Vec2{X: obj.X, Y: obj.Y}})
				}
			}
		}
	}
	return out
}

func matches(obj *tiled.Object, marker string) bool {
	return strings.EqualFold(obj.Name, marker) || strings.EqualFold(obj.Type, marker)
}

func speciesOf(obj *tiled.Object, known func(string) bool) (string, bool) {
	if known == nil {
		return "", false
	}
	for _, candidate := range []string{obj.Type, obj.Name} {
		name := strings.ToLower(strings.TrimSpace(candidate))
		if name != "" && known(name) {
			return name, true
		}
	}
	return "", false
}

// regionFrom offsets every polygon point by the object origin. Only the first
// polygon of an object is used.
func regionFrom(obj *tiled.Object, edgeMargin float64) *nav.Region {
	var vertices []geom.Vec2
	if poly := obj.Polygons[0]; poly != nil && poly.Points != nil {
		for _, p := range *poly.Points {
			vertices = append(vertices, geom.Vec2{X: obj.X + p.X, Y: obj.Y + p.Y})
		}
	}
	id := obj.Name
	if id == "" || strings.EqualFold(id, regionMarker) {
		id = fmt.Sprintf("region-%d", obj.ID)
	}
	return nav.NewRegion(id, vertices, edgeMargin)
}

func obstacleFrom(obj *tiled.Object) nav.Obstacle {
	id := fmt.Sprintf("map-%d", obj.ID)
	if len(obj.Ellipses) > 0 {
		radius := obj.Width / 2
		if obj.Height/2 > radius {
			radius = obj.Height / 2
		}
		obs := nav.CircleObstacle(geom.Vec2{X: obj.X + obj.Width/2, Y: obj.Y + obj.Height/2}, radius)
		obs.ID = id
		return obs
	}
	obs := nav.RectObstacle(geom.Rect{X: obj.X, Y: obj.Y, Width: obj.Width, Height: obj.Height})
	obs.ID = id
	return obs
}
