package nav

import (
	"math"

	"github.com/arthurgeek/croptails/internal/geom"
)

type navNeighbor struct {
	col      int
	row      int
	cost     float64
	diagonal bool
}

var navNeighborOffsets = [...]navNeighbor{
	{col: 0, row: -1, cost: 1, diagonal: false},
	{col: 1, row: 0, cost: 1, diagonal: false},
	{col: 0, row: 1, cost: 1, diagonal: false},
	{col: -1, row: 0, cost: 1, diagonal: false},
	{col: 1, row: -1, cost: math.Sqrt2, diagonal: true},
	{col: 1, row: 1, cost: math.Sqrt2, diagonal: true},
	{col: -1, row: 1, cost: math.Sqrt2, diagonal: true},
	{col: -1, row: -1, cost: math.Sqrt2, diagonal: true},
}

type navPoint struct {
	col int
	row int
}

// navGrid rasterizes a region's interior into walkable cells. A cell is
// walkable when its centre is inside the polygon with agentRadius clearance
// from the outline and from every obstacle.
type navGrid struct {
	origin   geom.Vec2
	cols     int
	rows     int
	cellSize float64
	walkable []bool
	open     int
}

func newNavGrid(region *Region, obstacles []Obstacle, agentRadius, cellSize float64) *navGrid {
	if region == nil || region.Validate() != nil {
		return &navGrid{cols: 0, rows: 0, cellSize: cellSize}
	}
	min, max := region.Bounds()
	cols := int(math.Ceil((max.X - min.X) / cellSize))
	rows := int(math.Ceil((max.Y - min.Y) / cellSize))
	if cols <= 0 {
		cols = 1
	}
	if rows <= 0 {
		rows = 1
	}
	grid := &navGrid{
		origin:   min,
		cols:     cols,
		rows:     rows,
		cellSize: cellSize,
		walkable: make([]bool, cols*rows),
	}

	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			center := grid.worldPos(col, row)
			if !region.Contains(center) || region.DistanceToEdge(center) < agentRadius {
				continue
			}
			blocked := false
			for _, obs := range obstacles {
				if obs.Blocks(center, agentRadius) {
					blocked = true
					break
				}
			}
			if !blocked {
				grid.walkable[grid.index(col, row)] = true
				grid.open++
			}
		}
	}
	return grid
}

func (g *navGrid) inBounds(col, row int) bool {
	return g != nil && col >= 0 && row >= 0 && col < g.cols && row < g.rows
}

func (g *navGrid) index(col, row int) int {
	return row*g.cols + col
}

func (g *navGrid) isWalkable(col, row int) bool {
	if !g.inBounds(col, row) {
		return false
	}
	return g.walkable[g.index(col, row)]
}

func (g *navGrid) worldPos(col, row int) geom.Vec2 {
	return geom.Vec2{
		X: g.origin.X + (float64(col)+0.5)*g.cellSize,
		Y: g.origin.Y + (float64(row)+0.5)*g.cellSize,
	}
}

func (g *navGrid) locate(p geom.Vec2) (int, int, bool) {
	if g == nil || g.cols == 0 || g.rows == 0 {
		return 0, 0, false
	}
	col := int(math.Floor((p.X - g.origin.X) / g.cellSize))
	row := int(math.Floor((p.Y - g.origin.Y) / g.cellSize))
	col = int(geom.Clamp(float64(col), 0, float64(g.cols-1)))
	row = int(geom.Clamp(float64(row), 0, float64(g.rows-1)))
	return col, row, true
}

func (g *navGrid) canTraverseDiagonal(current navPoint, delta navNeighbor) bool {
	if !delta.diagonal {
		return true
	}
	return g.isWalkable(current.col+delta.col, current.row) &&
		g.isWalkable(current.col, current.row+delta.row)
}

func (g *navGrid) closestWalkable(col, row int) (int, int, bool) {
	if !g.inBounds(col, row) {
		return 0, 0, false
	}
	visited := make(map[int]struct{})
	queue := []navPoint{{col: col, row: row}}
	visited[g.index(col, row)] = struct{}{}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if g.walkable[g.index(current.col, current.row)] {
			return current.col, current.row, true
		}
		for _, delta := range navNeighborOffsets {
			nc := current.col + delta.col
			nr := current.row + delta.row
			if !g.inBounds(nc, nr) {
				continue
			}
			idx := g.index(nc, nr)
			if _, seen := visited[idx]; seen {
				continue
			}
			visited[idx] = struct{}{}
			queue = append(queue, navPoint{col: nc, row: nr})
		}
	}
	return 0, 0, false
}

// lineWalkable samples the segment at half-cell steps and reports whether
// every sample falls in a walkable cell.
func (g *navGrid) lineWalkable(a, b geom.Vec2) bool {
	dist := a.Dist(b)
	steps := int(math.Ceil(dist / (g.cellSize * 0.5)))
	if steps < 1 {
		steps = 1
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		p := a.Add(b.Sub(a).Scale(t))
		col := int(math.Floor((p.X - g.origin.X) / g.cellSize))
		row := int(math.Floor((p.Y - g.origin.Y) / g.cellSize))
		if !g.isWalkable(col, row) {
			return false
		}
	}
	return true
}

func (g *navGrid) findPath(start, target geom.Vec2) ([]geom.Vec2, bool) {
	if g == nil || g.open == 0 {
		return nil, false
	}
	startCol, startRow, ok := g.locate(start)
	if !ok {
		return nil, false
	}
	goalCol := int(math.Floor((target.X - g.origin.X) / g.cellSize))
	goalRow := int(math.Floor((target.Y - g.origin.Y) / g.cellSize))
	if !g.isWalkable(goalCol, goalRow) {
		return nil, false
	}
	if !g.isWalkable(startCol, startRow) {
		startCol, startRow, ok = g.closestWalkable(startCol, startRow)
		if !ok {
			return nil, false
		}
	}

	nodes, ok := g.astar(navPoint{col: startCol, row: startRow}, navPoint{col: goalCol, row: goalRow})
	if !ok || len(nodes) == 0 {
		return nil, false
	}
	if len(nodes) == 1 {
		return []geom.Vec2{target}, true
	}

	raw := make([]geom.Vec2, 0, len(nodes))
	for i := 1; i < len(nodes)-1; i++ {
		raw = append(raw, g.worldPos(nodes[i].col, nodes[i].row))
	}
	raw = append(raw, target)
	return g.simplify(g.worldPos(startCol, startRow), raw), true
}

// simplify drops intermediate waypoints that are visible from the previous
// kept anchor. The final waypoint is always preserved.
func (g *navGrid) simplify(anchor geom.Vec2, waypoints []geom.Vec2) []geom.Vec2 {
	if len(waypoints) <= 1 {
		return waypoints
	}
	out := make([]geom.Vec2, 0, len(waypoints))
	for i := 0; i < len(waypoints)-1; i++ {
		if g.lineWalkable(anchor, waypoints[i+1]) {
			continue
		}
		out = append(out, waypoints[i])
		anchor = waypoints[i]
	}
	return append(out, waypoints[len(waypoints)-1])
}
