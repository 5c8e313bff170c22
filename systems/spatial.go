// Package systems provides the per-frame update systems of the simulation:
// spatial indexing, motion integration, social propagation, and group
// detection. Systems operate on the entity store's index-aligned buffers
// and hold no entity state of their own.
package systems

import (
	"math"

	"github.com/pthm-cable/crowd/components"
)

// Neighbor holds a nearby entity with precomputed spatial data.
// This avoids recomputing delta and distance in the social and group passes.
type Neighbor struct {
	Index  int32
	DX, DY float32 // delta from query origin
	DistSq float32 // squared distance (avoid sqrt in hot path)
}

// CellKey identifies one grid cell by its integer coordinates.
type CellKey struct {
	X, Y int32
}

// SpatialGrid provides neighbor lookups proportional to local density
// using a uniform cell hash over unbounded world coordinates.
// It is rebuilt from scratch every frame; membership is never updated
// incrementally, so entities that crossed a cell boundary can't go stale.
type SpatialGrid struct {
	cellSize float32
	cells    map[CellKey][]int32
}

// NewSpatialGrid creates a spatial grid with the given cell side length.
func NewSpatialGrid(cellSize float32) *SpatialGrid {
	return &SpatialGrid{
		cellSize: cellSize,
		cells:    make(map[CellKey][]int32, 1024),
	}
}

// Clear removes all entities from the grid. Bucket slices are retained and
// truncated so steady-state rebuilds do not allocate.
func (g *SpatialGrid) Clear() {
	for k := range g.cells {
		g.cells[k] = g.cells[k][:0]
	}
}

// Insert adds an entity index to the grid at the given position.
func (g *SpatialGrid) Insert(idx int32, x, y float32) {
	key := g.keyFor(x, y)
	g.cells[key] = append(g.cells[key], idx)
}

// Rebuild clears the grid and inserts every live entity in ascending index
// order. Bucket contents are therefore deterministic for a given store
// state, which keeps neighbor iteration order stable across runs.
func (g *SpatialGrid) Rebuild(alive []bool, positions []components.Position) {
	g.Clear()
	for i := range positions {
		if alive[i] {
			g.Insert(int32(i), positions[i].X, positions[i].Y)
		}
	}
}

// QueryRadiusInto finds entities within radius of (x, y) and appends them
// to dst, excluding the given index (pass a negative value to exclude
// nothing). Returns the updated slice; reuse dst across calls to avoid
// allocations. Cells are walked in a fixed ring order so results are
// deterministic.
func (g *SpatialGrid) QueryRadiusInto(dst []Neighbor, x, y, radius float32, exclude int32, positions []components.Position) []Neighbor {
	cellRadius := int32(math.Ceil(float64(radius / g.cellSize)))
	center := g.keyFor(x, y)
	radiusSq := radius * radius

	for dx := -cellRadius; dx <= cellRadius; dx++ {
		for dy := -cellRadius; dy <= cellRadius; dy++ {
			key := CellKey{X: center.X + dx, Y: center.Y + dy}
			bucket, ok := g.cells[key]
			if !ok {
				continue
			}
			for _, idx := range bucket {
				if idx == exclude {
					continue
				}
				p := positions[idx]
				ddx := p.X - x
				ddy := p.Y - y
				distSq := ddx*ddx + ddy*ddy
				if distSq <= radiusSq {
					dst = append(dst, Neighbor{Index: idx, DX: ddx, DY: ddy, DistSq: distSq})
				}
			}
		}
	}

	return dst
}

// CellOf returns the cell key an entity at (x, y) belongs to. Boundary
// positions map to exactly one cell via floor, never two.
func (g *SpatialGrid) CellOf(x, y float32) CellKey {
	return g.keyFor(x, y)
}

func (g *SpatialGrid) keyFor(x, y float32) CellKey {
	return CellKey{
		X: int32(math.Floor(float64(x / g.cellSize))),
		Y: int32(math.Floor(float64(y / g.cellSize))),
	}
}
