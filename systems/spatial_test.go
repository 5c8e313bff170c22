package systems

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/pthm-cable/crowd/components"
)

func TestQueryRadiusMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for trial := 0; trial < 20; trial++ {
		n := 50 + rng.Intn(200)
		positions := make([]components.Position, n)
		alive := make([]bool, n)
		for i := range positions {
			positions[i] = components.Position{
				X: rng.Float32()*400 - 200,
				Y: rng.Float32()*400 - 200,
			}
			alive[i] = true
		}

		cellSize := float32(8 + rng.Float32()*24)
		radius := float32(5 + rng.Float32()*40)
		grid := NewSpatialGrid(cellSize)
		grid.Rebuild(alive, positions)

		for q := 0; q < 10; q++ {
			origin := int32(rng.Intn(n))
			got := grid.QueryRadiusInto(nil,
				positions[origin].X, positions[origin].Y, radius, origin, positions)

			var want []int32
			for i := range positions {
				if int32(i) == origin {
					continue
				}
				dx := positions[i].X - positions[origin].X
				dy := positions[i].Y - positions[origin].Y
				if dx*dx+dy*dy <= radius*radius {
					want = append(want, int32(i))
				}
			}

			gotIdx := make([]int32, len(got))
			for i, nb := range got {
				gotIdx[i] = nb.Index
			}
			sort.Slice(gotIdx, func(i, j int) bool { return gotIdx[i] < gotIdx[j] })
			sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

			if len(gotIdx) != len(want) {
				t.Fatalf("trial %d query %d: got %d neighbors, brute force found %d",
					trial, q, len(gotIdx), len(want))
			}
			for i := range want {
				if gotIdx[i] != want[i] {
					t.Fatalf("trial %d query %d: neighbor sets differ: %v vs %v",
						trial, q, gotIdx, want)
				}
			}
		}
	}
}

func TestCellBoundaryAssignment(t *testing.T) {
	grid := NewSpatialGrid(10)

	tests := []struct {
		name string
		x, y float32
		want CellKey
	}{
		{"interior", 5, 5, CellKey{0, 0}},
		{"exact boundary", 10, 0, CellKey{1, 0}},
		{"negative interior", -5, -5, CellKey{-1, -1}},
		{"negative boundary", -10, 0, CellKey{-1, 0}},
		{"origin", 0, 0, CellKey{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := grid.CellOf(tt.x, tt.y); got != tt.want {
				t.Errorf("CellOf(%v, %v) = %v, want %v", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

func TestRebuildDropsDeadEntities(t *testing.T) {
	positions := []components.Position{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}}
	alive := []bool{true, false, true}

	grid := NewSpatialGrid(16)
	grid.Rebuild(alive, positions)

	got := grid.QueryRadiusInto(nil, 2, 2, 10, -1, positions)
	for _, nb := range got {
		if nb.Index == 1 {
			t.Error("dead entity returned by query")
		}
	}
	if len(got) != 2 {
		t.Errorf("expected 2 live neighbors, got %d", len(got))
	}
}

func TestQueryReusesDestination(t *testing.T) {
	positions := []components.Position{{X: 0, Y: 0}, {X: 1, Y: 0}}
	alive := []bool{true, true}
	grid := NewSpatialGrid(8)
	grid.Rebuild(alive, positions)

	dst := make([]Neighbor, 0, 16)
	dst = grid.QueryRadiusInto(dst, 0, 0, 5, 0, positions)
	if len(dst) != 1 || dst[0].Index != 1 {
		t.Fatalf("unexpected result: %v", dst)
	}
	if dst[0].DistSq != 1 {
		t.Errorf("DistSq = %v, want 1", dst[0].DistSq)
	}

	// Second query truncates and reuses the same backing array.
	dst = grid.QueryRadiusInto(dst[:0], 1, 0, 5, 1, positions)
	if len(dst) != 1 || dst[0].Index != 0 {
		t.Fatalf("reused query returned %v", dst)
	}
}
