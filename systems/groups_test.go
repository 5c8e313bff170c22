package systems

import (
	"math/rand"
	"testing"

	"github.com/pthm-cable/crowd/components"
)

func detect(d *GroupDetector, alive []bool, positions []components.Position, rel *RelationshipTable) ([]int32, int) {
	grid := NewSpatialGrid(d.params.Radius)
	grid.Rebuild(alive, positions)
	ids := make([]int32, len(positions))
	n := d.Detect(grid, alive, positions, rel, ids)
	return ids, n
}

func TestTwoClosePointsFormGroupThirdIsolated(t *testing.T) {
	// Entities at (0,0), (0.1,0), (10,10) with radius 1 and min size 2:
	// the close pair forms a group, the far one stays unaffiliated.
	positions := []components.Position{{X: 0, Y: 0}, {X: 0.1, Y: 0}, {X: 10, Y: 10}}
	alive := []bool{true, true, true}

	d := NewGroupDetector(GroupParams{Radius: 1, MinSize: 2, ContinuityOverlap: 0.5}, 3)
	ids, n := detect(d, alive, positions, nil)

	if n != 1 {
		t.Fatalf("expected 1 group, got %d", n)
	}
	if ids[0] == components.NoGroup || ids[0] != ids[1] {
		t.Errorf("entities 0 and 1 should share a group: %v", ids)
	}
	if ids[2] != components.NoGroup {
		t.Errorf("entity 2 should be unaffiliated, got id %d", ids[2])
	}
}

func TestBorderPointAbsorbed(t *testing.T) {
	// Four dense core points plus one border point in range of a core
	// point but without enough neighbors to be core itself.
	positions := []components.Position{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, // dense block
		{X: 3.5, Y: 0}, // border: only reaches (1,0)
	}
	alive := []bool{true, true, true, true, true}

	d := NewGroupDetector(GroupParams{Radius: 3, MinSize: 4, ContinuityOverlap: 0.5}, 5)
	ids, n := detect(d, alive, positions, nil)

	if n != 1 {
		t.Fatalf("expected 1 group, got %d (ids %v)", n, ids)
	}
	if ids[4] != ids[0] {
		t.Errorf("border point not absorbed: %v", ids)
	}
}

func TestGroupIDStableAcrossFrames(t *testing.T) {
	// A stationary cluster must keep its group id frame after frame.
	positions := []components.Position{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1},
	}
	alive := []bool{true, true, true, true}

	d := NewGroupDetector(GroupParams{Radius: 2, MinSize: 3, ContinuityOverlap: 0.5}, 4)

	first, _ := detect(d, alive, positions, nil)
	for frame := 0; frame < 10; frame++ {
		ids, _ := detect(d, alive, positions, nil)
		for i := range ids {
			if ids[i] != first[i] {
				t.Fatalf("frame %d: group id flickered from %v to %v", frame, first, ids)
			}
		}
	}
}

func TestNewClusterGetsFreshID(t *testing.T) {
	// Frame 1: one cluster around the origin. Frame 2: a second,
	// disjoint cluster appears; it must not steal the first one's id.
	positions := []components.Position{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1},
		{X: 100, Y: 100}, {X: 101, Y: 100}, {X: 100, Y: 101},
	}
	alive := []bool{true, true, true, false, false, false}

	d := NewGroupDetector(GroupParams{Radius: 2, MinSize: 3, ContinuityOverlap: 0.5}, 6)
	ids1, n1 := detect(d, alive, positions, nil)
	if n1 != 1 {
		t.Fatalf("frame 1: expected 1 group, got %d", n1)
	}
	firstID := ids1[0]

	for i := 3; i < 6; i++ {
		alive[i] = true
	}
	ids2, n2 := detect(d, alive, positions, nil)
	if n2 != 2 {
		t.Fatalf("frame 2: expected 2 groups, got %d", n2)
	}
	if ids2[0] != firstID {
		t.Errorf("existing cluster lost its id: was %d, now %d", firstID, ids2[0])
	}
	if ids2[3] == firstID {
		t.Error("new cluster reused the existing cluster's id")
	}
	if ids2[3] == components.NoGroup {
		t.Error("new cluster not assigned an id")
	}
}

func TestCoherenceGatingSplitsCrowd(t *testing.T) {
	// Four co-located entities. With gating on and ties only within the
	// pairs (0,1) and (2,3), clustering must not merge all four.
	positions := []components.Position{
		{X: 0, Y: 0}, {X: 0.5, Y: 0}, {X: 0, Y: 0.5}, {X: 0.5, Y: 0.5},
	}
	alive := []bool{true, true, true, true}

	rel := NewRelationshipTable()
	rel.Apply([]PairGain{
		{Pair: MakePair(0, 1), Gain: 0.9},
		{Pair: MakePair(2, 3), Gain: 0.9},
	})

	d := NewGroupDetector(GroupParams{
		Radius: 2, MinSize: 2,
		UseCoherence: true, CoherenceThreshold: 0.5,
		ContinuityOverlap: 0.5,
	}, 4)
	ids, n := detect(d, alive, positions, rel)

	if n != 2 {
		t.Fatalf("expected 2 coherence-gated groups, got %d (ids %v)", n, ids)
	}
	if ids[0] != ids[1] || ids[2] != ids[3] {
		t.Errorf("tied pairs split: %v", ids)
	}
	if ids[0] == ids[2] {
		t.Errorf("untied pairs merged: %v", ids)
	}
}

func TestDetectDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	n := 300
	positions := make([]components.Position, n)
	alive := make([]bool, n)
	for i := range positions {
		positions[i] = components.Position{X: rng.Float32() * 100, Y: rng.Float32() * 100}
		alive[i] = true
	}

	params := GroupParams{Radius: 5, MinSize: 4, ContinuityOverlap: 0.5}
	a := NewGroupDetector(params, n)
	b := NewGroupDetector(params, n)

	idsA, nA := detect(a, alive, positions, nil)
	idsB, nB := detect(b, alive, positions, nil)

	if nA != nB {
		t.Fatalf("group counts differ: %d vs %d", nA, nB)
	}
	for i := range idsA {
		if idsA[i] != idsB[i] {
			t.Fatalf("entity %d: ids differ (%d vs %d)", i, idsA[i], idsB[i])
		}
	}
}
