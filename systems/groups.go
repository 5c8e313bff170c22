package systems

import (
	"github.com/pthm-cable/crowd/components"
)

// GroupParams holds the density clustering constants.
type GroupParams struct {
	Radius             float32 // neighbor radius for clustering
	MinSize            int     // neighbors (self included) required for a core point
	UseCoherence       bool    // gate edges on relationship strength
	CoherenceThreshold float32 // minimum strength for an edge when gating
	ContinuityOverlap  float32 // overlap fraction above which a group keeps its id
}

// GroupDetector assigns group ids with a density-based clustering pass over
// current positions. Core points have at least MinSize neighbors (counting
// themselves) within Radius; groups grow by connecting core points and
// absorbing border points in range of a core point. Entities near no core
// point stay unaffiliated.
//
// Group ids persist across frames: a cluster whose membership overlaps a
// previous group's by more than ContinuityOverlap inherits that group's id,
// otherwise it receives the lowest id unused this frame. This keeps a
// stable cluster from flickering through fresh ids every frame.
type GroupDetector struct {
	params GroupParams

	prev []int32 // previous frame's assignment, indexed by entity

	// Reused scratch buffers
	labels    []int32
	core      []bool
	queue     []int32
	neighbors []Neighbor
	members   [][]int32
}

// NewGroupDetector creates a detector for stores of the given capacity.
func NewGroupDetector(params GroupParams, capacity int) *GroupDetector {
	d := &GroupDetector{
		params: params,
		prev:   make([]int32, capacity),
		labels: make([]int32, capacity),
		core:   make([]bool, capacity),
	}
	for i := range d.prev {
		d.prev[i] = components.NoGroup
	}
	return d
}

// Detect runs one clustering pass and writes group ids into groupIDs
// (components.NoGroup for unaffiliated entities). rel may be nil when
// coherence gating is disabled. Returns the number of groups.
//
// Evaluation order is fixed: core flags and cluster discovery both scan
// entities in ascending index order, so output is deterministic for a
// given store state.
func (d *GroupDetector) Detect(grid *SpatialGrid, alive []bool,
	positions []components.Position, rel *RelationshipTable, groupIDs []int32) int {

	n := len(positions)
	for i := 0; i < n; i++ {
		d.labels[i] = components.NoGroup
		d.core[i] = false
	}

	// Core point evaluation, ascending index order.
	for i := 0; i < n; i++ {
		if !alive[i] {
			continue
		}
		d.neighbors = d.edgesOf(int32(i), grid, positions, rel)
		// The point itself counts toward the density threshold.
		d.core[i] = len(d.neighbors)+1 >= d.params.MinSize
	}

	// Grow clusters from core points, ascending index order.
	d.members = d.members[:0]
	for i := 0; i < n; i++ {
		if !alive[i] || !d.core[i] || d.labels[i] != components.NoGroup {
			continue
		}

		label := int32(len(d.members))
		d.members = append(d.members, nil)
		d.labels[i] = label
		d.members[label] = append(d.members[label], int32(i))

		d.queue = append(d.queue[:0], int32(i))
		for len(d.queue) > 0 {
			cur := d.queue[0]
			d.queue = d.queue[1:]

			d.neighbors = d.edgesOf(cur, grid, positions, rel)
			for _, nb := range d.neighbors {
				if d.labels[nb.Index] != components.NoGroup {
					continue
				}
				d.labels[nb.Index] = label
				d.members[label] = append(d.members[label], nb.Index)
				// Border points join but do not extend the cluster.
				if d.core[nb.Index] {
					d.queue = append(d.queue, nb.Index)
				}
			}
		}
	}

	ids := d.assignIDs()

	for i := 0; i < n; i++ {
		if !alive[i] || d.labels[i] == components.NoGroup {
			groupIDs[i] = components.NoGroup
		} else {
			groupIDs[i] = ids[d.labels[i]]
		}
		d.prev[i] = groupIDs[i]
	}

	return len(d.members)
}

// edgesOf returns the clustering neighbors of idx, filtered by relationship
// strength when coherence gating is enabled.
func (d *GroupDetector) edgesOf(idx int32, grid *SpatialGrid,
	positions []components.Position, rel *RelationshipTable) []Neighbor {

	d.neighbors = grid.QueryRadiusInto(d.neighbors[:0],
		positions[idx].X, positions[idx].Y, d.params.Radius, idx, positions)

	if !d.params.UseCoherence || rel == nil {
		return d.neighbors
	}

	kept := d.neighbors[:0]
	for _, nb := range d.neighbors {
		if rel.Strength(idx, nb.Index) >= d.params.CoherenceThreshold {
			kept = append(kept, nb)
		}
	}
	return kept
}

// assignIDs maps each provisional cluster label to its final group id:
// the inherited previous id when membership overlap exceeds the continuity
// threshold, otherwise the lowest id not already used this frame.
func (d *GroupDetector) assignIDs() []int32 {
	ids := make([]int32, len(d.members))
	used := make(map[int32]bool, len(d.members))

	// Inheritance pass, ascending label order; each previous id is
	// claimed at most once.
	for label, members := range d.members {
		ids[label] = components.NoGroup

		overlap := make(map[int32]int)
		for _, m := range members {
			if p := d.prev[m]; p != components.NoGroup {
				overlap[p]++
			}
		}

		best := components.NoGroup
		bestCount := 0
		for p, c := range overlap {
			if used[p] {
				continue
			}
			if c > bestCount || (c == bestCount && best != components.NoGroup && p < best) {
				best, bestCount = p, c
			}
		}

		if best != components.NoGroup && float32(bestCount) > d.params.ContinuityOverlap*float32(len(members)) {
			ids[label] = best
			used[best] = true
		}
	}

	// Fresh ids for clusters that inherited nothing.
	next := int32(0)
	for label := range d.members {
		if ids[label] != components.NoGroup {
			continue
		}
		for used[next] {
			next++
		}
		ids[label] = next
		used[next] = true
	}

	return ids
}
