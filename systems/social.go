package systems

import (
	"github.com/pthm-cable/crowd/components"
	"github.com/pthm-cable/crowd/traits"
)

// Pair packs an unordered entity index pair into one map key.
// The lower index always occupies the high word, so (a,b) and (b,a)
// produce the same key.
type Pair uint64

// MakePair builds the key for an unordered index pair.
func MakePair(a, b int32) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair(uint64(uint32(a))<<32 | uint64(uint32(b)))
}

// Indices returns the two entity indices of the pair, lower first.
func (p Pair) Indices() (int32, int32) {
	return int32(uint32(p >> 32)), int32(uint32(p))
}

// relationshipEpsilon is the strength below which a decayed relationship is
// dropped from the table entirely.
const relationshipEpsilon = 1e-4

// RelationshipTable stores social tie strength per unordered entity pair.
// Storage is sparse: only pairs that have interacted occupy memory, and
// fully decayed pairs are pruned, so memory is O(active pairs) rather than
// O(n^2).
type RelationshipTable struct {
	strengths map[Pair]float32
}

// NewRelationshipTable creates an empty relationship table.
func NewRelationshipTable() *RelationshipTable {
	return &RelationshipTable{strengths: make(map[Pair]float32, 1024)}
}

// Strength returns the current tie strength between two entities,
// zero if they have never interacted.
func (t *RelationshipTable) Strength(a, b int32) float32 {
	return t.strengths[MakePair(a, b)]
}

// Len returns the number of active pairs.
func (t *RelationshipTable) Len() int {
	return len(t.strengths)
}

// Decay multiplies every stored strength by factor, pruning pairs that
// fall below the retention threshold. Runs before gains are applied each
// frame, so refreshed pairs decay too and the frame order is fixed.
func (t *RelationshipTable) Decay(factor float32) {
	for p, s := range t.strengths {
		s *= factor
		if s < relationshipEpsilon {
			delete(t.strengths, p)
			continue
		}
		t.strengths[p] = s
	}
}

// Apply adds the buffered proximity gains, clamping each strength to [0,1].
func (t *RelationshipTable) Apply(gains []PairGain) {
	for _, g := range gains {
		t.strengths[g.Pair] = clamp01(t.strengths[g.Pair] + g.Gain)
	}
}

// DropEntity removes every pair involving the given index. Called when an
// entity is destroyed so its slot can be recycled cleanly.
func (t *RelationshipTable) DropEntity(idx int32) {
	for p := range t.strengths {
		a, b := p.Indices()
		if a == idx || b == idx {
			delete(t.strengths, p)
		}
	}
}

// PairGain is one buffered relationship strength increment.
type PairGain struct {
	Pair Pair
	Gain float32
}

// SocialParams holds the propagation constants for one frame.
type SocialParams struct {
	Radius  float32 // interaction radius
	Gain    float32 // proximity gain per co-located frame
	Inertia float32 // emotional blend weight on prior state
}

// SocialScratch holds per-worker reusable buffers for the social pass.
type SocialScratch struct {
	Neighbors []Neighbor
	Gains     []PairGain
}

// SocialChunk runs the social propagation for the index range [start, end).
//
// Emotion reads come from emotions (the previous frame's completed state)
// and writes go to next, partitioned by entity index, so chunks never touch
// the same memory. Relationship gains are not applied here: each unordered
// pair is recorded once, by the lower-indexed entity's task, into
// scratch.Gains for a deterministic single-threaded apply after the stage
// barrier.
func SocialChunk(start, end int, params SocialParams, grid *SpatialGrid,
	alive []bool, positions []components.Position, tr []traits.Traits,
	emotions, next []components.Emotion, scratch *SocialScratch) {

	for i := start; i < end; i++ {
		if !alive[i] {
			continue
		}

		scratch.Neighbors = grid.QueryRadiusInto(
			scratch.Neighbors[:0],
			positions[i].X, positions[i].Y, params.Radius,
			int32(i), positions,
		)

		// Relationship gains, lower index owns the pair
		for _, n := range scratch.Neighbors {
			if n.Index <= int32(i) {
				continue
			}
			gain := params.Gain * min32(tr[i].Sociability, tr[n.Index].Sociability)
			if gain > 0 {
				scratch.Gains = append(scratch.Gains, PairGain{
					Pair: MakePair(int32(i), n.Index),
					Gain: gain,
				})
			}
		}

		next[i] = blendEmotion(emotions[i], scratch.Neighbors, tr, emotions, params.Inertia)
	}
}

// blendEmotion computes the next emotional state from the influence-weighted
// neighbor average, blended with the prior state by inertia. With no
// neighbors the state decays toward the neutral baseline instead.
func blendEmotion(prev components.Emotion, neighbors []Neighbor,
	tr []traits.Traits, emotions []components.Emotion, inertia float32) components.Emotion {

	var target components.Emotion
	if len(neighbors) == 0 {
		target = components.Emotion{
			Happiness:   components.EmotionBaseline,
			Energy:      components.EmotionBaseline,
			Sociability: components.EmotionBaseline,
		}
	} else {
		var hSum, eSum, sSum, wSum float32
		for _, n := range neighbors {
			w := tr[n.Index].Influence
			ne := emotions[n.Index]
			hSum += w * ne.Happiness
			eSum += w * ne.Energy
			sSum += w * ne.Sociability
			wSum += w
		}
		if wSum > 0 {
			target = components.Emotion{
				Happiness:   hSum / wSum,
				Energy:      eSum / wSum,
				Sociability: sSum / wSum,
			}
		} else {
			// All neighbors carry zero influence: plain mean.
			inv := 1 / float32(len(neighbors))
			for _, n := range neighbors {
				ne := emotions[n.Index]
				target.Happiness += ne.Happiness * inv
				target.Energy += ne.Energy * inv
				target.Sociability += ne.Sociability * inv
			}
		}
	}

	k := 1 - inertia
	return components.Emotion{
		Happiness:   clamp01(inertia*prev.Happiness + k*target.Happiness),
		Energy:      clamp01(inertia*prev.Energy + k*target.Energy),
		Sociability: clamp01(inertia*prev.Sociability + k*target.Sociability),
	}
}
