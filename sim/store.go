// Package sim contains the entity store and the frame orchestrator: the
// per-frame pipeline that integrates motion, rebuilds the spatial index,
// propagates social influence, detects groups, and publishes snapshots.
package sim

import (
	"fmt"

	"github.com/pthm-cable/crowd/components"
	"github.com/pthm-cable/crowd/systems"
	"github.com/pthm-cable/crowd/traits"
)

// EntityID is a stable index into the store's buffers. An id stays valid
// until the entity is destroyed; destroyed slots are recycled only at frame
// boundaries, never mid-frame.
type EntityID = int32

// Store owns the canonical per-entity state as structure-of-arrays buffers.
// All buffers are allocated to capacity up front and index-aligned: slot i
// refers to the same entity in every buffer, always. Field ownership is
// split by stage: the integrator writes positions/velocities, the social
// propagator writes emotions, the group detector writes group ids; traits
// are write-once at creation.
type Store struct {
	capacity int
	count    int // live entities

	Alive         []bool
	Positions     []components.Position
	Velocities    []components.Velocity
	Accelerations []components.Acceleration
	Traits        []traits.Traits
	Emotions      []components.Emotion
	EmotionsNext  []components.Emotion // write buffer for the social stage
	GroupIDs      []int32

	sampler *traits.Sampler

	free    []int32 // slots available for creation
	retired []int32 // destroyed this frame, recycled at the next boundary
}

// NewStore creates a store with the given capacity. Trait records for new
// entities are drawn from sampler.
func NewStore(capacity int, sampler *traits.Sampler) *Store {
	s := &Store{
		capacity:      capacity,
		Alive:         make([]bool, capacity),
		Positions:     make([]components.Position, capacity),
		Velocities:    make([]components.Velocity, capacity),
		Accelerations: make([]components.Acceleration, capacity),
		Traits:        make([]traits.Traits, capacity),
		Emotions:      make([]components.Emotion, capacity),
		EmotionsNext:  make([]components.Emotion, capacity),
		GroupIDs:      make([]int32, capacity),
		sampler:       sampler,
		free:          make([]int32, 0, capacity),
	}
	// Lowest index first, so creation order matches index order.
	for i := capacity - 1; i >= 0; i-- {
		s.free = append(s.free, int32(i))
	}
	for i := range s.GroupIDs {
		s.GroupIDs[i] = components.NoGroup
	}
	return s
}

// Capacity returns the maximum entity count.
func (s *Store) Capacity() int { return s.capacity }

// Count returns the number of live entities.
func (s *Store) Count() int { return s.count }

// Live reports whether id refers to a live entity.
func (s *Store) Live(id EntityID) bool {
	return id >= 0 && int(id) < s.capacity && s.Alive[id]
}

// Create allocates a slot for a new entity at the given position, sampling
// its traits and starting its emotional state at the neutral baseline.
// Fails with ErrCapacityExceeded when the store is full.
func (s *Store) Create(pos components.Position) (EntityID, error) {
	if len(s.free) == 0 {
		return -1, fmt.Errorf("%w: %d entities", ErrCapacityExceeded, s.capacity)
	}

	id := s.free[len(s.free)-1]
	s.free = s.free[:len(s.free)-1]

	s.Alive[id] = true
	s.Positions[id] = pos
	s.Velocities[id] = components.Velocity{}
	s.Accelerations[id] = components.Acceleration{}
	s.Traits[id] = s.sampler.Sample()
	s.Emotions[id] = components.Emotion{
		Happiness:   components.EmotionBaseline,
		Energy:      components.EmotionBaseline,
		Sociability: components.EmotionBaseline,
	}
	s.EmotionsNext[id] = s.Emotions[id]
	s.GroupIDs[id] = components.NoGroup
	s.count++
	return id, nil
}

// Destroy invalidates the slot for id. The index is withheld from reuse
// until Recycle runs at the next frame boundary, so no other entity can
// take over the id mid-frame. Fails with ErrUnknownEntity if id is not
// live.
func (s *Store) Destroy(id EntityID) error {
	if !s.Live(id) {
		return fmt.Errorf("%w: id %d", ErrUnknownEntity, id)
	}
	s.Alive[id] = false
	s.GroupIDs[id] = components.NoGroup
	s.retired = append(s.retired, id)
	s.count--
	return nil
}

// Recycle returns slots destroyed during the previous frame to the free
// list. Called by the orchestrator at the frame boundary, before new
// lifecycle commands are applied.
func (s *Store) Recycle() {
	s.free = append(s.free, s.retired...)
	s.retired = s.retired[:0]
}

// SwapEmotions exchanges the read and write emotion buffers after the
// social stage barrier.
func (s *Store) SwapEmotions() {
	s.Emotions, s.EmotionsNext = s.EmotionsNext, s.Emotions
}

// ClearAccelerations zeroes the force input buffer. Runs after integration
// so a force override only lasts the frame it was supplied for.
func (s *Store) ClearAccelerations() {
	for i := range s.Accelerations {
		s.Accelerations[i] = components.Acceleration{}
	}
}

// CheckAlignment verifies that every per-entity buffer still has the
// store's capacity. A mismatch means a buffer was resized or swapped out
// from under the store, which is corrupt state, reported as
// ErrStageInvariant.
func (s *Store) CheckAlignment() error {
	lengths := map[string]int{
		"alive":         len(s.Alive),
		"positions":     len(s.Positions),
		"velocities":    len(s.Velocities),
		"accelerations": len(s.Accelerations),
		"traits":        len(s.Traits),
		"emotions":      len(s.Emotions),
		"emotions_next": len(s.EmotionsNext),
		"group_ids":     len(s.GroupIDs),
	}
	for name, l := range lengths {
		if l != s.capacity {
			return fmt.Errorf("%w: buffer %s has length %d, capacity is %d",
				ErrStageInvariant, name, l, s.capacity)
		}
	}
	return nil
}

// RebuildGrid inserts every live entity into the grid in ascending index
// order.
func (s *Store) RebuildGrid(grid *systems.SpatialGrid) {
	grid.Rebuild(s.Alive, s.Positions)
}
