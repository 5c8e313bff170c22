package sim

import (
	"github.com/pthm-cable/crowd/components"
)

// EntitySnapshot is one entity's published state for a frame.
type EntitySnapshot struct {
	ID       EntityID            `json:"id"`
	Position components.Position `json:"position"`
	Velocity components.Velocity `json:"velocity"`
	Emotion  components.Emotion  `json:"emotion"`
	GroupID  int32               `json:"group_id"`
}

// Snapshot is an immutable copy of the world at the end of a frame.
// Consumers read it without locks and may hold it for as long as they
// like; the engine never writes to a snapshot after publishing it.
type Snapshot struct {
	Frame      uint64           `json:"frame"`
	Entities   []EntitySnapshot `json:"entities"`
	GroupCount int              `json:"group_count"`
}

// newSnapshot copies live entity state into a fresh snapshot. Entities
// appear in ascending id order. The allocation per frame is what buys the
// immutability guarantee above; a reused buffer would be rewritten under
// any consumer still holding it.
func newSnapshot(frame uint64, store *Store, groupCount int) *Snapshot {
	snap := &Snapshot{
		Frame:      frame,
		GroupCount: groupCount,
		Entities:   make([]EntitySnapshot, 0, store.Count()),
	}
	for i := 0; i < store.Capacity(); i++ {
		if !store.Alive[i] {
			continue
		}
		snap.Entities = append(snap.Entities, EntitySnapshot{
			ID:       int32(i),
			Position: store.Positions[i],
			Velocity: store.Velocities[i],
			Emotion:  store.Emotions[i],
			GroupID:  store.GroupIDs[i],
		})
	}
	return snap
}
