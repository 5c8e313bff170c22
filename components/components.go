// Package components defines the per-entity value types shared across the
// simulation's storage and update systems.
package components

// Position represents an entity's world position.
type Position struct {
	X, Y float32
}

// Velocity represents an entity's velocity.
type Velocity struct {
	X, Y float32
}

// Acceleration represents the per-frame force input applied before
// integration. It is reset to zero after every frame.
type Acceleration struct {
	X, Y float32
}

// Emotion holds the mutable emotional scalars, each in [0,1].
// Updated every frame by the social propagator.
type Emotion struct {
	Happiness   float32
	Energy      float32
	Sociability float32 // expressed sociability, distinct from the trait
}

// EmotionBaseline is the neutral value emotion decays toward when an
// entity has no neighbors.
const EmotionBaseline = 0.5

// NoGroup marks an entity with no group affiliation.
const NoGroup int32 = -1
