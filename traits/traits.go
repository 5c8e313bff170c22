// Package traits defines the immutable personality traits of an entity.
package traits

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Traits holds the personality scalars of one entity, each in [0,1].
// Sampled once at creation and never written again.
type Traits struct {
	Sociability float32 // willingness to form relationships
	Energy      float32 // baseline activity level
	Influence   float32 // weight of this entity in neighbor emotion averages
}

// Sampler draws trait records from a clamped normal distribution.
type Sampler struct {
	dist distuv.Normal
}

// NewSampler creates a sampler drawing from Normal(mean, stddev), clamped
// to [0,1]. The seed determines the full trait stream, so a fixed seed
// reproduces the same population.
func NewSampler(mean, stddev float64, seed uint64) *Sampler {
	return &Sampler{
		dist: distuv.Normal{
			Mu:    mean,
			Sigma: stddev,
			Src:   rand.NewPCG(seed, seed),
		},
	}
}

// Sample draws one trait record.
func (s *Sampler) Sample() Traits {
	return Traits{
		Sociability: clamp01(float32(s.dist.Rand())),
		Energy:      clamp01(float32(s.dist.Rand())),
		Influence:   clamp01(float32(s.dist.Rand())),
	}
}

func clamp01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
