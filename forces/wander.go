// Package forces provides built-in acceleration providers for the engine.
package forces

import (
	"github.com/aquilax/go-perlin"

	"github.com/pthm-cable/crowd/components"
	"github.com/pthm-cable/crowd/config"
)

const (
	perlinAlpha = 2
	perlinBeta  = 2
	perlinN     = 3
)

// Wander drives entities with a coherent noise field. Nearby entities get
// similar accelerations, which produces drifting streams of movement rather
// than independent jitter. The field animates over time so the flow keeps
// changing.
type Wander struct {
	noiseX *perlin.Perlin
	noiseY *perlin.Perlin

	strength  float32
	scale     float64
	timeSpeed float64
	dt        float64
}

// NewWander builds a wander field from config. The two axes sample
// independent noise so the force direction is unbiased.
func NewWander(cfg config.WanderConfig, dt float32, seed int64) *Wander {
	return &Wander{
		noiseX:    perlin.NewPerlin(perlinAlpha, perlinBeta, perlinN, seed),
		noiseY:    perlin.NewPerlin(perlinAlpha, perlinBeta, perlinN, seed+1),
		strength:  float32(cfg.Strength),
		scale:     cfg.Scale,
		timeSpeed: cfg.TimeSpeed,
		dt:        float64(dt),
	}
}

// Apply samples the field at every live entity's position and writes the
// result into the accelerations buffer.
func (w *Wander) Apply(frame uint64, alive []bool, positions []components.Position, accelerations []components.Acceleration) {
	t := float64(frame) * w.dt * w.timeSpeed

	for i := range positions {
		if !alive[i] {
			continue
		}
		x := float64(positions[i].X) * w.scale
		y := float64(positions[i].Y) * w.scale
		accelerations[i].X = w.strength * float32(w.noiseX.Noise3D(x, y, t))
		accelerations[i].Y = w.strength * float32(w.noiseY.Noise3D(x, y, t))
	}
}
