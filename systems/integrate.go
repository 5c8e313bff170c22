package systems

import "github.com/pthm-cable/crowd/components"

// IntegrateChunk advances velocity and position for the index range
// [start, end) with a single explicit Euler step:
//
//	v += a*dt; p += v*dt
//
// If maxSpeed > 0 the velocity magnitude is clamped after the add. Chunks
// touch disjoint index ranges, so workers run this concurrently without
// locks. Dead slots are skipped.
func IntegrateChunk(start, end int, dt, maxSpeed float32, alive []bool,
	positions []components.Position, velocities []components.Velocity,
	accelerations []components.Acceleration) {

	maxSpeedSq := maxSpeed * maxSpeed
	for i := start; i < end; i++ {
		if !alive[i] {
			continue
		}

		v := &velocities[i]
		a := accelerations[i]
		v.X += a.X * dt
		v.Y += a.Y * dt

		if maxSpeed > 0 {
			speedSq := v.X*v.X + v.Y*v.Y
			if speedSq > maxSpeedSq {
				scale := maxSpeed / sqrt32(speedSq)
				v.X *= scale
				v.Y *= scale
			}
		}

		p := &positions[i]
		p.X += v.X * dt
		p.Y += v.Y * dt
	}
}
