package systems

import (
	"math"
	"testing"

	"github.com/pthm-cable/crowd/components"
)

func TestIntegrateEulerStep(t *testing.T) {
	alive := []bool{true}
	positions := []components.Position{{X: 1, Y: 2}}
	velocities := []components.Velocity{{X: 3, Y: -1}}
	accelerations := []components.Acceleration{{X: 2, Y: 4}}

	dt := float32(0.5)
	IntegrateChunk(0, 1, dt, 0, alive, positions, velocities, accelerations)

	// v += a*dt: (3+1, -1+2) = (4, 1); p += v*dt: (1+2, 2+0.5) = (3, 2.5)
	if velocities[0] != (components.Velocity{X: 4, Y: 1}) {
		t.Errorf("velocity = %+v, want {4 1}", velocities[0])
	}
	if positions[0] != (components.Position{X: 3, Y: 2.5}) {
		t.Errorf("position = %+v, want {3 2.5}", positions[0])
	}
}

func TestIntegrateSpeedClamp(t *testing.T) {
	alive := []bool{true}
	positions := []components.Position{{}}
	velocities := []components.Velocity{{X: 30, Y: 40}} // magnitude 50
	accelerations := []components.Acceleration{{}}

	IntegrateChunk(0, 1, 1, 10, alive, positions, velocities, accelerations)

	speed := math.Hypot(float64(velocities[0].X), float64(velocities[0].Y))
	if math.Abs(speed-10) > 1e-4 {
		t.Errorf("speed after clamp = %v, want 10", speed)
	}
	// Direction preserved
	if velocities[0].X <= 0 || velocities[0].Y <= 0 {
		t.Errorf("clamp changed direction: %+v", velocities[0])
	}
}

func TestIntegrateNoClampWhenUnset(t *testing.T) {
	alive := []bool{true}
	positions := []components.Position{{}}
	velocities := []components.Velocity{{X: 1000, Y: 0}}
	accelerations := []components.Acceleration{{}}

	IntegrateChunk(0, 1, 1, 0, alive, positions, velocities, accelerations)

	if velocities[0].X != 1000 {
		t.Errorf("maxSpeed=0 must not clamp, velocity = %+v", velocities[0])
	}
}

func TestIntegrateSkipsDead(t *testing.T) {
	alive := []bool{false, true}
	positions := []components.Position{{X: 1}, {X: 2}}
	velocities := []components.Velocity{{X: 1}, {X: 1}}
	accelerations := []components.Acceleration{{}, {}}

	IntegrateChunk(0, 2, 1, 0, alive, positions, velocities, accelerations)

	if positions[0].X != 1 {
		t.Error("dead slot was integrated")
	}
	if positions[1].X != 3 {
		t.Errorf("live slot not integrated: %+v", positions[1])
	}
}
