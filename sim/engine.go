package sim

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pthm-cable/crowd/components"
	"github.com/pthm-cable/crowd/config"
	"github.com/pthm-cable/crowd/systems"
	"github.com/pthm-cable/crowd/telemetry"
	"github.com/pthm-cable/crowd/traits"
)

// ForceProvider supplies per-entity accelerations for a frame. Apply runs
// single-threaded before integration and may write only the accelerations
// buffer.
type ForceProvider interface {
	Apply(frame uint64, alive []bool, positions []components.Position, accelerations []components.Acceleration)
}

// CreateResult reports the outcome of a queued create command.
type CreateResult struct {
	ID  EntityID
	Err error
}

type commandKind uint8

const (
	cmdCreate commandKind = iota
	cmdDestroy
)

type command struct {
	kind    commandKind
	pos     components.Position
	id      EntityID
	created chan CreateResult
	done    chan error
}

// Engine runs the per-frame pipeline over a Store. All mutation happens on
// the goroutine calling Step; external callers interact through queued
// commands and published snapshots.
type Engine struct {
	cfg    *config.Config
	store  *Store
	grid   *systems.SpatialGrid
	rel    *systems.RelationshipTable
	groups *systems.GroupDetector
	pool   *workerPool
	forces ForceProvider
	perf   *telemetry.PerfCollector

	frame    uint64
	overruns uint64
	spawns   uint64
	destroys uint64

	commands chan command

	gains []systems.PairGain

	published atomic.Pointer[Snapshot]

	halted error
}

// NewEngine builds an engine from config. seed drives trait sampling.
func NewEngine(cfg *config.Config, seed uint64) *Engine {
	sampler := traits.NewSampler(cfg.Traits.Mean, cfg.Traits.Stddev, seed)
	capacity := cfg.World.MaxEntities

	e := &Engine{
		cfg:      cfg,
		store:    NewStore(capacity, sampler),
		grid:     systems.NewSpatialGrid(cfg.Derived.CellSize32),
		rel:      systems.NewRelationshipTable(),
		pool:     newWorkerPool(cfg.Sim.Workers),
		perf:     telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		commands: make(chan command, 1024),
		gains:    make([]systems.PairGain, 0, 4096),
	}
	e.groups = systems.NewGroupDetector(systems.GroupParams{
		Radius:             float32(cfg.Groups.Radius),
		MinSize:            cfg.Groups.MinSize,
		UseCoherence:       cfg.Groups.UseCoherence,
		CoherenceThreshold: float32(cfg.Groups.CoherenceThreshold),
		ContinuityOverlap:  float32(cfg.Groups.ContinuityOverlap),
	}, capacity)

	// Publish an empty frame-zero snapshot so consumers never see nil.
	e.published.Store(&Snapshot{})
	return e
}

// SetForces installs the force provider. Must be called before Step.
func (e *Engine) SetForces(f ForceProvider) { e.forces = f }

// Store exposes the entity store for direct seeding before the run starts.
// Once Step is running, use the command queue instead.
func (e *Engine) Store() *Store { return e.store }

// Frame returns the number of completed frames.
func (e *Engine) Frame() uint64 { return e.frame }

// BudgetOverruns returns how many frames exceeded the configured budget.
func (e *Engine) BudgetOverruns() uint64 { return e.overruns }

// Spawns returns how many create commands have been applied.
func (e *Engine) Spawns() uint64 { return e.spawns }

// Destroys returns how many destroy commands have been applied.
func (e *Engine) Destroys() uint64 { return e.destroys }

// Relationships returns the number of tracked relationship pairs.
func (e *Engine) Relationships() int { return e.rel.Len() }

// Perf returns the engine's phase timing collector.
func (e *Engine) Perf() *telemetry.PerfCollector { return e.perf }

// Latest returns the most recently published snapshot. Snapshots are
// immutable once published, so the returned value can be held and read
// across any number of later frames.
func (e *Engine) Latest() *Snapshot { return e.published.Load() }

// QueueCreate schedules an entity spawn for the next frame boundary. The
// result arrives on the returned channel once the command is applied.
func (e *Engine) QueueCreate(pos components.Position) <-chan CreateResult {
	ch := make(chan CreateResult, 1)
	e.commands <- command{kind: cmdCreate, pos: pos, created: ch}
	return ch
}

// QueueDestroy schedules an entity removal for the next frame boundary.
func (e *Engine) QueueDestroy(id EntityID) <-chan error {
	ch := make(chan error, 1)
	e.commands <- command{kind: cmdDestroy, id: id, done: ch}
	return ch
}

// Step advances the world by one frame: commands, forces, integration,
// spatial index, social propagation, group detection, snapshot. Returns a
// non-nil error only on a fatal invariant violation; after that the engine
// refuses further steps.
func (e *Engine) Step() error {
	if e.halted != nil {
		return e.halted
	}
	if err := e.store.CheckAlignment(); err != nil {
		e.halted = err
		return err
	}

	d := e.cfg.Derived
	e.perf.StartTick()

	e.perf.StartPhase(telemetry.PhaseCommands)
	e.store.Recycle()
	e.drainCommands()

	e.perf.StartPhase(telemetry.PhaseForces)
	e.store.ClearAccelerations()
	if e.forces != nil {
		e.forces.Apply(e.frame, e.store.Alive, e.store.Positions, e.store.Accelerations)
	}

	e.perf.StartPhase(telemetry.PhaseIntegrate)
	e.pool.run(e.store.Capacity(), func(start, end int, _ *systems.SocialScratch) {
		systems.IntegrateChunk(start, end, d.DT32, d.MaxSpeed32,
			e.store.Alive, e.store.Positions, e.store.Velocities, e.store.Accelerations)
	})

	e.perf.StartPhase(telemetry.PhaseSpatialGrid)
	e.store.RebuildGrid(e.grid)

	e.perf.StartPhase(telemetry.PhaseSocial)
	e.stepSocial()

	e.perf.StartPhase(telemetry.PhaseGroups)
	groupCount := e.groups.Detect(e.grid, e.store.Alive, e.store.Positions, e.rel, e.store.GroupIDs)

	e.perf.StartPhase(telemetry.PhaseSnapshot)
	e.publish(groupCount)

	e.frame++
	e.perf.EndTick()
	e.checkBudget()
	return nil
}

func (e *Engine) stepSocial() {
	params := systems.SocialParams{
		Radius:  float32(e.cfg.Social.InteractionRadius),
		Gain:    float32(e.cfg.Social.ProximityGain),
		Inertia: float32(e.cfg.Social.Inertia),
	}

	e.pool.resetGains()
	e.pool.run(e.store.Capacity(), func(start, end int, scratch *systems.SocialScratch) {
		systems.SocialChunk(start, end, params, e.grid,
			e.store.Alive, e.store.Positions, e.store.Traits,
			e.store.Emotions, e.store.EmotionsNext, scratch)
	})

	// Relationship updates are applied after the barrier, single-threaded.
	// Each pair is owned by its lower-index entity so it appears at most
	// once per frame.
	e.rel.Decay(float32(e.cfg.Social.DecayFactor))
	e.gains = e.pool.collectGains(e.gains[:0])
	e.rel.Apply(e.gains)

	e.store.SwapEmotions()
}

func (e *Engine) publish(groupCount int) {
	e.published.Store(newSnapshot(e.frame+1, e.store, groupCount))
}

func (e *Engine) drainCommands() {
	for {
		select {
		case cmd := <-e.commands:
			e.applyCommand(cmd)
		default:
			return
		}
	}
}

func (e *Engine) applyCommand(cmd command) {
	switch cmd.kind {
	case cmdCreate:
		id, err := e.store.Create(cmd.pos)
		if err != nil {
			slog.Warn("create rejected", "error", err)
		} else {
			e.spawns++
		}
		if cmd.created != nil {
			cmd.created <- CreateResult{ID: id, Err: err}
		}
	case cmdDestroy:
		err := e.store.Destroy(cmd.id)
		if err == nil {
			e.rel.DropEntity(cmd.id)
			e.destroys++
		} else {
			slog.Warn("destroy rejected", "error", err)
		}
		if cmd.done != nil {
			cmd.done <- err
		}
	}
}

func (e *Engine) checkBudget() {
	budget := e.cfg.Derived.FrameBudget
	if budget <= 0 {
		return
	}
	last := e.perf.LastTick()
	if last > budget {
		e.overruns++
		slog.Warn("frame budget exceeded",
			"frame", e.frame,
			"took", last,
			"budget", budget,
			"entities", e.store.Count())
	}
}

// Seed spawns n entities uniformly in [0, extent) on both axes using the
// store directly. Call before the run loop starts.
func (e *Engine) Seed(n int, extent float64, rnd func() float64) error {
	for i := 0; i < n; i++ {
		pos := components.Position{
			X: float32(rnd() * extent),
			Y: float32(rnd() * extent),
		}
		if _, err := e.store.Create(pos); err != nil {
			return fmt.Errorf("seeding entity %d: %w", i, err)
		}
	}
	return nil
}

// Run steps the engine until ctx is done or frames have elapsed. A frames
// value of zero means run until cancelled. Workers are stopped on return.
func (e *Engine) Run(ctx context.Context, frames uint64) error {
	defer e.pool.stop()

	start := time.Now()
	for frames == 0 || e.frame < frames {
		select {
		case <-ctx.Done():
			slog.Info("run cancelled", "frames", e.frame, "elapsed", time.Since(start))
			return ctx.Err()
		default:
		}
		if err := e.Step(); err != nil {
			return err
		}
	}
	slog.Info("run complete",
		"frames", e.frame,
		"elapsed", time.Since(start),
		"budget_overruns", e.overruns)
	return nil
}

// Close stops the worker pool. Safe to call more than once.
func (e *Engine) Close() { e.pool.stop() }
