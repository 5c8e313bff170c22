package telemetry

// Collector accumulates events within time windows and produces WindowStats.
type Collector struct {
	windowDurationSec    float64
	windowDurationFrames uint64
	dt                   float32

	windowStartFrame uint64

	// Event counters for the current window
	spawned        int
	destroyed      int
	budgetOverruns int
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per frame (used for frame-to-time conversion)
func NewCollector(windowDurationSec float64, dt float32) *Collector {
	framesPerWindow := uint64(windowDurationSec / float64(dt))
	if framesPerWindow < 1 {
		framesPerWindow = 1
	}

	return &Collector{
		windowDurationSec:    windowDurationSec,
		windowDurationFrames: framesPerWindow,
		dt:                   dt,
	}
}

// RecordSpawn records an entity creation.
func (c *Collector) RecordSpawn() {
	c.spawned++
}

// RecordDestroy records an entity removal.
func (c *Collector) RecordDestroy() {
	c.destroyed++
}

// RecordBudgetOverrun records a frame that exceeded its budget.
func (c *Collector) RecordBudgetOverrun() {
	c.budgetOverruns++
}

// ShouldFlush returns true if enough frames have passed to flush the window.
func (c *Collector) ShouldFlush(currentFrame uint64) bool {
	return currentFrame-c.windowStartFrame >= c.windowDurationFrames
}

// WorldSample carries the population-level values sampled at window end.
type WorldSample struct {
	EntityCount       int
	Happiness         []float64 // one value per live entity
	Energy            []float64
	GroupCount        int
	GroupedCount      int
	LargestGroup      int
	RelationshipCount int
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(currentFrame uint64, sample WorldSample) WindowStats {
	hapMean, hapP10, hapP50, hapP90 := ComputeDistStats(sample.Happiness)
	enMean, enP10, enP50, enP90 := ComputeDistStats(sample.Energy)

	var groupedFrac float64
	if sample.EntityCount > 0 {
		groupedFrac = float64(sample.GroupedCount) / float64(sample.EntityCount)
	}

	stats := WindowStats{
		WindowStartFrame: c.windowStartFrame,
		WindowEndFrame:   currentFrame,
		SimTimeSec:       float64(currentFrame) * float64(c.dt),

		EntityCount: sample.EntityCount,
		Spawned:     c.spawned,
		Destroyed:   c.destroyed,

		HappinessMean: hapMean,
		HappinessP10:  hapP10,
		HappinessP50:  hapP50,
		HappinessP90:  hapP90,

		EnergyMean: enMean,
		EnergyP10:  enP10,
		EnergyP50:  enP50,
		EnergyP90:  enP90,

		GroupCount:   sample.GroupCount,
		GroupedCount: sample.GroupedCount,
		LargestGroup: sample.LargestGroup,
		GroupedFrac:  groupedFrac,

		RelationshipCount: sample.RelationshipCount,
		BudgetOverruns:    c.budgetOverruns,
	}

	c.windowStartFrame = currentFrame
	c.spawned = 0
	c.destroyed = 0
	c.budgetOverruns = 0

	return stats
}

// WindowDurationFrames returns the number of frames per window.
func (c *Collector) WindowDurationFrames() uint64 {
	return c.windowDurationFrames
}
