package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartFrame uint64  `csv:"-"`
	WindowEndFrame   uint64  `csv:"window_end"`
	SimTimeSec       float64 `csv:"sim_time"`

	// Population at window end
	EntityCount int `csv:"entities"`

	// Lifecycle events during the window
	Spawned   int `csv:"spawned"`
	Destroyed int `csv:"destroyed"`

	// Emotional state distribution (sampled at window end)
	HappinessMean float64 `csv:"happiness_mean"`
	HappinessP10  float64 `csv:"happiness_p10"`
	HappinessP50  float64 `csv:"happiness_p50"`
	HappinessP90  float64 `csv:"happiness_p90"`

	EnergyMean float64 `csv:"energy_mean"`
	EnergyP10  float64 `csv:"energy_p10"`
	EnergyP50  float64 `csv:"energy_p50"`
	EnergyP90  float64 `csv:"energy_p90"`

	// Group structure at window end
	GroupCount   int     `csv:"groups"`
	GroupedCount int     `csv:"grouped"`
	LargestGroup int     `csv:"largest_group"`
	GroupedFrac  float64 `csv:"grouped_frac"`

	// Relationship table
	RelationshipCount int `csv:"relationships"`

	// Frames that exceeded the budget during the window
	BudgetOverruns int `csv:"budget_overruns"`
}

// ComputeDistStats calculates mean and percentiles from sampled values.
// The input slice is sorted in place.
func ComputeDistStats(values []float64) (mean, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}

	mean = stat.Mean(values, nil)

	sort.Float64s(values)
	p10 = stat.Quantile(0.10, stat.Empirical, values, nil)
	p50 = stat.Quantile(0.50, stat.Empirical, values, nil)
	p90 = stat.Quantile(0.90, stat.Empirical, values, nil)

	return mean, p10, p50, p90
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("window_start", s.WindowStartFrame),
		slog.Uint64("window_end", s.WindowEndFrame),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("entities", s.EntityCount),
		slog.Int("spawned", s.Spawned),
		slog.Int("destroyed", s.Destroyed),
		slog.Float64("happiness_mean", s.HappinessMean),
		slog.Float64("happiness_p10", s.HappinessP10),
		slog.Float64("happiness_p50", s.HappinessP50),
		slog.Float64("happiness_p90", s.HappinessP90),
		slog.Float64("energy_mean", s.EnergyMean),
		slog.Float64("energy_p10", s.EnergyP10),
		slog.Float64("energy_p50", s.EnergyP50),
		slog.Float64("energy_p90", s.EnergyP90),
		slog.Int("groups", s.GroupCount),
		slog.Int("grouped", s.GroupedCount),
		slog.Int("largest_group", s.LargestGroup),
		slog.Float64("grouped_frac", s.GroupedFrac),
		slog.Int("relationships", s.RelationshipCount),
		slog.Int("budget_overruns", s.BudgetOverruns),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndFrame,
		"sim_time", s.SimTimeSec,
		"entities", s.EntityCount,
		"spawned", s.Spawned,
		"destroyed", s.Destroyed,
		"happiness_mean", s.HappinessMean,
		"happiness_p50", s.HappinessP50,
		"energy_mean", s.EnergyMean,
		"energy_p50", s.EnergyP50,
		"groups", s.GroupCount,
		"grouped", s.GroupedCount,
		"largest_group", s.LargestGroup,
		"relationships", s.RelationshipCount,
		"budget_overruns", s.BudgetOverruns,
	)
}
