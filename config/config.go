// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalidConfiguration marks a configuration value that fails the
// startup validation. Errors wrapping it are fatal: the engine refuses to
// start rather than run with a malformed parameter.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Config holds all simulation configuration parameters.
type Config struct {
	World      WorldConfig      `yaml:"world"`
	Sim        SimConfig        `yaml:"sim"`
	Social     SocialConfig     `yaml:"social"`
	Groups     GroupsConfig     `yaml:"groups"`
	Traits     TraitsConfig     `yaml:"traits"`
	Population PopulationConfig `yaml:"population"`
	Forces     ForcesConfig     `yaml:"forces"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// WorldConfig holds entity capacity and spatial partitioning parameters.
type WorldConfig struct {
	MaxEntities int     `yaml:"max_entities"` // hard capacity of the entity store
	CellSize    float64 `yaml:"cell_size"`    // spatial grid cell side length
}

// SimConfig holds frame stepping parameters.
type SimConfig struct {
	DT            float64 `yaml:"dt"`              // seconds per frame
	MaxSpeed      float64 `yaml:"max_speed"`       // velocity magnitude clamp, 0 = unclamped
	FrameBudgetMS float64 `yaml:"frame_budget_ms"` // soft wall-clock budget per frame
	Workers       int     `yaml:"workers"`         // pipeline worker count, 0 = GOMAXPROCS
}

// SocialConfig holds relationship and emotion propagation parameters.
type SocialConfig struct {
	InteractionRadius float64 `yaml:"interaction_radius"` // neighbor radius for social influence
	ProximityGain     float64 `yaml:"proximity_gain"`     // relationship gain per co-located frame
	DecayFactor       float64 `yaml:"decay_factor"`       // per-frame multiplicative relationship decay
	Inertia           float64 `yaml:"inertia"`            // emotional blend weight on prior state
}

// GroupsConfig holds density clustering parameters.
type GroupsConfig struct {
	Radius             float64 `yaml:"radius"`              // neighbor radius for clustering
	MinSize            int     `yaml:"min_size"`            // neighbors required for a core point
	UseCoherence       bool    `yaml:"use_coherence"`       // gate merges on relationship strength
	CoherenceThreshold float64 `yaml:"coherence_threshold"` // minimum strength to merge when gating
	ContinuityOverlap  float64 `yaml:"continuity_overlap"`  // membership overlap fraction to keep a group id
}

// TraitsConfig holds trait sampling parameters.
type TraitsConfig struct {
	Mean   float64 `yaml:"mean"`
	Stddev float64 `yaml:"stddev"`
}

// PopulationConfig holds initial population parameters.
type PopulationConfig struct {
	Initial     int     `yaml:"initial"`
	SpawnExtent float64 `yaml:"spawn_extent"` // initial placement is uniform in [0, extent)^2
}

// ForcesConfig holds parameters for the built-in force providers.
type ForcesConfig struct {
	Wander WanderConfig `yaml:"wander"`
}

// WanderConfig holds the coherent-noise wander field parameters.
type WanderConfig struct {
	Strength  float64 `yaml:"strength"`   // acceleration magnitude
	Scale     float64 `yaml:"scale"`      // noise frequency over world coordinates
	TimeSpeed float64 `yaml:"time_speed"` // noise animation speed
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow float64 `yaml:"stats_window"` // seconds per stats window
	PerfWindow  int     `yaml:"perf_window"`  // frames in the rolling perf window
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	DT32        float32       // Sim.DT as float32
	MaxSpeed32  float32       // Sim.MaxSpeed as float32
	CellSize32  float32       // World.CellSize as float32
	FrameBudget time.Duration // Sim.FrameBudgetMS as a duration
}

// global holds the loaded configuration.
var global *Config

// Init loads and validates configuration from the given path, or uses
// embedded defaults if path is empty. Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used. The result is validated;
// any out-of-range parameter fails here rather than mid-frame.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Validate checks every parameter against its documented range.
// All violations wrap ErrInvalidConfiguration.
func (c *Config) Validate() error {
	checks := []struct {
		ok  bool
		msg string
	}{
		{c.World.MaxEntities > 0, fmt.Sprintf("world.max_entities must be > 0, got %d", c.World.MaxEntities)},
		{c.World.CellSize > 0, fmt.Sprintf("world.cell_size must be > 0, got %v", c.World.CellSize)},
		{c.Sim.DT > 0, fmt.Sprintf("sim.dt must be > 0, got %v", c.Sim.DT)},
		{c.Sim.MaxSpeed >= 0, fmt.Sprintf("sim.max_speed must be >= 0, got %v", c.Sim.MaxSpeed)},
		{c.Sim.FrameBudgetMS > 0, fmt.Sprintf("sim.frame_budget_ms must be > 0, got %v", c.Sim.FrameBudgetMS)},
		{c.Sim.Workers >= 0, fmt.Sprintf("sim.workers must be >= 0, got %d", c.Sim.Workers)},
		{c.Social.InteractionRadius > 0, fmt.Sprintf("social.interaction_radius must be > 0, got %v", c.Social.InteractionRadius)},
		{c.Social.ProximityGain >= 0, fmt.Sprintf("social.proximity_gain must be >= 0, got %v", c.Social.ProximityGain)},
		{c.Social.DecayFactor >= 0 && c.Social.DecayFactor <= 1, fmt.Sprintf("social.decay_factor must be in [0,1], got %v", c.Social.DecayFactor)},
		{c.Social.Inertia >= 0 && c.Social.Inertia <= 1, fmt.Sprintf("social.inertia must be in [0,1], got %v", c.Social.Inertia)},
		{c.Groups.Radius > 0, fmt.Sprintf("groups.radius must be > 0, got %v", c.Groups.Radius)},
		{c.Groups.MinSize >= 1, fmt.Sprintf("groups.min_size must be >= 1, got %d", c.Groups.MinSize)},
		{c.Groups.CoherenceThreshold >= 0 && c.Groups.CoherenceThreshold <= 1, fmt.Sprintf("groups.coherence_threshold must be in [0,1], got %v", c.Groups.CoherenceThreshold)},
		{c.Groups.ContinuityOverlap >= 0 && c.Groups.ContinuityOverlap <= 1, fmt.Sprintf("groups.continuity_overlap must be in [0,1], got %v", c.Groups.ContinuityOverlap)},
		{c.Traits.Stddev >= 0, fmt.Sprintf("traits.stddev must be >= 0, got %v", c.Traits.Stddev)},
		{c.Population.Initial >= 0, fmt.Sprintf("population.initial must be >= 0, got %d", c.Population.Initial)},
		{c.Population.Initial <= c.World.MaxEntities, fmt.Sprintf("population.initial %d exceeds world.max_entities %d", c.Population.Initial, c.World.MaxEntities)},
		{c.Telemetry.StatsWindow > 0, fmt.Sprintf("telemetry.stats_window must be > 0, got %v", c.Telemetry.StatsWindow)},
	}
	for _, ch := range checks {
		if !ch.ok {
			return fmt.Errorf("%w: %s", ErrInvalidConfiguration, ch.msg)
		}
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.DT32 = float32(c.Sim.DT)
	c.Derived.MaxSpeed32 = float32(c.Sim.MaxSpeed)
	c.Derived.CellSize32 = float32(c.World.CellSize)
	c.Derived.FrameBudget = time.Duration(c.Sim.FrameBudgetMS * float64(time.Millisecond))
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
