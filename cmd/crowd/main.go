package main

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/crowd/config"
	"github.com/pthm-cable/crowd/forces"
	"github.com/pthm-cable/crowd/sim"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "crowd",
		Short: "Crowd - large-scale social entity simulation",
		Long: `crowd runs a real-time simulation of up to 100k entities with motion,
social relationship tracking, emotional propagation, and group detection.

Use "run" for headless batch runs with CSV output, or "serve" to stream
live snapshots to websocket clients.`,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file (empty = embedded defaults)")
	rootCmd.PersistentFlags().Int64("seed", 0, "RNG seed (0 = time-based)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newServeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("crowd version %s\n", version)
		},
	}
}

// setupEngine loads config, configures logging, and builds a seeded engine
// with the wander force field attached.
func setupEngine(cmd *cobra.Command) (*sim.Engine, *config.Config, int64, error) {
	configPath, _ := cmd.Flags().GetString("config")
	seed, _ := cmd.Flags().GetInt64("seed")

	// JSON to stdout for structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.Init(configPath); err != nil {
		return nil, nil, 0, fmt.Errorf("loading config: %w", err)
	}
	cfg := config.Cfg()

	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	engine := sim.NewEngine(cfg, uint64(seed))
	engine.SetForces(forces.NewWander(cfg.Forces.Wander, cfg.Derived.DT32, seed))

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	if err := engine.Seed(cfg.Population.Initial, cfg.Population.SpawnExtent, rng.Float64); err != nil {
		engine.Close()
		return nil, nil, 0, fmt.Errorf("seeding population: %w", err)
	}

	slog.Info("engine ready",
		"entities", cfg.Population.Initial,
		"capacity", cfg.World.MaxEntities,
		"seed", seed)

	return engine, cfg, seed, nil
}
