package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/crowd/components"
	"github.com/pthm-cable/crowd/sim"
	"github.com/pthm-cable/crowd/telemetry"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation headless",
		Long: `Run steps the simulation as fast as the hardware allows, without
pacing, and writes windowed statistics as CSV when an output directory is
given. Stops after --frames frames, or on interrupt.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			frames, _ := cmd.Flags().GetUint64("frames")
			outputDir, _ := cmd.Flags().GetString("output-dir")
			logStats, _ := cmd.Flags().GetBool("log-stats")
			return runHeadless(cmd, frames, outputDir, logStats)
		},
	}

	cmd.Flags().Uint64("frames", 0, "Stop after this many frames (0 = run until interrupted)")
	cmd.Flags().String("output-dir", "", "Directory for CSV output (empty = disabled)")
	cmd.Flags().Bool("log-stats", false, "Log window stats via slog")
	return cmd
}

func runHeadless(cmd *cobra.Command, frames uint64, outputDir string, logStats bool) error {
	engine, cfg, _, err := setupEngine(cmd)
	if err != nil {
		return err
	}
	defer engine.Close()

	output, err := telemetry.NewOutputManager(outputDir)
	if err != nil {
		return fmt.Errorf("initializing output: %w", err)
	}
	defer output.Close()
	if err := output.WriteConfig(cfg); err != nil {
		return fmt.Errorf("writing run config: %w", err)
	}

	collector := telemetry.NewCollector(cfg.Telemetry.StatsWindow, cfg.Derived.DT32)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting headless run", "frames", frames)

	var lastOverruns, lastSpawns, lastDestroys uint64
	for frames == 0 || engine.Frame() < frames {
		select {
		case <-ctx.Done():
			slog.Info("interrupted", "frame", engine.Frame())
			return nil
		default:
		}

		if err := engine.Step(); err != nil {
			return fmt.Errorf("frame %d: %w", engine.Frame(), err)
		}

		for lastOverruns < engine.BudgetOverruns() {
			collector.RecordBudgetOverrun()
			lastOverruns++
		}
		for lastSpawns < engine.Spawns() {
			collector.RecordSpawn()
			lastSpawns++
		}
		for lastDestroys < engine.Destroys() {
			collector.RecordDestroy()
			lastDestroys++
		}

		if collector.ShouldFlush(engine.Frame()) {
			stats := collector.Flush(engine.Frame(), sampleWorld(engine))
			if logStats {
				stats.LogStats()
			}
			if err := output.WriteStats(stats); err != nil {
				return err
			}
			if err := output.WritePerf(engine.Perf().Stats(), engine.Frame()); err != nil {
				return err
			}
		}
	}

	slog.Info("run finished",
		"frames", engine.Frame(),
		"budget_overruns", engine.BudgetOverruns())
	return nil
}

// sampleWorld gathers population-level values from the latest snapshot for
// a stats window flush.
func sampleWorld(engine *sim.Engine) telemetry.WorldSample {
	snap := engine.Latest()

	sample := telemetry.WorldSample{
		EntityCount:       len(snap.Entities),
		Happiness:         make([]float64, 0, len(snap.Entities)),
		Energy:            make([]float64, 0, len(snap.Entities)),
		GroupCount:        snap.GroupCount,
		RelationshipCount: engine.Relationships(),
	}

	sizes := make(map[int32]int)
	for i := range snap.Entities {
		e := &snap.Entities[i]
		sample.Happiness = append(sample.Happiness, float64(e.Emotion.Happiness))
		sample.Energy = append(sample.Energy, float64(e.Emotion.Energy))
		if e.GroupID != components.NoGroup {
			sample.GroupedCount++
			sizes[e.GroupID]++
		}
	}
	for _, n := range sizes {
		if n > sample.LargestGroup {
			sample.LargestGroup = n
		}
	}
	return sample
}
