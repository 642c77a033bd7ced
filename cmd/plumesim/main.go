package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/pthm-cable/plume/config"
	"github.com/pthm-cable/plume/sim"
	"github.com/pthm-cable/plume/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	seed := flag.Uint64("seed", 0, "RNG seed (0 = use config)")
	steps := flag.Int("steps", 0, "Number of steps (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs, snapshots and config")
	logStats := flag.Bool("log-stats", false, "Output window stats via slog")
	snapshotEvery := flag.Int("snapshot-every", -1, "Snapshot interval in steps (-1 = use config, 0 = off)")
	ensemble := flag.Int("ensemble", 0, "Run N independent seeds in parallel and report their end state")
	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *seed != 0 {
		cfg.Run.Seed = *seed
	}
	if *steps > 0 {
		cfg.Run.Steps = *steps
	}
	if *snapshotEvery >= 0 {
		cfg.Telemetry.SnapshotEvery = *snapshotEvery
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *ensemble > 0 {
		err = runEnsemble(ctx, cfg, *ensemble)
	} else {
		err = run(ctx, cfg, *outputDir, *logStats)
	}
	if err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, outputDir string, logStats bool) error {
	s, err := sim.New(cfg, cfg.Run.Seed)
	if err != nil {
		return err
	}
	if limit := s.Wind().MaxStableStep(); cfg.Run.DT > limit {
		slog.Warn("time step exceeds wind diffusion stability limit",
			"dt", cfg.Run.DT,
			"max_stable_dt", limit,
		)
	}

	out, err := telemetry.NewOutputManager(outputDir)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := out.WriteConfig(cfg); err != nil {
		return err
	}

	perf := telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow)
	s.SetPerf(perf)

	var collector *telemetry.Collector
	if cfg.Telemetry.StatsEvery > 0 {
		collector = telemetry.NewCollector(cfg.Telemetry.StatsEvery)
	}
	snapEvery := cfg.Telemetry.SnapshotEvery

	slog.Info("starting simulation",
		"seed", cfg.Run.Seed,
		"steps", cfg.Run.Steps,
		"dt", cfg.Run.DT,
		"stats_every", cfg.Telemetry.StatsEvery,
		"snapshot_every", snapEvery,
	)
	start := time.Now()

	for i := 0; i < cfg.Run.Steps; i++ {
		if err := ctx.Err(); err != nil {
			slog.Warn("simulation interrupted", "step", s.Steps())
			return err
		}

		perf.StartStep()
		if err := s.Step(cfg.Run.DT); err != nil {
			return err
		}
		step := s.Steps()

		if collector != nil && collector.ShouldFlush(step) {
			perf.StartPhase(telemetry.PhaseConcentration)
			sample := s.Sample()

			perf.StartPhase(telemetry.PhaseTelemetry)
			stats := collector.Flush(sample)
			if logStats {
				stats.LogStats()
				slog.Info("perf", "stats", perf.Stats())
			}
			if err := out.WriteStats(stats); err != nil {
				return err
			}
			if err := out.WritePerf(perf.Stats(), step); err != nil {
				return err
			}
			if err := out.WriteProbes(step, sample.Time, s.Probes(), sample.Probes); err != nil {
				return err
			}
			if err := out.WritePuffs(step, sample.Time, sample.Puffs); err != nil {
				return err
			}
		}

		if snapEvery > 0 && step%snapEvery == 0 && out != nil {
			perf.StartPhase(telemetry.PhaseConcentration)
			snap, err := s.Snapshot(true)
			if err != nil {
				return err
			}
			perf.StartPhase(telemetry.PhaseTelemetry)
			path, err := out.WriteSnapshot(snap)
			if err != nil {
				return err
			}
			png, err := out.WriteHeatmap(snap)
			if err != nil {
				return err
			}
			slog.Info("snapshot saved", "path", path, "heatmap", png, "step", step)
		}
		perf.EndStep()
	}

	slog.Info("simulation complete",
		"steps", s.Steps(),
		"sim_time", s.Time(),
		"puffs", s.Plume().Len(),
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
	return nil
}

func runEnsemble(ctx context.Context, cfg *config.Config, n int) error {
	seeds := make([]uint64, n)
	for i := range seeds {
		seeds[i] = cfg.Run.Seed + uint64(i)
	}

	slog.Info("starting ensemble", "members", n, "first_seed", seeds[0], "steps", cfg.Run.Steps)
	start := time.Now()
	results, err := sim.RunEnsemble(ctx, cfg, seeds, cfg.Run.Steps)
	if err != nil {
		return err
	}
	for _, r := range results {
		slog.Info("member",
			"seed", r.Seed,
			"sim_time", r.Time,
			"puffs", r.Puffs,
			"released", r.Counters.Released,
			"evicted", r.Counters.Evicted,
			"exited", r.Counters.Exited,
			"probes", r.Probes,
		)
	}
	slog.Info("ensemble complete", "elapsed", time.Since(start).Round(time.Millisecond).String())
	return nil
}
