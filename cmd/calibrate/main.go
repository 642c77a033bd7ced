// Package main fits the wind boundary noise gain and bandwidth so the
// generated signal matches a target spread and autocorrelation.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/plume/calibrate"
	"github.com/pthm-cable/plume/config"
)

// evalRecord is one row of calibrate_log.csv.
type evalRecord struct {
	Eval      int     `csv:"eval"`
	Loss      float64 `csv:"loss"`
	Gain      float64 `csv:"gain"`
	Bandwidth float64 `csv:"bandwidth"`
	Std       float64 `csv:"std"`
	AutoCorr  float64 `csv:"auto_corr"`
}

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	targetStd := flag.Float64("target-std", 0, "Target stationary standard deviation (required)")
	targetAC := flag.Float64("target-autocorr", 0.9, "Target autocorrelation at -lag")
	lag := flag.Float64("lag", 1, "Autocorrelation lag in seconds")
	dt := flag.Float64("dt", 0, "Generator time step (0 = use config run.dt)")
	steps := flag.Int("steps", 20000, "Recorded steps per seed")
	burnIn := flag.Int("burn-in", 2000, "Steps discarded before recording")
	seeds := flag.Int("seeds", 3, "Number of seeds per evaluation")
	maxEvals := flag.Int("max-evals", 200, "Maximum number of evaluations")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	base := cfg.Wind.Noise

	run := calibrate.RunSettings{DT: *dt, Steps: *steps, BurnIn: *burnIn}
	if run.DT == 0 {
		run.DT = cfg.Run.DT
	}
	run.Seeds = make([]uint64, *seeds)
	for i := range run.Seeds {
		run.Seeds[i] = uint64(i*1000 + 42)
	}

	var records []evalRecord
	bestLoss := 1e9
	startTime := time.Now()

	opts := calibrate.Options{
		Target:   calibrate.Target{Std: *targetStd, AutoCorr: *targetAC, Lag: *lag},
		Run:      run,
		MaxEvals: *maxEvals,
		OnEval: func(e calibrate.Eval) {
			bestLoss = min(bestLoss, e.Loss)
			records = append(records, evalRecord{
				Eval:      e.N,
				Loss:      e.Loss,
				Gain:      e.Params[0],
				Bandwidth: e.Params[1],
				Std:       e.Measured.Std,
				AutoCorr:  e.Measured.AutoCorr,
			})

			elapsed := time.Since(startTime)
			remaining := time.Duration(*maxEvals-e.N) * (elapsed / time.Duration(e.N))
			fmt.Printf("Eval %d/%d: loss=%.5f std=%.4f ac=%.4f (best=%.5f) | elapsed: %s, ETA: %s\n",
				e.N, *maxEvals, e.Loss, e.Measured.Std, e.Measured.AutoCorr, bestLoss,
				formatDuration(elapsed), formatDuration(remaining))
		},
	}

	fmt.Printf("Starting Nelder-Mead calibration: target std=%.4f ac=%.4f at lag %.2fs, max_evals=%d\n",
		*targetStd, *targetAC, *lag, *maxEvals)
	fmt.Printf("Seeds per evaluation: %d, steps per run: %d, dt: %g\n", *seeds, *steps, run.DT)

	result, err := calibrate.Fit(base, opts)
	if err != nil {
		log.Fatalf("calibration failed: %v", err)
	}

	logPath := filepath.Join(*outputDir, "calibrate_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	if err := gocsv.MarshalFile(&records, logFile); err != nil {
		log.Printf("failed to write evaluation log: %v", err)
	}
	logFile.Close()

	fmt.Printf("\nCalibration complete after %d evaluations in %s (%s)\n",
		result.Evals, formatDuration(time.Since(startTime)), result.Status)
	fmt.Printf("Loss: %.5f (initial %.5f)\n", result.Loss, result.Initial)
	fmt.Printf("Measured: std=%.4f ac=%.4f\n", result.Measured.Std, result.Measured.AutoCorr)

	std, ac := calibrate.Stationary(result.Config, *lag)
	fmt.Println("\nBest parameters:")
	fmt.Printf("  gain: %.6f\n", result.Config.Gain)
	fmt.Printf("  bandwidth: %.6f\n", result.Config.Bandwidth)
	fmt.Printf("  stationary std=%.4f ac=%.4f (continuous time)\n", std, ac)

	cfg.Wind.Noise = result.Config
	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := cfg.WriteYAML(configOutPath); err != nil {
		log.Printf("failed to write best config: %v", err)
	} else {
		fmt.Printf("\nBest config saved to: %s\n", configOutPath)
	}
}
