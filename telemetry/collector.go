// Package telemetry tracks run statistics, step timings and snapshots, and
// writes them as CSV and JSON output.
package telemetry

import (
	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/plume/geom"
	"github.com/pthm-cable/plume/plume"
)

// Collector turns the simulator's cumulative counters into per-window
// WindowStats.
type Collector struct {
	windowSteps int
	windowStart int
	last        plume.Counters
}

// NewCollector creates a collector flushing every windowSteps steps.
func NewCollector(windowSteps int) *Collector {
	if windowSteps < 1 {
		windowSteps = 1
	}
	return &Collector{windowSteps: windowSteps}
}

// ShouldFlush reports whether a full window has elapsed at step.
func (c *Collector) ShouldFlush(step int) bool {
	return step-c.windowStart >= c.windowSteps
}

// Sample is the simulation state at the end of a window.
type Sample struct {
	Step     int
	Time     float64
	Puffs    []plume.Puff
	Counters plume.Counters
	MeanWind geom.Vec
	Probes   []float64
}

// Flush produces the stats for the window ending at s.Step and starts the
// next window.
func (c *Collector) Flush(s Sample) WindowStats {
	mean, p10, p50, p90 := DistributionStats(PuffRadii(s.Puffs))

	var probeMean, probeMax float64
	if len(s.Probes) > 0 {
		probeMean = floats.Sum(s.Probes) / float64(len(s.Probes))
		probeMax = floats.Max(s.Probes)
	}

	stats := WindowStats{
		WindowStart: c.windowStart,
		WindowEnd:   s.Step,
		SimTime:     s.Time,
		Puffs:       len(s.Puffs),
		TotalAmount: TotalAmount(s.Puffs),
		Released:    s.Counters.Released - c.last.Released,
		Evicted:     s.Counters.Evicted - c.last.Evicted,
		Exited:      s.Counters.Exited - c.last.Exited,
		RadiusMean:  mean,
		RadiusP10:   p10,
		RadiusP50:   p50,
		RadiusP90:   p90,
		MeanWindU:   s.MeanWind.U,
		MeanWindV:   s.MeanWind.V,
		ProbeMean:   probeMean,
		ProbeMax:    probeMax,
	}

	c.windowStart = s.Step
	c.last = s.Counters
	return stats
}

// WindowSteps returns the number of steps per window.
func (c *Collector) WindowSteps() int { return c.windowSteps }
