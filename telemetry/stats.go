package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/plume/plume"
)

// WindowStats holds aggregated statistics for a window of steps.
type WindowStats struct {
	WindowStart int     `csv:"-"`
	WindowEnd   int     `csv:"window_end"`
	SimTime     float64 `csv:"sim_time"`

	// Population at window end
	Puffs       int     `csv:"puffs"`
	TotalAmount float64 `csv:"total_amount"`

	// Events during the window
	Released int `csv:"released"`
	Evicted  int `csv:"evicted"`
	Exited   int `csv:"exited"`

	// Puff radius distribution at window end
	RadiusMean float64 `csv:"radius_mean"`
	RadiusP10  float64 `csv:"radius_p10"`
	RadiusP50  float64 `csv:"radius_p50"`
	RadiusP90  float64 `csv:"radius_p90"`

	// Grid-averaged wind
	MeanWindU float64 `csv:"mean_wind_u"`
	MeanWindV float64 `csv:"mean_wind_v"`

	// Probe concentrations at window end
	ProbeMean float64 `csv:"probe_mean"`
	ProbeMax  float64 `csv:"probe_max"`
}

// DistributionStats returns the mean and the 10th, 50th and 90th empirical
// percentiles of values. All are zero for an empty slice.
func DistributionStats(values []float64) (mean, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mean = stat.Mean(sorted, nil)
	p10 = stat.Quantile(0.10, stat.Empirical, sorted, nil)
	p50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	p90 = stat.Quantile(0.90, stat.Empirical, sorted, nil)
	return mean, p10, p50, p90
}

// PuffRadii extracts the radius of every puff.
func PuffRadii(puffs []plume.Puff) []float64 {
	out := make([]float64, len(puffs))
	for i, p := range puffs {
		out[i] = p.Radius()
	}
	return out
}

// TotalAmount sums the odour held by puffs.
func TotalAmount(puffs []plume.Puff) float64 {
	amounts := make([]float64, len(puffs))
	for i, p := range puffs {
		amounts[i] = p.Amount
	}
	return floats.Sum(amounts)
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", s.WindowStart),
		slog.Int("window_end", s.WindowEnd),
		slog.Float64("sim_time", s.SimTime),
		slog.Int("puffs", s.Puffs),
		slog.Float64("total_amount", s.TotalAmount),
		slog.Int("released", s.Released),
		slog.Int("evicted", s.Evicted),
		slog.Int("exited", s.Exited),
		slog.Float64("radius_mean", s.RadiusMean),
		slog.Float64("radius_p10", s.RadiusP10),
		slog.Float64("radius_p50", s.RadiusP50),
		slog.Float64("radius_p90", s.RadiusP90),
		slog.Float64("mean_wind_u", s.MeanWindU),
		slog.Float64("mean_wind_v", s.MeanWindV),
		slog.Float64("probe_mean", s.ProbeMean),
		slog.Float64("probe_max", s.ProbeMax),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEnd,
		"sim_time", s.SimTime,
		"puffs", s.Puffs,
		"released", s.Released,
		"evicted", s.Evicted,
		"exited", s.Exited,
		"radius_p50", s.RadiusP50,
		"probe_max", s.ProbeMax,
	)
}
