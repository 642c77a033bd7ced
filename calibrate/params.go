// Package calibrate fits coloured noise parameters so the generated signal
// matches a target spread and short-lag autocorrelation.
package calibrate

import (
	"github.com/pthm-cable/plume/noise"
)

// ParamSpec defines a single fitted parameter.
type ParamSpec struct {
	Name    string  // YAML key under wind.noise
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Starting value
}

// ParamVector holds the fitted parameters. The optimiser works on values
// normalised to [0, 1] within each spec's bounds.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector returns gain and bandwidth, starting from base.
func NewParamVector(base noise.Config) *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "gain", Min: 0.01, Max: 20, Default: base.Gain},
			{Name: "bandwidth", Min: 0.01, Max: 5, Default: base.Bandwidth},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int { return len(pv.Specs) }

// DefaultVector returns the starting values.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return pv.Clamp(v)
}

// Normalize maps raw values into [0, 1].
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		out[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return out
}

// Denormalize maps [0, 1] values back to raw values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		out[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return out
}

// Clamp limits every value to its bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		out[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return out
}

// Apply returns base with the clamped values substituted.
func (pv *ParamVector) Apply(base noise.Config, values []float64) noise.Config {
	c := pv.Clamp(values)
	base.Gain = c[0]
	base.Bandwidth = c[1]
	return base
}

// Extract reads the fitted parameters out of cfg.
func (pv *ParamVector) Extract(cfg noise.Config) []float64 {
	return []float64{cfg.Gain, cfg.Bandwidth}
}
