// Package noise generates temporally smooth, bandlimited random signals used
// to drive the wind field boundaries.
package noise

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrInvalidConfig is returned for invalid generator parameters.
	ErrInvalidConfig = errors.New("noise: invalid config")
	// ErrInvalidTimeStep is returned when Update is called with dt <= 0.
	ErrInvalidTimeStep = errors.New("noise: time step must be positive")
)

// Generator produces one value per mode on every Update.
type Generator interface {
	// Update advances the generator by dt and returns a copy of the output.
	Update(dt float64) ([]float64, error)
	// Output returns a copy of the current output without advancing.
	Output() []float64
	// Modes is the length of the output vector.
	Modes() int
}

// Config holds coloured noise parameters.
type Config struct {
	Modes     int     `yaml:"modes"`
	Damping   float64 `yaml:"damping"`   // <1 underdamped, 1 critical, >1 overdamped
	Bandwidth float64 `yaml:"bandwidth"` // undamped natural frequency (rad/s)
	Gain      float64 `yaml:"gain"`
	Scheme    Scheme  `yaml:"scheme"`
}

// DefaultConfig returns the parameters used for wind boundary noise.
func DefaultConfig() Config {
	return Config{
		Modes:     4,
		Damping:   0.1,
		Bandwidth: 0.2,
		Gain:      2.0,
		Scheme:    SchemeEulerMaruyama,
	}
}

// Validate checks the parameters without building a generator.
func (c Config) Validate() error {
	if c.Modes < 1 {
		return fmt.Errorf("%w: modes must be >= 1, got %d", ErrInvalidConfig, c.Modes)
	}
	params := []struct {
		name string
		v    float64
	}{{"damping", c.Damping}, {"bandwidth", c.Bandwidth}, {"gain", c.Gain}}
	for _, p := range params {
		if p.v < 0 || math.IsNaN(p.v) || math.IsInf(p.v, 0) {
			return fmt.Errorf("%w: %s must be finite and >= 0, got %g", ErrInvalidConfig, p.name, p.v)
		}
	}
	if _, err := integratorFor(c.Scheme); err != nil {
		return err
	}
	return nil
}

// Coloured integrates a damped second-order stochastic system per mode,
// starting from rest. The output is the position of each mode.
type Coloured struct {
	cfg    Config
	st     state
	step   integrator
	normal distuv.Normal
	draws  []float64
}

// NewColoured builds a generator drawing its forcing from src. Two generators
// built with sources in the same state produce identical output for the same
// dt sequence.
func NewColoured(cfg Config, src rand.Source) (*Coloured, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("%w: random source is required", ErrInvalidConfig)
	}
	step, _ := integratorFor(cfg.Scheme)
	w := cfg.Bandwidth
	return &Coloured{
		cfg: cfg,
		st: state{
			pos: make([]float64, cfg.Modes),
			vel: make([]float64, cfg.Modes),
			a0:  -w * w,
			a1:  -2 * cfg.Damping * w,
			b:   cfg.Gain * w * w,
		},
		step:   step,
		normal: distuv.Normal{Mu: 0, Sigma: 1, Src: src},
		draws:  make([]float64, cfg.Modes),
	}, nil
}

// Update implements Generator.
func (g *Coloured) Update(dt float64) ([]float64, error) {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidTimeStep, dt)
	}
	for i := range g.draws {
		g.draws[i] = g.normal.Rand()
	}
	g.step.advance(&g.st, g.draws, dt)
	return g.Output(), nil
}

// Output implements Generator.
func (g *Coloured) Output() []float64 {
	out := make([]float64, len(g.st.pos))
	copy(out, g.st.pos)
	return out
}

// Velocity returns a copy of the first-derivative state.
func (g *Coloured) Velocity() []float64 {
	out := make([]float64, len(g.st.vel))
	copy(out, g.st.vel)
	return out
}

// Modes implements Generator.
func (g *Coloured) Modes() int { return g.cfg.Modes }

// Scheme reports the discretisation chosen at construction.
func (g *Coloured) Scheme() Scheme { return g.cfg.Scheme }
