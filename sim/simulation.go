// Package sim wires a wind field, a plume simulator and concentration
// evaluation into one seeded, independently steppable simulation.
package sim

import (
	"context"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/plume/concentration"
	"github.com/pthm-cable/plume/config"
	"github.com/pthm-cable/plume/geom"
	"github.com/pthm-cable/plume/plume"
	"github.com/pthm-cable/plume/telemetry"
	"github.com/pthm-cable/plume/wind"
)

// PCG stream selectors; each stochastic component draws from its own stream.
const (
	streamWind  = 0x77696e64
	streamPlume = 0x706c756d
)

// Simulation owns one wind/plume/concentration triple. It is not safe for
// concurrent use; run separate instances for parallelism.
type Simulation struct {
	seed   uint64
	cfg    *config.Config
	wind   *wind.Field
	plume  *plume.Simulator
	calc   *concentration.ValueCalculator
	grid   *concentration.ArrayGenerator
	probes []geom.Point
	perf   *telemetry.PerfCollector
	steps  int
}

// New builds a simulation from cfg with all randomness derived from seed.
func New(cfg *config.Config, seed uint64) (*Simulation, error) {
	field, err := wind.NewField(cfg.Region, cfg.Wind, rand.NewPCG(seed, streamWind))
	if err != nil {
		return nil, fmt.Errorf("building wind field: %w", err)
	}
	ps, err := plume.New(cfg.Region, field, cfg.Plume, rand.NewPCG(seed, streamPlume))
	if err != nil {
		return nil, fmt.Errorf("building plume: %w", err)
	}
	calc, err := concentration.NewValueCalculator(cfg.Concentration)
	if err != nil {
		return nil, fmt.Errorf("building concentration calculator: %w", err)
	}
	grid, err := concentration.NewArrayGenerator(cfg.Concentration)
	if err != nil {
		return nil, fmt.Errorf("building concentration grid: %w", err)
	}
	return &Simulation{
		seed:   seed,
		cfg:    cfg,
		wind:   field,
		plume:  ps,
		calc:   calc,
		grid:   grid,
		probes: append([]geom.Point(nil), cfg.Probes...),
	}, nil
}

// SetPerf makes Step mark its wind and plume phases on p. The caller owns
// StartStep and EndStep. A nil collector disables timing.
func (s *Simulation) SetPerf(p *telemetry.PerfCollector) { s.perf = p }

// Step advances the wind field then the puffs by dt.
func (s *Simulation) Step(dt float64) error {
	if s.perf != nil {
		s.perf.StartPhase(telemetry.PhaseWind)
	}
	if err := s.wind.Step(dt); err != nil {
		return fmt.Errorf("wind step %d: %w", s.steps, err)
	}

	if s.perf != nil {
		s.perf.StartPhase(telemetry.PhasePlume)
	}
	if err := s.plume.Step(dt); err != nil {
		return fmt.Errorf("plume step %d: %w", s.steps, err)
	}
	s.steps++
	return nil
}

// Run takes n steps of the configured dt, calling after (if non-nil) after
// each one. It stops at the first error or when ctx is cancelled.
func (s *Simulation) Run(ctx context.Context, n int, after func(*Simulation) error) error {
	dt := s.cfg.Run.DT
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Step(dt); err != nil {
			return err
		}
		if after != nil {
			if err := after(s); err != nil {
				return err
			}
		}
	}
	return nil
}

// ProbeValues returns the exact concentration at each configured probe.
func (s *Simulation) ProbeValues() []float64 {
	return s.calc.AtPoints(s.plume.Puffs(), s.probes)
}

// ConcentrationAt returns the exact concentration at p.
func (s *Simulation) ConcentrationAt(p geom.Point) float64 {
	return s.calc.AtPoint(s.plume.Puffs(), p)
}

// ConcentrationGrid renders the configured grid.
func (s *Simulation) ConcentrationGrid() (*mat.Dense, error) {
	g := s.cfg.Grid
	return s.grid.Generate(s.plume.Puffs(), s.cfg.Region, g.NX, g.NY, g.Z)
}

// Sample gathers the state the telemetry collector needs.
func (s *Simulation) Sample() telemetry.Sample {
	return telemetry.Sample{
		Step:     s.steps,
		Time:     s.plume.Time(),
		Puffs:    s.plume.Puffs(),
		Counters: s.plume.Counters(),
		MeanWind: s.wind.MeanVelocity(),
		Probes:   s.ProbeValues(),
	}
}

// Snapshot captures puffs, wind nodes and optionally the concentration grid.
func (s *Simulation) Snapshot(withGrid bool) (*telemetry.Snapshot, error) {
	u, v := s.wind.VelocityField()
	snap := &telemetry.Snapshot{
		Version: telemetry.SnapshotVersion,
		Seed:    s.seed,
		Step:    s.steps,
		Time:    s.plume.Time(),
		Region:  s.cfg.Region,
		Puffs:   telemetry.PuffStates(s.plume.Puffs()),
		WindX:   s.wind.XPoints(),
		WindY:   s.wind.YPoints(),
		WindU:   telemetry.Rows(u),
		WindV:   telemetry.Rows(v),
		GridZ:   s.cfg.Grid.Z,
	}
	if withGrid {
		grid, err := s.ConcentrationGrid()
		if err != nil {
			return nil, err
		}
		snap.Concentration = telemetry.Rows(grid)
	}
	return snap, nil
}

// Seed returns the seed the simulation was built from.
func (s *Simulation) Seed() uint64 { return s.seed }

// Steps returns the number of completed steps.
func (s *Simulation) Steps() int { return s.steps }

// Time returns the simulated time in seconds.
func (s *Simulation) Time() float64 { return s.plume.Time() }

// Wind returns the wind field for read access.
func (s *Simulation) Wind() *wind.Field { return s.wind }

// Plume returns the plume simulator for read access.
func (s *Simulation) Plume() *plume.Simulator { return s.plume }

// Probes returns the configured probe points.
func (s *Simulation) Probes() []geom.Point { return append([]geom.Point(nil), s.probes...) }
