// Package plume transports odour puffs released from a point source through a
// wind field.
//
// Each puff is advected by the local wind, jittered by a Brownian term scaled
// by sqrt(dt), and grows in squared radius at a fixed rate. Puffs that leave
// the region are dropped and the population is capped by evicting the oldest.
package plume

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pthm-cable/plume/geom"
	"github.com/pthm-cable/plume/wind"
)

// Puff is a single Gaussian packet of odour.
type Puff struct {
	X, Y, Z float64
	RSq     float64 // squared radius
	Amount  float64
}

// Radius returns the puff radius.
func (p Puff) Radius() float64 { return math.Sqrt(p.RSq) }

// Counters are cumulative totals since construction.
type Counters struct {
	Released int // including the initial burst
	Evicted  int // dropped to respect MaxPuffs
	Exited   int // dropped for leaving the region
}

// Simulator owns the puff population. It is not safe for concurrent use.
type Simulator struct {
	region  geom.Rect
	sampler wind.VelocitySampler
	cfg     Config

	puffs    []Puff // oldest first
	initRSq  float64
	normal   distuv.Normal
	poisson  distuv.Poisson
	counters Counters
	time     float64
}

// New builds a simulator reading velocities from sampler and drawing all
// randomness from src. cfg.InitPuffs puffs are released at the source
// immediately.
func New(region geom.Rect, sampler wind.VelocitySampler, cfg Config, src rand.Source) (*Simulator, error) {
	if err := cfg.Validate(region); err != nil {
		return nil, err
	}
	if sampler == nil {
		return nil, fmt.Errorf("%w: wind sampler is required", ErrInvalidConfig)
	}
	if src == nil {
		return nil, fmt.Errorf("%w: random source is required", ErrInvalidConfig)
	}

	s := &Simulator{
		region:  region,
		sampler: sampler,
		cfg:     cfg,
		puffs:   make([]Puff, 0, cfg.MaxPuffs),
		initRSq: cfg.InitRadius * cfg.InitRadius,
		normal:  distuv.Normal{Mu: 0, Sigma: 1, Src: src},
		poisson: distuv.Poisson{Lambda: 1, Src: src},
	}
	s.release(cfg.InitPuffs)
	checkInvariants(s)
	return s, nil
}

// Step advances the population by dt: release, transport, growth, removal.
func (s *Simulator) Step(dt float64) error {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return fmt.Errorf("%w: got %g", ErrInvalidTimeStep, dt)
	}

	s.release(s.drawReleases(dt))

	sqrtDt := math.Sqrt(dt)
	sx, sy, sz := s.cfg.CentreRelDiffScale[0], s.cfg.CentreRelDiffScale[1], s.cfg.CentreRelDiffScale[2]
	decay := 1.0
	if s.cfg.AmountDecayRate > 0 {
		decay = math.Exp(-s.cfg.AmountDecayRate * dt)
	}

	for i := range s.puffs {
		p := &s.puffs[i]
		w := s.sampler.VelocityAt(p.X, p.Y)
		p.X += w.U*dt + sx*s.normal.Rand()*sqrtDt
		p.Y += w.V*dt + sy*s.normal.Rand()*sqrtDt
		if s.cfg.ModelZDisp {
			p.Z += sz * s.normal.Rand() * sqrtDt
		}
		p.RSq += s.cfg.SpreadRate * dt
		p.Amount *= decay
	}

	s.removeOutside()
	s.time += dt
	checkInvariants(s)
	return nil
}

func (s *Simulator) drawReleases(dt float64) int {
	lambda := s.cfg.ReleaseRate * dt
	if lambda <= 0 {
		return 0
	}
	s.poisson.Lambda = lambda
	return int(s.poisson.Rand())
}

// release adds n puffs at the source, evicting the oldest beyond MaxPuffs.
// Puffs that would be evicted in the same call are counted but never stored,
// so the population never grows past its initial capacity.
func (s *Simulator) release(n int) {
	if n <= 0 {
		return
	}
	s.counters.Released += n

	fresh := min(n, s.cfg.MaxPuffs)
	s.counters.Evicted += n - fresh

	if excess := len(s.puffs) + fresh - s.cfg.MaxPuffs; excess > 0 {
		s.puffs = append(s.puffs[:0], s.puffs[excess:]...)
		s.counters.Evicted += excess
	}
	src := s.cfg.Source
	for i := 0; i < fresh; i++ {
		s.puffs = append(s.puffs, Puff{X: src.X, Y: src.Y, Z: src.Z, RSq: s.initRSq, Amount: s.cfg.PuffAmount})
	}
}

// removeOutside compacts the population in place, keeping order.
func (s *Simulator) removeOutside() {
	kept := s.puffs[:0]
	for _, p := range s.puffs {
		if s.region.Contains(p.X, p.Y) {
			kept = append(kept, p)
		}
	}
	s.counters.Exited += len(s.puffs) - len(kept)
	s.puffs = kept
}

// Puffs returns a copy of the population, oldest first.
func (s *Simulator) Puffs() []Puff {
	out := make([]Puff, len(s.puffs))
	copy(out, s.puffs)
	return out
}

// Len returns the current population size.
func (s *Simulator) Len() int { return len(s.puffs) }

// Counters returns the cumulative release, eviction and exit totals.
func (s *Simulator) Counters() Counters { return s.counters }

// Time returns the simulated time in seconds.
func (s *Simulator) Time() float64 { return s.time }

// Region returns the simulation region.
func (s *Simulator) Region() geom.Rect { return s.region }

// Config returns the parameters the simulator was built with.
func (s *Simulator) Config() Config { return s.cfg }
