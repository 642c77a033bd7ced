package calibrate

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/plume/noise"
)

// ErrInvalidTarget is returned for unusable targets or run settings.
var ErrInvalidTarget = errors.New("calibrate: invalid target")

// Target is the statistical signature to reproduce.
type Target struct {
	Std      float64 `yaml:"std"`       // stationary standard deviation of the output
	AutoCorr float64 `yaml:"auto_corr"` // autocorrelation at a lag of Lag seconds
	Lag      float64 `yaml:"lag"`
}

// RunSettings controls how each candidate is simulated.
type RunSettings struct {
	DT     float64  // generator time step
	Steps  int      // recorded steps per seed
	BurnIn int      // steps discarded before recording
	Seeds  []uint64 // one generator per seed, simulated concurrently
}

// DefaultRunSettings returns settings suitable for the default noise.
func DefaultRunSettings() RunSettings {
	return RunSettings{DT: 0.1, Steps: 20000, BurnIn: 2000, Seeds: []uint64{42, 1042, 2042}}
}

func (r RunSettings) validate() error {
	if !(r.DT > 0) || math.IsInf(r.DT, 0) {
		return fmt.Errorf("%w: dt must be finite and > 0, got %g", ErrInvalidTarget, r.DT)
	}
	if r.Steps < 2 || r.BurnIn < 0 {
		return fmt.Errorf("%w: need >= 2 steps and a non-negative burn-in", ErrInvalidTarget)
	}
	if len(r.Seeds) == 0 {
		return fmt.Errorf("%w: at least one seed is required", ErrInvalidTarget)
	}
	return nil
}

// Measured holds the statistics of a simulated output, averaged over modes
// and seeds.
type Measured struct {
	Std      float64
	AutoCorr float64
}

// Measure simulates cfg under run and returns the output statistics at a lag
// of lagSteps steps.
func Measure(cfg noise.Config, run RunSettings, lagSteps int) (Measured, error) {
	if err := run.validate(); err != nil {
		return Measured{}, err
	}
	if lagSteps < 1 || lagSteps >= run.Steps {
		return Measured{}, fmt.Errorf("%w: lag of %d steps outside [1, %d)", ErrInvalidTarget, lagSteps, run.Steps)
	}
	if err := cfg.Validate(); err != nil {
		return Measured{}, err
	}

	perSeed := make([]Measured, len(run.Seeds))
	errs := make([]error, len(run.Seeds))
	var wg sync.WaitGroup
	for i, seed := range run.Seeds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			perSeed[i], errs[i] = measureSeed(cfg, run, lagSteps, seed)
		}()
	}
	wg.Wait()
	if err := errors.Join(errs...); err != nil {
		return Measured{}, err
	}

	var out Measured
	for _, m := range perSeed {
		out.Std += m.Std
		out.AutoCorr += m.AutoCorr
	}
	n := float64(len(perSeed))
	out.Std /= n
	out.AutoCorr /= n
	return out, nil
}

func measureSeed(cfg noise.Config, run RunSettings, lagSteps int, seed uint64) (Measured, error) {
	g, err := noise.NewColoured(cfg, rand.NewPCG(seed, seed))
	if err != nil {
		return Measured{}, err
	}
	for i := 0; i < run.BurnIn; i++ {
		if _, err := g.Update(run.DT); err != nil {
			return Measured{}, err
		}
	}

	series := make([][]float64, cfg.Modes)
	for m := range series {
		series[m] = make([]float64, run.Steps)
	}
	for i := 0; i < run.Steps; i++ {
		out, err := g.Update(run.DT)
		if err != nil {
			return Measured{}, err
		}
		for m, v := range out {
			series[m][i] = v
		}
	}

	var res Measured
	for _, x := range series {
		res.Std += stat.PopStdDev(x, nil)
		ac := stat.Correlation(x[:len(x)-lagSteps], x[lagSteps:], nil)
		if math.IsNaN(ac) {
			// A constant series (zero gain) has no defined correlation.
			ac = 0
		}
		res.AutoCorr += ac
	}
	res.Std /= float64(cfg.Modes)
	res.AutoCorr /= float64(cfg.Modes)
	return res, nil
}

// Loss scores how far m is from target: squared relative error in spread plus
// squared error in autocorrelation.
func Loss(m Measured, target Target) float64 {
	rel := (m.Std - target.Std) / target.Std
	dc := m.AutoCorr - target.AutoCorr
	return rel*rel + dc*dc
}

// Stationary returns the continuous-time stationary standard deviation and
// autocorrelation at lag of the Euler-Maruyama process for cfg. For
// SchemeOriginal the forcing is not scaled by sqrt(dt), so its spread is
// the returned value times sqrt(dt).
func Stationary(cfg noise.Config, lag float64) (std, autoCorr float64) {
	w, z := cfg.Bandwidth, cfg.Damping
	if w <= 0 || z <= 0 {
		return math.Inf(1), 1
	}
	std = cfg.Gain * math.Sqrt(w/(4*z))

	decay := math.Exp(-z * w * lag)
	switch {
	case z < 1:
		wd := w * math.Sqrt(1-z*z)
		autoCorr = decay * (math.Cos(wd*lag) + z*w/wd*math.Sin(wd*lag))
	case z == 1:
		autoCorr = decay * (1 + w*lag)
	default:
		s := w * math.Sqrt(z*z-1)
		autoCorr = decay * (math.Cosh(s*lag) + z*w/s*math.Sinh(s*lag))
	}
	return std, autoCorr
}
