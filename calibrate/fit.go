package calibrate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/plume/noise"
)

// failedLoss is reported for candidates that cannot be simulated.
const failedLoss = 1e9

// Eval records one objective evaluation.
type Eval struct {
	N        int
	Loss     float64
	Params   []float64 // clamped raw values, in ParamVector order
	Measured Measured
}

// Options configures a fit.
type Options struct {
	Target   Target
	Run      RunSettings
	MaxEvals int
	// OnEval, if set, is called after every evaluation in order.
	OnEval func(Eval)
}

// Result is the best candidate seen during a fit.
type Result struct {
	Config   noise.Config
	Loss     float64
	Initial  float64 // loss of the starting point
	Measured Measured
	Evals    int
	Status   string
}

// LagSteps converts the target lag to whole generator steps.
func (o Options) LagSteps() int {
	return max(1, int(math.Round(o.Target.Lag/o.Run.DT)))
}

func (o Options) validate() error {
	t := o.Target
	if !(t.Std > 0) || math.IsInf(t.Std, 0) {
		return fmt.Errorf("%w: std must be finite and > 0, got %g", ErrInvalidTarget, t.Std)
	}
	if !(t.AutoCorr >= -1 && t.AutoCorr <= 1) {
		return fmt.Errorf("%w: autocorrelation must be in [-1, 1], got %g", ErrInvalidTarget, t.AutoCorr)
	}
	if !(t.Lag > 0) || math.IsInf(t.Lag, 0) {
		return fmt.Errorf("%w: lag must be finite and > 0, got %g", ErrInvalidTarget, t.Lag)
	}
	if o.MaxEvals < 1 {
		return fmt.Errorf("%w: max evals must be >= 1, got %d", ErrInvalidTarget, o.MaxEvals)
	}
	return o.Run.validate()
}

// Fit searches gain and bandwidth for the noise config that best matches
// opts.Target, starting from base. Other fields of base are kept. The search
// runs Nelder-Mead over the normalised parameter box and is deterministic for
// fixed options.
func Fit(base noise.Config, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := base.Validate(); err != nil {
		return nil, err
	}

	params := NewParamVector(base)
	lag := opts.LagSteps()

	best := Result{Config: base, Loss: math.Inf(1)}
	evals := 0
	objective := func(x []float64) float64 {
		raw := params.Clamp(params.Denormalize(x))
		cfg := params.Apply(base, raw)
		evals++

		loss := failedLoss
		m, err := Measure(cfg, opts.Run, lag)
		if err == nil {
			loss = Loss(m, opts.Target)
		}
		if evals == 1 {
			best.Initial = loss
		}
		if loss < best.Loss {
			best.Config, best.Loss, best.Measured = cfg, loss, m
		}
		if opts.OnEval != nil {
			opts.OnEval(Eval{N: evals, Loss: loss, Params: raw, Measured: m})
		}
		return loss
	}

	problem := optimize.Problem{Func: objective}
	settings := &optimize.Settings{
		FuncEvaluations: opts.MaxEvals,
		Concurrent:      0,
	}
	method := &optimize.NelderMead{SimplexSize: 0.1}

	initX := params.Normalize(params.DefaultVector())
	res, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil && res == nil {
		return nil, fmt.Errorf("minimize: %w", err)
	}
	best.Evals = evals
	if res != nil {
		best.Status = res.Status.String()
	}
	return &best, nil
}
