package calibrate

import (
	"errors"
	"math"
	"testing"

	"github.com/pthm-cable/plume/noise"
)

func TestMeasureMatchesStationary(t *testing.T) {
	cfg := noise.Config{Modes: 4, Damping: 0.5, Bandwidth: 1, Gain: 1, Scheme: noise.SchemeEulerMaruyama}
	run := RunSettings{DT: 0.01, Steps: 200000, BurnIn: 2000, Seeds: []uint64{1, 2, 3}}

	m, err := Measure(cfg, run, 100)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	std, ac := Stationary(cfg, 1)
	if math.Abs(m.Std-std)/std > 0.15 {
		t.Errorf("simulated std %.4f, stationary %.4f", m.Std, std)
	}
	if math.Abs(m.AutoCorr-ac) > 0.08 {
		t.Errorf("simulated lag-1s autocorrelation %.4f, stationary %.4f", m.AutoCorr, ac)
	}
}

func TestStationaryRegimes(t *testing.T) {
	for _, z := range []float64{0.3, 1, 2} {
		cfg := noise.Config{Modes: 1, Damping: z, Bandwidth: 1, Gain: 1}
		_, ac0 := Stationary(cfg, 0)
		if math.Abs(ac0-1) > 1e-12 {
			t.Errorf("damping %v: autocorrelation at lag 0 = %v, want 1", z, ac0)
		}
		_, acFar := Stationary(cfg, 100)
		if math.Abs(acFar) > 1e-3 {
			t.Errorf("damping %v: autocorrelation at lag 100 = %v, want ~0", z, acFar)
		}
	}

	cfg := noise.Config{Modes: 1, Damping: 0.5, Bandwidth: 2, Gain: 3}
	std, _ := Stationary(cfg, 1)
	if want := 3 * math.Sqrt(2/(4*0.5)); math.Abs(std-want) > 1e-12 {
		t.Errorf("std = %v, want %v", std, want)
	}
}

func TestMeasureZeroGain(t *testing.T) {
	cfg := noise.Config{Modes: 2, Damping: 0.5, Bandwidth: 1, Gain: 0}
	run := RunSettings{DT: 0.1, Steps: 100, Seeds: []uint64{7}}
	m, err := Measure(cfg, run, 1)
	if err != nil {
		t.Fatal(err)
	}
	if m.Std != 0 || m.AutoCorr != 0 {
		t.Errorf("zero gain measured %+v, want zeros", m)
	}
}

func TestMeasureDeterministic(t *testing.T) {
	cfg := noise.DefaultConfig()
	run := RunSettings{DT: 0.1, Steps: 500, BurnIn: 10, Seeds: []uint64{1, 2}}
	a, err := Measure(cfg, run, 5)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Measure(cfg, run, 5)
	if a != b {
		t.Errorf("same settings gave %+v and %+v", a, b)
	}
}

func TestMeasureInvalid(t *testing.T) {
	cfg := noise.DefaultConfig()
	good := RunSettings{DT: 0.1, Steps: 100, Seeds: []uint64{1}}

	tests := []struct {
		name string
		run  RunSettings
		lag  int
	}{
		{"zero dt", RunSettings{DT: 0, Steps: 100, Seeds: []uint64{1}}, 1},
		{"one step", RunSettings{DT: 0.1, Steps: 1, Seeds: []uint64{1}}, 1},
		{"negative burn-in", RunSettings{DT: 0.1, Steps: 100, BurnIn: -1, Seeds: []uint64{1}}, 1},
		{"no seeds", RunSettings{DT: 0.1, Steps: 100}, 1},
		{"zero lag", good, 0},
		{"lag too long", good, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Measure(cfg, tt.run, tt.lag); !errors.Is(err, ErrInvalidTarget) {
				t.Errorf("expected ErrInvalidTarget, got %v", err)
			}
		})
	}

	bad := cfg
	bad.Modes = 0
	if _, err := Measure(bad, good, 1); !errors.Is(err, noise.ErrInvalidConfig) {
		t.Errorf("expected noise.ErrInvalidConfig, got %v", err)
	}
}

func TestLoss(t *testing.T) {
	target := Target{Std: 2, AutoCorr: 0.5, Lag: 1}
	if l := Loss(Measured{Std: 2, AutoCorr: 0.5}, target); l != 0 {
		t.Errorf("exact match loss = %v", l)
	}
	if l := Loss(Measured{Std: 3, AutoCorr: 0.7}, target); math.Abs(l-(0.25+0.04)) > 1e-12 {
		t.Errorf("loss = %v, want 0.29", l)
	}
}

func TestParamVector(t *testing.T) {
	base := noise.DefaultConfig()
	pv := NewParamVector(base)
	if pv.Dim() != 2 {
		t.Fatalf("Dim() = %d, want 2", pv.Dim())
	}

	def := pv.DefaultVector()
	if def[0] != base.Gain || def[1] != base.Bandwidth {
		t.Errorf("DefaultVector() = %v", def)
	}
	back := pv.Denormalize(pv.Normalize(def))
	for i := range def {
		if math.Abs(back[i]-def[i]) > 1e-12 {
			t.Errorf("param %d round trip %v -> %v", i, def[i], back[i])
		}
	}

	clamped := pv.Clamp([]float64{-1, 100})
	if clamped[0] != pv.Specs[0].Min || clamped[1] != pv.Specs[1].Max {
		t.Errorf("Clamp = %v", clamped)
	}

	applied := pv.Apply(base, []float64{3, 0.7})
	if applied.Gain != 3 || applied.Bandwidth != 0.7 || applied.Damping != base.Damping || applied.Modes != base.Modes {
		t.Errorf("Apply = %+v", applied)
	}
	got := pv.Extract(applied)
	if got[0] != 3 || got[1] != 0.7 {
		t.Errorf("Extract = %v", got)
	}
}

func TestFitImproves(t *testing.T) {
	truth := noise.Config{Modes: 2, Damping: 0.5, Bandwidth: 1, Gain: 1, Scheme: noise.SchemeEulerMaruyama}
	std, ac := Stationary(truth, 1)

	base := truth
	base.Gain, base.Bandwidth = 2, 0.5

	var seen []int
	opts := Options{
		Target:   Target{Std: std, AutoCorr: ac, Lag: 1},
		Run:      RunSettings{DT: 0.05, Steps: 4000, BurnIn: 400, Seeds: []uint64{11, 12}},
		MaxEvals: 40,
		OnEval:   func(e Eval) { seen = append(seen, e.N) },
	}
	res, err := Fit(base, opts)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if res.Evals == 0 || len(seen) != res.Evals {
		t.Fatalf("reported %d evals, callback saw %d", res.Evals, len(seen))
	}
	for i, n := range seen {
		if n != i+1 {
			t.Fatalf("callback order broken at %d: %v", i, seen)
		}
	}
	if !(res.Loss < res.Initial) {
		t.Errorf("best loss %v did not improve on initial %v", res.Loss, res.Initial)
	}
	if res.Config.Damping != base.Damping || res.Config.Modes != base.Modes {
		t.Errorf("fit changed fixed fields: %+v", res.Config)
	}

	again, err := Fit(base, Options{Target: opts.Target, Run: opts.Run, MaxEvals: opts.MaxEvals})
	if err != nil {
		t.Fatal(err)
	}
	if again.Config != res.Config || again.Loss != res.Loss {
		t.Error("fit is not deterministic")
	}
}

func TestFitInvalid(t *testing.T) {
	base := noise.DefaultConfig()
	run := RunSettings{DT: 0.1, Steps: 100, Seeds: []uint64{1}}
	tests := []struct {
		name string
		opts Options
	}{
		{"zero std", Options{Target: Target{Std: 0, AutoCorr: 0.5, Lag: 1}, Run: run, MaxEvals: 5}},
		{"autocorr out of range", Options{Target: Target{Std: 1, AutoCorr: 1.5, Lag: 1}, Run: run, MaxEvals: 5}},
		{"zero lag", Options{Target: Target{Std: 1, AutoCorr: 0.5}, Run: run, MaxEvals: 5}},
		{"no evals", Options{Target: Target{Std: 1, AutoCorr: 0.5, Lag: 1}, Run: run}},
		{"bad run", Options{Target: Target{Std: 1, AutoCorr: 0.5, Lag: 1}, MaxEvals: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Fit(base, tt.opts); !errors.Is(err, ErrInvalidTarget) {
				t.Errorf("expected ErrInvalidTarget, got %v", err)
			}
		})
	}
}
