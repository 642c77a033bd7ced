package wind

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/pthm-cable/plume/geom"
	"github.com/pthm-cable/plume/noise"
)

func testRegion(t *testing.T) geom.Rect {
	t.Helper()
	r, err := geom.NewRect(0, 0, 100, 100)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func newTestField(t *testing.T, cfg Config, seed uint64) *Field {
	t.Helper()
	f, err := NewField(testRegion(t), cfg, rand.NewPCG(seed, seed^0x9e3779b9))
	if err != nil {
		t.Fatalf("NewField: %v", err)
	}
	return f
}

func TestFieldCreation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NX, cfg.NY = 5, 7
	f := newTestField(t, cfg, 1)

	xs, ys := f.XPoints(), f.YPoints()
	if len(xs) != 5 || len(ys) != 7 {
		t.Fatalf("expected 5x7 nodes, got %dx%d", len(xs), len(ys))
	}
	if xs[0] != 0 || xs[4] != 100 || ys[0] != 0 || ys[6] != 100 {
		t.Errorf("nodes should span the region, got x=%v y=%v", xs, ys)
	}

	u, v := f.VelocityField()
	r, c := u.Dims()
	if r != 5 || c != 7 {
		t.Errorf("expected 5x7 velocity field, got %dx%d", r, c)
	}
	if u.At(2, 3) != cfg.MeanU || v.At(2, 3) != cfg.MeanV {
		t.Errorf("field should start at the mean wind, got (%v, %v)", u.At(2, 3), v.At(2, 3))
	}
}

func TestFieldInvalidConfig(t *testing.T) {
	region := testRegion(t)
	tests := []struct {
		name   string
		region geom.Rect
		mutate func(*Config)
	}{
		{"nx too small", region, func(c *Config) { c.NX = 1 }},
		{"ny zero", region, func(c *Config) { c.NY = 0 }},
		{"negative diffusivity", region, func(c *Config) { c.DiffusivityX = -1 }},
		{"nan mean", region, func(c *Config) { c.MeanU = math.NaN() }},
		{"unknown interpolation", region, func(c *Config) { c.Interpolation = Interpolation(9) }},
		{"too many noise modes", region, func(c *Config) { c.Noise.Modes = 8 }},
		{"too few noise modes", region, func(c *Config) { c.Noise.Modes = 1 }},
		{"degenerate region", geom.Rect{XMin: 0, YMin: 0, XMax: 0, YMax: 10}, func(c *Config) {}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := NewField(tt.region, cfg, rand.NewPCG(1, 2))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}

	t.Run("bad noise", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Noise.Damping = -1
		_, err := NewField(region, cfg, rand.NewPCG(1, 2))
		if !errors.Is(err, noise.ErrInvalidConfig) {
			t.Errorf("expected noise.ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("wrong generator modes", func(t *testing.T) {
		m3, _ := noise.NewMeander(3, 1, 1)
		m4, _ := noise.NewMeander(4, 1, 1)
		_, err := NewFieldWithGenerators(region, DefaultConfig(), m4, m3)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("nil source", func(t *testing.T) {
		_, err := NewField(region, DefaultConfig(), nil)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestFieldZeroNoiseStaysUniform(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Noise.Gain = 0
	cfg.MeanU, cfg.MeanV = 1.5, -0.5
	f := newTestField(t, cfg, 3)

	for i := 0; i < 200; i++ {
		if err := f.Step(0.05); err != nil {
			t.Fatal(err)
		}
	}

	for _, p := range [][2]float64{{0, 0}, {33.3, 71}, {100, 100}, {50, 50}} {
		vel := f.VelocityAt(p[0], p[1])
		if math.Abs(vel.U-1.5) > 1e-9 || math.Abs(vel.V+0.5) > 1e-9 {
			t.Errorf("at %v expected (1.5, -0.5), got %+v", p, vel)
		}
	}
	if math.Abs(f.Time()-10) > 1e-9 {
		t.Errorf("expected time 10, got %v", f.Time())
	}
	if f.Steps() != 200 {
		t.Errorf("expected 200 steps, got %d", f.Steps())
	}
}

func TestFieldNoiseVariesVelocity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Noise.Gain = 5
	f := newTestField(t, cfg, 4)

	for i := 0; i < 300; i++ {
		if err := f.Step(0.05); err != nil {
			t.Fatal(err)
		}
	}

	u, v := f.VelocityField()
	var maxDev float64
	r, c := u.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			maxDev = math.Max(maxDev, math.Abs(u.At(i, j)-cfg.MeanU))
			maxDev = math.Max(maxDev, math.Abs(v.At(i, j)-cfg.MeanV))
		}
	}
	if maxDev == 0 {
		t.Error("expected boundary noise to perturb the field")
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.IsNaN(u.At(i, j)) || math.IsInf(u.At(i, j), 0) {
				t.Fatalf("non-finite velocity at (%d, %d)", i, j)
			}
		}
	}
}

func TestFieldDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	a := newTestField(t, cfg, 99)
	b := newTestField(t, cfg, 99)

	for i := 0; i < 100; i++ {
		dt := 0.02 + 0.01*float64(i%3)
		if err := a.Step(dt); err != nil {
			t.Fatal(err)
		}
		if err := b.Step(dt); err != nil {
			t.Fatal(err)
		}
	}

	ua, va := a.VelocityField()
	ub, vb := b.VelocityField()
	r, c := ua.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if ua.At(i, j) != ub.At(i, j) || va.At(i, j) != vb.At(i, j) {
				t.Fatalf("node (%d, %d) differs between identical runs", i, j)
			}
		}
	}
}

func TestVelocityAtClampsOutsideRegion(t *testing.T) {
	for _, mode := range []Interpolation{InterpBilinear, InterpSpline} {
		t.Run(mode.String(), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.NX, cfg.NY = 5, 5
			cfg.Interpolation = mode
			f := newTestField(t, cfg, 5)
			for i := 0; i < 50; i++ {
				if err := f.Step(0.1); err != nil {
					t.Fatal(err)
				}
			}

			u, v := f.VelocityField()
			tests := []struct {
				x, y   float64
				ni, nj int
			}{
				{1e6, 1e6, 4, 4},
				{-1e6, -1e6, 0, 0},
				{-500, 1e5, 0, 4},
				{1e4, -3, 4, 0},
			}
			for _, tt := range tests {
				got := f.VelocityAt(tt.x, tt.y)
				if math.Abs(got.U-u.At(tt.ni, tt.nj)) > 1e-9 || math.Abs(got.V-v.At(tt.ni, tt.nj)) > 1e-9 {
					t.Errorf("VelocityAt(%v, %v) = %+v, want corner node (%v, %v)",
						tt.x, tt.y, got, u.At(tt.ni, tt.nj), v.At(tt.ni, tt.nj))
				}
			}

			// Far along an edge equals the edge point itself.
			far := f.VelocityAt(40, 1e9)
			edge := f.VelocityAt(40, 100)
			if far != edge {
				t.Errorf("far point %+v should equal edge value %+v", far, edge)
			}
		})
	}
}

func TestInterpolationMatchesNodes(t *testing.T) {
	for _, mode := range []Interpolation{InterpBilinear, InterpSpline} {
		t.Run(mode.String(), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.NX, cfg.NY = 6, 4
			cfg.Interpolation = mode
			f := newTestField(t, cfg, 6)
			for i := 0; i < 40; i++ {
				if err := f.Step(0.1); err != nil {
					t.Fatal(err)
				}
			}

			u, v := f.VelocityField()
			xs, ys := f.XPoints(), f.YPoints()
			for i, x := range xs {
				for j, y := range ys {
					got := f.VelocityAt(x, y)
					if math.Abs(got.U-u.At(i, j)) > 1e-9 || math.Abs(got.V-v.At(i, j)) > 1e-9 {
						t.Errorf("node (%d, %d): got %+v, want (%v, %v)", i, j, got, u.At(i, j), v.At(i, j))
					}
				}
			}
		})
	}
}

func TestSplineRowCacheMatchesFreshFit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NX, cfg.NY = 7, 5
	cfg.Interpolation = InterpSpline
	cached := newTestField(t, cfg, 12)
	fresh := newTestField(t, cfg, 12)

	step := func() {
		t.Helper()
		for _, f := range []*Field{cached, fresh} {
			if err := f.Step(0.1); err != nil {
				t.Fatal(err)
			}
		}
	}
	for i := 0; i < 15; i++ {
		step()
	}

	// Same row repeatedly on one field, a different row between every query
	// on the other.
	pts := [][2]float64{{13, 41}, {57, 41}, {91, 41}, {13, 77}, {57, 77}, {13, 41}}
	for _, p := range pts {
		fresh.VelocityAt(p[0], 3)
		want := fresh.VelocityAt(p[0], p[1])
		if got := cached.VelocityAt(p[0], p[1]); got != want {
			t.Errorf("at %v: cached %+v, fresh %+v", p, got, want)
		}
	}

	// A step refits the columns and must drop the cached row.
	before := cached.VelocityAt(40, 60)
	step()
	fresh.VelocityAt(40, 10)
	want := fresh.VelocityAt(40, 60)
	if got := cached.VelocityAt(40, 60); got != want {
		t.Errorf("after step: cached %+v, fresh %+v", got, want)
	}
	if before == want {
		t.Error("velocity did not change across a noisy step")
	}
}

func TestBilinearMidpoint(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NX, cfg.NY = 3, 3
	f := newTestField(t, cfg, 8)
	for i := 0; i < 20; i++ {
		if err := f.Step(0.1); err != nil {
			t.Fatal(err)
		}
	}

	u, _ := f.VelocityField()
	// Centre of the lower-left cell averages its four nodes.
	want := (u.At(0, 0) + u.At(1, 0) + u.At(0, 1) + u.At(1, 1)) / 4
	got := f.VelocityAt(25, 25)
	if math.Abs(got.U-want) > 1e-12 {
		t.Errorf("cell centre: got %v, want %v", got.U, want)
	}
}

func TestVelocitiesAt(t *testing.T) {
	f := newTestField(t, DefaultConfig(), 10)
	for i := 0; i < 10; i++ {
		if err := f.Step(0.1); err != nil {
			t.Fatal(err)
		}
	}

	pts := []geom.Point{{X: 10, Y: 20}, {X: 55, Y: 5, Z: 3}, {X: 200, Y: -4}}
	got := f.VelocitiesAt(pts)
	if len(got) != len(pts) {
		t.Fatalf("expected %d velocities, got %d", len(pts), len(got))
	}
	for i, p := range pts {
		if want := f.VelocityAt(p.X, p.Y); got[i] != want {
			t.Errorf("point %d: got %+v, want %+v", i, got[i], want)
		}
	}
}

func TestFieldMeanderDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Noise.Gain = 0
	cfg.MeanV = 0

	src := rand.NewPCG(1, 1)
	ncfg := cfg.Noise
	ncfg.Modes = 4
	uGen, err := noise.NewColoured(ncfg, src)
	if err != nil {
		t.Fatal(err)
	}
	vGen, err := noise.NewMeander(4, 0.3, 2.0)
	if err != nil {
		t.Fatal(err)
	}
	f, err := NewFieldWithGenerators(testRegion(t), cfg, uGen, vGen)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 20; i++ {
		if err := f.Step(0.05); err != nil {
			t.Fatal(err)
		}
	}
	// Boundary v is positive during the first half cycle and drags the
	// neighbouring interior with it.
	if got := f.VelocityAt(0, 50).V; got <= 0 {
		t.Errorf("expected meander to push v positive at the edge, got %v", got)
	}
	if got := f.VelocityAt(50, 50).U; math.Abs(got-cfg.MeanU) > 0.5 {
		t.Errorf("u should stay near the mean, got %v", got)
	}
}

func TestFieldInvalidTimeStep(t *testing.T) {
	f := newTestField(t, DefaultConfig(), 1)
	for _, dt := range []float64{0, -1, math.NaN()} {
		if err := f.Step(dt); !errors.Is(err, ErrInvalidTimeStep) {
			t.Errorf("Step(%v): expected ErrInvalidTimeStep, got %v", dt, err)
		}
	}
}

func TestMaxStableStep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NX, cfg.NY = 11, 11 // dx = dy = 10
	cfg.DiffusivityX, cfg.DiffusivityY = 2, 2
	f := newTestField(t, cfg, 1)

	// c = 2*(2/200 + 2/200) = 0.04
	if got := f.MaxStableStep(); math.Abs(got-25) > 1e-9 {
		t.Errorf("MaxStableStep() = %v, want 25", got)
	}

	cfg.DiffusivityX, cfg.DiffusivityY = 0, 0
	f = newTestField(t, cfg, 1)
	if !math.IsInf(f.MaxStableStep(), 1) {
		t.Errorf("expected +Inf with zero diffusivity, got %v", f.MaxStableStep())
	}
}
