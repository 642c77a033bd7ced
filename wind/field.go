// Package wind models a time-varying 2-D wind velocity field over the
// simulation region.
//
// Velocities live on an nx by ny grid of nodes spanning the region, surrounded
// by a one-node boundary ring. Each step the ring is set to the mean wind plus
// coloured noise sampled at the four corners and ramped linearly along the
// edges; the interior then evolves by an explicit finite-difference update of
//
//	du/dt = -(u du/dx + v du/dy) + Kx/2 d2u/dx2 + Ky/2 d2u/dy2
//
// (and likewise for v), so the diffusivities Kx, Ky set how far boundary
// fluctuations spread and how smooth the field is in space.
package wind

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/plume/geom"
	"github.com/pthm-cable/plume/noise"
)

// cornerModes is the number of noise modes per velocity component, one per
// region corner in the order top-left, top-right, bottom-left, bottom-right.
const cornerModes = 4

var (
	// ErrInvalidConfig is returned for invalid field parameters.
	ErrInvalidConfig = errors.New("wind: invalid config")
	// ErrInvalidTimeStep is returned when Step is called with dt <= 0.
	ErrInvalidTimeStep = errors.New("wind: time step must be positive")
)

// VelocitySampler is the read-only view of a wind field that puff transport
// needs.
type VelocitySampler interface {
	VelocityAt(x, y float64) geom.Vec
}

// Config holds wind field parameters.
type Config struct {
	NX            int           `yaml:"nx"`
	NY            int           `yaml:"ny"`
	MeanU         float64       `yaml:"mean_u"`
	MeanV         float64       `yaml:"mean_v"`
	DiffusivityX  float64       `yaml:"diffusivity_x"` // Kx, length^2/time
	DiffusivityY  float64       `yaml:"diffusivity_y"` // Ky, length^2/time
	Noise         noise.Config  `yaml:"noise"`
	Interpolation Interpolation `yaml:"interpolation"`
}

// DefaultConfig returns a 15x15 grid with a 1 m/s westerly.
func DefaultConfig() Config {
	return Config{
		NX:            15,
		NY:            15,
		MeanU:         1.0,
		MeanV:         0.0,
		DiffusivityX:  2.0,
		DiffusivityY:  2.0,
		Noise:         noise.DefaultConfig(),
		Interpolation: InterpBilinear,
	}
}

// Validate checks the grid and interpolation settings and the corner mode
// count. The remaining noise parameters are checked by the noise package.
func (c Config) Validate() error {
	if c.NX < 2 || c.NY < 2 {
		return fmt.Errorf("%w: grid must be at least 2x2, got %dx%d", ErrInvalidConfig, c.NX, c.NY)
	}
	if c.DiffusivityX < 0 || c.DiffusivityY < 0 {
		return fmt.Errorf("%w: diffusivities must be >= 0", ErrInvalidConfig)
	}
	for _, v := range [...]float64{c.MeanU, c.MeanV, c.DiffusivityX, c.DiffusivityY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: parameters must be finite", ErrInvalidConfig)
		}
	}
	if c.Noise.Modes != cornerModes {
		return fmt.Errorf("%w: noise modes must be %d (one per region corner), got %d", ErrInvalidConfig, cornerModes, c.Noise.Modes)
	}
	if _, ok := interpNames[c.Interpolation]; !ok {
		return fmt.Errorf("%w: unknown interpolation %d", ErrInvalidConfig, int(c.Interpolation))
	}
	return nil
}

// Field is the wind velocity grid. It is not safe for concurrent use; Step
// and the lookups are expected to be called from one goroutine.
type Field struct {
	region geom.Rect
	cfg    Config

	dx, dy  float64
	bx, by  float64 // Kx/(2dx^2), Ky/(2dy^2)
	c       float64 // 2(bx+by)
	xs, ys  []float64
	rampX   []float64 // 0..1 along the padded x axis
	rampY   []float64
	u, v    *mat.Dense // (nx+2) x (ny+2) including boundary ring
	du, dv  *mat.Dense // nx x ny scratch
	uGen    noise.Generator
	vGen    noise.Generator
	interp  interpolator
	time    float64
	stepped int
}

// NewField builds a field whose boundary noise comes from two coloured
// generators (u and v) drawing from src, one mode per region corner.
func NewField(region geom.Rect, cfg Config, src rand.Source) (*Field, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: random source is required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	uGen, err := noise.NewColoured(cfg.Noise, src)
	if err != nil {
		return nil, fmt.Errorf("u noise: %w", err)
	}
	vGen, err := noise.NewColoured(cfg.Noise, src)
	if err != nil {
		return nil, fmt.Errorf("v noise: %w", err)
	}
	return NewFieldWithGenerators(region, cfg, uGen, vGen)
}

// NewFieldWithGenerators builds a field driven by caller-supplied generators,
// each of which must produce four corner modes.
func NewFieldWithGenerators(region geom.Rect, cfg Config, uGen, vGen noise.Generator) (*Field, error) {
	if err := region.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if uGen == nil || vGen == nil {
		return nil, fmt.Errorf("%w: both noise generators are required", ErrInvalidConfig)
	}
	if uGen.Modes() != cornerModes || vGen.Modes() != cornerModes {
		return nil, fmt.Errorf("%w: generators must have %d modes, got %d and %d",
			ErrInvalidConfig, cornerModes, uGen.Modes(), vGen.Modes())
	}

	nx, ny := cfg.NX, cfg.NY
	f := &Field{
		region: region,
		cfg:    cfg,
		dx:     region.W() / float64(nx-1),
		dy:     region.H() / float64(ny-1),
		xs:     floats.Span(make([]float64, nx), region.XMin, region.XMax),
		ys:     floats.Span(make([]float64, ny), region.YMin, region.YMax),
		rampX:  floats.Span(make([]float64, nx+2), 0, 1),
		rampY:  floats.Span(make([]float64, ny+2), 0, 1),
		u:      mat.NewDense(nx+2, ny+2, nil),
		v:      mat.NewDense(nx+2, ny+2, nil),
		du:     mat.NewDense(nx, ny, nil),
		dv:     mat.NewDense(nx, ny, nil),
		uGen:   uGen,
		vGen:   vGen,
	}
	f.bx = cfg.DiffusivityX / (2 * f.dx * f.dx)
	f.by = cfg.DiffusivityY / (2 * f.dy * f.dy)
	f.c = 2 * (f.bx + f.by)

	fill(f.u, cfg.MeanU)
	fill(f.v, cfg.MeanV)

	ip, err := newInterpolator(cfg.Interpolation, f.xs, f.ys)
	if err != nil {
		return nil, err
	}
	if err := ip.refit(f.u, f.v); err != nil {
		return nil, fmt.Errorf("initial interpolation: %w", err)
	}
	f.interp = ip
	return f, nil
}

func fill(m *mat.Dense, v float64) {
	raw := m.RawMatrix()
	for i := range raw.Data {
		raw.Data[i] = v
	}
}

// Step advances the field by dt.
func (f *Field) Step(dt float64) error {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return fmt.Errorf("%w: got %g", ErrInvalidTimeStep, dt)
	}
	if err := f.applyBoundary(dt); err != nil {
		return err
	}

	f.derivative(f.du, f.u)
	f.derivative(f.dv, f.v)

	nx, ny := f.cfg.NX, f.cfg.NY
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			f.u.Set(i+1, j+1, f.u.At(i+1, j+1)+f.du.At(i, j)*dt)
			f.v.Set(i+1, j+1, f.v.At(i+1, j+1)+f.dv.At(i, j)*dt)
		}
	}

	if err := f.interp.refit(f.u, f.v); err != nil {
		return fmt.Errorf("refitting interpolation: %w", err)
	}
	f.time += dt
	f.stepped++
	return nil
}

// applyBoundary sets the boundary ring from the mean wind plus corner noise.
func (f *Field) applyBoundary(dt float64) error {
	un, err := f.uGen.Update(dt)
	if err != nil {
		return fmt.Errorf("u noise: %w", err)
	}
	vn, err := f.vGen.Update(dt)
	if err != nil {
		return fmt.Errorf("v noise: %w", err)
	}
	ramp(f.u, f.cfg.MeanU, un, f.rampX, f.rampY)
	ramp(f.v, f.cfg.MeanV, vn, f.rampX, f.rampY)
	return nil
}

func ramp(g *mat.Dense, mean float64, corners []float64, rx, ry []float64) {
	tl, tr := mean+corners[0], mean+corners[1]
	bl, br := mean+corners[2], mean+corners[3]
	rows, cols := g.Dims()
	for i := 0; i < rows; i++ {
		g.Set(i, 0, tl+rx[i]*(tr-tl))
		g.Set(i, cols-1, bl+rx[i]*(br-bl))
	}
	for j := 0; j < cols; j++ {
		g.Set(0, j, tl+ry[j]*(bl-tl))
		g.Set(rows-1, j, tr+ry[j]*(br-tr))
	}
}

// derivative fills dst with the time derivative of component f over the
// interior using centred differences. The second differences are expanded
// as bx*(f[i+1]+f[i-1]) + by*(f[j+1]+f[j-1]) - c*f.
func (f *Field) derivative(dst, comp *mat.Dense) {
	nx, ny := f.cfg.NX, f.cfg.NY
	for i := 1; i <= nx; i++ {
		for j := 1; j <= ny; j++ {
			c := comp.At(i, j)
			e, w := comp.At(i+1, j), comp.At(i-1, j)
			n, s := comp.At(i, j+1), comp.At(i, j-1)
			dfdx := (e - w) / (2 * f.dx)
			dfdy := (n - s) / (2 * f.dy)
			adv := -f.u.At(i, j)*dfdx - f.v.At(i, j)*dfdy
			diff := f.bx*(e+w) + f.by*(n+s) - f.c*c
			dst.Set(i-1, j-1, adv+diff)
		}
	}
}

// VelocityAt implements VelocitySampler. Points outside the region take the
// value at the nearest point of the region.
func (f *Field) VelocityAt(x, y float64) geom.Vec {
	x, y = f.region.Clamp(x, y)
	return f.interp.at(x, y)
}

// VelocitiesAt evaluates VelocityAt for each point; Z is ignored.
func (f *Field) VelocitiesAt(points []geom.Point) []geom.Vec {
	out := make([]geom.Vec, len(points))
	for i, p := range points {
		out[i] = f.VelocityAt(p.X, p.Y)
	}
	return out
}

// XPoints returns the x coordinates of the grid nodes.
func (f *Field) XPoints() []float64 { return append([]float64(nil), f.xs...) }

// YPoints returns the y coordinates of the grid nodes.
func (f *Field) YPoints() []float64 { return append([]float64(nil), f.ys...) }

// VelocityField returns copies of the u and v node values, indexed [x][y].
func (f *Field) VelocityField() (u, v *mat.Dense) {
	nx, ny := f.cfg.NX, f.cfg.NY
	u = mat.DenseCopyOf(f.u.Slice(1, nx+1, 1, ny+1))
	v = mat.DenseCopyOf(f.v.Slice(1, nx+1, 1, ny+1))
	return u, v
}

// MeanVelocity averages the node velocities.
func (f *Field) MeanVelocity() geom.Vec {
	u, v := f.VelocityField()
	n := float64(f.cfg.NX * f.cfg.NY)
	return geom.Vec{U: mat.Sum(u) / n, V: mat.Sum(v) / n}
}

// MaxStableStep is the largest dt for which the explicit diffusion update
// does not amplify grid-scale oscillations. It is +Inf with zero diffusivity.
func (f *Field) MaxStableStep() float64 {
	if f.c == 0 {
		return math.Inf(1)
	}
	return 1 / f.c
}

// Region returns the region the grid spans.
func (f *Field) Region() geom.Rect { return f.region }

// Time returns the simulated time in seconds.
func (f *Field) Time() float64 { return f.time }

// Steps returns the number of completed steps.
func (f *Field) Steps() int { return f.stepped }
