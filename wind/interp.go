package wind

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/plume/geom"
)

// Interpolation selects how velocities are evaluated between grid nodes.
type Interpolation int

const (
	// InterpBilinear blends the four surrounding nodes.
	InterpBilinear Interpolation = iota
	// InterpSpline uses a tensor-product natural cubic spline. Each query on a
	// new y row refits across x, O(nx) work on top of nx column evaluations,
	// so it costs noticeably more per puff than InterpBilinear.
	InterpSpline
)

var interpNames = map[Interpolation]string{
	InterpBilinear: "bilinear",
	InterpSpline:   "spline",
}

func (m Interpolation) String() string {
	if name, ok := interpNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Interpolation(%d)", int(m))
}

// MarshalText implements encoding.TextMarshaler.
func (m Interpolation) MarshalText() ([]byte, error) {
	name, ok := interpNames[m]
	if !ok {
		return nil, fmt.Errorf("%w: unknown interpolation %d", ErrInvalidConfig, int(m))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Interpolation) UnmarshalText(text []byte) error {
	for k, name := range interpNames {
		if name == string(text) {
			*m = k
			return nil
		}
	}
	return fmt.Errorf("%w: unknown interpolation %q", ErrInvalidConfig, string(text))
}

// interpolator evaluates a velocity inside the node rectangle. Callers clamp
// query points before calling at.
type interpolator interface {
	refit(u, v *mat.Dense) error
	at(x, y float64) geom.Vec
}

func newInterpolator(m Interpolation, xs, ys []float64) (interpolator, error) {
	switch m {
	case InterpBilinear:
		return &bilinear{xs: xs, ys: ys}, nil
	case InterpSpline:
		return &spline{xs: xs, ys: ys}, nil
	default:
		return nil, fmt.Errorf("%w: unknown interpolation %d", ErrInvalidConfig, int(m))
	}
}

// bilinear reads the padded u/v grids directly; interior node (i, j) is
// element (i+1, j+1).
type bilinear struct {
	xs, ys []float64
	u, v   *mat.Dense
}

func (b *bilinear) refit(u, v *mat.Dense) error {
	b.u, b.v = u, v
	return nil
}

func (b *bilinear) at(x, y float64) geom.Vec {
	i, tx := cell(b.xs, x)
	j, ty := cell(b.ys, y)

	lerp2 := func(g *mat.Dense) float64 {
		f00 := g.At(i+1, j+1)
		f10 := g.At(i+2, j+1)
		f01 := g.At(i+1, j+2)
		f11 := g.At(i+2, j+2)
		a := f00 + (f10-f00)*tx
		c := f01 + (f11-f01)*tx
		return a + (c-a)*ty
	}
	return geom.Vec{U: lerp2(b.u), V: lerp2(b.v)}
}

// cell returns the index of the lower node of the interval holding p on the
// evenly spaced axis and the fractional offset within it.
func cell(nodes []float64, p float64) (int, float64) {
	n := len(nodes)
	step := (nodes[n-1] - nodes[0]) / float64(n-1)
	i := int(math.Floor((p - nodes[0]) / step))
	if i < 0 {
		i = 0
	}
	if i > n-2 {
		i = n - 2
	}
	t := (p - nodes[i]) / step
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return i, t
}

// predictor is the part of gonum's interp API used here.
type predictor interface {
	Fit(xs, ys []float64) error
	Predict(x float64) float64
}

func newPredictor(n int) predictor {
	if n >= 3 {
		return &interp.NaturalCubic{}
	}
	return &interp.PiecewiseLinear{}
}

// spline fits one predictor per x column along y after every refit; a query
// evaluates every column at y and fits a cross-x predictor through the
// results. The cross-x fit is kept for the last queried y, so runs of queries
// on one row (a fresh release at the source) fit it once.
type spline struct {
	xs, ys     []float64
	colU, colV []predictor

	rowU, rowV []float64 // column values at rowY
	fitU, fitV predictor
	rowY       float64
	rowOK      bool
}

func (s *spline) refit(u, v *mat.Dense) error {
	nx, ny := len(s.xs), len(s.ys)
	if s.colU == nil {
		s.colU = make([]predictor, nx)
		s.colV = make([]predictor, nx)
		s.rowU = make([]float64, nx)
		s.rowV = make([]float64, nx)
	}
	s.rowOK = false
	for i := 0; i < nx; i++ {
		cu := make([]float64, ny)
		cv := make([]float64, ny)
		for j := 0; j < ny; j++ {
			cu[j] = u.At(i+1, j+1)
			cv[j] = v.At(i+1, j+1)
		}
		s.colU[i] = newPredictor(ny)
		if err := s.colU[i].Fit(s.ys, cu); err != nil {
			return fmt.Errorf("fitting u column %d: %w", i, err)
		}
		s.colV[i] = newPredictor(ny)
		if err := s.colV[i].Fit(s.ys, cv); err != nil {
			return fmt.Errorf("fitting v column %d: %w", i, err)
		}
	}
	return nil
}

// fitRow fits the cross-x predictors through the columns evaluated at y.
func (s *spline) fitRow(y float64) bool {
	if s.rowOK && s.rowY == y {
		return true
	}
	nx := len(s.xs)
	for i := 0; i < nx; i++ {
		s.rowU[i] = s.colU[i].Predict(y)
		s.rowV[i] = s.colV[i].Predict(y)
	}
	s.fitU, s.fitV = newPredictor(nx), newPredictor(nx)
	if s.fitU.Fit(s.xs, s.rowU) != nil || s.fitV.Fit(s.xs, s.rowV) != nil {
		s.rowOK = false
		return false
	}
	s.rowY, s.rowOK = y, true
	return true
}

func (s *spline) at(x, y float64) geom.Vec {
	if !s.fitRow(y) {
		// Fitting only fails on malformed nodes, which NewField rules out.
		return geom.Vec{U: math.NaN(), V: math.NaN()}
	}
	return geom.Vec{U: s.fitU.Predict(x), V: s.fitV.Predict(x)}
}
