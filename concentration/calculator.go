package concentration

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/plume/geom"
	"github.com/pthm-cable/plume/plume"
)

// ValueCalculator sums every puff at every query point with no truncation.
// Cost is proportional to puffs times points.
type ValueCalculator struct {
	cfg Config
}

// NewValueCalculator validates cfg. KernelRadMult and Workers are unused by
// exact evaluation.
func NewValueCalculator(cfg Config) (*ValueCalculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ValueCalculator{cfg: cfg}, nil
}

// AtPoint returns the concentration at p.
func (c *ValueCalculator) AtPoint(puffs []plume.Puff, p geom.Point) float64 {
	var sum float64
	for _, pf := range puffs {
		if d, ok := c.cfg.newDensity(pf); ok {
			sum += d.at(p.X, p.Y, p.Z)
		}
	}
	checkNonNegative("point", []float64{sum})
	return sum
}

// AtPoints returns the concentration at each point.
func (c *ValueCalculator) AtPoints(puffs []plume.Puff, points []geom.Point) []float64 {
	out := make([]float64, len(points))
	for _, pf := range puffs {
		d, ok := c.cfg.newDensity(pf)
		if !ok {
			continue
		}
		for i, p := range points {
			out[i] += d.at(p.X, p.Y, p.Z)
		}
	}
	checkNonNegative("points", out)
	return out
}

// OnGrid evaluates an nx by ny grid of nodes spanning region at height z.
// Element (i, j) is the value at (x_i, y_j).
func (c *ValueCalculator) OnGrid(puffs []plume.Puff, region geom.Rect, nx, ny int, z float64) (*mat.Dense, error) {
	xs, ys, err := gridNodes(region, nx, ny)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(nx, ny, nil)
	for _, pf := range puffs {
		d, ok := c.cfg.newDensity(pf)
		if !ok {
			continue
		}
		for i, x := range xs {
			row := out.RawRowView(i)
			for j, y := range ys {
				row[j] += d.at(x, y, z)
			}
		}
	}
	return out, nil
}

func gridNodes(region geom.Rect, nx, ny int) (xs, ys []float64, err error) {
	if err := region.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if nx < 2 || ny < 2 {
		return nil, nil, fmt.Errorf("%w: grid must be at least 2x2, got %dx%d", ErrInvalidConfig, nx, ny)
	}
	xs = floats.Span(make([]float64, nx), region.XMin, region.XMax)
	ys = floats.Span(make([]float64, ny), region.YMin, region.YMax)
	return xs, ys, nil
}
