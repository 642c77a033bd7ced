package telemetry

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/pthm-cable/plume/geom"
)

// gridXYZ adapts an [x][y] concentration grid to plotter.GridXYZ.
type gridXYZ struct {
	xs, ys []float64
	z      [][]float64
}

func newGridXYZ(region geom.Rect, z [][]float64) (gridXYZ, error) {
	if len(z) < 2 || len(z[0]) < 2 {
		return gridXYZ{}, fmt.Errorf("heatmap needs at least 2x2 nodes")
	}
	g := gridXYZ{
		xs: make([]float64, len(z)),
		ys: make([]float64, len(z[0])),
		z:  z,
	}
	floats.Span(g.xs, region.XMin, region.XMax)
	floats.Span(g.ys, region.YMin, region.YMax)
	return g, nil
}

func (g gridXYZ) Dims() (c, r int)   { return len(g.xs), len(g.ys) }
func (g gridXYZ) Z(c, r int) float64 { return g.z[c][r] }
func (g gridXYZ) X(c int) float64    { return g.xs[c] }
func (g gridXYZ) Y(r int) float64    { return g.ys[r] }

// SaveHeatmap renders the concentration grid of s as a PNG at path.
func SaveHeatmap(s *Snapshot, path string) error {
	grid, err := newGridXYZ(s.Region, s.Concentration)
	if err != nil {
		return err
	}

	peak := 0.0
	for _, col := range s.Concentration {
		if len(col) > 0 {
			peak = max(peak, floats.Max(col))
		}
	}
	hm := plotter.NewHeatMap(grid, palette.Heat(32, 1))
	hm.Min = 0
	hm.Max = peak
	if peak <= 0 {
		// An empty plume renders as a flat field.
		hm.Max = 1
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("concentration at z=%g, t=%.2fs", s.GridZ, s.Time)
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"
	p.Add(hm)

	aspect := min(max(s.Region.H()/s.Region.W(), 0.25), 4)
	if err := p.Save(8*vg.Inch, 8*vg.Inch*vg.Length(aspect), path); err != nil {
		return fmt.Errorf("save heatmap: %w", err)
	}
	return nil
}
