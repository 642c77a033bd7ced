package concentration

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/plume/geom"
	"github.com/pthm-cable/plume/plume"
)

// ArrayGenerator renders puff populations onto regular grids. Each puff only
// touches nodes within KernelRadMult sigma of its centre.
type ArrayGenerator struct {
	cfg     Config
	workers int
}

// NewArrayGenerator validates cfg.
func NewArrayGenerator(cfg Config) (*ArrayGenerator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ArrayGenerator{cfg: cfg, workers: max(cfg.Workers, 1)}, nil
}

// Generate evaluates an nx by ny grid spanning region at height z. Element
// (i, j) is the value at (x_i, y_j). The result does not depend on the worker
// count: every node sums its puffs in snapshot order.
func (g *ArrayGenerator) Generate(puffs []plume.Puff, region geom.Rect, nx, ny int, z float64) (*mat.Dense, error) {
	xs, ys, err := gridNodes(region, nx, ny)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(nx, ny, nil)
	if len(puffs) == 0 {
		return out, nil
	}

	ds := make([]density, 0, len(puffs))
	for _, p := range puffs {
		if d, ok := g.cfg.newDensity(p); ok {
			ds = append(ds, d)
		}
	}

	workers := min(g.workers, nx)
	band := (nx + workers - 1) / workers
	var eg errgroup.Group
	for lo := 0; lo < nx; lo += band {
		hi := min(lo+band, nx)
		eg.Go(func() error {
			g.fillRows(out, ds, xs, ys, lo, hi, z)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// fillRows adds every density's truncated footprint to rows [lo, hi).
func (g *ArrayGenerator) fillRows(out *mat.Dense, ds []density, xs, ys []float64, lo, hi int, z float64) {
	dx := xs[1] - xs[0]
	dy := ys[1] - ys[0]
	for _, d := range ds {
		cut := g.cfg.KernelRadMult * d.sigma
		reach := cut
		if !d.planar {
			dz := math.Abs(z - d.z)
			if dz > cut {
				continue
			}
			reach = math.Sqrt(cut*cut - dz*dz)
		}
		cutSq := cut * cut

		i0 := clampIndex(math.Ceil((d.x-reach-xs[0])/dx), lo, hi)
		i1 := clampIndex(math.Floor((d.x+reach-xs[0])/dx), lo-1, hi-1)
		j0 := clampIndex(math.Ceil((d.y-reach-ys[0])/dy), 0, len(ys))
		j1 := clampIndex(math.Floor((d.y+reach-ys[0])/dy), -1, len(ys)-1)
		for i := i0; i <= i1; i++ {
			row := out.RawRowView(i)
			for j := j0; j <= j1; j++ {
				r2 := d.distSq(xs[i], ys[j], z)
				if r2 <= cutSq {
					row[j] += d.peak * math.Exp(-r2*d.inv2s2)
				}
			}
		}
	}
	for i := lo; i < hi; i++ {
		checkNonNegative("grid", out.RawRowView(i))
	}
}

// clampIndex converts a node coordinate to an index in [lo, hi], clamping in
// floating point so huge or infinite footprints cannot overflow int.
func clampIndex(f float64, lo, hi int) int {
	if math.IsNaN(f) {
		return lo
	}
	return int(math.Max(float64(lo), math.Min(float64(hi), f)))
}

// GenerateSeries renders each snapshot in turn, stopping early if ctx is
// cancelled.
func (g *ArrayGenerator) GenerateSeries(ctx context.Context, snapshots [][]plume.Puff, region geom.Rect, nx, ny int, z float64) ([]*mat.Dense, error) {
	out := make([]*mat.Dense, 0, len(snapshots))
	for i, puffs := range snapshots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := g.Generate(puffs, region, nx, ny, z)
		if err != nil {
			return nil, fmt.Errorf("snapshot %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// TruncationBound is the largest amount by which any Generate node can fall
// short of the exact value for puffs. Every dropped contribution lies beyond
// KernelRadMult sigma, where a kernel is at most peak*exp(-m^2/2).
func (g *ArrayGenerator) TruncationBound(puffs []plume.Puff) float64 {
	tail := math.Exp(-g.cfg.KernelRadMult * g.cfg.KernelRadMult / 2)
	var bound float64
	for _, p := range puffs {
		if d, ok := g.cfg.newDensity(p); ok {
			bound += d.peak * tail
		}
	}
	return bound
}

// Config returns the parameters the generator was built with.
func (g *ArrayGenerator) Config() Config { return g.cfg }
