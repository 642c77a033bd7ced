package sim

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/plume/config"
	"github.com/pthm-cable/plume/plume"
)

// Result summarises one ensemble member at the end of its run.
type Result struct {
	Seed     uint64
	Steps    int
	Time     float64
	Puffs    int
	Counters plume.Counters
	Probes   []float64
}

// RunEnsemble runs one independent simulation per seed for steps steps each,
// at most GOMAXPROCS at a time. Results are in seed order. The first failure
// cancels the remaining members.
func RunEnsemble(ctx context.Context, cfg *config.Config, seeds []uint64, steps int) ([]Result, error) {
	results := make([]Result, len(seeds))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, seed := range seeds {
		g.Go(func() error {
			s, err := New(cfg, seed)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			if err := s.Run(ctx, steps, nil); err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			results[i] = Result{
				Seed:     seed,
				Steps:    s.Steps(),
				Time:     s.Time(),
				Puffs:    s.Plume().Len(),
				Counters: s.Plume().Counters(),
				Probes:   s.ProbeValues(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
