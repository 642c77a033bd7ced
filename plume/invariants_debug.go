//go:build plumedebug

package plume

import "fmt"

// checkInvariants panics if any puff has shrunk below the release radius,
// holds a negative amount, leaves the region, or the population outgrows its cap.
func checkInvariants(s *Simulator) {
	if len(s.puffs) > s.cfg.MaxPuffs {
		panic(fmt.Sprintf("plume: %d puffs exceeds cap %d", len(s.puffs), s.cfg.MaxPuffs))
	}
	if cap(s.puffs) > s.cfg.MaxPuffs {
		panic(fmt.Sprintf("plume: population capacity %d exceeds cap %d", cap(s.puffs), s.cfg.MaxPuffs))
	}
	for i, p := range s.puffs {
		if p.RSq < s.initRSq {
			panic(fmt.Sprintf("plume: puff %d r^2=%g below initial %g", i, p.RSq, s.initRSq))
		}
		if p.Amount < 0 {
			panic(fmt.Sprintf("plume: puff %d has negative amount %g", i, p.Amount))
		}
		if !s.region.Contains(p.X, p.Y) {
			panic(fmt.Sprintf("plume: puff %d at (%g, %g) outside region", i, p.X, p.Y))
		}
	}
}
