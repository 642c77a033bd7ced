package noise

import (
	"fmt"
	"math"
)

// Meander is a deterministic sinusoidal signal a*sin(pi*t/period), repeated
// across all modes. It stands in for coloured noise when a slowly swinging
// wind direction is wanted instead of random gusts.
type Meander struct {
	modes     int
	amplitude float64
	period    float64
	t         float64
	out       []float64
}

// NewMeander returns a meander generator. period is the half-cycle time.
func NewMeander(modes int, amplitude, period float64) (*Meander, error) {
	if modes < 1 {
		return nil, fmt.Errorf("%w: modes must be >= 1, got %d", ErrInvalidConfig, modes)
	}
	if !(period > 0) {
		return nil, fmt.Errorf("%w: period must be > 0, got %g", ErrInvalidConfig, period)
	}
	return &Meander{
		modes:     modes,
		amplitude: amplitude,
		period:    period,
		out:       make([]float64, modes),
	}, nil
}

// Update implements Generator. The returned value is sampled at the time
// before the advance, so the first update always yields zero.
func (m *Meander) Update(dt float64) ([]float64, error) {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidTimeStep, dt)
	}
	v := m.amplitude * math.Sin(math.Pi/m.period*m.t)
	for i := range m.out {
		m.out[i] = v
	}
	m.t += dt
	return m.Output(), nil
}

// Output implements Generator.
func (m *Meander) Output() []float64 {
	out := make([]float64, len(m.out))
	copy(out, m.out)
	return out
}

// Modes implements Generator.
func (m *Meander) Modes() int { return m.modes }
