package noise

import (
	"fmt"
	"math"
)

// Scheme selects the discretisation used to integrate the coloured noise SDE.
// Both schemes integrate the same continuous-time system; they differ only in
// how the white-noise forcing is scaled over a step.
type Scheme int

const (
	// SchemeEulerMaruyama scales the forcing by sqrt(dt).
	SchemeEulerMaruyama Scheme = iota
	// SchemeOriginal treats the forcing as an ordinary input and scales it by dt.
	SchemeOriginal
)

var schemeNames = map[Scheme]string{
	SchemeEulerMaruyama: "euler_maruyama",
	SchemeOriginal:      "original",
}

func (s Scheme) String() string {
	if name, ok := schemeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Scheme(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Scheme) MarshalText() ([]byte, error) {
	name, ok := schemeNames[s]
	if !ok {
		return nil, fmt.Errorf("%w: unknown scheme %d", ErrInvalidConfig, int(s))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Scheme) UnmarshalText(text []byte) error {
	for k, name := range schemeNames {
		if name == string(text) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("%w: unknown scheme %q", ErrInvalidConfig, string(text))
}

// integrator advances position/velocity state given one standard normal draw
// per mode.
type integrator interface {
	advance(st *state, n []float64, dt float64)
}

// state is the per-mode second-order system
//
//	dpos = vel dt
//	dvel = (a0*pos + a1*vel) dt + b * forcing
type state struct {
	pos, vel []float64
	a0, a1   float64 // -bandwidth^2, -2*damping*bandwidth
	b        float64 // gain*bandwidth^2
}

func integratorFor(s Scheme) (integrator, error) {
	switch s {
	case SchemeEulerMaruyama:
		return eulerMaruyama{}, nil
	case SchemeOriginal:
		return originalEuler{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown scheme %d", ErrInvalidConfig, int(s))
	}
}

type originalEuler struct{}

func (originalEuler) advance(st *state, n []float64, dt float64) {
	for i := range st.pos {
		p, v := st.pos[i], st.vel[i]
		st.pos[i] = p + v*dt
		st.vel[i] = v + (st.a0*p+st.a1*v+st.b*n[i])*dt
	}
}

type eulerMaruyama struct{}

func (eulerMaruyama) advance(st *state, n []float64, dt float64) {
	sqrtDt := math.Sqrt(dt)
	for i := range st.pos {
		p, v := st.pos[i], st.vel[i]
		st.pos[i] = p + v*dt
		st.vel[i] = v + (st.a0*p+st.a1*v)*dt + st.b*n[i]*sqrtDt
	}
}
