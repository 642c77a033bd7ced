// Package concentration evaluates the odour concentration produced by a puff
// population, either exactly at arbitrary points or as truncated grids.
//
// Each puff is a Gaussian of standard deviation SigmaScale*radius holding its
// amount, so the field is the sum of the puff densities.
package concentration

import (
	"errors"
	"fmt"
	"math"

	"github.com/pthm-cable/plume/plume"
)

// ErrInvalidConfig is returned for invalid kernel or grid parameters.
var ErrInvalidConfig = errors.New("concentration: invalid config")

// Kernel selects the puff density model.
type Kernel int

const (
	// Kernel3D is the spherical Gaussian A/((2pi)^1.5 s^3) exp(-d^2/2s^2).
	Kernel3D Kernel = iota
	// Kernel2D ignores height: A/(2pi s^2) exp(-dxy^2/2s^2).
	Kernel2D
)

var kernelNames = map[Kernel]string{
	Kernel3D: "3d",
	Kernel2D: "2d",
}

func (k Kernel) String() string {
	if name, ok := kernelNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kernel(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kernel) MarshalText() ([]byte, error) {
	name, ok := kernelNames[k]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kernel %d", ErrInvalidConfig, int(k))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kernel) UnmarshalText(text []byte) error {
	for kk, name := range kernelNames {
		if name == string(text) {
			*k = kk
			return nil
		}
	}
	return fmt.Errorf("%w: unknown kernel %q", ErrInvalidConfig, string(text))
}

// Config holds concentration evaluation parameters.
type Config struct {
	Kernel        Kernel  `yaml:"kernel"`
	SigmaScale    float64 `yaml:"sigma_scale"`     // sigma = SigmaScale * radius
	KernelRadMult float64 `yaml:"kernel_rad_mult"` // grid truncation radius in sigmas
	Workers       int     `yaml:"workers"`         // row bands evaluated concurrently; 0 means 1
}

// DefaultConfig returns the 3-D kernel truncated at three sigma.
func DefaultConfig() Config {
	return Config{
		Kernel:        Kernel3D,
		SigmaScale:    1,
		KernelRadMult: 3,
		Workers:       1,
	}
}

// Validate checks the parameters.
func (c Config) Validate() error {
	if _, ok := kernelNames[c.Kernel]; !ok {
		return fmt.Errorf("%w: unknown kernel %d", ErrInvalidConfig, int(c.Kernel))
	}
	if !(c.SigmaScale > 0) || math.IsInf(c.SigmaScale, 0) {
		return fmt.Errorf("%w: sigma_scale must be finite and > 0, got %g", ErrInvalidConfig, c.SigmaScale)
	}
	if !(c.KernelRadMult > 0) || math.IsInf(c.KernelRadMult, 0) {
		return fmt.Errorf("%w: kernel_rad_mult must be finite and > 0, got %g", ErrInvalidConfig, c.KernelRadMult)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalidConfig, c.Workers)
	}
	return nil
}

// density is one puff's kernel with its normalisation folded in.
type density struct {
	x, y, z float64
	peak    float64 // value at the centre
	inv2s2  float64 // 1/(2 sigma^2)
	sigma   float64
	planar  bool
}

// newDensity returns false for puffs that contribute nothing: zero radius
// or zero amount.
func (c Config) newDensity(p plume.Puff) (density, bool) {
	s := c.SigmaScale * p.Radius()
	if s <= 0 || p.Amount <= 0 {
		return density{}, false
	}
	d := density{x: p.X, y: p.Y, z: p.Z, sigma: s, inv2s2: 1 / (2 * s * s)}
	switch c.Kernel {
	case Kernel2D:
		d.planar = true
		d.peak = p.Amount / (2 * math.Pi * s * s)
	default:
		d.peak = p.Amount / (math.Pow(2*math.Pi, 1.5) * s * s * s)
	}
	return d, true
}

// distSq is the squared distance the kernel sees from the puff centre.
func (d density) distSq(x, y, z float64) float64 {
	dx, dy := x-d.x, y-d.y
	r2 := dx*dx + dy*dy
	if !d.planar {
		dz := z - d.z
		r2 += dz * dz
	}
	return r2
}

func (d density) at(x, y, z float64) float64 {
	return d.peak * math.Exp(-d.distSq(x, y, z)*d.inv2s2)
}
