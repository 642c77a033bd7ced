package plume

import (
	"errors"
	"fmt"
	"math"

	"github.com/pthm-cable/plume/geom"
)

var (
	// ErrInvalidConfig is returned for invalid simulator parameters.
	ErrInvalidConfig = errors.New("plume: invalid config")
	// ErrInvalidTimeStep is returned when Step is called with dt <= 0.
	ErrInvalidTimeStep = errors.New("plume: time step must be positive")
)

// Config holds puff release and transport parameters.
type Config struct {
	Source             geom.Point `yaml:"source"`
	ReleaseRate        float64    `yaml:"release_rate"`         // mean puffs per second
	InitRadius         float64    `yaml:"init_radius"`          // metres
	SpreadRate         float64    `yaml:"spread_rate"`          // r^2 growth, m^2/s
	MaxPuffs           int        `yaml:"max_puffs"`            // oldest evicted beyond this
	InitPuffs          int        `yaml:"init_puffs"`           // released at construction
	CentreRelDiffScale [3]float64 `yaml:"centre_rel_diff_scale"` // x, y, z
	ModelZDisp         bool       `yaml:"model_z_disp"`
	PuffAmount         float64    `yaml:"puff_amount"`
	AmountDecayRate    float64    `yaml:"amount_decay_rate"` // 1/s, 0 disables decay
}

// DefaultConfig returns a ten puffs per second source near the upwind edge.
func DefaultConfig() Config {
	return Config{
		Source:             geom.Point{X: 5, Y: 0, Z: 0},
		ReleaseRate:        10,
		InitRadius:         0.0316,
		SpreadRate:         0.001,
		MaxPuffs:           1000,
		InitPuffs:          10,
		CentreRelDiffScale: [3]float64{2, 2, 2},
		ModelZDisp:         true,
		PuffAmount:         1,
	}
}

// Validate checks the parameters against region.
func (c Config) Validate(region geom.Rect) error {
	if err := region.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.MaxPuffs <= 0 {
		return fmt.Errorf("%w: max_puffs must be > 0, got %d", ErrInvalidConfig, c.MaxPuffs)
	}
	if c.InitPuffs < 0 || c.InitPuffs > c.MaxPuffs {
		return fmt.Errorf("%w: init_puffs must be in [0, %d], got %d", ErrInvalidConfig, c.MaxPuffs, c.InitPuffs)
	}

	params := []struct {
		name string
		v    float64
	}{
		{"release_rate", c.ReleaseRate},
		{"init_radius", c.InitRadius},
		{"spread_rate", c.SpreadRate},
		{"puff_amount", c.PuffAmount},
		{"amount_decay_rate", c.AmountDecayRate},
		{"centre_rel_diff_scale.x", c.CentreRelDiffScale[0]},
		{"centre_rel_diff_scale.y", c.CentreRelDiffScale[1]},
		{"centre_rel_diff_scale.z", c.CentreRelDiffScale[2]},
	}
	for _, p := range params {
		if p.v < 0 || math.IsNaN(p.v) || math.IsInf(p.v, 0) {
			return fmt.Errorf("%w: %s must be finite and >= 0, got %g", ErrInvalidConfig, p.name, p.v)
		}
	}

	if !region.Contains(c.Source.X, c.Source.Y) {
		return fmt.Errorf("%w: source (%g, %g) outside region %v", ErrInvalidConfig, c.Source.X, c.Source.Y, region)
	}
	return nil
}
