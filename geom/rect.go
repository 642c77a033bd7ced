// Package geom holds the small value types shared by the wind, plume and
// concentration packages.
package geom

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidRect is returned when rectangle bounds are degenerate or not finite.
var ErrInvalidRect = errors.New("geom: invalid rectangle")

// Point is a position in the simulation space. Z is zero for planar queries.
type Point struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
	Z float64 `yaml:"z" json:"z"`
}

// Vec is a horizontal wind velocity.
type Vec struct {
	U, V float64
}

// Rect is an axis-aligned rectangle with XMin < XMax and YMin < YMax.
// It is a value type: copies handed to the wind field, the plume simulator
// and the concentration generators cannot alter each other.
type Rect struct {
	XMin float64 `yaml:"x_min" json:"x_min"`
	YMin float64 `yaml:"y_min" json:"y_min"`
	XMax float64 `yaml:"x_max" json:"x_max"`
	YMax float64 `yaml:"y_max" json:"y_max"`
}

// NewRect validates the bounds and returns the rectangle.
func NewRect(xMin, yMin, xMax, yMax float64) (Rect, error) {
	r := Rect{XMin: xMin, YMin: yMin, XMax: xMax, YMax: yMax}
	if err := r.Validate(); err != nil {
		return Rect{}, err
	}
	return r, nil
}

// Validate reports whether the rectangle has finite, strictly ordered bounds.
func (r Rect) Validate() error {
	for _, v := range [...]float64{r.XMin, r.YMin, r.XMax, r.YMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: coordinates must be finite", ErrInvalidRect)
		}
	}
	if r.XMin >= r.XMax {
		return fmt.Errorf("%w: x_min (%g) must be < x_max (%g)", ErrInvalidRect, r.XMin, r.XMax)
	}
	if r.YMin >= r.YMax {
		return fmt.Errorf("%w: y_min (%g) must be < y_max (%g)", ErrInvalidRect, r.YMin, r.YMax)
	}
	return nil
}

// W is the extent along x.
func (r Rect) W() float64 { return r.XMax - r.XMin }

// H is the extent along y.
func (r Rect) H() float64 { return r.YMax - r.YMin }

// Contains reports whether (x, y) lies inside the rectangle, edges included.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.XMin && x <= r.XMax && y >= r.YMin && y <= r.YMax
}

// Clamp returns the point of the rectangle nearest to (x, y).
func (r Rect) Clamp(x, y float64) (float64, float64) {
	return clamp(x, r.XMin, r.XMax), clamp(y, r.YMin, r.YMax)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
