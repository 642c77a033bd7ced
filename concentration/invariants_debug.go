//go:build plumedebug

package concentration

import (
	"fmt"
	"math"
)

// checkNonNegative panics if any value is negative or NaN.
func checkNonNegative(where string, values []float64) {
	for i, v := range values {
		if v < 0 || math.IsNaN(v) {
			panic(fmt.Sprintf("concentration: %s value %d is %g", where, i, v))
		}
	}
}
