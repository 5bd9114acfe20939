// Package distance provides Euclidean vector distance calculations.
package distance

import (
	"math"
)

// SquaredL2 returns the squared Euclidean distance between a and b.
// Assumes vectors are the same length (caller's responsibility).
//
// Differences are accumulated in float64 so bound arithmetic built on top of
// it does not lose precision to float32 rounding. The loop is unrolled by
// two; the tail is handled separately.
func SquaredL2(a, b []float32) float64 {
	n := len(a)
	b = b[:n]

	var s0, s1 float64
	i := 0
	for ; i+2 <= n; i += 2 {
		d0 := float64(a[i]) - float64(b[i])
		d1 := float64(a[i+1]) - float64(b[i+1])
		s0 += d0 * d0
		s1 += d1 * d1
	}
	if i < n {
		d := float64(a[i]) - float64(b[i])
		s0 += d * d
	}
	return s0 + s1
}

// L2 returns the Euclidean distance between a and b.
func L2(a, b []float32) float64 {
	return math.Sqrt(SquaredL2(a, b))
}
