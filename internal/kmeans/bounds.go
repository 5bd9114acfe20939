package kmeans

import (
	"math"

	"github.com/hupe1980/elkan/distance"
)

// bounds is the per-run pruning state.
//
// For every point x with assigned center a(x) and every center c:
//
//	dist(x, a(x)) <= upper[x]
//	dist(x, c)    >= lower[x*k+c] >= 0
//
// tight[x] records that upper[x] equals dist(x, a(x)) exactly.
type bounds struct {
	k int

	centerDist []float64 // k*k, symmetric, zero diagonal
	proximity  []float64 // 0.5 * distance to the nearest other center

	upper []float64
	lower []float64
	tight []bool
}

func newBounds(n, k int) bounds {
	return bounds{
		k:          k,
		centerDist: make([]float64, k*k),
		proximity:  make([]float64, k),
		upper:      make([]float64, n),
		lower:      make([]float64, n*k),
		tight:      make([]bool, n),
	}
}

// recomputeCenterDistances fills the full center distance matrix from flat
// k*dim centers.
func (b *bounds) recomputeCenterDistances(centers []float32, dim int) {
	k := b.k
	for i := range k {
		b.centerDist[i*k+i] = 0
		ci := centers[i*dim : (i+1)*dim]
		for j := i + 1; j < k; j++ {
			d := distance.L2(ci, centers[j*dim:(j+1)*dim])
			b.centerDist[i*k+j] = d
			b.centerDist[j*k+i] = d
		}
	}
}

func (b *bounds) recomputeProximity() {
	k := b.k
	for i := range k {
		m := math.Inf(1)
		for j := range k {
			if j != i && b.centerDist[i*k+j] < m {
				m = b.centerDist[i*k+j]
			}
		}
		b.proximity[i] = 0.5 * m
	}
}

// relax keeps the bounds valid after center c moved by movement[c].
func (b *bounds) relax(assignments []int, movement []float64) {
	k := b.k
	for x, a := range assignments {
		row := b.lower[x*k : (x+1)*k]
		for c, m := range movement {
			if m == 0 {
				continue
			}
			row[c] = max(0, row[c]-m)
		}

		if m := movement[a]; m > 0 {
			b.upper[x] += m
			b.tight[x] = false
		}
	}
}

// setExact records an exactly known distance from x to its assigned center.
func (b *bounds) setExact(x, c int, d float64) {
	b.upper[x] = d
	b.lower[x*b.k+c] = d
	b.tight[x] = true
}
