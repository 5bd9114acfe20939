package kmeans

import (
	"fmt"
	"math/rand"

	"github.com/hupe1980/elkan/distance"
)

// sampleIndices draws k distinct indices from [0, n). Floyd's algorithm
// touches only k random numbers; when k is a large share of n a permutation
// prefix is cheaper.
func sampleIndices(rng *rand.Rand, n, k int) []int {
	if 2*k >= n {
		return rng.Perm(n)[:k]
	}

	selected := make(map[int]struct{}, k)
	out := make([]int, 0, k)
	for j := n - k; j < n; j++ {
		t := rng.Intn(j + 1)
		if _, ok := selected[t]; ok {
			t = j
		}
		selected[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func validateSeeds(seeds []int, k, n int) error {
	if len(seeds) != k {
		return fmt.Errorf("%w: got %d indices for k=%d", ErrInvalidSeeds, len(seeds), k)
	}
	seen := make(map[int]struct{}, k)
	for _, s := range seeds {
		if s < 0 || s >= n {
			return fmt.Errorf("%w: index %d out of range [0, %d)", ErrInvalidSeeds, s, n)
		}
		if _, dup := seen[s]; dup {
			return fmt.Errorf("%w: duplicate index %d", ErrInvalidSeeds, s)
		}
		seen[s] = struct{}{}
	}
	return nil
}

// initialAssignment assigns every point to its nearest initial center.
// Center c is skipped when d(best, c) >= 2*dist(x, best), since then
// dist(x, c) >= dist(x, best).
func (e *Engine) initialAssignment() (int64, error) {
	b := &e.b
	b.recomputeCenterDistances(e.centers, e.dim)

	k := e.k
	var comps int64
	for i := range e.n {
		x, err := e.vector(i)
		if err != nil {
			return 0, err
		}

		lower := b.lower[i*k : (i+1)*k]
		best := 0
		bestDist := distance.L2(x, e.center(0))
		lower[0] = bestDist
		comps++

		for c := 1; c < k; c++ {
			if b.centerDist[best*k+c] >= 2*bestDist {
				continue
			}
			d := distance.L2(x, e.center(c))
			comps++
			lower[c] = d
			if d < bestDist {
				best, bestDist = c, d
			}
		}

		e.assignments[i] = best
		b.upper[i] = bestDist
		b.tight[i] = true
	}
	return comps, nil
}

// initIdentity handles k == n: every point is its own center and the
// clustering is final.
func (e *Engine) initIdentity() error {
	for c, idx := range e.seeds {
		e.assignments[idx] = c
		e.b.setExact(idx, c, 0)
	}
	e.lastComps = 0
	e.state = StateConverged
	return nil
}
