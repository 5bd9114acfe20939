package kmeans

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/hupe1980/elkan/dataset"
	"github.com/hupe1980/elkan/distance"
)

// Engine runs accelerated k-means over a Dataset.
//
// An Engine is single-threaded; callers must not use it concurrently.
type Engine struct {
	ds     dataset.Dataset
	cfg    Config
	logger *slog.Logger

	n, k, dim int
	seeds     []int

	centers     []float32 // k*dim
	assignments []int
	b           bounds

	// scratch reused by Step
	sums     []float64
	counts   []int
	next     []float32
	movement []float64

	state       State
	iterations  int
	lastComps   int64
	totalComps  int64
	lastChanges int
	lastReseeds int
	maxMovement float64
}

// New validates cfg against ds and returns an uninitialized Engine.
//
// Point 0 is read to determine the dimension.
func New(ds dataset.Dataset, cfg Config) (*Engine, error) {
	if cfg.K <= 0 {
		return nil, ErrInvalidK
	}

	n := ds.Len()
	if n == 0 {
		return nil, ErrEmptyDataset
	}
	if cfg.K > n {
		return nil, fmt.Errorf("%w: k=%d, n=%d", ErrTooFewPoints, cfg.K, n)
	}

	first, err := ds.VectorAt(0)
	if err != nil {
		return nil, fmt.Errorf("read point 0: %w", err)
	}
	if len(first) == 0 {
		return nil, &InvalidDimensionError{Dimension: 0}
	}

	if cfg.InitialIndices != nil {
		if err := validateSeeds(cfg.InitialIndices, cfg.K, n); err != nil {
			return nil, err
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Engine{
		ds:     ds,
		cfg:    cfg,
		logger: logger,
		n:      n,
		k:      cfg.K,
		dim:    len(first),
	}, nil
}

// vector reads point i and checks its dimension.
func (e *Engine) vector(i int) ([]float32, error) {
	v, err := e.ds.VectorAt(i)
	if err != nil {
		return nil, fmt.Errorf("read point %d: %w", i, err)
	}
	if len(v) != e.dim {
		return nil, &DimensionMismatchError{Index: i, Expected: e.dim, Actual: len(v)}
	}
	return v, nil
}

func (e *Engine) center(c int) []float32 {
	return e.centers[c*e.dim : (c+1)*e.dim]
}

// Init picks the initial centers and computes the first assignment.
// Calling Init again restarts from scratch.
func (e *Engine) Init() error {
	seeds := e.cfg.InitialIndices
	if seeds == nil {
		seeds = sampleIndices(rand.New(rand.NewSource(e.cfg.Seed)), e.n, e.k)
	}
	e.seeds = append([]int(nil), seeds...)

	e.state = StateUninitialized
	e.iterations = 0
	e.totalComps = 0
	e.lastChanges = 0
	e.lastReseeds = 0
	e.maxMovement = 0

	e.centers = make([]float32, e.k*e.dim)
	for c, idx := range e.seeds {
		v, err := e.vector(idx)
		if err != nil {
			return err
		}
		copy(e.center(c), v)
	}

	e.assignments = make([]int, e.n)
	e.b = newBounds(e.n, e.k)
	e.sums = make([]float64, e.k*e.dim)
	e.counts = make([]int, e.k)
	e.next = make([]float32, e.k*e.dim)
	e.movement = make([]float64, e.k)

	if e.k == e.n {
		return e.initIdentity()
	}

	comps, err := e.initialAssignment()
	if err != nil {
		return err
	}
	e.lastComps = comps
	e.totalComps = comps
	e.state = StateInitialized
	return nil
}

// Step runs one iteration. It is a no-op once the engine has converged.
func (e *Engine) Step() error {
	switch e.state {
	case StateUninitialized:
		return ErrNotInitialized
	case StateConverged:
		return nil
	}
	e.state = StateIterating

	e.b.recomputeCenterDistances(e.centers, e.dim)
	e.b.recomputeProximity()

	clear(e.sums)
	clear(e.counts)

	var (
		comps   int64
		changes int
	)

	for i := range e.n {
		x, err := e.vector(i)
		if err != nil {
			return err
		}

		prev := e.assignments[i]
		if e.cfg.Exhaustive {
			comps += e.assignExhaustive(i, x)
		} else {
			comps += e.assignPruned(i, x)
		}
		a := e.assignments[i]
		if a != prev {
			changes++
		}

		sum := e.sums[a*e.dim : (a+1)*e.dim]
		for j, v := range x {
			sum[j] += float64(v)
		}
		e.counts[a]++
	}

	for c := range e.k {
		if e.counts[c] > 0 {
			e.mean(c)
		}
	}

	reseeded, reseedComps, err := e.handleEmpty()
	if err != nil {
		return err
	}
	comps += reseedComps

	e.maxMovement = 0
	for c := range e.k {
		e.movement[c] = distance.L2(e.center(c), e.next[c*e.dim:(c+1)*e.dim])
		e.maxMovement = max(e.maxMovement, e.movement[c])
	}

	e.b.relax(e.assignments, e.movement)

	for c, x := range reseeded {
		e.b.setExact(x, c, 0)
	}

	e.centers, e.next = e.next, e.centers

	e.iterations++
	e.lastComps = comps
	e.totalComps += comps
	e.lastChanges = changes
	e.lastReseeds = len(reseeded)

	if changes == 0 && len(reseeded) == 0 {
		e.state = StateConverged
	}
	return nil
}

// assignPruned moves point i to a strictly closer center when one exists,
// evaluating only candidates its bounds cannot rule out.
func (e *Engine) assignPruned(i int, x []float32) int64 {
	b := &e.b
	k := e.k
	a := e.assignments[i]

	if b.upper[i] <= b.proximity[a] {
		return 0
	}

	var comps int64
	u := b.upper[i]
	lower := b.lower[i*k : (i+1)*k]

	for c := range k {
		if c == a || u < lower[c] || u < 0.5*b.centerDist[a*k+c] {
			continue
		}

		if !b.tight[i] {
			u = distance.L2(x, e.center(a))
			comps++
			b.setExact(i, a, u)
			if u < lower[c] || u < 0.5*b.centerDist[a*k+c] {
				continue
			}
		}

		d := distance.L2(x, e.center(c))
		comps++
		lower[c] = d
		if d < u {
			a = c
			u = d
			b.setExact(i, a, u)
		}
	}

	e.assignments[i] = a
	return comps
}

// assignExhaustive evaluates every center. The current center is kept when
// it ties the minimum; otherwise the lowest-index minimum wins.
func (e *Engine) assignExhaustive(i int, x []float32) int64 {
	k := e.k
	lower := e.b.lower[i*k : (i+1)*k]

	best, bestDist := -1, math.Inf(1)
	for c := range k {
		d := distance.L2(x, e.center(c))
		lower[c] = d
		if d < bestDist {
			best, bestDist = c, d
		}
	}

	if cur := e.assignments[i]; lower[cur] == bestDist {
		best = cur
	}
	e.assignments[i] = best
	e.b.setExact(i, best, bestDist)
	return int64(k)
}

// mean writes the mean of cluster c into next.
func (e *Engine) mean(c int) {
	inv := 1 / float64(e.counts[c])
	sum := e.sums[c*e.dim : (c+1)*e.dim]
	dst := e.next[c*e.dim : (c+1)*e.dim]
	for j, s := range sum {
		dst[j] = float32(s * inv)
	}
}

// handleEmpty applies the empty-cluster policy after the means are formed.
// It returns the point moved into each reseeded cluster.
func (e *Engine) handleEmpty() (map[int]int, int64, error) {
	var empty []int
	for c := range e.k {
		if e.counts[c] == 0 {
			empty = append(empty, c)
		}
	}
	if len(empty) == 0 {
		return nil, 0, nil
	}

	if e.cfg.Policy == Keep {
		for _, c := range empty {
			copy(e.next[c*e.dim:(c+1)*e.dim], e.center(c))
			e.logger.Warn("empty cluster kept", "cluster", c, "iteration", e.iterations+1)
		}
		return nil, 0, nil
	}

	// Distance of every point to its cluster's new mean. Computed once per
	// iteration; later reseeds in the same iteration reuse it.
	far := make([]float64, e.n)
	for i := range e.n {
		x, err := e.vector(i)
		if err != nil {
			return nil, 0, err
		}
		a := e.assignments[i]
		far[i] = distance.L2(x, e.next[a*e.dim:(a+1)*e.dim])
	}
	comps := int64(e.n)

	reseeded := make(map[int]int, len(empty))
	for _, c := range empty {
		pick := -1
		for i, d := range far {
			if d < 0 || e.counts[e.assignments[i]] < 2 {
				continue
			}
			if pick < 0 || d > far[pick] {
				pick = i
			}
		}
		if pick < 0 {
			copy(e.next[c*e.dim:(c+1)*e.dim], e.center(c))
			e.logger.Warn("empty cluster kept: no donor cluster", "cluster", c, "iteration", e.iterations+1)
			continue
		}

		x, err := e.vector(pick)
		if err != nil {
			return nil, 0, err
		}

		donor := e.assignments[pick]
		sum := e.sums[donor*e.dim : (donor+1)*e.dim]
		for j, v := range x {
			sum[j] -= float64(v)
		}
		e.counts[donor]--
		e.mean(donor)

		target := e.sums[c*e.dim : (c+1)*e.dim]
		for j, v := range x {
			target[j] = float64(v)
		}
		e.counts[c] = 1
		copy(e.next[c*e.dim:(c+1)*e.dim], x)

		e.assignments[pick] = c
		far[pick] = -1
		reseeded[c] = pick

		e.logger.Warn("empty cluster reseeded", "cluster", c, "point", pick, "donor", donor, "iteration", e.iterations+1)
	}

	return reseeded, comps, nil
}

// State returns the lifecycle state.
func (e *Engine) State() State { return e.state }

// Iterations returns the number of completed Steps.
func (e *Engine) Iterations() int { return e.iterations }

// Dimension returns the vector dimension.
func (e *Engine) Dimension() int { return e.dim }

// Len returns the number of points.
func (e *Engine) Len() int { return e.n }

// K returns the number of clusters.
func (e *Engine) K() int { return e.k }

// Seeds returns the point indices the centers were initialized from.
func (e *Engine) Seeds() []int { return append([]int(nil), e.seeds...) }

// Centers returns a copy of the current centers, or nil before Init.
func (e *Engine) Centers() [][]float32 {
	if e.state == StateUninitialized {
		return nil
	}
	out := make([][]float32, e.k)
	for c := range e.k {
		out[c] = append([]float32(nil), e.center(c)...)
	}
	return out
}

// Assignments returns a copy of the current assignments, or nil before Init.
func (e *Engine) Assignments() []int {
	if e.state == StateUninitialized {
		return nil
	}
	return append([]int(nil), e.assignments...)
}

// ClusterSizes counts the points assigned to each center.
func (e *Engine) ClusterSizes() []int {
	if e.state == StateUninitialized {
		return nil
	}
	sizes := make([]int, e.k)
	for _, a := range e.assignments {
		sizes[a]++
	}
	return sizes
}

// DistanceComputations returns the point-to-center distance evaluations of
// the last Step (or of Init before the first Step).
func (e *Engine) DistanceComputations() int64 { return e.lastComps }

// TotalDistanceComputations returns the evaluations since Init.
func (e *Engine) TotalDistanceComputations() int64 { return e.totalComps }

// LastChanges returns how many assignments the last Step changed.
func (e *Engine) LastChanges() int { return e.lastChanges }

// LastReseeds returns how many empty clusters the last Step reseeded.
func (e *Engine) LastReseeds() int { return e.lastReseeds }

// MaxMovement returns the largest center movement of the last Step.
func (e *Engine) MaxMovement() float64 { return e.maxMovement }

// Inertia returns the sum of squared distances of points to their centers.
func (e *Engine) Inertia() (float64, error) {
	if e.state == StateUninitialized {
		return 0, ErrNotInitialized
	}
	var total float64
	for i, a := range e.assignments {
		x, err := e.vector(i)
		if err != nil {
			return 0, err
		}
		total += distance.SquaredL2(x, e.center(a))
	}
	return total, nil
}

// Status is a snapshot of cluster sizes and exact per-point distances to
// the assigned centers.
type Status struct {
	Sizes     []int
	Distances []float64
}

// Status computes a Status snapshot. Its evaluations are not counted.
func (e *Engine) Status() (Status, error) {
	if e.state == StateUninitialized {
		return Status{}, ErrNotInitialized
	}
	dists := make([]float64, e.n)
	for i, a := range e.assignments {
		x, err := e.vector(i)
		if err != nil {
			return Status{}, err
		}
		dists[i] = distance.L2(x, e.center(a))
	}
	return Status{Sizes: e.ClusterSizes(), Distances: dists}, nil
}
