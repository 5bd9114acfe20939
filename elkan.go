package elkan

import (
	"context"
	"time"

	"github.com/hupe1980/elkan/dataset"
	"github.com/hupe1980/elkan/internal/kmeans"
)

// State is the lifecycle position of a Clusterer.
type State = kmeans.State

const (
	StateUninitialized = kmeans.StateUninitialized
	StateInitialized   = kmeans.StateInitialized
	StateIterating     = kmeans.StateIterating
	StateConverged     = kmeans.StateConverged
)

// Status is a snapshot of cluster sizes and exact per-point distances to
// the assigned centers.
type Status = kmeans.Status

// Clusterer runs accelerated k-means over a dataset.
//
// A Clusterer is not safe for concurrent use. The dataset must not change
// while the Clusterer is in use.
type Clusterer struct {
	engine *kmeans.Engine
	opts   options
	logger *Logger
	seed   int64

	initDuration time.Duration
}

// New validates the configuration, picks the initial centers and computes
// the initial assignment.
//
// Example:
//
//	c, err := elkan.New(ds, 32, elkan.WithSeed(7))
//	if err != nil {
//	    return err
//	}
//	res, err := c.Run(ctx)
func New(ds dataset.Dataset, k int, optFns ...Option) (*Clusterer, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	seed := opts.seed
	if !opts.seedSet {
		seed = time.Now().UnixNano()
	}

	logger := opts.logger.WithK(k)

	engine, err := kmeans.New(ds, kmeans.Config{
		K:              k,
		Seed:           seed,
		InitialIndices: opts.initialIndices,
		Policy:         opts.policy,
		Exhaustive:     opts.exhaustive,
		Logger:         logger.Logger,
	})
	if err != nil {
		logger.LogInit(context.Background(), ds.Len(), k, 0, 0, err)
		return nil, err
	}

	start := time.Now()
	err = engine.Init()
	logger.LogInit(context.Background(), engine.Len(), k, engine.Dimension(), engine.DistanceComputations(), err)
	if err != nil {
		return nil, err
	}

	return &Clusterer{
		engine:       engine,
		opts:         opts,
		logger:       logger,
		seed:         seed,
		initDuration: time.Since(start),
	}, nil
}

// Step runs one iteration. It is a no-op once the clustering has converged.
func (c *Clusterer) Step() error {
	if c.engine.State() == StateConverged {
		return nil
	}

	start := time.Now()
	if err := c.engine.Step(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	e := c.engine
	c.logger.LogIteration(context.Background(), e.Iterations(), e.LastChanges(), e.LastReseeds(), e.DistanceComputations(), e.MaxMovement())
	c.opts.metricsCollector.RecordIteration(e.LastChanges(), e.DistanceComputations(), elapsed)
	return nil
}

// Run iterates until convergence or the iteration cap and returns the
// result. The context is checked between iterations; on cancellation the
// context error is returned and no result is produced.
func (c *Clusterer) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	res, err := c.run(ctx)
	elapsed := time.Since(start)

	e := c.engine
	c.logger.LogRun(ctx, e.Iterations(), e.State() == StateConverged, e.TotalDistanceComputations(), elapsed, err)
	c.opts.metricsCollector.RecordRun(e.Iterations(), e.State() == StateConverged, e.TotalDistanceComputations(), elapsed, err)
	if err != nil {
		return nil, err
	}

	res.Duration = c.initDuration + elapsed
	return res, nil
}

func (c *Clusterer) run(ctx context.Context) (*Result, error) {
	maxIter := c.opts.maxIterations
	for c.engine.State() != StateConverged {
		if maxIter > 0 && c.engine.Iterations() >= maxIter {
			c.logger.WarnContext(ctx, "iteration cap reached", "max_iterations", maxIter)
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.Step(); err != nil {
			return nil, err
		}
	}
	return c.Result()
}

// Result snapshots the current clustering.
func (c *Clusterer) Result() (*Result, error) {
	e := c.engine

	inertia, err := e.Inertia()
	if err != nil {
		return nil, err
	}

	return &Result{
		Version:              resultVersion,
		K:                    e.K(),
		Dimension:            e.Dimension(),
		Points:               e.Len(),
		Seed:                 c.seed,
		Seeds:                e.Seeds(),
		Centers:              e.Centers(),
		Assignments:          e.Assignments(),
		Sizes:                e.ClusterSizes(),
		Iterations:           e.Iterations(),
		Converged:            e.State() == StateConverged,
		DistanceComputations: e.TotalDistanceComputations(),
		Inertia:              inertia,
		CreatedAt:            time.Now().UTC(),
	}, nil
}

// Centers returns a copy of the current centers.
func (c *Clusterer) Centers() [][]float32 { return c.engine.Centers() }

// Assignments returns a copy of the current assignment of every point.
func (c *Clusterer) Assignments() []int { return c.engine.Assignments() }

// ClusterSizes returns the number of points assigned to each center.
func (c *Clusterer) ClusterSizes() []int { return c.engine.ClusterSizes() }

// DistanceComputations returns the point-to-center distance evaluations of
// the last iteration.
func (c *Clusterer) DistanceComputations() int64 { return c.engine.DistanceComputations() }

// TotalDistanceComputations returns the evaluations since initialization.
func (c *Clusterer) TotalDistanceComputations() int64 {
	return c.engine.TotalDistanceComputations()
}

// Inertia returns the sum of squared distances of points to their centers.
func (c *Clusterer) Inertia() (float64, error) { return c.engine.Inertia() }

// Status returns per-center sizes and per-point distances to the assigned
// center.
func (c *Clusterer) Status() (Status, error) { return c.engine.Status() }

// State returns the lifecycle state.
func (c *Clusterer) State() State { return c.engine.State() }

// Iterations returns the number of completed iterations.
func (c *Clusterer) Iterations() int { return c.engine.Iterations() }

// Seed returns the seed used to sample the initial centers.
func (c *Clusterer) Seed() int64 { return c.seed }

// Cluster is a convenience wrapper for New followed by Run.
func Cluster(ctx context.Context, ds dataset.Dataset, k int, opts ...Option) (*Result, error) {
	c, err := New(ds, k, opts...)
	if err != nil {
		return nil, err
	}
	return c.Run(ctx)
}
