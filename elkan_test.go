package elkan

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/hupe1980/elkan/dataset"
	"github.com/hupe1980/elkan/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoClusterDataset() dataset.Dataset {
	return dataset.Slice{{0, 0}, {0, 1}, {10, 0}, {10, 1}}
}

func blobs(t *testing.T, n, dim, clusters int) *dataset.Memory {
	t.Helper()
	vecs, _ := testutil.NewRNG(21).GaussianBlobs(n, dim, clusters, 10, 1)
	ds, err := dataset.FromVectors(vecs)
	require.NoError(t, err)
	return ds
}

func TestClusterTwoGroups(t *testing.T) {
	res, err := Cluster(t.Context(), twoClusterDataset(), 2,
		WithInitialIndices([]int{0, 2}),
		WithLogger(NoopLogger()),
	)
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, []int{0, 0, 1, 1}, res.Assignments)
	assert.Equal(t, []int{2, 2}, res.Sizes)
	assert.InDeltaSlice(t, []float32{0, 0.5}, res.Centers[0], 1e-6)
	assert.InDeltaSlice(t, []float32{10, 0.5}, res.Centers[1], 1e-6)
	assert.InDelta(t, 1.0, res.Inertia, 1e-9)
	assert.Equal(t, 2, res.Dimension)
	assert.Equal(t, 4, res.Points)
	assert.NoError(t, res.Validate())
}

func TestClustererStepwise(t *testing.T) {
	c, err := New(twoClusterDataset(), 2, WithInitialIndices([]int{0, 2}), WithLogger(NoopLogger()))
	require.NoError(t, err)
	assert.Equal(t, StateInitialized, c.State())
	assert.Equal(t, []int{0, 0, 1, 1}, c.Assignments())

	require.NoError(t, c.Step())
	assert.Equal(t, StateConverged, c.State())
	assert.Equal(t, 1, c.Iterations())

	require.NoError(t, c.Step())
	assert.Equal(t, 1, c.Iterations(), "step after convergence is a no-op")

	st, err := c.Status()
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, st.Sizes)
	assert.Len(t, st.Distances, 4)
}

func TestMaxIterations(t *testing.T) {
	ds := blobs(t, 600, 8, 12)

	res, err := Cluster(t.Context(), ds, 12, WithSeed(3), WithMaxIterations(1), WithLogger(NoopLogger()))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Iterations)

	full, err := Cluster(t.Context(), ds, 12, WithSeed(3), WithMaxIterations(0), WithLogger(NoopLogger()))
	require.NoError(t, err)
	assert.True(t, full.Converged)
}

func TestRunHonorsCancellation(t *testing.T) {
	ds := blobs(t, 200, 4, 4)
	c, err := New(ds, 4, WithSeed(1), WithLogger(NoopLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	res, err := c.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

func TestExhaustiveProducesSameResult(t *testing.T) {
	ds := blobs(t, 400, 16, 6)

	pruned, err := Cluster(t.Context(), ds, 6, WithSeed(5), WithLogger(NoopLogger()))
	require.NoError(t, err)
	exhaustive, err := Cluster(t.Context(), ds, 6, WithSeed(5), WithExhaustive(true), WithLogger(NoopLogger()))
	require.NoError(t, err)

	assert.Equal(t, exhaustive.Assignments, pruned.Assignments)
	assert.Equal(t, exhaustive.Centers, pruned.Centers)
	assert.Equal(t, exhaustive.Iterations, pruned.Iterations)
	assert.Less(t, pruned.DistanceComputations, exhaustive.DistanceComputations)
}

func TestSeedIsRecorded(t *testing.T) {
	ds := blobs(t, 100, 4, 3)

	a, err := Cluster(t.Context(), ds, 3, WithSeed(99), WithLogger(NoopLogger()))
	require.NoError(t, err)
	assert.Equal(t, int64(99), a.Seed)

	b, err := Cluster(t.Context(), ds, 3, WithLogger(NoopLogger()))
	require.NoError(t, err)

	replay, err := Cluster(t.Context(), ds, 3, WithSeed(b.Seed), WithLogger(NoopLogger()))
	require.NoError(t, err)
	assert.Equal(t, b.Seeds, replay.Seeds)
	assert.Equal(t, b.Assignments, replay.Assignments)
}

func TestErrors(t *testing.T) {
	ds := twoClusterDataset()

	_, err := New(ds, 0)
	assert.ErrorIs(t, err, ErrInvalidK)

	_, err = New(ds, 5)
	assert.ErrorIs(t, err, ErrTooFewPoints)

	_, err = New(dataset.Slice{}, 1)
	assert.ErrorIs(t, err, ErrEmptyDataset)

	_, err = New(ds, 2, WithInitialIndices([]int{0, 0}))
	assert.ErrorIs(t, err, ErrInvalidSeeds)

	_, err = New(dataset.Slice{{}}, 1)
	var ide *InvalidDimensionError
	assert.ErrorAs(t, err, &ide)

	_, err = New(dataset.Slice{{1, 2}, {3}}, 1, WithInitialIndices([]int{0}))
	var dme *DimensionMismatchError
	require.ErrorAs(t, err, &dme)
	assert.Equal(t, 1, dme.Index)
}

func TestLoggingAndMetrics(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	mc := &BasicMetricsCollector{}

	res, err := Cluster(t.Context(), twoClusterDataset(), 2,
		WithInitialIndices([]int{0, 2}),
		WithLogger(logger),
		WithMetricsCollector(mc),
	)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "initialization completed")
	assert.Contains(t, out, "iteration completed")
	assert.Contains(t, out, "clustering completed")
	assert.Contains(t, out, "k=2")

	stats := mc.GetStats()
	assert.Equal(t, int64(1), stats.IterationCount)
	assert.Equal(t, int64(1), stats.RunCount)
	assert.Equal(t, int64(1), stats.RunConverged)
	assert.Equal(t, int64(0), stats.RunErrors)
	assert.Equal(t, res.DistanceComputations, stats.RunComputations)
}

func TestEmptyClusterPolicyOption(t *testing.T) {
	ds := dataset.Slice{{0, 0}, {0, 0}, {10, 0}, {11, 0}}

	var buf bytes.Buffer
	logger := NewLogger(slog.NewTextHandler(&buf, nil))

	res, err := Cluster(t.Context(), ds, 3,
		WithInitialIndices([]int{0, 1, 2}),
		WithEmptyClusterPolicy(EmptyClusterKeep),
		WithLogger(logger),
	)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0, 2}, res.Sizes)
	assert.Contains(t, buf.String(), "empty cluster kept")

	res, err = Cluster(t.Context(), ds, 3, WithInitialIndices([]int{0, 1, 2}), WithLogger(NoopLogger()))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 1}, res.Sizes)
	assert.Equal(t, 0, res.SizeStats().Empty)
}

func TestParseEmptyClusterPolicy(t *testing.T) {
	p, err := ParseEmptyClusterPolicy("keep")
	require.NoError(t, err)
	assert.Equal(t, EmptyClusterKeep, p)

	p, err = ParseEmptyClusterPolicy("reseed-farthest")
	require.NoError(t, err)
	assert.Equal(t, EmptyClusterReseedFarthest, p)
	assert.Equal(t, "reseed-farthest", p.String())

	_, err = ParseEmptyClusterPolicy("random")
	assert.Error(t, err)
}
