package kmeans

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/hupe1980/elkan/dataset"
	"github.com/hupe1980/elkan/distance"
	"github.com/hupe1980/elkan/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const boundTolerance = 1e-9

// checkBounds verifies every bound against exact distances.
func checkBounds(e *Engine) error {
	k := e.k
	for i, a := range e.assignments {
		x, err := e.vector(i)
		if err != nil {
			return err
		}
		for c := range k {
			d := distance.L2(x, e.center(c))
			if l := e.b.lower[i*k+c]; l < 0 || d < l-boundTolerance {
				return fmt.Errorf("point %d center %d: lower %v > distance %v", i, c, l, d)
			}
			if c != a {
				continue
			}
			if u := e.b.upper[i]; d > u+boundTolerance {
				return fmt.Errorf("point %d: distance %v > upper %v", i, d, u)
			}
			if e.b.tight[i] && math.Abs(d-e.b.upper[i]) > boundTolerance {
				return fmt.Errorf("point %d: tight upper %v != distance %v", i, e.b.upper[i], d)
			}
		}
	}
	return nil
}

func newEngine(t *testing.T, ds dataset.Dataset, cfg Config) *Engine {
	t.Helper()
	e, err := New(ds, cfg)
	require.NoError(t, err)
	require.NoError(t, e.Init())
	return e
}

func runToEnd(t *testing.T, e *Engine, limit int) {
	t.Helper()
	for e.State() != StateConverged && e.Iterations() < limit {
		require.NoError(t, e.Step())
		require.NoError(t, checkBounds(e))
	}
}

func blobDataset(t *testing.T, seed int64, n, dim, clusters int) *dataset.Memory {
	t.Helper()
	vecs, _ := testutil.NewRNG(seed).GaussianBlobs(n, dim, clusters, 8, 1)
	ds, err := dataset.FromVectors(vecs)
	require.NoError(t, err)
	return ds
}

func TestTwoClusterScenario(t *testing.T) {
	ds := dataset.Slice{{0, 0}, {0, 1}, {10, 0}, {10, 1}}
	e := newEngine(t, ds, Config{K: 2, InitialIndices: []int{0, 2}})

	assert.Equal(t, StateInitialized, e.State())
	assert.Equal(t, []int{0, 0, 1, 1}, e.Assignments())

	runToEnd(t, e, 10)

	assert.Equal(t, StateConverged, e.State())
	assert.Equal(t, 1, e.Iterations())
	assert.Equal(t, []int{0, 0, 1, 1}, e.Assignments())

	centers := e.Centers()
	assert.InDeltaSlice(t, []float32{0, 0.5}, centers[0], 1e-6)
	assert.InDeltaSlice(t, []float32{10, 0.5}, centers[1], 1e-6)
	assert.Equal(t, []int{2, 2}, e.ClusterSizes())

	inertia, err := e.Inertia()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, inertia, 1e-9)
}

func TestInitialAssignmentBoundsAreExact(t *testing.T) {
	ds := blobDataset(t, 3, 300, 8, 6)
	e := newEngine(t, ds, Config{K: 6, Seed: 11})

	require.NoError(t, checkBounds(e))
	for i := range e.n {
		assert.True(t, e.b.tight[i])
	}
	assert.LessOrEqual(t, e.DistanceComputations(), int64(300*6))
	assert.Equal(t, e.DistanceComputations(), e.TotalDistanceComputations())
}

func TestBoundSoundness(t *testing.T) {
	for _, k := range []int{1, 2, 5, 16} {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			ds := blobDataset(t, int64(k), 400, 12, 5)
			e := newEngine(t, ds, Config{K: k, Seed: 42})
			require.NoError(t, checkBounds(e))
			runToEnd(t, e, 200)
			assert.Equal(t, StateConverged, e.State())
		})
	}
}

func TestMatchesExhaustive(t *testing.T) {
	ds := blobDataset(t, 5, 500, 16, 8)

	pruned := newEngine(t, ds, Config{K: 8, Seed: 9})
	exhaustive := newEngine(t, ds, Config{K: 8, Seed: 9, Exhaustive: true})
	require.Equal(t, exhaustive.Assignments(), pruned.Assignments())

	for pruned.State() != StateConverged {
		require.NoError(t, pruned.Step())
		require.NoError(t, exhaustive.Step())

		assert.Equal(t, exhaustive.Assignments(), pruned.Assignments(), "iteration %d", pruned.Iterations())
		assert.Equal(t, exhaustive.Centers(), pruned.Centers(), "iteration %d", pruned.Iterations())
		assert.Equal(t, exhaustive.State(), pruned.State())
		require.NoError(t, checkBounds(pruned))
		require.Less(t, pruned.Iterations(), 200)
	}

	assert.Less(t, pruned.TotalDistanceComputations(), exhaustive.TotalDistanceComputations())
}

func TestStepMatchesLloydAssignment(t *testing.T) {
	ds := blobDataset(t, 8, 250, 6, 4)
	e := newEngine(t, ds, Config{K: 7, Seed: 1})

	for range 3 {
		if e.State() == StateConverged {
			break
		}
		centers := e.Centers()
		require.NoError(t, e.Step())
		if e.LastReseeds() > 0 {
			continue
		}
		assignments := e.Assignments()
		for i := range ds.Len() {
			x, _ := ds.VectorAt(i)
			assert.Equal(t, testutil.NearestCenter(x, centers), assignments[i], "point %d", i)
		}
	}
}

func TestDeterministic(t *testing.T) {
	ds := blobDataset(t, 2, 300, 4, 5)

	a := newEngine(t, ds, Config{K: 5, Seed: 123})
	b := newEngine(t, ds, Config{K: 5, Seed: 123})
	runToEnd(t, a, 100)
	runToEnd(t, b, 100)

	assert.Equal(t, a.Seeds(), b.Seeds())
	assert.Equal(t, a.Centers(), b.Centers())
	assert.Equal(t, a.Assignments(), b.Assignments())
	assert.Equal(t, a.Iterations(), b.Iterations())
	assert.Equal(t, a.TotalDistanceComputations(), b.TotalDistanceComputations())
}

func TestClusterSizesSumToN(t *testing.T) {
	ds := blobDataset(t, 4, 200, 3, 3)
	e := newEngine(t, ds, Config{K: 9, Seed: 4})

	sum := func(s []int) int {
		total := 0
		for _, v := range s {
			total += v
		}
		return total
	}

	assert.Equal(t, 200, sum(e.ClusterSizes()))
	for e.State() != StateConverged {
		require.NoError(t, e.Step())
		assert.Equal(t, 200, sum(e.ClusterSizes()))
		require.Less(t, e.Iterations(), 500)
	}
}

func TestKEqualsN(t *testing.T) {
	ds := dataset.Slice{{1, 1}, {2, 2}, {3, 3}}
	e := newEngine(t, ds, Config{K: 3, InitialIndices: []int{2, 0, 1}})

	assert.Equal(t, StateConverged, e.State())
	assert.Equal(t, 0, e.Iterations())
	assert.Equal(t, [][]float32{{3, 3}, {1, 1}, {2, 2}}, e.Centers())
	assert.Equal(t, []int{1, 2, 0}, e.Assignments())
	assert.Equal(t, int64(0), e.DistanceComputations())
	require.NoError(t, checkBounds(e))

	require.NoError(t, e.Step())
	assert.Equal(t, 0, e.Iterations())
}

func TestEmptyClusterReseed(t *testing.T) {
	ds := dataset.Slice{{0, 0}, {0, 0}, {10, 0}, {11, 0}}
	e := newEngine(t, ds, Config{K: 3, InitialIndices: []int{0, 1, 2}})
	assert.Equal(t, []int{0, 0, 2, 2}, e.Assignments())

	require.NoError(t, e.Step())
	require.NoError(t, checkBounds(e))
	assert.Equal(t, 1, e.LastReseeds())
	assert.Equal(t, StateIterating, e.State())
	assert.Equal(t, []int{0, 0, 1, 2}, e.Assignments())
	assert.Equal(t, [][]float32{{0, 0}, {10, 0}, {11, 0}}, e.Centers())

	require.NoError(t, e.Step())
	require.NoError(t, checkBounds(e))
	assert.Equal(t, StateConverged, e.State())
	assert.Equal(t, 2, e.Iterations())
	assert.Equal(t, []int{2, 1, 1}, e.ClusterSizes())
}

func TestEmptyClusterKeep(t *testing.T) {
	ds := dataset.Slice{{0, 0}, {0, 0}, {10, 0}, {11, 0}}
	e := newEngine(t, ds, Config{K: 3, InitialIndices: []int{0, 1, 2}, Policy: Keep})

	require.NoError(t, e.Step())
	require.NoError(t, checkBounds(e))
	assert.Equal(t, StateConverged, e.State())
	assert.Equal(t, 0, e.LastReseeds())
	assert.Equal(t, []int{2, 0, 2}, e.ClusterSizes())

	centers := e.Centers()
	assert.Equal(t, []float32{0, 0}, centers[1])
	assert.Equal(t, []float32{10.5, 0}, centers[2])
}

func TestStepBeforeInit(t *testing.T) {
	e, err := New(dataset.Slice{{1}, {2}}, Config{K: 1})
	require.NoError(t, err)
	assert.Equal(t, StateUninitialized, e.State())
	assert.ErrorIs(t, e.Step(), ErrNotInitialized)
	assert.Nil(t, e.Centers())
	assert.Nil(t, e.Assignments())

	_, err = e.Inertia()
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = e.Status()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestNewValidation(t *testing.T) {
	points := dataset.Slice{{1, 2}, {3, 4}, {5, 6}}

	tests := []struct {
		name string
		ds   dataset.Dataset
		cfg  Config
		want error
	}{
		{"zero k", points, Config{K: 0}, ErrInvalidK},
		{"negative k", points, Config{K: -1}, ErrInvalidK},
		{"empty dataset", dataset.Slice{}, Config{K: 1}, ErrEmptyDataset},
		{"k greater than n", points, Config{K: 4}, ErrTooFewPoints},
		{"seed count", points, Config{K: 2, InitialIndices: []int{0}}, ErrInvalidSeeds},
		{"seed range", points, Config{K: 2, InitialIndices: []int{0, 3}}, ErrInvalidSeeds},
		{"seed duplicate", points, Config{K: 2, InitialIndices: []int{1, 1}}, ErrInvalidSeeds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.ds, tt.cfg)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := New(dataset.Slice{{}, {}}, Config{K: 1})
	var ide *InvalidDimensionError
	require.ErrorAs(t, err, &ide)
	assert.Equal(t, 0, ide.Dimension)
}

func TestDimensionMismatch(t *testing.T) {
	e, err := New(dataset.Slice{{1, 2}, {3, 4}, {5}}, Config{K: 1})
	require.NoError(t, err)

	err = e.Init()
	var dme *DimensionMismatchError
	require.ErrorAs(t, err, &dme)
	assert.Equal(t, 2, dme.Index)
	assert.Equal(t, 2, dme.Expected)
	assert.Equal(t, 1, dme.Actual)
}

var errFlaky = errors.New("read failed")

type failingDataset struct {
	dataset.Slice
	failAt int
}

func (f failingDataset) VectorAt(i int) ([]float32, error) {
	if i == f.failAt {
		return nil, errFlaky
	}
	return f.Slice.VectorAt(i)
}

func TestDatasetErrorPropagates(t *testing.T) {
	ds := failingDataset{Slice: dataset.Slice{{0}, {1}, {2}, {3}}, failAt: 3}
	e, err := New(ds, Config{K: 2, InitialIndices: []int{0, 1}})
	require.NoError(t, err)
	assert.ErrorIs(t, e.Init(), errFlaky)
}

func TestStatus(t *testing.T) {
	ds := dataset.Slice{{0, 0}, {0, 1}, {10, 0}, {10, 1}}
	e := newEngine(t, ds, Config{K: 2, InitialIndices: []int{0, 2}})
	runToEnd(t, e, 10)

	st, err := e.Status()
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, st.Sizes)
	assert.InDeltaSlice(t, []float64{0.5, 0.5, 0.5, 0.5}, st.Distances, 1e-9)
}

func TestReinit(t *testing.T) {
	ds := blobDataset(t, 6, 100, 4, 3)
	e := newEngine(t, ds, Config{K: 3, Seed: 8})
	runToEnd(t, e, 100)
	first := e.Centers()

	require.NoError(t, e.Init())
	assert.Equal(t, StateInitialized, e.State())
	assert.Equal(t, 0, e.Iterations())
	runToEnd(t, e, 100)
	assert.Equal(t, first, e.Centers())
}

func TestSampleIndices(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, tc := range []struct{ n, k int }{{100, 5}, {10, 8}, {7, 7}, {1000, 1}} {
		got := sampleIndices(rng, tc.n, tc.k)
		require.Len(t, got, tc.k)
		assert.NoError(t, validateSeeds(got, tc.k, tc.n))
	}
}

func TestEmptyClusterReseedSeveral(t *testing.T) {
	// Three seeds share coordinates, so the first step leaves two clusters
	// empty. Both are reseeded in the same iteration.
	ds := dataset.Slice{{0, 0}, {0, 0}, {0, 0}, {10, 0}, {11, 0}, {12, 0}}
	e := newEngine(t, ds, Config{K: 3, InitialIndices: []int{0, 1, 2}})
	assert.Equal(t, []int{0, 0, 0, 0, 0, 0}, e.Assignments())

	require.NoError(t, e.Step())
	require.NoError(t, checkBounds(e))
	assert.Equal(t, 2, e.LastReseeds())
	assert.Equal(t, []int{2, 0, 0, 0, 0, 1}, e.Assignments())
	assert.Equal(t, [][]float32{{5.25, 0}, {12, 0}, {0, 0}}, e.Centers())

	for e.State() != StateConverged {
		require.Less(t, e.Iterations(), 50)
		require.NoError(t, e.Step())
		require.NoError(t, checkBounds(e))
	}
	assert.Equal(t, 3, e.Iterations())
	assert.Equal(t, []int{1, 2, 3}, e.ClusterSizes())
}

func TestEmptyClusterReseedAlwaysFindsDonor(t *testing.T) {
	// K-1 empty clusters with N = K+1 points: every empty cluster still finds
	// a donor with at least two members.
	ds := dataset.Slice{{1, 1}, {1, 1}, {1, 1}, {1, 1}}
	e := newEngine(t, ds, Config{K: 3, InitialIndices: []int{0, 1, 2}})

	require.NoError(t, e.Step())
	require.NoError(t, checkBounds(e))
	assert.Equal(t, 2, e.LastReseeds())
	assert.Equal(t, []int{1, 2, 0, 0}, e.Assignments())

	require.NoError(t, e.Step())
	require.NoError(t, checkBounds(e))
	assert.Equal(t, StateConverged, e.State())
	assert.Equal(t, []int{2, 1, 1}, e.ClusterSizes())
}
